package pipeline

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChunkDur   = 20 * time.Millisecond
	testChunkBytes = 1920 // 48kHz mono PCM16 at 20ms
)

// scriptSource implements Source over an in-memory buffer with the same
// read contract as ReaderSource.
type scriptSource struct {
	buf      []byte
	closed   bool
	readable chan struct{}
}

func newScriptSource() *scriptSource {
	return &scriptSource{readable: make(chan struct{}, 1)}
}

func (s *scriptSource) feed(p []byte) {
	s.buf = append(s.buf, p...)
	select {
	case s.readable <- struct{}{}:
	default:
	}
}

func (s *scriptSource) close() { s.closed = true }

func (s *scriptSource) Readable() <-chan struct{} { return s.readable }

func (s *scriptSource) ReadChunk(p []byte) (int, error) {
	if len(s.buf) >= len(p) {
		copy(p, s.buf[:len(p)])
		s.buf = s.buf[len(p):]
		return len(p), nil
	}
	if !s.closed {
		return 0, nil
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[:0]
	return n, io.EOF
}

type captureWriter struct {
	frames []Frame
}

func (c *captureWriter) WriteFrame(f Frame) error {
	cp := make([]byte, len(f.Data))
	copy(cp, f.Data)
	c.frames = append(c.frames, Frame{Index: f.Index, Data: cp})
	return nil
}

func newTestChunker(t *testing.T, src Source, out FrameWriter, start time.Time) *Chunker {
	t.Helper()
	c, err := NewChunker(ChunkerConfig{
		Source:     src,
		Next:       out,
		Start:      start,
		ChunkDur:   testChunkDur,
		ChunkBytes: testChunkBytes,
	})
	require.NoError(t, err)
	return c
}

func at(start time.Time, chunks float64) time.Time {
	return start.Add(time.Duration(chunks * float64(testChunkDur)))
}

func TestChunkerSteadyState(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	src.feed(make([]byte, 200*testChunkBytes))

	// First drain lands mid-slot 0, the rest catch up one tick at a time.
	for k := 0; k < 200; k++ {
		park, end := c.drain(at(start, float64(k)+0.5))
		assert.False(t, park)
		assert.False(t, end)
	}

	require.Len(t, out.frames, 200)
	for k, f := range out.frames {
		assert.Equal(t, uint32(k), f.Index)
		assert.Len(t, f.Data, testChunkBytes)
	}
}

func TestChunkerCatchUpAfterStall(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	src.feed(make([]byte, 5*testChunkBytes))
	c.drain(at(start, 0.5))
	require.Len(t, out.frames, 1)

	// A scheduling stall: the next drain happens four slots later and must
	// emit all backed-up chunks in one pass.
	park, end := c.drain(at(start, 4.5))
	assert.False(t, park)
	assert.False(t, end)
	require.Len(t, out.frames, 5)
	for k, f := range out.frames {
		assert.Equal(t, uint32(k), f.Index)
	}
}

func TestChunkerSourceStallReanchors(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	src.feed(make([]byte, 10*testChunkBytes))
	for k := 0; k < 10; k++ {
		c.drain(at(start, float64(k)+0.5))
	}
	require.Len(t, out.frames, 10)

	// Source stalls; after maxIdleReads empty passes the timer parks.
	parked := false
	for k := 10; k < 10+maxIdleReads; k++ {
		park, end := c.drain(at(start, float64(k)+0.5))
		assert.False(t, end)
		parked = park
	}
	assert.True(t, parked)

	// Resume 20 slots after the stall began: the index re-anchors to wall
	// clock instead of continuing at 10.
	src.feed(make([]byte, testChunkBytes))
	park, end := c.drain(at(start, 30.5))
	assert.False(t, park)
	assert.False(t, end)
	require.Len(t, out.frames, 11)
	assert.Equal(t, uint32(30), out.frames[10].Index)
}

func TestChunkerShortTailZeroPadded(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	data := make([]byte, testChunkBytes+3)
	for i := range data {
		data[i] = 0xAB
	}
	src.feed(data)
	src.close()

	c.drain(at(start, 0.5))
	c.drain(at(start, 1.5))
	_, end := c.drain(at(start, 2.5))
	assert.True(t, end)

	require.Len(t, out.frames, 2)
	assert.Equal(t, uint32(0), out.frames[0].Index)
	assert.Equal(t, uint32(1), out.frames[1].Index)

	tail := out.frames[1].Data
	require.Len(t, tail, testChunkBytes)
	assert.Equal(t, []byte{0xAB, 0xAB, 0xAB}, tail[:3])
	for _, b := range tail[3:] {
		require.Zero(t, b)
	}
}

func TestChunkerSpuriousReadableIsNoOp(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	// Readable before any data: the drain pass consumes no index.
	park, end := c.drain(at(start, 0.5))
	assert.False(t, park)
	assert.False(t, end)
	assert.Empty(t, out.frames)

	src.feed(make([]byte, testChunkBytes))
	c.drain(at(start, 0.6))
	require.Len(t, out.frames, 1)
	assert.Equal(t, uint32(0), out.frames[0].Index)
}

func TestChunkerFutureTargetNotEmitted(t *testing.T) {
	src := newScriptSource()
	out := &captureWriter{}
	start := time.Now()
	c := newTestChunker(t, src, out, start)

	src.feed(make([]byte, 4*testChunkBytes))
	c.drain(at(start, 1.5))
	// The first drain anchors to the current slot (1) without back-filling
	// slot 0; slots 2 and 3 are still in the future.
	require.Len(t, out.frames, 1)
}
