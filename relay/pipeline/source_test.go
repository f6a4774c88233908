package pipeline

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitReadable(t *testing.T, s Source) {
	t.Helper()
	select {
	case <-s.Readable():
	case <-time.After(time.Second):
		t.Fatal("no readable notification")
	}
}

func TestReaderSourceHoldsPartialChunks(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewReaderSource(pr)

	go pw.Write(make([]byte, 10))
	waitReadable(t, src)

	// Fewer bytes than a chunk while open: nothing is returned.
	buf := make([]byte, 16)
	n, err := src.ReadChunk(buf)
	assert.Zero(t, n)
	assert.NoError(t, err)

	go func() {
		pw.Write(make([]byte, 6))
		pw.Close()
	}()
	waitReadable(t, src)
	for {
		n, err = src.ReadChunk(buf)
		if n == 16 {
			break
		}
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, err)
}

func TestReaderSourceDrainsTailThenEOF(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewReaderSource(pr)

	go func() {
		pw.Write(make([]byte, 5))
		pw.Close()
	}()
	waitReadable(t, src)

	buf := make([]byte, 16)
	var n int
	var err error
	for {
		n, err = src.ReadChunk(buf)
		if n > 0 || err != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)

	n, err = src.ReadChunk(buf)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}
