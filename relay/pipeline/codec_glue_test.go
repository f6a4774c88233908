package pipeline

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16Samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

// stubCodec fakes a codec: "encoding" records the frame, "decoding" replays
// a fixed sample value, concealment replays zero.
type stubCodec struct {
	frameSamples int
	channels     int
	encoded      int
	concealed    int
	failEncode   bool
}

func (s *stubCodec) Encode(samples []float32, out []byte) (int, error) {
	if s.failEncode {
		return 0, errors.New("stub encode failure")
	}
	s.encoded++
	out[0] = byte(len(samples))
	return 3, nil
}

func (s *stubCodec) Decode(payload []byte, out []int16) (int, error) {
	for i := 0; i < s.frameSamples*s.channels; i++ {
		out[i] = 7
	}
	return s.frameSamples, nil
}

func (s *stubCodec) Conceal(out []int16) (int, error) {
	s.concealed++
	for i := 0; i < s.frameSamples*s.channels; i++ {
		out[i] = 0
	}
	return s.frameSamples, nil
}

type capturePCM struct {
	writes [][]byte
}

func (c *capturePCM) WritePCM(p []byte) error {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.writes = append(c.writes, cp)
	return nil
}

func TestEncoderEmitsIndexedPayload(t *testing.T) {
	codec := &stubCodec{}
	out := &captureWriter{}
	enc, err := NewEncoder(EncoderConfig{Codec: codec, Next: out})
	require.NoError(t, err)

	frame := make([]byte, 960*4)
	require.NoError(t, enc.WriteFrame(Frame{Index: 41, Data: frame}))

	require.Len(t, out.frames, 1)
	assert.Equal(t, uint32(41), out.frames[0].Index)
	assert.Len(t, out.frames[0].Data, 3)
	assert.Equal(t, 1, codec.encoded)
}

func TestEncoderDropsOnCodecError(t *testing.T) {
	codec := &stubCodec{failEncode: true}
	out := &captureWriter{}
	stats := &Stats{}
	enc, err := NewEncoder(EncoderConfig{Codec: codec, Next: out, Stats: stats})
	require.NoError(t, err)

	require.NoError(t, enc.WriteFrame(Frame{Index: 1, Data: make([]byte, 960*4)}))
	assert.Empty(t, out.frames)
	assert.Equal(t, uint64(1), stats.EncodeFailures.Load())
}

func TestEncoderWithoutCodecDrops(t *testing.T) {
	out := &captureWriter{}
	stats := &Stats{}
	enc, err := NewEncoder(EncoderConfig{Next: out, Stats: stats})
	require.NoError(t, err)

	require.NoError(t, enc.WriteFrame(Frame{Index: 1, Data: make([]byte, 960*4)}))
	assert.Empty(t, out.frames)
	assert.Equal(t, uint64(1), stats.ChunksDropped.Load())
}

func TestDecoderDecodesPayload(t *testing.T) {
	codec := &stubCodec{frameSamples: 960, channels: 1}
	sink := &capturePCM{}
	dec, err := NewDecoder(DecoderConfig{
		Codec:        codec,
		Sink:         sink,
		Channels:     1,
		FrameSamples: 960,
	})
	require.NoError(t, err)

	require.NoError(t, dec.WriteFrame(Frame{Index: 3, Data: []byte{0x01}}))
	require.Len(t, sink.writes, 1)
	samples := pcm16Samples(sink.writes[0])
	require.Len(t, samples, 960)
	assert.Equal(t, int16(7), samples[0])
}

func TestDecoderEmptyPayloadConceals(t *testing.T) {
	codec := &stubCodec{frameSamples: 960, channels: 1}
	sink := &capturePCM{}
	dec, err := NewDecoder(DecoderConfig{
		Codec:        codec,
		Sink:         sink,
		Channels:     1,
		FrameSamples: 960,
	})
	require.NoError(t, err)

	require.NoError(t, dec.WriteFrame(Frame{Index: 3, Data: nil}))
	assert.Equal(t, 1, codec.concealed)
	require.Len(t, sink.writes, 1)
	samples := pcm16Samples(sink.writes[0])
	assert.Equal(t, int16(0), samples[0])
}
