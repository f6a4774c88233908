package pipeline

import (
	"fmt"
	"log/slog"

	"soundrelay/relay/pcm"
)

// MaxPayloadBytes is the upper bound on one compressed frame: it is the size
// of the output buffer the encoder hands the codec on each call.
const MaxPayloadBytes = 4096

// FrameEncoder compresses one fixed-size float32 PCM frame per call into
// out, returning the payload length.
type FrameEncoder interface {
	Encode(samples []float32, out []byte) (int, error)
}

// Encoder is the glue between the resampler and the codec: it consumes
// indexed float32 frames and emits indexed compressed frames. The codec is
// position-agnostic; with a synchronous codec call each submit/return pair
// carries its index directly.
type Encoder struct {
	enc     FrameEncoder
	next    FrameWriter
	log     *slog.Logger
	stats   *Stats
	samples []float32
}

type EncoderConfig struct {
	Codec  FrameEncoder
	Next   FrameWriter
	Logger *slog.Logger
	Stats  *Stats
}

func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	if cfg.Next == nil {
		return nil, fmt.Errorf("encoder: next stage is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	return &Encoder{
		enc:   cfg.Codec,
		next:  cfg.Next,
		log:   cfg.Logger,
		stats: cfg.Stats,
	}, nil
}

func (e *Encoder) WriteFrame(f Frame) error {
	if e.enc == nil {
		// Codec not ready: drop, the pipeline continues.
		e.stats.ChunksDropped.Add(1)
		return nil
	}
	e.samples = pcm.BytesToFloat32(e.samples, f.Data)
	out := make([]byte, MaxPayloadBytes)
	n, err := e.enc.Encode(e.samples, out)
	if err != nil {
		e.stats.EncodeFailures.Add(1)
		e.log.Warn("frame encode failed", "index", f.Index, "error", err)
		return nil
	}
	e.stats.FramesEncoded.Add(1)
	return e.next.WriteFrame(Frame{Index: f.Index, Data: out[:n]})
}
