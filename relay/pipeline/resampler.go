package pipeline

import (
	"fmt"
	"log/slog"
)

// Resampler converts indexed PCM chunks at the source rate into indexed
// float32 frames at the codec rate, preserving the 1:1 mapping of input
// chunk index to output frame index.
//
// Output frames are views into a circular alignment buffer; a view stays
// valid for at least the configured latency window, so consumers either use
// it synchronously or copy.
type Resampler struct {
	channels   int
	frameBytes int
	conv       *rateConverter
	next       FrameWriter
	log        *slog.Logger
	stats      *Stats

	ring     []byte
	writeOff int
	buffered int
	pending  []uint32
	scratch  []byte
}

type ResamplerConfig struct {
	Channels     int
	InRate       int
	OutRate      int
	FrameSamples int // per channel, at OutRate
	MaxLatencyMS int
	Next         FrameWriter
	Logger       *slog.Logger
	Stats        *Stats
}

func NewResampler(cfg ResamplerConfig) (*Resampler, error) {
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("resampler: invalid channel count %d", cfg.Channels)
	}
	if cfg.InRate < 1 || cfg.OutRate < 1 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", cfg.InRate, cfg.OutRate)
	}
	if cfg.FrameSamples < 1 {
		return nil, fmt.Errorf("resampler: invalid frame size %d", cfg.FrameSamples)
	}
	if cfg.Next == nil {
		return nil, fmt.Errorf("resampler: next stage is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	frameBytes := cfg.FrameSamples * cfg.Channels * 4
	// The alignment buffer holds the latency window's worth of output. Its
	// capacity must be an exact multiple of the frame size: reads advance a
	// frame at a time, so a frame can then never straddle the wrap.
	capBytes := cfg.MaxLatencyMS * cfg.OutRate / 1000 * cfg.Channels * 4
	if capBytes <= 0 || capBytes%frameBytes != 0 {
		return nil, fmt.Errorf("resampler: latency window %dms at %dHz is not a positive multiple of the %dB output frame",
			cfg.MaxLatencyMS, cfg.OutRate, frameBytes)
	}
	return &Resampler{
		channels:   cfg.Channels,
		frameBytes: frameBytes,
		conv:       newRateConverter(cfg.InRate, cfg.OutRate, cfg.Channels),
		next:       cfg.Next,
		log:        cfg.Logger,
		stats:      cfg.Stats,
		ring:       make([]byte, capBytes),
	}, nil
}

func (r *Resampler) WriteFrame(f Frame) error {
	if r.conv == nil {
		// Not initialized yet: drop rather than queue (latency priority).
		r.stats.ChunksDropped.Add(1)
		return nil
	}
	r.pending = append(r.pending, f.Index)

	r.scratch = r.conv.convert(r.scratch[:0], f.Data)
	r.push(r.scratch)

	for r.buffered >= r.frameBytes && len(r.pending) > 0 {
		j := r.pending[0]
		r.pending = r.pending[1:]
		// (writeOff - buffered) mod cap is the total consumed byte count mod
		// cap, which only ever advances a frame at a time: the offset stays
		// frame-aligned even when unconsumed output exceeds the window.
		read := ((r.writeOff-r.buffered)%len(r.ring) + len(r.ring)) % len(r.ring)
		out := r.ring[read : read+r.frameBytes]
		r.buffered -= r.frameBytes
		if err := r.next.WriteFrame(Frame{Index: j, Data: out}); err != nil {
			return err
		}
	}
	return nil
}

// push copies converted output into the circular buffer, splitting across
// the wrap boundary as needed.
func (r *Resampler) push(out []byte) {
	for len(out) > 0 {
		n := copy(r.ring[r.writeOff:], out)
		r.writeOff = (r.writeOff + n) % len(r.ring)
		out = out[n:]
		r.buffered += n
	}
}
