package pipeline

import (
	"fmt"
	"log/slog"

	"soundrelay/relay/pcm"
)

// FrameDecoder decompresses one payload into pcm, returning samples per
// channel. Conceal synthesizes one frame for a missing payload.
type FrameDecoder interface {
	Decode(payload []byte, pcm []int16) (int, error)
	Conceal(pcm []int16) (int, error)
}

// PCMWriter accepts decoded signed-16 PCM bytes at the codec rate.
type PCMWriter interface {
	WritePCM(p []byte) error
}

// Decoder is the glue between the orderer and the codec: ordered compressed
// frames in, PCM for playback out. An empty payload invokes the codec's
// packet-loss concealment.
type Decoder struct {
	dec      FrameDecoder
	sink     PCMWriter
	log      *slog.Logger
	stats    *Stats
	channels int
	samples  []int16
	bytes    []byte
}

type DecoderConfig struct {
	Codec        FrameDecoder
	Sink         PCMWriter
	Channels     int
	FrameSamples int // per channel
	Logger       *slog.Logger
	Stats        *Stats
}

func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("decoder: sink is required")
	}
	if cfg.Channels < 1 || cfg.FrameSamples < 1 {
		return nil, fmt.Errorf("decoder: invalid frame geometry %dch x %d", cfg.Channels, cfg.FrameSamples)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	return &Decoder{
		dec:      cfg.Codec,
		sink:     cfg.Sink,
		log:      cfg.Logger,
		stats:    cfg.Stats,
		channels: cfg.Channels,
		samples:  make([]int16, cfg.FrameSamples*cfg.Channels),
	}, nil
}

func (d *Decoder) WriteFrame(f Frame) error {
	if d.dec == nil {
		d.stats.ChunksDropped.Add(1)
		return nil
	}
	var (
		n   int
		err error
	)
	if len(f.Data) == 0 {
		n, err = d.dec.Conceal(d.samples)
	} else {
		n, err = d.dec.Decode(f.Data, d.samples)
	}
	if err != nil {
		d.stats.DecodeFailures.Add(1)
		d.log.Warn("frame decode failed", "index", f.Index, "error", err)
		return nil
	}
	d.bytes = pcm.Int16ToBytes(d.bytes, d.samples[:n*d.channels])
	return d.sink.WritePCM(d.bytes)
}
