package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"soundrelay/relay/codec"
	"soundrelay/relay/pipeline"
	"soundrelay/relay/transport"
	"soundrelay/relay/wire"
)

// Sender is the capture-side pipeline: source -> chunker -> resampler ->
// encoder -> framer -> datagram channel.
type Sender struct {
	cfg     Config
	log     *slog.Logger
	stats   *pipeline.Stats
	chunker *pipeline.Chunker
	enc     codec.Encoder
	ch      *transport.UDPChannel

	recordsSent  atomic.Uint64
	oversized    atomic.Uint64
	sendFailures atomic.Uint64

	// scratch for wire records; the send path is single-goroutine.
	rec []byte
}

func NewSender(cfg Config, src pipeline.Source, logger *slog.Logger) (*Sender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RemoteAddr == "" {
		return nil, errors.New("sender: network.remote_addr is required")
	}
	logger = logger.With("stream_id", uuid.NewString(), "mode", "send")

	factory, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, err
	}
	enc, err := factory.NewEncoder(codec.Params{
		SampleRate:   cfg.CodecRate,
		Channels:     cfg.Channels,
		FrameSamples: cfg.FrameSamples(),
		Bitrate:      cfg.Bitrate,
	})
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}

	ch, err := transport.Dial(cfg.RemoteAddr, cfg.MTU)
	if err != nil {
		enc.Close()
		return nil, err
	}

	s := &Sender{
		cfg:   cfg,
		log:   logger,
		stats: &pipeline.Stats{},
		enc:   enc,
		ch:    ch,
	}

	framer := pipeline.FrameWriterFunc(s.sendFrame)
	encStage, err := pipeline.NewEncoder(pipeline.EncoderConfig{
		Codec:  enc,
		Next:   framer,
		Logger: logger,
		Stats:  s.stats,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	resampler, err := pipeline.NewResampler(pipeline.ResamplerConfig{
		Channels:     cfg.Channels,
		InRate:       cfg.SourceRate,
		OutRate:      cfg.CodecRate,
		FrameSamples: cfg.FrameSamples(),
		MaxLatencyMS: int(cfg.MaxLatency / time.Millisecond),
		Next:         encStage,
		Logger:       logger,
		Stats:        s.stats,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	mixer, err := pipeline.NewChannelMixer(cfg.SourceChannels, cfg.Channels, resampler)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.chunker, err = pipeline.NewChunker(pipeline.ChunkerConfig{
		Source:     src,
		Next:       mixer,
		Start:      time.Now(),
		ChunkDur:   cfg.ChunkDuration(),
		ChunkBytes: cfg.ChunkBytes(),
		Logger:     logger,
		Stats:      s.stats,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sender) sendFrame(f pipeline.Frame) error {
	s.rec = wire.MarshalTo(s.rec, f)
	rec := s.rec
	if err := s.ch.Send(rec); err != nil {
		if errors.Is(err, transport.ErrRecordTooLarge) {
			s.oversized.Add(1)
			s.log.Warn("record exceeds mtu, dropped", "index", f.Index, "bytes", len(rec))
			return nil
		}
		s.sendFailures.Add(1)
		return err
	}
	s.recordsSent.Add(1)
	return nil
}

// Run drives the pipeline until the context is cancelled or the source
// ends, then releases the transport and codec.
func (s *Sender) Run(ctx context.Context) {
	s.log.Info("sender starting",
		"remote", s.cfg.RemoteAddr,
		"codec", s.cfg.Codec,
		"source_rate", s.cfg.SourceRate,
		"codec_rate", s.cfg.CodecRate,
		"chunk_ms", s.cfg.ChunkDuration().Milliseconds(),
	)
	statsCtx, stopStats := context.WithCancel(ctx)
	go s.logStats(statsCtx)

	s.chunker.Run(ctx)

	stopStats()
	s.Close()
	s.log.Info("sender stopped",
		"chunks", s.stats.ChunksEmitted.Load(),
		"frames", s.stats.FramesEncoded.Load(),
		"records", s.recordsSent.Load(),
	)
}

func (s *Sender) logStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.log.Info("send stats",
				"chunks", s.stats.ChunksEmitted.Load(),
				"frames", s.stats.FramesEncoded.Load(),
				"records", s.recordsSent.Load(),
				"encode_failures", s.stats.EncodeFailures.Load(),
				"oversized", s.oversized.Load(),
			)
		}
	}
}

func (s *Sender) Close() {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.enc != nil {
		s.enc.Close()
	}
}
