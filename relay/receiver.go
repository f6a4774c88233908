package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"soundrelay/relay/codec"
	"soundrelay/relay/pcm"
	"soundrelay/relay/pipeline"
	"soundrelay/relay/transport"
	"soundrelay/relay/wire"
)

// Receiver is the playback-side pipeline: datagram channel -> deframer ->
// orderer -> decoder -> playout buffer -> paced sink writes.
type Receiver struct {
	cfg     Config
	log     *slog.Logger
	stats   *pipeline.Stats
	ch      *transport.UDPChannel
	orderer *pipeline.Orderer
	dec     codec.Decoder
	playout *pcm.PlayoutBuffer
	sink    io.Writer
	wg      sync.WaitGroup

	recordsReceived atomic.Uint64
	malformed       atomic.Uint64
	underflows      atomic.Uint64
	overflowDrops   atomic.Uint64
}

func NewReceiver(cfg Config, sink io.Writer, logger *slog.Logger) (*Receiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		return nil, errors.New("receiver: sink is required")
	}
	logger = logger.With("stream_id", uuid.NewString(), "mode", "recv")

	factory, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, err
	}
	dec, err := factory.NewDecoder(codec.Params{
		SampleRate:   cfg.CodecRate,
		Channels:     cfg.Channels,
		FrameSamples: cfg.FrameSamples(),
	})
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}

	ch, err := transport.Listen(cfg.ListenAddr, cfg.MTU)
	if err != nil {
		dec.Close()
		return nil, err
	}

	frameBytes := cfg.CodecFormat().FrameBytes16()
	r := &Receiver{
		cfg:     cfg,
		log:     logger,
		stats:   &pipeline.Stats{},
		ch:      ch,
		dec:     dec,
		playout: pcm.NewPlayoutBuffer(frameBytes),
		sink:    sink,
	}

	decStage, err := pipeline.NewDecoder(pipeline.DecoderConfig{
		Codec:        dec,
		Sink:         &playoutSink{assembler: pcm.NewFrameAssembler(frameBytes), out: r.playout},
		Channels:     cfg.Channels,
		FrameSamples: cfg.FrameSamples(),
		Logger:       logger,
		Stats:        r.stats,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.orderer = pipeline.NewOrderer(pipeline.OrdererConfig{
		MaxUnordered: cfg.MaxUnordered,
		Next:         decStage,
		Logger:       logger,
		Stats:        r.stats,
	})
	return r, nil
}

// playoutSink cuts decoded PCM into playout frames. Decoded frames already
// match the playout frame size; the assembler covers codecs that return
// other granularities.
type playoutSink struct {
	assembler *pcm.FrameAssembler
	out       *pcm.PlayoutBuffer
}

func (s *playoutSink) WritePCM(p []byte) error {
	for _, frame := range s.assembler.Push(p) {
		s.out.WriteFrame(frame)
	}
	return nil
}

// Run receives and reorders records while pacing decoded audio to the sink,
// until the context is cancelled.
func (r *Receiver) Run(ctx context.Context) {
	r.log.Info("receiver starting",
		"listen", r.ch.LocalAddr().String(),
		"codec", r.cfg.Codec,
		"codec_rate", r.cfg.CodecRate,
		"chunk_ms", r.cfg.ChunkDuration().Milliseconds(),
	)
	r.wg.Add(2)
	go r.receiveLoop()
	go r.playbackLoop(ctx)

	<-ctx.Done()
	r.ch.Close()
	r.wg.Wait()
	r.orderer.Reset()
	r.dec.Close()
	r.log.Info("receiver stopped",
		"records", r.recordsReceived.Load(),
		"malformed", r.malformed.Load(),
		"late", r.stats.LateFrames.Load(),
		"concealed", r.stats.Concealed.Load(),
		"skipped", r.stats.Skipped.Load(),
	)
}

func (r *Receiver) receiveLoop() {
	defer r.wg.Done()
	buf := make([]byte, r.cfg.MTU)
	for {
		n, err := r.ch.Receive(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.log.Warn("receive failed", "error", err)
			}
			return
		}
		f, err := wire.Unmarshal(buf[:n])
		if err != nil {
			r.malformed.Add(1)
			continue
		}
		r.recordsReceived.Add(1)
		if err := r.orderer.WriteFrame(f); err != nil {
			r.log.Warn("frame handling failed", "error", err)
			return
		}
	}
}

func (r *Receiver) playbackLoop(ctx context.Context) {
	defer r.wg.Done()
	chunkDur := r.cfg.ChunkDuration()
	maxBacklog := int(r.cfg.MaxLatency / chunkDur)
	ticker := time.NewTicker(chunkDur)
	defer ticker.Stop()
	frame := make([]byte, r.playout.FrameSize())
	lastStatsAt := time.Now()
	lastUnderflowAt := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Keep the backlog under the latency ceiling; drop oldest.
			if backlog := r.playout.LenFrames(); backlog > maxBacklog {
				dropped := r.playout.DropFrames(backlog - maxBacklog)
				r.overflowDrops.Add(uint64(dropped))
			}
			ok := r.playout.ReadInto(frame)
			if !ok {
				r.underflows.Add(1)
				if time.Since(lastUnderflowAt) >= 2*time.Second {
					r.log.Debug("playout underflow (silence)",
						"underflows", r.underflows.Load())
					lastUnderflowAt = time.Now()
				}
			}
			if _, err := r.sink.Write(frame); err != nil {
				r.log.Warn("sink write failed", "error", err)
				return
			}
			if time.Since(lastStatsAt) >= 5*time.Second {
				r.log.Info("recv stats",
					"records", r.recordsReceived.Load(),
					"backlog_frames", r.playout.LenFrames(),
					"late", r.stats.LateFrames.Load(),
					"concealed", r.stats.Concealed.Load(),
					"skipped", r.stats.Skipped.Load(),
					"underflows", r.underflows.Load(),
					"overflow_drops", r.overflowDrops.Load(),
				)
				lastStatsAt = time.Now()
			}
		}
	}
}

func (r *Receiver) Close() {
	if r.ch != nil {
		r.ch.Close()
	}
	if r.dec != nil {
		r.dec.Close()
	}
}
