package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// maxIdleReads is how many consecutive empty drain passes are tolerated
// before the chunker parks its timer and waits for the source to become
// readable again. Re-anchoring to wall clock on restart keeps the index
// aligned with real time across long silences.
const maxIdleReads = 5

// Chunker converts a byte-rate-bursty source into a clock-rate-stable
// sequence of fixed-size PCM chunks, each tagged with an index derived from
// elapsed time since stream start.
type Chunker struct {
	src        Source
	next       FrameWriter
	start      time.Time
	chunkDur   time.Duration
	chunkBytes int
	log        *slog.Logger
	stats      *Stats
	now        func() time.Time

	lastIndex uint32
	haveLast  bool
	idle      int
	buf       []byte
}

type ChunkerConfig struct {
	Source     Source
	Next       FrameWriter
	Start      time.Time
	ChunkDur   time.Duration
	ChunkBytes int
	Logger     *slog.Logger
	Stats      *Stats
}

func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.Source == nil {
		return nil, errors.New("chunker: source is required")
	}
	if cfg.Next == nil {
		return nil, errors.New("chunker: next stage is required")
	}
	if cfg.ChunkDur <= 0 {
		return nil, errors.New("chunker: chunk duration must be positive")
	}
	if cfg.ChunkBytes <= 0 {
		return nil, errors.New("chunker: chunk size must be positive")
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	return &Chunker{
		src:        cfg.Source,
		next:       cfg.Next,
		start:      cfg.Start,
		chunkDur:   cfg.ChunkDur,
		chunkBytes: cfg.ChunkBytes,
		log:        cfg.Logger,
		stats:      cfg.Stats,
		now:        time.Now,
		buf:        make([]byte, cfg.ChunkBytes),
	}, nil
}

// Run paces the drain loop until the context is cancelled or the source
// ends. The timer is parked during prolonged source starvation and revived
// by the next readable notification.
func (c *Chunker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.chunkDur)
	defer func() { ticker.Stop() }()
	tick := ticker.C
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-c.src.Readable():
			if tick == nil {
				ticker = time.NewTicker(c.chunkDur)
				tick = ticker.C
			}
		}
		park, end := c.drain(c.now())
		if end {
			return
		}
		if park {
			ticker.Stop()
			tick = nil
		}
	}
}

// drain emits every chunk whose slot on the time grid has already passed.
// It reports whether the timer should be parked and whether the stream
// ended.
func (c *Chunker) drain(now time.Time) (park, end bool) {
	for {
		elapsed := now.Sub(c.start)
		if elapsed < 0 {
			return false, false
		}
		var target uint32
		if c.haveLast {
			target = c.lastIndex + 1
		} else {
			target = uint32(elapsed / c.chunkDur)
		}
		if elapsed < time.Duration(target)*c.chunkDur {
			return false, false
		}

		n, err := c.src.ReadChunk(c.buf)
		if n == 0 {
			if errors.Is(err, io.EOF) {
				c.log.Info("source closed, chunker stopping",
					"chunks_emitted", c.stats.ChunksEmitted.Load())
				return false, true
			}
			// A failed read counts the same as no data.
			c.idle++
			if c.idle >= maxIdleReads {
				c.idle = 0
				c.haveLast = false
				c.log.Debug("source starved, parking chunk timer")
				return true, false
			}
			return false, false
		}
		c.idle = 0
		if n < c.chunkBytes {
			// End-of-stream tail: pad to a full chunk.
			for i := n; i < c.chunkBytes; i++ {
				c.buf[i] = 0
			}
		}

		chunk := make([]byte, c.chunkBytes)
		copy(chunk, c.buf)
		if werr := c.next.WriteFrame(Frame{Index: target, Data: chunk}); werr != nil {
			c.log.Warn("chunk delivery failed", "error", werr)
			return false, true
		}
		c.stats.ChunksEmitted.Add(1)
		c.lastIndex = target
		c.haveLast = true
	}
}
