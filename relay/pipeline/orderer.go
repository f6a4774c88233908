package pipeline

import (
	"log/slog"
	"sort"
)

// DefaultMaxUnordered bounds how many out-of-order frames the Orderer holds
// before forcing forward progress.
const DefaultMaxUnordered = 10

// Orderer restores an in-order frame sequence from an unordered, lossy
// stream. Buffering and delay are both bounded: once the window fills, a
// single missing frame is replaced with an empty payload so the decoder's
// concealment can run, and larger gaps are skipped outright.
type Orderer struct {
	maxUnordered int
	next         FrameWriter
	log          *slog.Logger
	stats        *Stats

	buf       []Frame // ascending by Index
	nextIndex uint32
	anchored  bool
}

type OrdererConfig struct {
	MaxUnordered int
	Next         FrameWriter
	Logger       *slog.Logger
	Stats        *Stats
}

func NewOrderer(cfg OrdererConfig) *Orderer {
	if cfg.MaxUnordered < 1 {
		cfg.MaxUnordered = DefaultMaxUnordered
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = &Stats{}
	}
	return &Orderer{
		maxUnordered: cfg.MaxUnordered,
		next:         cfg.Next,
		log:          cfg.Logger,
		stats:        cfg.Stats,
	}
}

func (o *Orderer) WriteFrame(f Frame) error {
	if !o.anchored {
		// First frame seen anchors the sequence.
		o.nextIndex = f.Index
		o.anchored = true
	}
	if f.Index < o.nextIndex {
		o.stats.LateFrames.Add(1)
		return nil
	}
	if f.Index == o.nextIndex {
		if err := o.emit(f); err != nil {
			return err
		}
		return o.drainContiguous()
	}

	o.insert(f)
	if err := o.drainContiguous(); err != nil {
		return err
	}

	if len(o.buf) >= o.maxUnordered {
		head := o.buf[0].Index
		if head-o.nextIndex == 1 {
			// A single missing frame: hand the decoder an empty payload so
			// its packet-loss concealment covers the gap.
			o.stats.Concealed.Add(1)
			if err := o.emit(Frame{Index: o.nextIndex}); err != nil {
				return err
			}
		} else {
			o.stats.Skipped.Add(uint64(head - o.nextIndex))
			o.log.Debug("gap too large, skipping forward",
				"from", o.nextIndex, "to", head)
		}
		o.nextIndex = head
		return o.drainContiguous()
	}
	return nil
}

// Len reports how many out-of-order frames are currently buffered.
func (o *Orderer) Len() int { return len(o.buf) }

// Reset clears the buffer and the anchor. Used at pipeline teardown.
func (o *Orderer) Reset() {
	o.buf = o.buf[:0]
	o.anchored = false
}

func (o *Orderer) emit(f Frame) error {
	err := o.next.WriteFrame(f)
	o.nextIndex = f.Index + 1
	return err
}

func (o *Orderer) insert(f Frame) {
	i := sort.Search(len(o.buf), func(k int) bool { return o.buf[k].Index >= f.Index })
	if i < len(o.buf) && o.buf[i].Index == f.Index {
		// Duplicate delivery.
		return
	}
	o.buf = append(o.buf, Frame{})
	copy(o.buf[i+1:], o.buf[i:])
	o.buf[i] = f
}

func (o *Orderer) drainContiguous() error {
	for len(o.buf) > 0 && o.buf[0].Index == o.nextIndex {
		f := o.buf[0]
		o.buf = o.buf[1:]
		if err := o.emit(f); err != nil {
			return err
		}
	}
	return nil
}
