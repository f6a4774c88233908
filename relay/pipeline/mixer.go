package pipeline

import (
	"fmt"

	"soundrelay/relay/pcm"
)

// ChannelMixer converts chunk channel layout ahead of rate conversion, for
// sources whose channel count differs from the codec's. Mono and stereo are
// the supported layouts.
type ChannelMixer struct {
	in, out int
	next    FrameWriter
	buf     []byte
}

func NewChannelMixer(in, out int, next FrameWriter) (*ChannelMixer, error) {
	if next == nil {
		return nil, fmt.Errorf("mixer: next stage is required")
	}
	if in < 1 || in > 2 || out < 1 || out > 2 {
		return nil, fmt.Errorf("mixer: unsupported layout %dch -> %dch", in, out)
	}
	return &ChannelMixer{in: in, out: out, next: next}, nil
}

func (m *ChannelMixer) WriteFrame(f Frame) error {
	if m.in == m.out {
		return m.next.WriteFrame(f)
	}
	if m.in == 2 {
		m.buf = pcm.DownmixToMono(m.buf, f.Data)
	} else {
		m.buf = pcm.UpmixToStereo(m.buf, f.Data)
	}
	return m.next.WriteFrame(Frame{Index: f.Index, Data: m.buf})
}
