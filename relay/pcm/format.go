package pcm

import "time"

// AudioFormat describes interleaved PCM framing at a fixed rate.
type AudioFormat struct {
	SampleRate int
	Channels   int
	FrameDur   time.Duration
}

// FrameSamples returns interleaved samples per frame (all channels).
func (f AudioFormat) FrameSamples() int {
	sr := f.SampleRate
	if sr < 1 {
		sr = 1
	}
	ch := f.Channels
	if ch < 1 {
		ch = 1
	}
	return int(float64(sr) * f.FrameDur.Seconds() * float64(ch))
}

// FrameBytes16 returns the frame size in bytes for signed-16 PCM.
func (f AudioFormat) FrameBytes16() int {
	return f.FrameSamples() * 2
}
