package pcm

import "sync"

// PlayoutBuffer is a byte FIFO of fixed-size PCM frames decoupling bursty
// frame production (network decode) from real-time consumption (paced sink
// writes).
//
// It does not time-stretch. Underflow outputs silence. Overflow is bounded
// by the caller via DropFrames.
type PlayoutBuffer struct {
	frameSize int

	mu  sync.Mutex
	buf []byte
}

func NewPlayoutBuffer(frameSize int) *PlayoutBuffer {
	if frameSize < 1 {
		frameSize = 1
	}
	return &PlayoutBuffer{
		frameSize: frameSize,
		buf:       make([]byte, 0, frameSize*50),
	}
}

func (b *PlayoutBuffer) FrameSize() int { return b.frameSize }

func (b *PlayoutBuffer) LenFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) / b.frameSize
}

// WriteFrame appends exactly one frame. Mismatched sizes are ignored.
func (b *PlayoutBuffer) WriteFrame(frame []byte) {
	if len(frame) != b.frameSize {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, frame...)
	b.mu.Unlock()
}

// DropFrames drops up to n oldest frames and returns how many were dropped.
func (b *PlayoutBuffer) DropFrames(n int) int {
	if n <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	available := len(b.buf) / b.frameSize
	if available <= 0 {
		return 0
	}
	if n > available {
		n = available
	}
	b.buf = b.buf[n*b.frameSize:]
	return n
}

// ReadInto writes one frame into dst. Returns ok=false if there wasn't a
// full frame buffered; dst is then filled with zeros.
func (b *PlayoutBuffer) ReadInto(dst []byte) (ok bool) {
	if len(dst) != b.frameSize {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) < b.frameSize {
		for i := range dst {
			dst[i] = 0
		}
		return false
	}
	copy(dst, b.buf[:b.frameSize])
	b.buf = b.buf[b.frameSize:]
	return true
}
