package pipeline

import (
	"encoding/binary"
	"math"
)

// rateConverter is a streaming sample-rate converter: interleaved signed-16
// PCM in, interleaved 32-bit float PCM out. Conversion uses Catmull-Rom
// interpolation over a four-frame window; equal rates take a straight
// format-conversion path.
type rateConverter struct {
	channels int
	ratio    float64 // input frames consumed per output frame
	identity bool

	// hist holds interleaved input frames not yet fully consumed.
	hist []float32
	// pos is the fractional read position into hist, in frames.
	pos float64
}

func newRateConverter(inRate, outRate, channels int) *rateConverter {
	return &rateConverter{
		channels: channels,
		ratio:    float64(inRate) / float64(outRate),
		identity: inRate == outRate,
	}
}

// convert consumes PCM16LE bytes and appends converted float32 LE bytes to
// dst. Output length varies call to call; zero output is normal while the
// interpolation window fills.
func (c *rateConverter) convert(dst []byte, pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return dst
	}
	if c.identity {
		need := n * 4
		off := len(dst)
		dst = append(dst, make([]byte, need)...)
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			binary.LittleEndian.PutUint32(dst[off+i*4:off+i*4+4], math.Float32bits(float32(s)/32768))
		}
		return dst
	}

	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		c.hist = append(c.hist, float32(s)/32768)
	}

	frames := len(c.hist) / c.channels
	// Interpolating frame i needs neighbors i-1..i+2; the first frame
	// borrows itself as missing history.
	for int(c.pos)+2 <= frames-1 {
		i0 := int(c.pos)
		t := float32(c.pos - float64(i0))
		for ch := 0; ch < c.channels; ch++ {
			p1 := c.hist[i0*c.channels+ch]
			p2 := c.hist[(i0+1)*c.channels+ch]
			p3 := c.hist[(i0+2)*c.channels+ch]
			p0 := p1
			if i0 > 0 {
				p0 = c.hist[(i0-1)*c.channels+ch]
			}
			v := catmullRom(p0, p1, p2, p3, t)
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
			dst = append(dst, b[:]...)
		}
		c.pos += c.ratio
	}

	// Drop fully consumed history, keeping one frame of look-behind.
	if keep := int(c.pos) - 1; keep > 0 {
		if keep > frames {
			keep = frames
		}
		c.hist = append(c.hist[:0], c.hist[keep*c.channels:]...)
		c.pos -= float64(keep)
	}
	return dst
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	v := 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return v
}
