package pcm

import "encoding/binary"

// DownmixToMono folds interleaved stereo PCM16LE into mono PCM16LE by
// averaging L and R, reusing dst's capacity. Trailing odd bytes beyond the
// last whole sample pair are ignored.
func DownmixToMono(dst []byte, src []byte) []byte {
	pairs := len(src) / 4
	need := pairs * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	} else {
		dst = dst[:need]
	}
	for i := 0; i < pairs; i++ {
		l := int16(binary.LittleEndian.Uint16(src[i*4 : i*4+2]))
		r := int16(binary.LittleEndian.Uint16(src[i*4+2 : i*4+4]))
		m := (int32(l) + int32(r)) / 2
		binary.LittleEndian.PutUint16(dst[i*2:i*2+2], uint16(int16(m)))
	}
	return dst
}

// UpmixToStereo duplicates mono PCM16LE into interleaved stereo PCM16LE
// (L=R=mono), reusing dst's capacity.
func UpmixToStereo(dst []byte, src []byte) []byte {
	n := len(src) / 2
	need := n * 4
	if cap(dst) < need {
		dst = make([]byte, need)
	} else {
		dst = dst[:need]
	}
	for i := 0; i < n; i++ {
		s := binary.LittleEndian.Uint16(src[i*2 : i*2+2])
		binary.LittleEndian.PutUint16(dst[i*4:i*4+2], s)
		binary.LittleEndian.PutUint16(dst[i*4+2:i*4+4], s)
	}
	return dst
}
