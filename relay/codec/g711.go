package codec

import (
	"fmt"

	"github.com/zaf/g711"

	"soundrelay/relay/pcm"
)

// G.711 µ-law fallback for narrowband links: 8 kHz mono, one byte per
// sample, no codec-side concealment (a lost frame decodes to silence).
func init() {
	Register("g711u", Factory{
		NewEncoder: newUlawEncoder,
		NewDecoder: newUlawDecoder,
	})
}

func checkUlawParams(p Params) error {
	if p.SampleRate != 8000 {
		return fmt.Errorf("g711u: sample rate must be 8000, got %d", p.SampleRate)
	}
	if p.Channels != 1 {
		return fmt.Errorf("g711u: channels must be 1, got %d", p.Channels)
	}
	return nil
}

type ulawEncoder struct {
	lpcm    []int16
	scratch []byte
}

func newUlawEncoder(p Params) (Encoder, error) {
	if err := checkUlawParams(p); err != nil {
		return nil, err
	}
	return &ulawEncoder{}, nil
}

func (e *ulawEncoder) Encode(samples []float32, out []byte) (int, error) {
	e.lpcm = pcm.Float32ToInt16(e.lpcm, samples)
	e.scratch = pcm.Int16ToBytes(e.scratch, e.lpcm)
	enc := g711.EncodeUlaw(e.scratch)
	if len(enc) > len(out) {
		return 0, fmt.Errorf("g711u: payload %dB exceeds %dB buffer", len(enc), len(out))
	}
	return copy(out, enc), nil
}

func (e *ulawEncoder) Close() error { return nil }

type ulawDecoder struct{}

func newUlawDecoder(p Params) (Decoder, error) {
	if err := checkUlawParams(p); err != nil {
		return nil, err
	}
	return ulawDecoder{}, nil
}

func (ulawDecoder) Decode(payload []byte, out []int16) (int, error) {
	lpcm := g711.DecodeUlaw(payload)
	n := len(lpcm) / 2
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(lpcm[i*2]) | uint16(lpcm[i*2+1])<<8)
	}
	return n, nil
}

func (ulawDecoder) Conceal(out []int16) (int, error) {
	for i := range out {
		out[i] = 0
	}
	return len(out), nil
}

func (ulawDecoder) Close() error { return nil }
