package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Opus is the primary codec: 48 kHz operation, built-in packet-loss
// concealment, payloads self-delimiting on the wire.
func init() {
	Register("opus", Factory{
		NewEncoder: newOpusEncoder,
		NewDecoder: newOpusDecoder,
	})
}

type opusEncoder struct {
	enc *opus.Encoder
}

func newOpusEncoder(p Params) (Encoder, error) {
	enc, err := opus.NewEncoder(p.SampleRate, p.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder init: %w", err)
	}
	if p.Bitrate > 0 {
		if err := enc.SetBitrate(p.Bitrate); err != nil {
			return nil, fmt.Errorf("opus bitrate: %w", err)
		}
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(samples []float32, out []byte) (int, error) {
	return e.enc.EncodeFloat32(samples, out)
}

func (e *opusEncoder) Close() error { return nil }

type opusDecoder struct {
	dec      *opus.Decoder
	channels int
}

func newOpusDecoder(p Params) (Decoder, error) {
	dec, err := opus.NewDecoder(p.SampleRate, p.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder init: %w", err)
	}
	return &opusDecoder{dec: dec, channels: p.Channels}, nil
}

func (d *opusDecoder) Decode(payload []byte, pcm []int16) (int, error) {
	return d.dec.Decode(payload, pcm)
}

func (d *opusDecoder) Conceal(pcm []int16) (int, error) {
	if err := d.dec.DecodePLC(pcm); err != nil {
		return 0, err
	}
	return len(pcm) / d.channels, nil
}

func (d *opusDecoder) Close() error { return nil }
