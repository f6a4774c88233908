package relay

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"soundrelay/relay/pcm"
)

const (
	defaultSourceRate      = 48000
	defaultChannels        = 2
	defaultCodec           = "opus"
	defaultCodecRate       = 48000
	defaultChunksPerSecond = 50
	defaultBitrate         = 128000
	defaultMaxLatencyMS    = 500
	defaultMaxUnordered    = 10
	defaultMTU             = 1400
	defaultListenAddr      = ":9432"
)

type Config struct {
	SourceRate     int
	SourceChannels int

	Channels        int
	Codec           string
	CodecRate       int
	ChunksPerSecond int
	Bitrate         int

	MaxLatency   time.Duration
	MaxUnordered int

	RemoteAddr string
	ListenAddr string
	MTU        int
}

// ChunkDuration is the cadence of the chunk grid.
func (c Config) ChunkDuration() time.Duration {
	return time.Second / time.Duration(c.ChunksPerSecond)
}

// FrameSamples is the codec frame size per channel.
func (c Config) FrameSamples() int {
	return c.CodecRate / c.ChunksPerSecond
}

// SourceFormat is the capture-side PCM16 framing.
func (c Config) SourceFormat() pcm.AudioFormat {
	return pcm.AudioFormat{
		SampleRate: c.SourceRate,
		Channels:   c.SourceChannels,
		FrameDur:   c.ChunkDuration(),
	}
}

// CodecFormat is the codec-side PCM16 framing.
func (c Config) CodecFormat() pcm.AudioFormat {
	return pcm.AudioFormat{
		SampleRate: c.CodecRate,
		Channels:   c.Channels,
		FrameDur:   c.ChunkDuration(),
	}
}

// ChunkBytes is the size of one source-rate PCM16 chunk.
func (c Config) ChunkBytes() int {
	return c.SourceFormat().FrameBytes16()
}

type yamlConfig struct {
	Audio struct {
		SourceRate      int    `yaml:"source_rate"`
		SourceChannels  int    `yaml:"source_channels"`
		Channels        int    `yaml:"channels"`
		Codec           string `yaml:"codec"`
		CodecRate       int    `yaml:"codec_rate"`
		ChunksPerSecond int    `yaml:"chunks_per_second"`
		Bitrate         int    `yaml:"bitrate"`
	} `yaml:"audio"`
	Latency struct {
		MaxLatencyMS int `yaml:"max_latency_ms"`
		MaxUnordered int `yaml:"max_unordered"`
	} `yaml:"latency"`
	Network struct {
		RemoteAddr string `yaml:"remote_addr"`
		ListenAddr string `yaml:"listen_addr"`
		MTU        int    `yaml:"mtu"`
	} `yaml:"network"`
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses yaml bytes into a validated Config with defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := Config{
		SourceRate:      defaultSourceRate,
		Channels:        defaultChannels,
		Codec:           defaultCodec,
		CodecRate:       defaultCodecRate,
		ChunksPerSecond: defaultChunksPerSecond,
		Bitrate:         defaultBitrate,
		MaxLatency:      defaultMaxLatencyMS * time.Millisecond,
		MaxUnordered:    defaultMaxUnordered,
		ListenAddr:      defaultListenAddr,
		MTU:             defaultMTU,
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.Audio.SourceRate > 0 {
		cfg.SourceRate = yc.Audio.SourceRate
	}
	if yc.Audio.Channels > 0 {
		cfg.Channels = yc.Audio.Channels
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return Config{}, fmt.Errorf("audio.channels must be 1 or 2, got %d", cfg.Channels)
	}
	// Source layout defaults to the codec layout; a mismatch is mixed down
	// (or up) ahead of rate conversion.
	cfg.SourceChannels = cfg.Channels
	if yc.Audio.SourceChannels > 0 {
		cfg.SourceChannels = yc.Audio.SourceChannels
	}
	if cfg.SourceChannels != 1 && cfg.SourceChannels != 2 {
		return Config{}, fmt.Errorf("audio.source_channels must be 1 or 2, got %d", cfg.SourceChannels)
	}
	if yc.Audio.Codec != "" {
		cfg.Codec = yc.Audio.Codec
	}
	if yc.Audio.CodecRate > 0 {
		cfg.CodecRate = yc.Audio.CodecRate
	}
	if yc.Audio.ChunksPerSecond > 0 {
		cfg.ChunksPerSecond = yc.Audio.ChunksPerSecond
	}
	if 1000%cfg.ChunksPerSecond != 0 {
		return Config{}, fmt.Errorf("audio.chunks_per_second must divide 1000, got %d", cfg.ChunksPerSecond)
	}
	if cfg.CodecRate%cfg.ChunksPerSecond != 0 {
		return Config{}, fmt.Errorf("audio.codec_rate %d is not a multiple of chunks_per_second %d",
			cfg.CodecRate, cfg.ChunksPerSecond)
	}
	if cfg.SourceRate%cfg.ChunksPerSecond != 0 {
		return Config{}, fmt.Errorf("audio.source_rate %d is not a multiple of chunks_per_second %d",
			cfg.SourceRate, cfg.ChunksPerSecond)
	}
	if yc.Audio.Bitrate > 0 {
		cfg.Bitrate = yc.Audio.Bitrate
	}

	if yc.Latency.MaxLatencyMS > 0 {
		cfg.MaxLatency = time.Duration(yc.Latency.MaxLatencyMS) * time.Millisecond
	}
	if cfg.MaxLatency%cfg.ChunkDuration() != 0 {
		return Config{}, fmt.Errorf("latency.max_latency_ms %d is not a multiple of the %dms chunk duration",
			cfg.MaxLatency/time.Millisecond, cfg.ChunkDuration()/time.Millisecond)
	}
	if yc.Latency.MaxUnordered > 0 {
		cfg.MaxUnordered = yc.Latency.MaxUnordered
	}

	cfg.RemoteAddr = yc.Network.RemoteAddr
	if yc.Network.ListenAddr != "" {
		cfg.ListenAddr = yc.Network.ListenAddr
	}
	if yc.Network.MTU > 0 {
		cfg.MTU = yc.Network.MTU
	}
	if cfg.MTU < 128 {
		return Config{}, errors.New("network.mtu must be at least 128")
	}

	return cfg, nil
}
