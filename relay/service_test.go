package relay

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundrelay/relay/pipeline"
)

// countingSink is a safe io.Writer for the receiver's pacing loop.
type countingSink struct {
	mu     sync.Mutex
	writes int
	bytes  int
}

func (s *countingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.writes++
	s.bytes += len(p)
	s.mu.Unlock()
	return len(p), nil
}

func narrowbandConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
audio:
  source_rate: 8000
  source_channels: 2
  channels: 1
  codec: g711u
  codec_rate: 8000
  chunks_per_second: 50
latency:
  max_latency_ms: 200
network:
  listen_addr: "127.0.0.1:0"
`))
	require.NoError(t, err)
	return cfg
}

func TestSenderRequiresRemoteAddr(t *testing.T) {
	cfg := narrowbandConfig(t)
	_, err := NewSender(cfg, pipeline.NewReaderSource(bytes.NewReader(nil)), slog.Default())
	assert.Error(t, err)
}

func TestSenderReceiverLoopback(t *testing.T) {
	cfg := narrowbandConfig(t)

	sink := &countingSink{}
	receiver, err := NewReceiver(cfg, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	cfg.RemoteAddr = receiver.ch.LocalAddr().String()
	// Half a second of near-silent stereo narrowband audio, downmixed to
	// the codec's mono layout in the pipeline.
	pcm := make([]byte, 16000)
	src := pipeline.NewReaderSource(bytes.NewReader(pcm))
	sender, err := NewSender(cfg, src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); receiver.Run(ctx) }()
	go func() { defer wg.Done(); sender.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if receiver.recordsReceived.Load() >= 10 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	assert.GreaterOrEqual(t, receiver.recordsReceived.Load(), uint64(10))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Greater(t, sink.writes, 0)
	// Every paced write is exactly one codec frame of PCM16.
	assert.Equal(t, sink.bytes, sink.writes*cfg.CodecFormat().FrameBytes16())
}
