package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"soundrelay/relay"
	"soundrelay/relay/pipeline"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s send|recv [config.yaml]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	mode := os.Args[1]
	configPath := "config.yaml"
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	switch mode {
	case "send":
		// Interleaved signed-16 PCM on stdin at audio.source_rate.
		src := pipeline.NewReaderSource(os.Stdin)
		sender, err := relay.NewSender(cfg, src, logger)
		if err != nil {
			logger.Error("sender init failed", "error", err)
			os.Exit(1)
		}
		sender.Run(ctx)
	case "recv":
		// Decoded signed-16 PCM at audio.codec_rate on stdout.
		receiver, err := relay.NewReceiver(cfg, os.Stdout, logger)
		if err != nil {
			logger.Error("receiver init failed", "error", err)
			os.Exit(1)
		}
		receiver.Run(ctx)
	default:
		usage()
	}
}
