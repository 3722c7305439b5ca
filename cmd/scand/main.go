package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuebase/tracksearch/internal/ingest"
	"github.com/cuebase/tracksearch/internal/scan"
	"github.com/cuebase/tracksearch/pkg/config"
	"github.com/cuebase/tracksearch/pkg/kafka"
	"github.com/cuebase/tracksearch/pkg/logger"
)

// kafkaSink publishes scan events to the track-updates topic, keyed by track
// ID so per-track events stay ordered within a partition.
type kafkaSink struct {
	producer *kafka.Producer
}

func (s *kafkaSink) Publish(ctx context.Context, event ingest.TrackEvent) error {
	return s.producer.Publish(ctx, kafka.Event{Key: event.ID, Value: event})
}

func (s *kafkaSink) PublishBatch(ctx context.Context, events []ingest.TrackEvent) error {
	batch := make([]kafka.Event, 0, len(events))
	for _, event := range events {
		batch = append(batch, kafka.Event{Key: event.ID, Value: event})
	}
	return s.producer.PublishBatch(ctx, batch)
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	musicDir := flag.String("dir", "", "music directory to scan (overrides config)")
	watch := flag.Bool("watch", false, "keep watching for changes after the full scan")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *musicDir != "" {
		cfg.Scanner.MusicDir = *musicDir
	}
	if *watch {
		cfg.Scanner.Watch = true
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting library scanner",
		"dir", cfg.Scanner.MusicDir,
		"watch", cfg.Scanner.Watch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrackUpdates)
	defer producer.Close()

	scanner := scan.New(cfg.Scanner, &kafkaSink{producer: producer})

	count, err := scanner.ScanAll(ctx)
	if err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}
	slog.Info("full scan published", "tracks", count)

	if cfg.Scanner.Watch {
		if err := scanner.Watch(ctx); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("scanner stopped")
}
