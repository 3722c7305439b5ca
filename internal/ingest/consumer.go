// Package ingest applies track change events from the Kafka feed to the
// library, keeping the in-memory index incrementally in sync with edits made
// elsewhere (the scanner, another editor instance).
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuebase/tracksearch/internal/library"
	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
	"github.com/cuebase/tracksearch/pkg/kafka"
)

// Event ops on the track-updates topic.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TrackEvent is one change-feed entry. Track is ignored for deletes; ID is
// always required.
type TrackEvent struct {
	Op    string      `json:"op"`
	ID    string      `json:"id"`
	Track track.Track `json:"track,omitempty"`
}

// Consumer wraps a Kafka consumer that drives library mutations.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Consumer applying events to lib.
func New(cfg config.KafkaConfig, lib *library.Library) *Consumer {
	handler := func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[TrackEvent](value)
		if err != nil {
			return err
		}
		return Apply(ctx, lib, event)
	}
	return &Consumer{
		consumer: kafka.NewConsumer(cfg, cfg.Topics.TrackUpdates, handler),
		logger:   slog.Default().With("component", "ingest"),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close closes the underlying consumer.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// Apply mutates lib according to one event. Deleting an unknown track is a
// no-op, matching the index's removal semantics.
func Apply(ctx context.Context, lib *library.Library, event TrackEvent) error {
	switch event.Op {
	case OpUpsert:
		t := event.Track
		if t.ID == "" {
			t.ID = event.ID
		}
		if t.ID == "" {
			return fmt.Errorf("upsert event without track id")
		}
		return lib.Upsert(ctx, t)
	case OpDelete:
		if event.ID == "" {
			return fmt.Errorf("delete event without track id")
		}
		if err := lib.Remove(ctx, event.ID); err != nil {
			// Already gone is fine; the feed may replay.
			slog.Default().Debug("delete event for unknown track", "id", event.ID, "error", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown track event op %q", event.Op)
	}
}
