// Package scan walks a music directory, reads audio-file tags, and emits
// track change events. It is the editor-side producer for the change feed:
// a full scan seeds the library, and watch mode keeps it current as files
// appear, change, or vanish.
package scan

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"

	"github.com/cuebase/tracksearch/internal/ingest"
	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
)

// Publisher receives the events a scan produces. The kafka producer satisfies
// this through a small adapter in cmd/scand; tests use an in-memory sink.
// Full scans go out in batches; watch mode publishes single events.
type Publisher interface {
	Publish(ctx context.Context, event ingest.TrackEvent) error
	PublishBatch(ctx context.Context, events []ingest.TrackEvent) error
}

// Scanner reads track metadata from audio files under a root directory.
type Scanner struct {
	cfg    config.ScannerConfig
	pub    Publisher
	exts   map[string]struct{}
	logger *slog.Logger
}

func New(cfg config.ScannerConfig, pub Publisher) *Scanner {
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Scanner{
		cfg:    cfg,
		pub:    pub,
		exts:   exts,
		logger: slog.Default().With("component", "scanner"),
	}
}

// ScanAll walks the music directory and publishes an upsert for every
// readable audio file, batched to keep a large library from turning into
// one broker round trip per track. Unreadable or untagged files are skipped
// with a log line, never fatal.
func (s *Scanner) ScanAll(ctx context.Context) (int, error) {
	start := time.Now()
	count := 0
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	batch := make([]ingest.TrackEvent, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.pub.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publishing batch of %d: %w", len(batch), err)
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}

	err := filepath.WalkDir(s.cfg.MusicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("walk error", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !s.isAudioFile(path) {
			return nil
		}
		t, ok := s.readTrack(path)
		if !ok {
			return nil
		}
		batch = append(batch, ingest.TrackEvent{Op: ingest.OpUpsert, ID: t.ID, Track: t})
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("scanning %s: %w", s.cfg.MusicDir, err)
	}
	if err := flush(); err != nil {
		return count, err
	}
	s.logger.Info("scan complete",
		"dir", s.cfg.MusicDir,
		"tracks", count,
		"duration", time.Since(start),
	)
	return count, nil
}

// Watch publishes incremental events for file changes until ctx is
// cancelled. Creates and writes become upserts; removes and renames become
// deletes keyed by the path-derived ID.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(s.cfg.MusicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.cfg.MusicDir, err)
	}
	s.logger.Info("watching for changes", "dir", s.cfg.MusicDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Scanner) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if event.Has(fsnotify.Create) {
				if err := watcher.Add(event.Name); err != nil {
					s.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
		if !s.isAudioFile(event.Name) {
			return
		}
		t, ok := s.readTrack(event.Name)
		if !ok {
			return
		}
		if err := s.pub.Publish(ctx, ingest.TrackEvent{Op: ingest.OpUpsert, ID: t.ID, Track: t}); err != nil {
			s.logger.Error("failed to publish upsert", "path", event.Name, "error", err)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !s.isAudioFile(event.Name) {
			return
		}
		id := TrackID(event.Name)
		if err := s.pub.Publish(ctx, ingest.TrackEvent{Op: ingest.OpDelete, ID: id}); err != nil {
			s.logger.Error("failed to publish delete", "path", event.Name, "error", err)
		}
	}
}

func (s *Scanner) isAudioFile(path string) bool {
	_, ok := s.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// readTrack parses one audio file into a Track. Files without a readable tag
// block still yield a track named after the file, matching what the editor
// shows for untagged imports.
func (s *Scanner) readTrack(path string) (track.Track, bool) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("cannot open file", "path", path, "error", err)
		return track.Track{}, false
	}
	defer f.Close()

	t := track.Track{ID: TrackID(path)}
	m, err := tag.ReadFrom(f)
	if err != nil {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return t, true
	}

	t.Name = m.Title()
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	t.Artist = m.Artist()
	if albumArtist := m.AlbumArtist(); t.Artist == "" && albumArtist != "" {
		t.Artist = albumArtist
	}
	t.Album = m.Album()
	t.Genre = m.Genre()
	return t, true
}

// TrackID derives a stable ID from the file path. The path is the identity
// of a scanned track; a moved file is a delete plus an insert.
func TrackID(path string) string {
	sum := sha1.Sum([]byte(filepath.Clean(path)))
	return fmt.Sprintf("%x", sum[:8])
}
