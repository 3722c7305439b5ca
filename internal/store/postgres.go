// Package store persists the track library in PostgreSQL. The database is
// the durable copy of the collection; the inverted index is rebuilt from it
// at startup and never persisted itself. Tags live in their own table so a
// track and its tags are always written together in one transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cuebase/tracksearch/internal/track"
	pkgerrors "github.com/cuebase/tracksearch/pkg/errors"
	"github.com/cuebase/tracksearch/pkg/postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		artist     TEXT NOT NULL DEFAULT '',
		album      TEXT NOT NULL DEFAULT '',
		genre      TEXT NOT NULL DEFAULT '',
		key_label  TEXT NOT NULL DEFAULT '',
		missing    BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS track_tags (
		track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		position INT  NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		label    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (track_id, position)
	)`,
}

// TrackStore reads and writes track records.
type TrackStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a TrackStore and ensures the schema exists.
func New(ctx context.Context, client *postgres.Client) (*TrackStore, error) {
	for _, stmt := range schema {
		if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &TrackStore{
		client: client,
		logger: slog.Default().With("component", "track-store"),
	}, nil
}

// LoadAll returns every track in the library, ordered by ID for reproducible
// index builds.
func (s *TrackStore) LoadAll(ctx context.Context) ([]track.Track, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, name, artist, album, genre, key_label, missing
		 FROM tracks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]track.Track, 0)
	byID := make(map[string]int)
	for rows.Next() {
		var t track.Track
		if err := rows.Scan(&t.ID, &t.Name, &t.Artist, &t.Album, &t.Genre, &t.Key, &t.Missing); err != nil {
			return nil, fmt.Errorf("scanning track row: %w", err)
		}
		byID[t.ID] = len(tracks)
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating track rows: %w", err)
	}

	tagRows, err := s.client.DB.QueryContext(ctx,
		`SELECT track_id, category, label
		 FROM track_tags ORDER BY track_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying track tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id string
		var tag track.Tag
		if err := tagRows.Scan(&id, &tag.Category, &tag.Label); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		if i, ok := byID[id]; ok {
			tracks[i].Tags = append(tracks[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}

	s.logger.Info("library loaded", "tracks", len(tracks))
	return tracks, nil
}

// Upsert inserts or replaces one track together with its tags.
func (s *TrackStore) Upsert(ctx context.Context, t track.Track) error {
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tracks (id, name, artist, album, genre, key_label, missing, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			 ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				artist = EXCLUDED.artist,
				album = EXCLUDED.album,
				genre = EXCLUDED.genre,
				key_label = EXCLUDED.key_label,
				missing = EXCLUDED.missing,
				updated_at = now()`,
			t.ID, t.Name, t.Artist, t.Album, t.Genre, t.Key, t.Missing)
		if err != nil {
			return fmt.Errorf("upserting track row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM track_tags WHERE track_id = $1`, t.ID); err != nil {
			return fmt.Errorf("clearing old tags: %w", err)
		}
		for i, tag := range t.Tags {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO track_tags (track_id, position, category, label)
				 VALUES ($1, $2, $3, $4)`,
				t.ID, i, tag.Category, tag.Label)
			if err != nil {
				return fmt.Errorf("inserting tag %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting track %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes one track; tag rows go with it via the cascade. Deleting an
// unknown ID returns ErrTrackNotFound.
func (s *TrackStore) Delete(ctx context.Context, id string) error {
	res, err := s.client.DB.ExecContext(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting track %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result for track %s: %w", id, err)
	}
	if affected == 0 {
		return pkgerrors.ErrTrackNotFound
	}
	return nil
}

// Get returns one track by ID.
func (s *TrackStore) Get(ctx context.Context, id string) (track.Track, error) {
	var t track.Track
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT id, name, artist, album, genre, key_label, missing
		 FROM tracks WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Artist, &t.Album, &t.Genre, &t.Key, &t.Missing)
	if err == sql.ErrNoRows {
		return track.Track{}, pkgerrors.ErrTrackNotFound
	}
	if err != nil {
		return track.Track{}, fmt.Errorf("querying track %s: %w", id, err)
	}

	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT category, label FROM track_tags WHERE track_id = $1 ORDER BY position`, id)
	if err != nil {
		return track.Track{}, fmt.Errorf("querying tags for track %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var tag track.Tag
		if err := rows.Scan(&tag.Category, &tag.Label); err != nil {
			return track.Track{}, fmt.Errorf("scanning tag row: %w", err)
		}
		t.Tags = append(t.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return track.Track{}, fmt.Errorf("iterating tag rows: %w", err)
	}
	return t, nil
}
