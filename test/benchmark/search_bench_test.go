// Package benchmark contains Go benchmarks for the tokenizer, the inverted
// index, and the two filter execution paths, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/index"
	"github.com/cuebase/tracksearch/internal/search"
	"github.com/cuebase/tracksearch/internal/tokenizer"
	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
)

func benchTracks(n int) []track.Track {
	artists := []string{"Daft Punk", "Justice", "Moderat", "Bicep", "Overmono"}
	genres := []string{"french house", "electro", "techno", "breaks"}
	tracks := make([]track.Track, 0, n)
	for i := 0; i < n; i++ {
		tracks = append(tracks, track.Track{
			ID:     fmt.Sprintf("t%06d", i),
			Name:   fmt.Sprintf("Track %d Anthem", i),
			Artist: artists[i%len(artists)],
			Album:  fmt.Sprintf("Compilation %d", i/100),
			Genre:  genres[i%len(genres)],
			Key:    "Am",
		})
	}
	return tracks
}

// BenchmarkTokenize measures term expansion over a typical track text.
func BenchmarkTokenize(b *testing.B) {
	text := "get lucky daft punk random access memories french house f#m"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := tokenizer.Tokenize(text)
		_ = terms
	}
}

// BenchmarkIndexBuild measures bulk build throughput over 10 000 tracks.
func BenchmarkIndexBuild(b *testing.B) {
	tracks := benchTracks(10000)
	ix := index.New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Build(tracks)
	}
}

// BenchmarkIndexUpsert measures single-track retract-and-reinsert cost on a
// populated index.
func BenchmarkIndexUpsert(b *testing.B) {
	tracks := benchTracks(10000)
	ix := index.New()
	ix.Build(tracks)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.Upsert(tracks[i%len(tracks)])
	}
}

// BenchmarkIndexedSearch measures the fast path: candidate intersection plus
// verification over 10 000 tracks.
func BenchmarkIndexedSearch(b *testing.B) {
	ix := index.New()
	ix.Build(benchTracks(10000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ids, _ := search.SearchIDs(ix, "daft punk")
		_ = ids
	}
}

// BenchmarkIndexedSearchParallel measures concurrent read throughput on the
// indexed path.
func BenchmarkIndexedSearchParallel(b *testing.B) {
	ix := index.New()
	ix.Build(benchTracks(10000))
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ids, _ := search.SearchIDs(ix, "daft punk")
			_ = ids
		}
	})
}

// BenchmarkInlineScan measures the strategy path's linear scan below the
// delegation threshold.
func BenchmarkInlineScan(b *testing.B) {
	tracks := benchTracks(2000)
	e := engine.New(config.EngineConfig{InlineThreshold: 1 << 20})
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := e.Filter(ctx, tracks, engine.Options{Query: "daft"})
		if err != nil {
			b.Fatal(err)
		}
		_ = res
	}
}

// BenchmarkDelegatedScan measures the full delegation round trip through the
// worker, including projection and correlation overhead.
func BenchmarkDelegatedScan(b *testing.B) {
	tracks := benchTracks(8000)
	e := engine.New(config.EngineConfig{InlineThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := e.Filter(ctx, tracks, engine.Options{Query: "daft"})
		if err != nil {
			b.Fatal(err)
		}
		_ = res
	}
}
