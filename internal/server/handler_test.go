package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuebase/tracksearch/internal/engine"
	"github.com/cuebase/tracksearch/internal/library"
	"github.com/cuebase/tracksearch/internal/track"
	"github.com/cuebase/tracksearch/pkg/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lib := library.New(engine.New(config.EngineConfig{}), nil, nil, nil)
	lib.Build([]track.Track{
		{ID: "1", Name: "Get Lucky", Artist: "Daft Punk"},
		{ID: "2", Name: "One More Time", Artist: "Daft Punk", Missing: true},
		{ID: "3", Name: "Around the World", Artist: "Daft Punk"},
	})

	mux := http.NewServeMux()
	New(lib, 50, 500).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/search?q=daft+punk")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[SearchResponse](t, resp)
	if body.Total != 3 || len(body.Tracks) != 3 {
		t.Errorf("total=%d tracks=%d, want 3/3", body.Total, len(body.Tracks))
	}
	if body.Query != "daft punk" {
		t.Errorf("query echoed as %q", body.Query)
	}
}

func TestSearchEndpointLimit(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/search?q=daft&limit=2")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[SearchResponse](t, resp)
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
	if len(body.Tracks) != 2 {
		t.Errorf("returned %d tracks, want 2", len(body.Tracks))
	}
}

func TestSearchEndpointStructuralParams(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/search?playlist=1,2&missing=true")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[SearchResponse](t, resp)
	if body.Total != 1 || body.Tracks[0].ID != "2" {
		t.Errorf("structural search = %+v, want only track 2", body.Tracks)
	}
}

func TestSearchEndpointBadParams(t *testing.T) {
	srv := newTestServer(t)

	for _, qs := range []string{"?missing=maybe", "?limit=0", "?limit=abc"} {
		resp, err := http.Get(srv.URL + "/api/v1/search" + qs)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", qs, resp.StatusCode)
		}
	}
}

func TestFilterEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := `{"query_text":"daft","playlist_allowlist":["1","2"],"missing_only":true}`
	resp, err := http.Post(srv.URL+"/api/v1/filter", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[FilterResponse](t, resp)
	if len(out.MatchedIDs) != 1 || out.MatchedIDs[0] != "2" {
		t.Errorf("matched = %v, want [2]", out.MatchedIDs)
	}
}

func TestFilterEndpointBadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/filter", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTrackLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// Upsert a new track.
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/tracks",
		strings.NewReader(`{"id":"4","name":"Voyager","artist":"Daft Punk"}`))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d", resp.StatusCode)
	}

	// It is immediately searchable.
	resp, err = http.Get(srv.URL + "/api/v1/search?q=voyager")
	if err != nil {
		t.Fatal(err)
	}
	if body := decode[SearchResponse](t, resp); body.Total != 1 {
		t.Errorf("search after upsert total = %d, want 1", body.Total)
	}

	// Fetch it directly.
	resp, err = http.Get(srv.URL + "/api/v1/tracks/4")
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[track.Track](t, resp); got.Name != "Voyager" {
		t.Errorf("get track = %+v", got)
	}

	// Delete it and confirm it is gone.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tracks/4", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/tracks/4")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted track status = %d, want 404", resp.StatusCode)
	}
}

func TestUpsertRequiresID(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/tracks",
		strings.NewReader(`{"name":"No ID"}`))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	stats := decode[library.Stats](t, resp)
	if stats.Tracks != 3 {
		t.Errorf("stats.Tracks = %d, want 3", stats.Tracks)
	}
}
