package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/spacedrep/internal/deck"
	"github.com/conorfennell/spacedrep/internal/domain"
	"github.com/conorfennell/spacedrep/internal/fsrs"
	"github.com/conorfennell/spacedrep/internal/storage"
	"github.com/conorfennell/spacedrep/internal/sync"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sched, err := fsrs.NewScheduler(fsrs.Config{})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	n := 0
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	svc := deck.New(db, sched,
		deck.WithClock(func() time.Time { return now }),
		deck.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("card-%d", n)
		}),
	)
	return NewServer(svc, sync.New(db, svc, t.TempDir()))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestCardLifecycle(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/cards", `{"card_type":"fact","question":"2+2?","answer":"4","tags":["math"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, but got %d: %s", rr.Code, rr.Body)
	}
	card := decode[domain.Card](t, rr)
	if card.ID != "card-1" || card.State != domain.New {
		t.Errorf("Unexpected card %+v", card)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/cards/card-1" {
		t.Errorf("Expected Location header, but got %q", loc)
	}

	rr = do(t, s, http.MethodGet, "/api/v1/cards/due?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d", rr.Code)
	}
	due := decode[listResponse](t, rr)
	if due.Count != 1 {
		t.Errorf("Expected 1 due card, but got %d", due.Count)
	}

	rr = do(t, s, http.MethodPost, "/api/v1/cards/card-1/review", `{"rating":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d: %s", rr.Code, rr.Body)
	}
	reviewed := decode[domain.Card](t, rr)
	if reviewed.State != domain.Learning || reviewed.Reps != 1 || len(reviewed.Reviews) != 1 {
		t.Errorf("Unexpected reviewed card %+v", reviewed)
	}

	rr = do(t, s, http.MethodPatch, "/api/v1/cards/card-1", `{"answer":"four"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d: %s", rr.Code, rr.Body)
	}
	if got := decode[domain.Card](t, rr); got.Answer != "four" || got.Reps != 1 {
		t.Errorf("Unexpected patched card %+v", got)
	}

	rr = do(t, s, http.MethodGet, "/api/v1/cards/card-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d", rr.Code)
	}
	withR := decode[map[string]any](t, rr)
	if _, ok := withR["retrievability"]; !ok {
		t.Error("Expected retrievability in card response")
	}

	rr = do(t, s, http.MethodDelete, "/api/v1/cards/card-1", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, but got %d", rr.Code)
	}
	rr = do(t, s, http.MethodGet, "/api/v1/cards/card-1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, but got %d", rr.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/cards", `{"card_type":"concept","concept":"Maps"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing answer", http.MethodPost, "/api/v1/cards", `{"card_type":"fact","question":"q"}`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/v1/cards", `{"card_type":"cloze"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/cards", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/cards", `{"card_type":"concept","concept":"x","extra":1}`, http.StatusBadRequest},
		{"invalid rating", http.MethodPost, "/api/v1/cards/card-1/review", `{"rating":5}`, http.StatusBadRequest},
		{"missing card review", http.MethodPost, "/api/v1/cards/nope/review", `{"rating":3}`, http.StatusNotFound},
		{"missing card patch", http.MethodPatch, "/api/v1/cards/nope", `{"concept":"x"}`, http.StatusNotFound},
		{"empty concept", http.MethodPatch, "/api/v1/cards/card-1", `{"concept":""}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/cards/due?limit=0", "", http.StatusBadRequest},
		{"unversioned", http.MethodGet, "/cards", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("Expected %d, but got %d: %s", tt.status, rr.Code, rr.Body)
			}
			e := decode[errorResponse](t, rr)
			if e.Error == "" || e.Message == "" {
				t.Errorf("Expected error body, but got %s", rr.Body)
			}
		})
	}
}

func TestListCardsByTag(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/cards", `{"card_type":"concept","concept":"a","tags":["go"]}`)
	do(t, s, http.MethodPost, "/api/v1/cards", `{"card_type":"concept","concept":"b"}`)

	all := decode[listResponse](t, do(t, s, http.MethodGet, "/api/v1/cards", ""))
	if all.Count != 2 {
		t.Errorf("Expected 2 cards, but got %d", all.Count)
	}
	tagged := decode[listResponse](t, do(t, s, http.MethodGet, "/api/v1/cards?tag=go", ""))
	if tagged.Count != 1 || tagged.Cards[0].Concept != "a" {
		t.Errorf("Unexpected tagged cards %+v", tagged)
	}
}

func TestSourcesAndSync(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deck.md"), []byte("Q: x?\nA: y\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rr := do(t, s, http.MethodGet, "/api/v1/sources", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"sources":[]`) {
		t.Errorf("Expected empty source list, but got %d %s", rr.Code, rr.Body)
	}

	body, _ := json.Marshal(addSourceRequest{Path: dir})
	rr = do(t, s, http.MethodPost, "/api/v1/sources", string(body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, but got %d: %s", rr.Code, rr.Body)
	}
	src := decode[storage.Source](t, rr)

	rr = do(t, s, http.MethodPost, "/api/v1/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, but got %d: %s", rr.Code, rr.Body)
	}
	results := decode[struct {
		Results []sync.Result `json:"results"`
	}](t, rr)
	if len(results.Results) != 1 || results.Results[0].Inserted != 1 {
		t.Errorf("Unexpected sync results %+v", results)
	}

	rr = do(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/sources/%d", src.ID), "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, but got %d", rr.Code)
	}
	rr = do(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/sources/%d", src.ID), "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a removed source, but got %d", rr.Code)
	}
	rr = do(t, s, http.MethodDelete, "/api/v1/sources/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad ID, but got %d", rr.Code)
	}
}

func TestAddSourceErrorStatus(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(addSourceRequest{Path: filepath.Join(t.TempDir(), "missing")})
	rr := do(t, s, http.MethodPost, "/api/v1/sources", string(body))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing directory, but got %d: %s", rr.Code, rr.Body)
	}

	db, err := storage.Open(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sched, err := fsrs.NewScheduler(fsrs.Config{})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	svc := deck.New(db, sched)
	broken := NewServer(svc, sync.New(db, svc, t.TempDir()))
	db.Close()

	body, _ = json.Marshal(addSourceRequest{Path: t.TempDir()})
	rr = do(t, broken, http.MethodPost, "/api/v1/sources", string(body))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when the store fails, but got %d: %s", rr.Code, rr.Body)
	}
	if e := decode[errorResponse](t, rr); e.Error != "internal" {
		t.Errorf("Expected internal error code, but got %+v", e)
	}
}
