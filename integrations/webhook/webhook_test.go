package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scorekit/core"
)

func submitted() core.Event {
	return core.NewScoreSubmitted(core.ScoreEntry{
		ID: "e1", GameType: "minesweeper", Difficulty: "expert",
		Score: 42, PlayerName: "u1", Timestamp: time.Now().UTC(),
	})
}

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var got core.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("X-Scorekit-Event") != string(core.EventScoreSubmitted) {
			t.Errorf("missing event header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	sink := New([]string{srv.URL, srv.URL})
	sink.OnEvent(context.Background(), submitted())

	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", hits)
	}
	if got.Entry.PlayerName != "u1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSink_EventTypeFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithEventTypes(core.EventNewRecord))
	sink.OnEvent(context.Background(), submitted())
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("filtered event was delivered")
	}
}

func TestSink_FailuresDoNotStopOtherEndpoints(t *testing.T) {
	var hits int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer good.Close()

	sink := New([]string{"http://127.0.0.1:1", bad.URL, good.URL}, WithClient(&http.Client{Timeout: time.Second}))
	sink.OnEvent(context.Background(), submitted())
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected good endpoint to be hit once, got %d", hits)
	}
}
