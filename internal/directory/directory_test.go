package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/games", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"games":[{"session_id":"s1","user_id":"anonymous","difficulty":"simple","spectators":2,"duration":12.5}]}`))
	})
	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"room_id":"r1","difficulty":"hard","players":2}]`))
	})
	mux.HandleFunc("/replays", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/replay/good", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":{"terrain":{"points":[[0,700],[1200,700]],"landing_zones":[]}},"frames":[{"lander":{"x":1},"altitude":10,"speed":2,"thrusting":true}]}`))
	})
	mux.HandleFunc("/replay/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Replay not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListings(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	games, err := c.Games(context.Background())
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	if len(games) != 1 || games[0].SessionID != "s1" || games[0].Spectators != 2 {
		t.Fatalf("unexpected games: %+v", games)
	}

	rooms, err := c.Rooms(context.Background())
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "r1" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
}

func TestFetchAllKeepsPerListErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	l := c.FetchAll(context.Background())
	if l.GamesErr != nil || l.RoomsErr != nil {
		t.Fatalf("unexpected errors: games=%v rooms=%v", l.GamesErr, l.RoomsErr)
	}
	if l.ReplaysErr == nil {
		t.Fatalf("expected replays error")
	}
	if len(l.Games) != 1 || len(l.Rooms) != 1 {
		t.Fatalf("unexpected listings: %+v", l)
	}
}

func TestReplay(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	rec, err := c.Replay(context.Background(), "good")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rec.Metadata.Terrain == nil || len(rec.Frames) != 1 || !rec.Frames[0].Thrusting {
		t.Fatalf("unexpected recording: %+v", rec)
	}

	if _, err := c.Replay(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Replay(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for 404, got %v", err)
	}
}

func TestRefreshThrottled(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, srv.Client())

	var throttled bool
	for i := 0; i < refreshBurst+1; i++ {
		if _, err := c.Games(context.Background()); errors.Is(err, ErrThrottled) {
			throttled = true
		}
	}
	if !throttled {
		t.Fatalf("expected a throttled refresh after %d rapid calls", refreshBurst+1)
	}
}

func TestFetchAllBoundsConcurrentRequests(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, srv.Client())

	l := c.FetchAll(context.Background())
	if l.RoomsErr != nil || l.GamesErr != nil || l.ReplaysErr != nil {
		t.Fatalf("unexpected errors: %v %v %v", l.RoomsErr, l.GamesErr, l.ReplaysErr)
	}
	if got := peak.Load(); got > maxInFlight {
		t.Fatalf("%d requests in flight, limit is %d", got, maxInFlight)
	}
}
