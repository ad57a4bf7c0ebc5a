// Package directory fetches room, session and replay listings over HTTP.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/time/rate"

	"github.com/tomz197/lander/internal/protocol"
)

const (
	requestTimeout  = 10 * time.Second
	maxBodyBytes    = 32 << 20
	refreshInterval = 500 * time.Millisecond
	refreshBurst    = 3
	// Listing requests in flight at once; the third waits for a free slot.
	maxInFlight     = 2
)

var (
	// ErrNotFound is returned when the server has no such resource.
	ErrNotFound = errors.New("not found")
	// ErrThrottled is returned when listings are refreshed too quickly.
	ErrThrottled = errors.New("refresh throttled")
)

// Client talks to the game server's HTTP endpoints.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client for the given HTTP base (scheme://host).
// A nil httpClient selects one with a request timeout.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		base:    base,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(refreshInterval), refreshBurst),
	}
}

// Rooms lists joinable multiplayer rooms.
func (c *Client) Rooms(ctx context.Context) ([]protocol.Room, error) {
	var rooms []protocol.Room
	if err := c.getList(ctx, "/rooms", "rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Games lists active sessions that can be spectated.
func (c *Client) Games(ctx context.Context) ([]protocol.GameSummary, error) {
	var games []protocol.GameSummary
	if err := c.getList(ctx, "/games", "games", &games); err != nil {
		return nil, err
	}
	return games, nil
}

// Replays lists recorded sessions.
func (c *Client) Replays(ctx context.Context) ([]protocol.ReplaySummary, error) {
	var replays []protocol.ReplaySummary
	if err := c.getList(ctx, "/replays", "replays", &replays); err != nil {
		return nil, err
	}
	return replays, nil
}

// Replay fetches one recording. It is not throttled: replays are fetched once
// per playback, not on every menu refresh.
func (c *Client) Replay(ctx context.Context, id string) (*protocol.Recording, error) {
	body, err := c.get(ctx, "/replay/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if err := notFoundBody(body); err != nil {
		return nil, err
	}
	var rec protocol.Recording
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode replay %s: %w", id, err)
	}
	return &rec, nil
}

// Listings is the result of FetchAll. Each list carries its own error so one
// failing endpoint does not hide the others.
type Listings struct {
	Rooms      []protocol.Room
	RoomsErr   error
	Games      []protocol.GameSummary
	GamesErr   error
	Replays    []protocol.ReplaySummary
	ReplaysErr error
}

// FetchAll loads rooms, games and replays with at most maxInFlight requests
// running at once.
func (c *Client) FetchAll(ctx context.Context) Listings {
	var out Listings
	tasks := []func(){
		func() { out.Rooms, out.RoomsErr = c.Rooms(ctx) },
		func() { out.Games, out.GamesErr = c.Games(ctx) },
		func() { out.Replays, out.ReplaysErr = c.Replays(ctx) },
	}

	wg := sizedwaitgroup.New(maxInFlight)
	for _, task := range tasks {
		wg.Add()
		go func() {
			defer wg.Done()
			task()
		}()
	}
	wg.Wait()
	return out
}

// getList fetches path and decodes either a bare JSON array or an object
// wrapping the array under key.
func (c *Client) getList(ctx context.Context, path, key string, dst any) error {
	if !c.limiter.Allow() {
		return ErrThrottled
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err == nil {
		return nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	raw, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("decode %s: missing %q", path, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("get %s: unexpected status %s", path, resp.Status)
	}
	return body, nil
}

// notFoundBody detects the {"error": "..."} bodies the server returns with a 200.
func notFoundBody(body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s: %w", e.Error, ErrNotFound)
	}
	return nil
}
