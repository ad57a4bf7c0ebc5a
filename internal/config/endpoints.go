package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints holds the HTTP and WebSocket addresses derived from one origin.
type Endpoints struct {
	HTTPBase string // e.g. https://host:port
	WSBase   string // e.g. wss://host:port
}

// NewEndpoints derives endpoints from an origin such as "https://host".
// The scheme decides between ws and wss; any path is dropped.
func NewEndpoints(origin string) (Endpoints, error) {
	if !strings.Contains(origin, "://") {
		origin = "http://" + origin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return Endpoints{}, fmt.Errorf("origin %q has no host", origin)
	}

	var httpScheme, wsScheme string
	switch u.Scheme {
	case "http", "ws":
		httpScheme, wsScheme = "http", "ws"
	case "https", "wss":
		httpScheme, wsScheme = "https", "wss"
	default:
		return Endpoints{}, fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	return Endpoints{
		HTTPBase: httpScheme + "://" + u.Host,
		WSBase:   wsScheme + "://" + u.Host,
	}, nil
}

// PlayURL is the socket used for play and multiplayer sessions.
func (e Endpoints) PlayURL() string {
	return e.WSBase + "/ws"
}

// SpectateURL is the read-only socket for an active session.
func (e Endpoints) SpectateURL(sessionID string) string {
	return e.WSBase + "/spectate/" + url.PathEscape(sessionID)
}

// HTTP joins path onto the HTTP base.
func (e Endpoints) HTTP(path string) string {
	return e.HTTPBase + path
}
