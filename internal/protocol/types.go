// Package protocol defines the JSON wire format spoken with the lander game server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Default world size used when a terrain frame omits its dimensions.
const (
	DefaultWorldWidth  = 1200
	DefaultWorldHeight = 800
)

// Point is a 2D world coordinate. On the wire it is a two-element array [x, y].
type Point struct {
	X, Y float64
}

// UnmarshalJSON accepts [x, y] as well as {"x":..,"y":..}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("point: want 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = obj.X, obj.Y
	return nil
}

// MarshalJSON writes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// LandingZone is a flat terrain interval the server accepts landings on.
type LandingZone struct {
	X1         float64 `json:"x1"`
	X2         float64 `json:"x2"`
	Y          float64 `json:"y"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// Center returns the horizontal midpoint of the zone.
func (z LandingZone) Center() float64 {
	return (z.X1 + z.X2) / 2
}

// Terrain is the static ground profile of a session.
type Terrain struct {
	Points       []Point       `json:"points"`
	LandingZones []LandingZone `json:"landing_zones"`
	Width        float64       `json:"width,omitempty"`
	Height       float64       `json:"height,omitempty"`
}

// Size returns the world dimensions, falling back to the server defaults.
func (t *Terrain) Size() (width, height float64) {
	width, height = DefaultWorldWidth, DefaultWorldHeight
	if t == nil {
		return width, height
	}
	if t.Width > 0 {
		width = t.Width
	}
	if t.Height > 0 {
		height = t.Height
	}
	return width, height
}

// Lander is the server-authoritative state of one craft.
type Lander struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Rotation float64 `json:"rotation"`
	Fuel     float64 `json:"fuel"`
	Crashed  bool    `json:"crashed"`
	Landed   bool    `json:"landed"`
}

// Airborne reports whether the craft is still flying.
func (l *Lander) Airborne() bool {
	return l != nil && !l.Crashed && !l.Landed
}

// PlayerLander is one entry of a multiplayer "players" map.
type PlayerLander struct {
	Lander
	Name      string `json:"name,omitempty"`
	Color     string `json:"color,omitempty"`
	Thrusting bool   `json:"thrusting,omitempty"`
}

// PlayerInfo is one lobby member.
type PlayerInfo struct {
	Name      string `json:"name"`
	IsCreator bool   `json:"is_creator"`
}

// PlayerResult is one row of a multiplayer game_over summary.
type PlayerResult struct {
	Name          string  `json:"name"`
	Landed        bool    `json:"landed"`
	Crashed       bool    `json:"crashed"`
	Score         int     `json:"score"`
	Time          float64 `json:"time"`
	FuelRemaining float64 `json:"fuel_remaining"`
}

// Room is a joinable multiplayer room as listed by GET /rooms.
type Room struct {
	ID         string `json:"room_id"`
	Name       string `json:"room_name,omitempty"`
	Difficulty string `json:"difficulty"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players,omitempty"`
	Started    bool   `json:"started,omitempty"`
}

// GameSummary is a spectatable session as listed by GET /games.
type GameSummary struct {
	SessionID  string  `json:"session_id"`
	UserID     string  `json:"user_id"`
	Difficulty string  `json:"difficulty"`
	Spectators int     `json:"spectators"`
	Duration   float64 `json:"duration"`
}

// ReplaySummary is one entry of GET /replays.
type ReplaySummary struct {
	ReplayID   string  `json:"replay_id"`
	UserID     string  `json:"user_id"`
	Difficulty string  `json:"difficulty"`
	Duration   float64 `json:"duration"`
	Landed     bool    `json:"landed"`
	Crashed    bool    `json:"crashed"`
	Timestamp  float64 `json:"timestamp"`
}

// ReplayMetadata describes a recorded session.
type ReplayMetadata struct {
	Terrain    *Terrain `json:"terrain"`
	Difficulty string   `json:"difficulty,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	Landed     bool     `json:"landed,omitempty"`
	Crashed    bool     `json:"crashed,omitempty"`
}

// ReplayFrame is one recorded server tick.
type ReplayFrame struct {
	Lander    Lander  `json:"lander"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	Thrusting bool    `json:"thrusting"`
}

// Recording is a full replay as returned by GET /replay/{id}.
type Recording struct {
	Metadata ReplayMetadata `json:"metadata"`
	Frames   []ReplayFrame  `json:"frames"`
}
