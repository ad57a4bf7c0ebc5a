package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the "type" discriminant carried by every frame.
type Kind string

// Inbound message kinds.
const (
	KindInit        Kind = "init"
	KindTelemetry   Kind = "telemetry"
	KindGameOver    Kind = "game_over"
	KindRoomCreated Kind = "room_created"
	KindRoomJoined  Kind = "room_joined"
	KindPlayerList  Kind = "player_list"
	KindGameStarted Kind = "game_started"
	KindPong        Kind = "pong"
	KindError       Kind = "error"
)

// Kinds lists every inbound kind the client understands.
var Kinds = []Kind{
	KindInit, KindTelemetry, KindGameOver, KindRoomCreated, KindRoomJoined,
	KindPlayerList, KindGameStarted, KindPong, KindError,
}

// ErrUnknownKind is returned by Decode for frames whose type the client does not know.
// Callers ignore these frames.
var ErrUnknownKind = errors.New("unknown message kind")

// Message is an inbound server frame. The set of implementations is closed.
type Message interface {
	Kind() Kind
	inbound()
}

// Init starts a session: terrain plus the first lander state.
type Init struct {
	Terrain   *Terrain                `json:"terrain"`
	Lander    *Lander                 `json:"lander,omitempty"`
	Players   map[string]PlayerLander `json:"players,omitempty"`
	PlayerID  string                  `json:"player_id,omitempty"`
	Constants map[string]float64      `json:"constants,omitempty"`
}

// Telemetry is a periodic world update.
type Telemetry struct {
	Lander         *Lander                 `json:"lander,omitempty"`
	Players        map[string]PlayerLander `json:"players,omitempty"`
	Altitude       float64                 `json:"altitude"`
	Speed          float64                 `json:"speed"`
	Thrusting      bool                    `json:"thrusting"`
	SpectatorCount *int                    `json:"spectator_count,omitempty"`
}

// GameOver ends a session.
type GameOver struct {
	Landed         bool           `json:"landed"`
	Crashed        bool           `json:"crashed"`
	Time           float64        `json:"time"`
	FuelRemaining  float64        `json:"fuel_remaining"`
	Inputs         int            `json:"inputs"`
	Score          int            `json:"score"`
	Multiplayer    bool           `json:"multiplayer,omitempty"`
	PlayersResults []PlayerResult `json:"players_results,omitempty"`
	ReplayID       string         `json:"replay_id,omitempty"`
}

// RoomCreated confirms a create_room request.
type RoomCreated struct {
	RoomID string `json:"room_id"`
}

// RoomJoined confirms a join_room request.
type RoomJoined struct {
	RoomID string `json:"room_id,omitempty"`
}

// PlayerList is the current lobby roster.
type PlayerList struct {
	Players []PlayerInfo `json:"players"`
}

// GameStarted signals that the room creator started the match.
type GameStarted struct{}

// Pong answers a ping.
type Pong struct{}

// Error is a non-fatal protocol error reported by the server.
type Error struct {
	Message string `json:"message"`
}

func (*Init) Kind() Kind        { return KindInit }
func (*Telemetry) Kind() Kind   { return KindTelemetry }
func (*GameOver) Kind() Kind    { return KindGameOver }
func (*RoomCreated) Kind() Kind { return KindRoomCreated }
func (*RoomJoined) Kind() Kind  { return KindRoomJoined }
func (*PlayerList) Kind() Kind  { return KindPlayerList }
func (*GameStarted) Kind() Kind { return KindGameStarted }
func (*Pong) Kind() Kind        { return KindPong }
func (*Error) Kind() Kind       { return KindError }

func (*Init) inbound()        {}
func (*Telemetry) inbound()   {}
func (*GameOver) inbound()    {}
func (*RoomCreated) inbound() {}
func (*RoomJoined) inbound()  {}
func (*PlayerList) inbound()  {}
func (*GameStarted) inbound() {}
func (*Pong) inbound()        {}
func (*Error) inbound()       {}

type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses one inbound frame. Frames with an unrecognised type return
// ErrUnknownKind.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case KindInit:
		msg = &Init{}
	case KindTelemetry:
		msg = &Telemetry{}
	case KindGameOver:
		msg = &GameOver{}
	case KindRoomCreated:
		msg = &RoomCreated{}
	case KindRoomJoined:
		msg = &RoomJoined{}
	case KindPlayerList:
		msg = &PlayerList{}
	case KindGameStarted:
		return &GameStarted{}, nil
	case KindPong:
		return &Pong{}, nil
	case KindError:
		msg = &Error{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}
