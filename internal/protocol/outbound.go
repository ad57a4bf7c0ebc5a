package protocol

import (
	"encoding/json"
	"fmt"
)

// Action is a discrete control token sent with an input message.
type Action string

const (
	ActionThrustOn    Action = "thrust_on"
	ActionThrustOff   Action = "thrust_off"
	ActionRotateLeft  Action = "rotate_left"
	ActionRotateRight Action = "rotate_right"
	ActionRotateStop  Action = "rotate_stop"
)

// Outbound is a client-to-server command.
type Outbound interface {
	Type() string
}

// Start begins a single-player session.
type Start struct {
	Difficulty    string `json:"difficulty"`
	TelemetryMode string `json:"telemetry_mode,omitempty"`
	UpdateRate    int    `json:"update_rate,omitempty"`
	Token         string `json:"token,omitempty"`
}

// Input carries one control action.
type Input struct {
	Action Action `json:"action"`
}

// Ping is the keepalive probe.
type Ping struct{}

// CreateRoom opens a multiplayer room.
type CreateRoom struct {
	Difficulty string `json:"difficulty"`
	PlayerName string `json:"player_name"`
	RoomName   string `json:"room_name,omitempty"`
}

// JoinRoom joins an existing room.
type JoinRoom struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

// StartGame is sent by the room creator to begin the match.
type StartGame struct{}

func (Start) Type() string      { return "start" }
func (Input) Type() string      { return "input" }
func (Ping) Type() string       { return "ping" }
func (CreateRoom) Type() string { return "create_room" }
func (JoinRoom) Type() string   { return "join_room" }
func (StartGame) Type() string  { return "start_game" }

// Encode serializes msg with its type tag merged into the object.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	tag, _ := json.Marshal(msg.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}
