package input

import "github.com/tomz197/lander/internal/protocol"

// Mapper turns held-control transitions into protocol actions.
// Only changes are emitted, so a held key sends one command, not one per frame.
type Mapper struct {
	thrust bool
	rotate int // -1 left, 0 none, 1 right
	paused bool
}

// Update consumes one frame of input and returns the commands to send.
// While paused nothing is emitted; pausing first releases held controls.
func (m *Mapper) Update(in Input) []protocol.Action {
	if in.Pause {
		m.paused = !m.paused
		if m.paused {
			return m.Release()
		}
	}
	if m.paused {
		return nil
	}

	var actions []protocol.Action

	if in.Up != m.thrust {
		m.thrust = in.Up
		if m.thrust {
			actions = append(actions, protocol.ActionThrustOn)
		} else {
			actions = append(actions, protocol.ActionThrustOff)
		}
	}

	rotate := 0
	switch {
	case in.Left && !in.Right:
		rotate = -1
	case in.Right && !in.Left:
		rotate = 1
	}
	if rotate != m.rotate {
		m.rotate = rotate
		switch rotate {
		case -1:
			actions = append(actions, protocol.ActionRotateLeft)
		case 1:
			actions = append(actions, protocol.ActionRotateRight)
		default:
			actions = append(actions, protocol.ActionRotateStop)
		}
	}

	return actions
}

// Release returns the commands that let go of every held control.
func (m *Mapper) Release() []protocol.Action {
	var actions []protocol.Action
	if m.thrust {
		actions = append(actions, protocol.ActionThrustOff)
		m.thrust = false
	}
	if m.rotate != 0 {
		actions = append(actions, protocol.ActionRotateStop)
		m.rotate = 0
	}
	return actions
}

// Thrusting reports whether thrust is currently held.
func (m *Mapper) Thrusting() bool {
	return m.thrust
}

// Paused reports whether command output is suppressed.
func (m *Mapper) Paused() bool {
	return m.paused
}

// Reset returns the mapper to its initial state for a new session.
func (m *Mapper) Reset() {
	*m = Mapper{}
}
