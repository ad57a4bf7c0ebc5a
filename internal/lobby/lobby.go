// Package lobby runs the multiplayer room handshake on top of a transport
// connection: create or join a room, wait for players, start the match.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/transport"
)

var (
	// ErrJoinTimeout is reported when the server does not confirm a room in time.
	ErrJoinTimeout = errors.New("timed out waiting for room")
	// ErrNotCreator is returned when a player other than the room creator tries to start.
	ErrNotCreator = errors.New("only the room creator can start the game")
	// ErrRejected wraps an error frame received while joining.
	ErrRejected = errors.New("room request rejected")
	// ErrNotWaiting is returned for requests that do not fit the current phase.
	ErrNotWaiting = errors.New("lobby is not waiting for players")
)

// Phase is the position in the room handshake.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseWaiting
	PhaseStarted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseWaiting:
		return "waiting"
	case PhaseStarted:
		return "started"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Conn is the part of the transport the lobby needs. *transport.Client satisfies it.
type Conn interface {
	Send(msg protocol.Outbound) bool
	Subscribe(kind protocol.Kind, h transport.Handler) (unsubscribe func())
}

// Poller blocks until inbound frames were dispatched. *transport.Client satisfies it.
type Poller interface {
	PollWait(ctx context.Context) error
}

// Options configures a Lobby. Zero values select the defaults.
type Options struct {
	JoinTimeout time.Duration
	Now         func() time.Time
	// OnStarted runs once when the server announces the match start.
	OnStarted func()
}

// Lobby tracks one room handshake. All methods run on the goroutine that
// polls the connection.
type Lobby struct {
	conn       Conn
	playerName string
	timeout    time.Duration
	now        func() time.Time
	onStarted  func()

	phase    Phase
	roomID   string
	creator  bool
	players  []protocol.PlayerInfo
	deadline time.Time
	err      error
	unsubs   []func()
}

// New subscribes to the room messages on conn.
func New(conn Conn, playerName string, opts Options) *Lobby {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = config.JoinTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Lobby{
		conn:       conn,
		playerName: playerName,
		timeout:    opts.JoinTimeout,
		now:        opts.Now,
		onStarted:  opts.OnStarted,
	}
	l.unsubs = []func(){
		conn.Subscribe(protocol.KindRoomCreated, l.handleRoomCreated),
		conn.Subscribe(protocol.KindRoomJoined, l.handleRoomJoined),
		conn.Subscribe(protocol.KindPlayerList, l.handlePlayerList),
		conn.Subscribe(protocol.KindGameStarted, l.handleGameStarted),
		conn.Subscribe(protocol.KindError, l.handleError),
	}
	return l
}

// Create asks the server for a new room. The local player becomes its
// creator once the server confirms with room_created.
func (l *Lobby) Create(difficulty, roomName string) error {
	if l.phase != PhaseIdle {
		return ErrNotWaiting
	}
	return l.request(protocol.CreateRoom{
		Difficulty: difficulty,
		PlayerName: l.playerName,
		RoomName:   roomName,
	})
}

// Join asks to enter an existing room.
func (l *Lobby) Join(roomID string) error {
	if l.phase != PhaseIdle {
		return ErrNotWaiting
	}
	l.roomID = roomID
	return l.request(protocol.JoinRoom{RoomID: roomID, PlayerName: l.playerName})
}

func (l *Lobby) request(msg protocol.Outbound) error {
	if !l.conn.Send(msg) {
		l.fail(transport.ErrConnectionLost)
		return l.err
	}
	l.phase = PhaseJoining
	l.deadline = l.now().Add(l.timeout)
	return nil
}

// StartGame asks the server to start the match. Only the creator may do this.
func (l *Lobby) StartGame() error {
	if l.phase != PhaseWaiting {
		return ErrNotWaiting
	}
	if !l.creator {
		return ErrNotCreator
	}
	if !l.conn.Send(protocol.StartGame{}) {
		return transport.ErrConnectionLost
	}
	return nil
}

// Check expires a pending request once the join window closed. The client
// loop calls it every frame; it returns the failure, if any.
func (l *Lobby) Check() error {
	if l.phase == PhaseJoining && !l.now().Before(l.deadline) {
		l.fail(ErrJoinTimeout)
	}
	return l.err
}

// Await blocks until the pending request is confirmed, rejected or expired.
func (l *Lobby) Await(ctx context.Context, p Poller) error {
	if l.phase != PhaseJoining {
		return l.err
	}
	ctx, cancel := context.WithDeadline(ctx, l.deadline)
	defer cancel()

	for l.phase == PhaseJoining {
		if err := p.PollWait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				l.fail(ErrJoinTimeout)
				return l.err
			}
			l.fail(err)
			return err
		}
	}
	return l.err
}

func (l *Lobby) fail(err error) {
	l.phase = PhaseFailed
	l.err = err
}

func (l *Lobby) handleRoomCreated(msg protocol.Message) {
	if l.phase != PhaseJoining {
		return
	}
	l.roomID = msg.(*protocol.RoomCreated).RoomID
	l.creator = true
	l.phase = PhaseWaiting
}

func (l *Lobby) handleRoomJoined(msg protocol.Message) {
	if l.phase != PhaseJoining {
		return
	}
	if id := msg.(*protocol.RoomJoined).RoomID; id != "" {
		l.roomID = id
	}
	l.phase = PhaseWaiting
}

// handlePlayerList only updates the roster. Names are not unique, so the
// roster never decides who may start the match.
func (l *Lobby) handlePlayerList(msg protocol.Message) {
	l.players = msg.(*protocol.PlayerList).Players
}

func (l *Lobby) handleGameStarted(protocol.Message) {
	if l.phase != PhaseWaiting {
		return
	}
	l.phase = PhaseStarted
	if l.onStarted != nil {
		l.onStarted()
	}
}

func (l *Lobby) handleError(msg protocol.Message) {
	if l.phase != PhaseJoining {
		return
	}
	l.fail(fmt.Errorf("%w: %s", ErrRejected, msg.(*protocol.Error).Message))
}

// Phase returns the current handshake phase.
func (l *Lobby) Phase() Phase { return l.phase }

// RoomID returns the confirmed (or requested) room id.
func (l *Lobby) RoomID() string { return l.roomID }

// Players returns the last roster received.
func (l *Lobby) Players() []protocol.PlayerInfo { return l.players }

// IsCreator reports whether the local player owns the room.
func (l *Lobby) IsCreator() bool { return l.creator }

// Err returns the reason the lobby failed.
func (l *Lobby) Err() error { return l.err }

// Remaining is the time left in the join window.
func (l *Lobby) Remaining() time.Duration {
	if l.phase != PhaseJoining {
		return 0
	}
	return max(0, l.deadline.Sub(l.now()))
}

// Close detaches the lobby from the connection. The connection itself stays
// open so the match can continue on it.
func (l *Lobby) Close() {
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
}
