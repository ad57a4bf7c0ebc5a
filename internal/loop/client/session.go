package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomz197/lander/internal/input"
	"github.com/tomz197/lander/internal/lobby"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/replay"
	"github.com/tomz197/lander/internal/state"
)

// session is one running mode. Its context is cancelled exactly once, when
// the mode exits; background work started for it is dropped after that.
type session struct {
	mode   Mode
	target string // Difficulty, session, room or replay id
	ctx    context.Context
	cancel context.CancelFunc

	conn        Conn // Set once connected; owned by the session from then on
	unsubs      []func()
	room        *lobby.Lobby
	player      *replay.Player
	deadline    time.Time // Latest arrival of the init frame, zero when not waiting
	multiplayer bool
	ended       bool // Replay reached its last frame
}

// begin replaces any running session with a new one in PhaseConnecting.
func (c *Client) begin(mode Mode, target string) *session {
	c.exitMode()

	ctx, cancel := context.WithCancel(c.root)
	s := &session{mode: mode, target: target, ctx: ctx, cancel: cancel}
	c.sess = s

	c.state.Phase = PhaseConnecting
	c.state.Mode = mode
	c.state.gameOver = nil
	c.state.failure = ""
	c.store.Reset()
	c.renderer.Reset()
	c.mapper.Reset()
	c.latency.Reset()
	input.Reset(c.inputStream)

	c.logger.Info("session starting", "mode", mode, "target", target)
	return s
}

// exitMode ends the running session, if any. The caller picks the next phase.
func (c *Client) exitMode() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	s.cancel()

	for _, unsub := range s.unsubs {
		unsub()
	}
	if s.room != nil {
		s.room.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	c.state.Mode = ModeNone
	c.logger.Debug("session ended", "mode", s.mode, "target", s.target)
}

// connect dials url in the background and runs onOpen on the loop goroutine
// once the socket is up. A session that ended meanwhile closes the socket.
func (c *Client) connect(s *session, url string, onOpen func(s *session)) {
	conn := c.deps.Dial(url)
	go func() {
		err := conn.Connect(s.ctx)
		c.post(s.ctx, func() {
			if err != nil {
				conn.Close()
				c.fail("Could not connect", err)
				return
			}
			s.conn = conn
			onOpen(s)
		}, conn.Close)
	}()
}

// startPlay starts a single-player game.
func (c *Client) startPlay(difficulty string) {
	s := c.begin(ModePlay, difficulty)
	c.connect(s, c.deps.Endpoints.PlayURL(), func(s *session) {
		c.watchGame(s)
		s.deadline = time.Now().Add(config.InitTimeout)
		s.conn.Send(protocol.Start{
			Difficulty:    difficulty,
			TelemetryMode: c.settings.TelemetryMode,
			UpdateRate:    c.settings.UpdateRate,
			Token:         c.settings.Token,
		})
	})
}

// startSpectate watches a live session. Nothing is ever sent.
func (c *Client) startSpectate(sessionID string) {
	s := c.begin(ModeSpectate, sessionID)
	c.connect(s, c.deps.Endpoints.SpectateURL(sessionID), func(s *session) {
		c.watchGame(s)
		s.deadline = time.Now().Add(config.InitTimeout)
	})
}

// startReplay fetches a recording and plays it from frame 0.
func (c *Client) startReplay(replayID string) {
	s := c.begin(ModeReplay, replayID)
	go func() {
		rec, err := c.deps.Directory.Replay(s.ctx, replayID)
		c.post(s.ctx, func() {
			if err != nil {
				c.fail("Could not load the replay", err)
				return
			}
			c.playRecording(s, rec)
		}, nil)
	}()
}

func (c *Client) playRecording(s *session, rec *protocol.Recording) {
	if t := rec.Metadata.Terrain; t != nil {
		c.store.SetState(state.Patch{Terrain: t})
	}
	s.player = replay.NewPlayer(rec,
		func(f protocol.ReplayFrame) { c.store.SetState(state.PatchFromFrame(f)) },
		func() {
			s.ended = true
			c.logger.Debug("replay finished", "id", s.target)
		},
	)
	s.player.Advance()
	c.state.Phase = PhaseActive
}

// startLobby creates a room (empty roomID) or joins one.
func (c *Client) startLobby(roomID, difficulty string) {
	s := c.begin(ModeLobby, roomID)
	c.connect(s, c.deps.Endpoints.PlayURL(), func(s *session) {
		c.watchGame(s)
		s.room = lobby.New(s.conn, c.settings.PlayerName, lobby.Options{
			OnStarted: func() {
				c.logger.Info("match started", "room", s.room.RoomID())
				s.deadline = time.Now().Add(config.InitTimeout)
			},
		})

		var err error
		if roomID == "" {
			err = s.room.Create(difficulty, c.settings.PlayerName+"'s room")
		} else {
			err = s.room.Join(roomID)
		}
		if err != nil {
			c.fail("Could not enter the room", err)
			return
		}
		c.state.Phase = PhaseActive
	})
}

// watchGame subscribes the session to the game stream.
func (c *Client) watchGame(s *session) {
	s.unsubs = append(s.unsubs,
		s.conn.Subscribe(protocol.KindInit, func(msg protocol.Message) { c.handleInit(s, msg.(*protocol.Init)) }),
		s.conn.Subscribe(protocol.KindTelemetry, func(msg protocol.Message) { c.handleTelemetry(s, msg.(*protocol.Telemetry)) }),
		s.conn.Subscribe(protocol.KindGameOver, func(msg protocol.Message) { c.handleGameOver(s, msg.(*protocol.GameOver)) }),
		s.conn.Subscribe(protocol.KindError, func(msg protocol.Message) { c.handleServerError(s, msg.(*protocol.Error)) }),
	)
}

func (c *Client) handleInit(s *session, m *protocol.Init) {
	if c.sess != s {
		return
	}
	c.store.SetState(state.PatchFromInit(m))
	s.deadline = time.Time{}
	s.multiplayer = m.Players != nil
	if s.mode == ModeLobby {
		s.mode = ModePlay
		c.state.Mode = ModePlay
	}
	c.state.Phase = PhaseActive
}

func (c *Client) handleTelemetry(s *session, m *protocol.Telemetry) {
	if c.sess != s {
		return
	}
	c.store.SetState(state.PatchFromTelemetry(m))
	// Spectators may join between init and the first telemetry they see.
	if c.state.Phase == PhaseConnecting && c.store.State().Terrain != nil {
		s.deadline = time.Time{}
		c.state.Phase = PhaseActive
	}
}

func (c *Client) handleGameOver(s *session, m *protocol.GameOver) {
	if c.sess != s {
		return
	}
	c.logger.Info("game over", "mode", s.mode, "landed", m.Landed, "crashed", m.Crashed,
		"score", m.Score, "replay", m.ReplayID)
	c.state.gameOverMode = s.mode
	c.exitMode()
	c.state.Phase = PhaseGameOver
	c.state.gameOver = m
	c.state.gameOverAt = time.Now()
}

func (c *Client) handleServerError(s *session, m *protocol.Error) {
	if c.sess != s {
		return
	}
	c.logger.Warn("server error", "mode", s.mode, "message", m.Message)
	c.notify(m.Message)
}

// lobbyMessage turns a lobby error into a short notice.
func lobbyMessage(err error) string {
	switch {
	case errors.Is(err, lobby.ErrNotCreator):
		return "Only the host can start the game."
	case errors.Is(err, lobby.ErrNotWaiting):
		return "The room is not ready yet."
	}
	return fmt.Sprintf("Could not start: %v", err)
}
