// Package client runs one terminal session of the lander client: menus,
// live play, spectating, replays and multiplayer rooms.
package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	appconfig "github.com/tomz197/lander/internal/config"
	"github.com/tomz197/lander/internal/directory"
	"github.com/tomz197/lander/internal/draw"
	"github.com/tomz197/lander/internal/input"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/render"
	"github.com/tomz197/lander/internal/state"
	"github.com/tomz197/lander/internal/stats"
	"github.com/tomz197/lander/internal/transport"
)

// Conn is the socket a session runs on. *transport.Client satisfies it.
type Conn interface {
	Connect(ctx context.Context) error
	Send(msg protocol.Outbound) bool
	Subscribe(kind protocol.Kind, h transport.Handler) (unsubscribe func())
	Poll() int
	Done() <-chan struct{}
	Err() error
	Close()
}

// DialFunc creates an unconnected Conn for url.
type DialFunc func(url string) Conn

// Directory serves the menu listings and recordings. *directory.Client satisfies it.
type Directory interface {
	FetchAll(ctx context.Context) directory.Listings
	Replay(ctx context.Context, id string) (*protocol.Recording, error)
}

// Deps are the collaborators of a Client. Nil fields get working defaults
// built from Endpoints.
type Deps struct {
	Endpoints appconfig.Endpoints
	Directory Directory
	Dial      DialFunc
	Store     *state.Store
	Latency   *stats.Latency
	Logger    *log.Logger
	Styles    render.Styles
	Rand      *rand.Rand
}

// ClientOptions configures the client.
type ClientOptions struct {
	TermSizeFunc draw.TermSizeFunc
	Settings     appconfig.Config
}

// result is the outcome of background work, applied on the loop goroutine.
// Results whose context ended are discarded instead.
type result struct {
	ctx     context.Context
	apply   func()
	discard func()
}

var errNoInit = errors.New("no init frame received")

// Client handles rendering and input for a single terminal.
type Client struct {
	deps         Deps
	settings     appconfig.Config
	logger       *log.Logger
	state        *ClientState
	store        *state.Store
	renderer     *render.Renderer
	styles       render.Styles
	latency      *stats.Latency
	mapper       input.Mapper
	canvas       *draw.Canvas
	chunkWriter  *draw.ChunkWriter // Accumulates UI text for chunked output
	writer       io.Writer
	inputStream  *input.Stream
	lastInput    time.Time
	termSizeFunc draw.TermSizeFunc

	root    context.Context
	sess    *session
	results chan result
}

// NewClient creates a client reading keys from r and drawing to w.
func NewClient(r *bufio.Reader, w io.Writer, deps Deps, opts ClientOptions) *Client {
	termSizeFunc := opts.TermSizeFunc
	if termSizeFunc == nil {
		termSizeFunc = draw.DefaultTermSizeFunc
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Store == nil {
		deps.Store = state.New()
	}
	if deps.Latency == nil {
		deps.Latency = stats.NewLatency()
	}
	if deps.Directory == nil {
		deps.Directory = directory.New(deps.Endpoints.HTTPBase, nil)
	}
	if deps.Dial == nil {
		latency, logger := deps.Latency, deps.Logger
		deps.Dial = func(url string) Conn {
			return transport.New(url, transport.Options{Latency: latency, Logger: logger})
		}
	}
	if opts.Settings.PlayerName == "" {
		opts.Settings.PlayerName = appconfig.DefaultPlayerName()
	}

	// Create canvas with clamped dimensions for max render resolution
	termWidth, termHeight, err := termSizeFunc()
	if err != nil {
		termWidth, termHeight = 80, 24
	}
	renderWidth, renderHeight, offsetCol, offsetRow := draw.FitSize(termWidth, termHeight, config.MaxTermWidth, config.MaxTermHeight)
	canvas := draw.NewScaledCanvas(renderWidth, renderHeight, config.ViewWidth, config.ViewHeight)
	canvas.SetOffset(offsetCol, offsetRow)
	chunkWriter := draw.NewChunkWriter(w, offsetCol, offsetRow)

	c := &Client{
		deps:         deps,
		settings:     opts.Settings,
		logger:       deps.Logger.With("player", opts.Settings.PlayerName),
		state:        NewClientState(),
		store:        deps.Store,
		styles:       deps.Styles,
		latency:      deps.Latency,
		canvas:       canvas,
		chunkWriter:  chunkWriter,
		writer:       w,
		inputStream:  input.StartStream(r),
		lastInput:    time.Now(),
		termSizeFunc: termSizeFunc,
		root:         context.Background(),
		results:      make(chan result, 16),
	}
	c.renderer = render.New(canvas, chunkWriter, render.Options{Styles: deps.Styles, Rand: deps.Rand})
	c.store.Subscribe(c.logTouchdown)
	return c
}

// Run starts the client loop. Blocks until the user quits, the input ends or
// ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.root = ctx

	draw.HideCursor(c.writer)
	defer draw.ShowCursor(c.writer)
	draw.ClearScreen(c.writer)

	c.refresh()
	lastTime := time.Now()

	for c.state.Running {
		frameStart := time.Now()
		delta := frameStart.Sub(lastTime)
		lastTime = frameStart

		c.step(input.ReadInput(c.inputStream), delta)
		if ctx.Err() != nil {
			c.state.Running = false
		}

		if err := c.drawFrame(); err != nil {
			c.exitMode()
			return err
		}

		// Frame timing
		elapsed := time.Since(frameStart)
		if elapsed < config.ClientTargetFrameTime {
			time.Sleep(config.ClientTargetFrameTime - elapsed)
		}
	}

	c.exitMode()
	draw.ClearScreen(c.writer)
	return nil
}

// step advances the client by one frame without drawing.
func (c *Client) step(in input.Input, delta time.Duration) {
	c.state.delta = delta

	c.processInput(in)
	c.processResults()
	c.processServerEvents()
	c.updateScreen()

	switch c.state.Phase {
	case PhaseMenu:
		c.updateMenuState()
	case PhaseConnecting:
		c.updateConnectingState()
	case PhaseActive:
		c.updateActiveState()
	case PhaseGameOver:
		c.updateGameOverState()
	case PhaseFailed, PhaseConnectionLost:
		c.updateFailedState()
	}
}

// processInput records the frame's keys and tracks menu inactivity. A running
// session never times out.
func (c *Client) processInput(in input.Input) {
	c.state.Input = in

	busy := c.state.Phase == PhaseActive || c.state.Phase == PhaseConnecting
	if len(in.Pressed) > 0 || busy {
		c.lastInput = time.Now()
		c.state.isInactive = false
	} else if time.Since(c.lastInput).Seconds() > config.InactivityDisconnectUser {
		c.logger.Info("disconnecting inactive user")
		c.state.Running = false
	} else if time.Since(c.lastInput).Seconds() > config.InactivityWarnUser {
		c.state.isInactive = true
	}

	if in.Quit || in.Closed {
		c.state.Running = false
	}
}

// post hands the outcome of background work to the loop goroutine.
func (c *Client) post(ctx context.Context, apply, discard func()) {
	select {
	case c.results <- result{ctx: ctx, apply: apply, discard: discard}:
	case <-ctx.Done():
		if discard != nil {
			discard()
		}
	}
}

// processResults applies finished background work.
func (c *Client) processResults() {
	for {
		select {
		case r := <-c.results:
			if r.ctx.Err() != nil {
				if r.discard != nil {
					r.discard()
				}
				continue
			}
			r.apply()
		default:
			return
		}
	}
}

// processServerEvents dispatches queued frames of the running session and
// detects a dropped connection.
func (c *Client) processServerEvents() {
	s := c.sess
	if s == nil || s.conn == nil {
		return
	}

	s.conn.Poll()
	if c.sess != s {
		// A handler ended the session.
		return
	}

	select {
	case <-s.conn.Done():
		// Frames that arrived just before the drop, game_over included, still count.
		s.conn.Poll()
		if c.sess != s {
			return
		}
		c.logger.Warn("connection lost", "mode", s.mode, "err", s.conn.Err())
		c.exitMode()
		c.state.Phase = PhaseConnectionLost
		c.state.failure = "The connection to the server was lost."
	default:
	}
}

// updateScreen handles terminal resize, clamping to max render resolution.
// On actual size changes, clears the terminal to remove residual pixels
// outside the new canvas area (e.g. old borders or offset content).
func (c *Client) updateScreen() {
	termWidth, termHeight, err := c.termSizeFunc()
	if err != nil {
		return
	}
	renderWidth, renderHeight, offsetCol, offsetRow := draw.FitSize(termWidth, termHeight, config.MaxTermWidth, config.MaxTermHeight)

	if renderWidth != c.canvas.TerminalWidth() || renderHeight != c.canvas.TerminalHeight() ||
		offsetCol != c.canvas.OffsetCol() || offsetRow != c.canvas.OffsetRow() {
		draw.ClearScreen(c.writer)
		c.canvas.ForceRedraw()
	}

	c.canvas.Resize(renderWidth, renderHeight)
	c.canvas.SetOffset(offsetCol, offsetRow)
	c.chunkWriter.SetOffset(offsetCol, offsetRow)
}

// refresh reloads the menu listings in the background. Lists the server
// throttled keep their previous contents.
func (c *Client) refresh() {
	if c.state.loading {
		return
	}
	c.state.loading = true
	ctx := c.root

	go func() {
		l := c.deps.Directory.FetchAll(ctx)
		c.post(ctx, func() {
			c.state.loading = false
			c.state.loadedAt = time.Now()
			c.applyListings(l)
		}, nil)
	}()
}

func (c *Client) applyListings(l directory.Listings) {
	cur := &c.state.listings
	if !errors.Is(l.RoomsErr, directory.ErrThrottled) {
		cur.Rooms, cur.RoomsErr = l.Rooms, l.RoomsErr
	}
	if !errors.Is(l.GamesErr, directory.ErrThrottled) {
		cur.Games, cur.GamesErr = l.Games, l.GamesErr
	}
	if !errors.Is(l.ReplaysErr, directory.ErrThrottled) {
		cur.Replays, cur.ReplaysErr = l.Replays, l.ReplaysErr
	}
	for _, err := range []error{l.RoomsErr, l.GamesErr, l.ReplaysErr} {
		if err != nil && !errors.Is(err, directory.ErrThrottled) {
			c.logger.Warn("listing failed", "err", err)
		}
	}
	if n := c.state.listLen(); c.state.selection >= n {
		c.state.selection = max(0, n-1)
	}
}

// updateMenuState handles menu navigation.
func (c *Client) updateMenuState() {
	in := c.state.Input
	n := c.state.listLen()

	switch {
	case in.Escape || in.Backspace:
		if c.state.Screen != screenMain {
			c.openScreen(screenMain)
		}
	case in.Restart && c.state.Screen >= screenRooms:
		c.refresh()
	case in.NavUp && n > 0:
		c.state.selection = (c.state.selection - 1 + n) % n
	case in.NavDown && n > 0:
		c.state.selection = (c.state.selection + 1) % n
	case in.Number >= 1 && in.Number <= n:
		c.state.selection = in.Number - 1
		c.activate()
	case (in.Enter || in.Space) && n > 0:
		c.activate()
	}
}

func (c *Client) openScreen(screen menuScreen) {
	c.state.Screen = screen
	c.state.selection = 0
	if screen >= screenRooms {
		c.refresh()
	}
}

// activate runs the selected menu entry.
func (c *Client) activate() {
	sel := c.state.selection
	l := c.state.listings

	switch c.state.Screen {
	case screenMain:
		switch action := mainMenu[sel].action; action {
		case actionPlay, actionCreateRoom:
			c.state.afterPick = action
			c.openScreen(screenDifficulty)
			for i, d := range Difficulties {
				if d == c.settings.Difficulty {
					c.state.selection = i
				}
			}
		case actionRooms:
			c.openScreen(screenRooms)
		case actionGames:
			c.openScreen(screenGames)
		case actionReplays:
			c.openScreen(screenReplays)
		case actionQuit:
			c.state.Running = false
		}
	case screenDifficulty:
		if c.state.afterPick == actionCreateRoom {
			c.startLobby("", Difficulties[sel])
		} else {
			c.startPlay(Difficulties[sel])
		}
	case screenRooms:
		if room := l.Rooms[sel]; room.Started {
			c.notify("That match has already started.")
		} else {
			c.startLobby(room.ID, room.Difficulty)
		}
	case screenGames:
		c.startSpectate(l.Games[sel].SessionID)
	case screenReplays:
		c.startReplay(l.Replays[sel].ReplayID)
	}
}

// updateConnectingState lets the user abandon a slow connect or load.
func (c *Client) updateConnectingState() {
	if c.state.Input.Escape {
		c.backToMenu()
		return
	}
	c.checkInitDeadline()
}

// updateActiveState drives the running mode.
func (c *Client) updateActiveState() {
	s := c.sess
	in := c.state.Input
	if in.Escape {
		c.backToMenu()
		return
	}

	switch s.mode {
	case ModePlay:
		for _, a := range c.mapper.Update(in) {
			s.conn.Send(protocol.Input{Action: a})
		}
	case ModeReplay:
		c.updateReplay(s, in)
	case ModeLobby:
		c.updateLobby(s, in)
	}
}

func (c *Client) updateReplay(s *session, in input.Input) {
	p := s.player
	switch {
	case in.Restart:
		c.startReplay(s.target)
		return
	case in.Space || in.Pause:
		p.TogglePause()
	case in.Faster:
		p.Faster()
	case in.Slower:
		p.Slower()
	}
	p.Tick(c.state.delta.Seconds())
}

func (c *Client) updateLobby(s *session, in input.Input) {
	if err := s.room.Check(); err != nil {
		c.fail("Could not join the room", err)
		return
	}
	if in.Space || in.Enter {
		if err := s.room.StartGame(); err != nil {
			c.notify(lobbyMessage(err))
		}
	}
	c.checkInitDeadline()
}

// checkInitDeadline fails a session whose server never sent init.
func (c *Client) checkInitDeadline() {
	s := c.sess
	if s == nil || s.deadline.IsZero() || time.Now().Before(s.deadline) {
		return
	}
	c.fail("The server did not start the session", errNoInit)
}

// updateGameOverState waits for a key after the results were shown long enough.
func (c *Client) updateGameOverState() {
	if time.Since(c.state.gameOverAt) < config.GameOverMinDisplay {
		return
	}
	in := c.state.Input
	switch {
	case in.Restart && c.state.gameOver != nil && c.state.gameOver.ReplayID != "":
		c.startReplay(c.state.gameOver.ReplayID)
	case in.Enter || in.Space || in.Escape:
		c.backToMenu()
	}
}

// updateFailedState returns to the menu on any confirming key.
func (c *Client) updateFailedState() {
	in := c.state.Input
	if in.Enter || in.Space || in.Escape {
		c.backToMenu()
	}
}

// backToMenu ends any session and shows the menu page the user came from.
func (c *Client) backToMenu() {
	c.exitMode()
	c.state.Phase = PhaseMenu
	c.state.failure = ""
	c.state.gameOver = nil
	if n := c.state.listLen(); c.state.selection >= n {
		c.state.selection = 0
	}
	if c.state.Screen >= screenRooms {
		c.refresh()
	}
}

// fail ends the session and shows the failure screen.
func (c *Client) fail(reason string, err error) {
	c.logger.Warn(reason, "mode", c.state.Mode, "err", err)
	c.exitMode()
	c.state.Phase = PhaseFailed
	c.state.failure = reason
	if err != nil {
		c.state.failure += ": " + err.Error()
	}
}

func (c *Client) notify(msg string) {
	c.state.notice = msg
	c.state.noticeAt = time.Now()
}

// logTouchdown records the moment the local craft lands or crashes.
func (c *Client) logTouchdown(newState, oldState state.Snapshot) {
	now, before := newState.Primary(), oldState.Primary()
	if now == nil || before == nil || now.Airborne() == before.Airborne() {
		return
	}
	c.logger.Debug("touchdown", "landed", now.Landed, "crashed", now.Crashed,
		"speed", newState.Speed, "fuel", now.Fuel)
}
