package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	appconfig "github.com/tomz197/lander/internal/config"
	"github.com/tomz197/lander/internal/directory"
	"github.com/tomz197/lander/internal/input"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/render"
	"github.com/tomz197/lander/internal/transport"
)

type fakeDir struct {
	mu          sync.Mutex
	listings    directory.Listings
	rec         *protocol.Recording
	err         error
	replayCalls int
}

func (d *fakeDir) FetchAll(context.Context) directory.Listings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listings
}

func (d *fakeDir) Replay(context.Context, string) (*protocol.Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replayCalls++
	return d.rec, d.err
}

func (d *fakeDir) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replayCalls
}

type fakeConn struct {
	connect   func(ctx context.Context) error
	afterPoll func() // Runs once a Poll has dispatched its frames
	done      chan struct{}
	closed    atomic.Int32

	mu       sync.Mutex
	sent     []protocol.Outbound
	queue    []protocol.Message
	handlers map[protocol.Kind][]transport.Handler
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{}), handlers: make(map[protocol.Kind][]transport.Handler)}
}

func (f *fakeConn) Connect(ctx context.Context) error {
	if f.connect != nil {
		return f.connect(ctx)
	}
	return nil
}

func (f *fakeConn) Send(msg protocol.Outbound) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeConn) Subscribe(kind protocol.Kind, h transport.Handler) func() {
	f.handlers[kind] = append(f.handlers[kind], h)
	return func() { delete(f.handlers, kind) }
}

func (f *fakeConn) Poll() int {
	f.mu.Lock()
	queue := f.queue
	f.queue = nil
	f.mu.Unlock()

	for _, msg := range queue {
		if f.closed.Load() > 0 {
			break
		}
		for _, h := range f.handlers[msg.Kind()] {
			h(msg)
		}
	}
	if f.afterPoll != nil {
		f.afterPoll()
	}
	return len(queue)
}

func (f *fakeConn) push(msgs ...protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msgs...)
}

func (f *fakeConn) sentMessages() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Outbound(nil), f.sent...)
}

func (f *fakeConn) Done() <-chan struct{} { return f.done }
func (f *fakeConn) Err() error            { return transport.ErrConnectionLost }
func (f *fakeConn) Close()                { f.closed.Add(1) }

var testEndpoints = appconfig.Endpoints{HTTPBase: "http://lander.test", WSBase: "ws://lander.test"}

func newTestClient(t *testing.T, deps Deps) (*Client, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	if deps.Endpoints == (appconfig.Endpoints{}) {
		deps.Endpoints = testEndpoints
	}
	if deps.Directory == nil {
		deps.Directory = &fakeDir{}
	}
	deps.Styles = render.NewStyles(lipgloss.NewRenderer(io.Discard))
	deps.Rand = rand.New(rand.NewSource(1))

	c := NewClient(bufio.NewReader(strings.NewReader("")), &out, deps, ClientOptions{
		TermSizeFunc: func() (int, int, error) { return 100, 30, nil },
		Settings: appconfig.Config{
			PlayerName: "ace",
			Difficulty: "medium",
		},
	})
	t.Cleanup(c.exitMode)
	return c, &out
}

func dialTo(conn Conn, urls *[]string) DialFunc {
	return func(url string) Conn {
		if urls != nil {
			*urls = append(*urls, url)
		}
		return conn
	}
}

func press(mod func(in *input.Input)) input.Input {
	in := input.Input{Number: -1, Pressed: []byte{0}}
	mod(&in)
	return in
}

var idle = input.Input{Number: -1}

const frame = 16 * time.Millisecond

func stepUntil(t *testing.T, c *Client, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s (phase %v)", what, c.state.Phase)
		}
		c.step(idle, frame)
		time.Sleep(time.Millisecond)
	}
}

func TestConnectFailureShowsFailureThenMenu(t *testing.T) {
	conn := newFakeConn()
	conn.connect = func(context.Context) error { return transport.ErrRetriesExhausted }
	c, out := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startPlay("simple")
	if c.state.Phase != PhaseConnecting || c.state.Mode != ModePlay {
		t.Fatalf("phase=%v mode=%v", c.state.Phase, c.state.Mode)
	}
	sess := c.sess

	stepUntil(t, c, "failure", func() bool { return c.state.Phase == PhaseFailed })
	if sess.ctx.Err() == nil || c.sess != nil {
		t.Fatalf("session still running after failure")
	}
	if conn.closed.Load() != 1 {
		t.Fatalf("conn closed %d times", conn.closed.Load())
	}

	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(out.String(), "Could not connect") {
		t.Fatalf("failure screen missing reason")
	}

	c.step(press(func(in *input.Input) { in.Enter = true }), frame)
	if c.state.Phase != PhaseMenu || c.state.Mode != ModeNone {
		t.Fatalf("phase=%v mode=%v after enter", c.state.Phase, c.state.Mode)
	}
}

func TestEscapeWhileConnectingCancelsSession(t *testing.T) {
	conn := newFakeConn()
	conn.connect = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	var urls []string
	c, _ := newTestClient(t, Deps{Dial: dialTo(conn, &urls)})

	c.startSpectate("abc")
	sess := c.sess
	c.step(press(func(in *input.Input) { in.Escape = true }), frame)

	if c.state.Phase != PhaseMenu || sess.ctx.Err() == nil {
		t.Fatalf("escape did not cancel: phase=%v ctx=%v", c.state.Phase, sess.ctx.Err())
	}
	stepUntil(t, c, "abandoned socket to close", func() bool { return conn.closed.Load() == 1 })

	if len(urls) != 1 || urls[0] != "ws://lander.test/spectate/abc" {
		t.Fatalf("dialed %v", urls)
	}
	if len(conn.sentMessages()) != 0 {
		t.Fatalf("spectator sent %v", conn.sentMessages())
	}
}

func TestPlaySendsStartAndControlTransitions(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startPlay("hard")
	stepUntil(t, c, "connect", func() bool { return c.sess != nil && c.sess.conn != nil })

	sent := conn.sentMessages()
	if start, ok := sent[0].(protocol.Start); !ok || start.Difficulty != "hard" {
		t.Fatalf("first message %#v", sent[0])
	}

	conn.push(&protocol.Init{
		Terrain: &protocol.Terrain{Points: []protocol.Point{{X: 0, Y: 700}, {X: 1200, Y: 700}}},
		Lander:  &protocol.Lander{X: 600, Y: 100, Fuel: 1000},
	})
	c.step(idle, frame)
	if c.state.Phase != PhaseActive {
		t.Fatalf("init did not activate: %v", c.state.Phase)
	}

	c.step(input.Input{Number: -1, Up: true}, frame)
	c.step(input.Input{Number: -1, Up: true}, frame)
	c.step(idle, frame)

	var actions []protocol.Action
	for _, msg := range conn.sentMessages()[1:] {
		actions = append(actions, msg.(protocol.Input).Action)
	}
	if len(actions) != 2 || actions[0] != protocol.ActionThrustOn || actions[1] != protocol.ActionThrustOff {
		t.Fatalf("actions = %v", actions)
	}
}

func TestDroppedConnectionShowsConnectionLost(t *testing.T) {
	conn := newFakeConn()
	c, out := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startSpectate("abc")
	stepUntil(t, c, "connect", func() bool { return c.sess != nil && c.sess.conn != nil })
	conn.push(&protocol.Init{Terrain: &protocol.Terrain{}, Lander: &protocol.Lander{}})
	c.step(idle, frame)

	close(conn.done)
	c.step(idle, frame)
	if c.state.Phase != PhaseConnectionLost || conn.closed.Load() != 1 {
		t.Fatalf("phase=%v closed=%d", c.state.Phase, conn.closed.Load())
	}

	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(out.String(), "CONNECTION LOST") {
		t.Fatalf("connection lost screen not drawn")
	}
}

func TestGameOverJustBeforeDropIsNotLost(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startPlay("simple")
	stepUntil(t, c, "connect", func() bool { return c.sess != nil && c.sess.conn != nil })
	conn.push(&protocol.Init{Terrain: &protocol.Terrain{}, Lander: &protocol.Lander{}})
	c.step(idle, frame)

	// The final frame lands and the server hangs up between Poll and the
	// drop check of the same step.
	var once sync.Once
	conn.afterPoll = func() {
		once.Do(func() {
			conn.push(&protocol.GameOver{Landed: true, Score: 80})
			close(conn.done)
		})
	}
	c.step(idle, frame)

	if c.state.Phase != PhaseGameOver || c.state.gameOver == nil || c.state.gameOver.Score != 80 {
		t.Fatalf("phase=%v gameOver=%+v", c.state.Phase, c.state.gameOver)
	}
}

func TestMissingInitFailsSession(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startPlay("simple")
	stepUntil(t, c, "connect", func() bool { return c.sess != nil && c.sess.conn != nil })

	c.sess.deadline = time.Now().Add(-time.Second)
	c.step(idle, frame)
	if c.state.Phase != PhaseFailed || !strings.Contains(c.state.failure, errNoInit.Error()) {
		t.Fatalf("phase=%v failure=%q", c.state.Phase, c.state.failure)
	}
}

func TestReplayPlaybackAndRestart(t *testing.T) {
	rec := &protocol.Recording{Metadata: protocol.ReplayMetadata{Terrain: &protocol.Terrain{}}}
	for i := range 3 {
		rec.Frames = append(rec.Frames, protocol.ReplayFrame{Lander: protocol.Lander{X: float64(i)}})
	}
	dir := &fakeDir{rec: rec}
	c, out := newTestClient(t, Deps{Directory: dir})

	c.startReplay("r1")
	stepUntil(t, c, "replay", func() bool { return c.state.Phase == PhaseActive })
	if l := c.store.State().Lander; l == nil || l.X != 0 {
		t.Fatalf("first frame not shown: %+v", l)
	}

	c.step(press(func(in *input.Input) { in.Faster = true }), 0)
	if c.sess.player.Speed() != 2 {
		t.Fatalf("speed = %v", c.sess.player.Speed())
	}

	c.step(idle, time.Second)
	if !c.sess.ended || c.store.State().Lander.X != 2 {
		t.Fatalf("replay did not finish: ended=%v", c.sess.ended)
	}
	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(out.String(), "REPLAY FINISHED") {
		t.Fatalf("end prompt not drawn")
	}

	c.step(press(func(in *input.Input) { in.Restart = true }), frame)
	stepUntil(t, c, "restart", func() bool { return c.state.Phase == PhaseActive })
	if dir.calls() != 2 || c.sess.ended || c.sess.player.Index() != 1 {
		t.Fatalf("restart: calls=%d ended=%v index=%d", dir.calls(), c.sess.ended, c.sess.player.Index())
	}
}

func TestReplayFetchFailure(t *testing.T) {
	dir := &fakeDir{err: directory.ErrNotFound}
	c, _ := newTestClient(t, Deps{Directory: dir})

	c.startReplay("gone")
	stepUntil(t, c, "failure", func() bool { return c.state.Phase == PhaseFailed })
	if !strings.Contains(c.state.failure, "not found") {
		t.Fatalf("failure = %q", c.state.failure)
	}
}

func TestLobbyJoinThenMatch(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestClient(t, Deps{Dial: dialTo(conn, nil)})

	c.startLobby("r1", "medium")
	stepUntil(t, c, "lobby", func() bool { return c.state.Phase == PhaseActive })
	if join, ok := conn.sentMessages()[0].(protocol.JoinRoom); !ok || join.RoomID != "r1" || join.PlayerName != "ace" {
		t.Fatalf("join message %#v", conn.sentMessages()[0])
	}

	conn.push(&protocol.RoomJoined{}, &protocol.PlayerList{Players: []protocol.PlayerInfo{
		{Name: "bob", IsCreator: true},
		{Name: "ace"},
	}})
	c.step(idle, frame)
	c.step(press(func(in *input.Input) { in.Space = true }), frame)
	if !strings.Contains(c.state.notice, "host") {
		t.Fatalf("notice = %q", c.state.notice)
	}

	conn.push(&protocol.GameStarted{}, &protocol.Init{
		Terrain:  &protocol.Terrain{},
		Players:  map[string]protocol.PlayerLander{"p1": {Name: "bob"}, "p2": {Name: "ace"}},
		PlayerID: "p2",
	})
	c.step(idle, frame)
	if c.state.Mode != ModePlay || c.state.Phase != PhaseActive {
		t.Fatalf("mode=%v phase=%v", c.state.Mode, c.state.Phase)
	}
	if st := c.status(); st.Mode != "MULTIPLAYER" {
		t.Fatalf("badge = %q", st.Mode)
	}
}

func TestMenuListsShowFailuresPerSection(t *testing.T) {
	dir := &fakeDir{listings: directory.Listings{
		GamesErr: errors.New("boom"),
		Replays: []protocol.ReplaySummary{
			{ReplayID: "x", Difficulty: "hard", Duration: 65, Landed: true, Timestamp: float64(time.Now().Add(-3 * time.Minute).Unix())},
		},
	}}
	c, out := newTestClient(t, Deps{Directory: dir})

	c.step(press(func(in *input.Input) { in.Number = 4 }), frame)
	if c.state.Screen != screenGames {
		t.Fatalf("screen = %v", c.state.Screen)
	}
	stepUntil(t, c, "listings", func() bool { return !c.state.loading })
	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(out.String(), "Failed to load games, press R to try again") {
		t.Fatalf("games failure not shown")
	}

	c.step(press(func(in *input.Input) { in.Escape = true }), frame)
	c.step(press(func(in *input.Input) { in.Number = 5 }), frame)
	stepUntil(t, c, "listings", func() bool { return !c.state.loading })
	out.Reset()
	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	for _, want := range []string{"LANDED", "1 m 5 s", "3 minutes ago"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("replay list missing %q", want)
		}
	}
}

func TestThrottledRefreshKeepsPreviousListing(t *testing.T) {
	c, _ := newTestClient(t, Deps{})
	c.applyListings(directory.Listings{Games: []protocol.GameSummary{{SessionID: "s1"}}})
	c.applyListings(directory.Listings{GamesErr: directory.ErrThrottled, RoomsErr: directory.ErrNotFound})

	if len(c.state.listings.Games) != 1 || c.state.listings.GamesErr != nil {
		t.Fatalf("throttled refresh replaced games: %+v", c.state.listings)
	}
	if c.state.listings.RoomsErr == nil {
		t.Fatalf("real failure dropped")
	}
}

func TestResultLinesRankByScore(t *testing.T) {
	lines := resultLines([]protocol.PlayerResult{
		{Name: "bob", Score: 10, Crashed: true},
		{Name: "ace", Score: 90, Landed: true, Time: 65},
	})
	if !strings.HasPrefix(lines[0], "1st  ace") || !strings.Contains(lines[0], "1 m 5 s") {
		t.Fatalf("first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2nd  bob") {
		t.Fatalf("second line %q", lines[1])
	}
}

func TestPlaySessionOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	starts := make(chan map[string]any, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start map[string]any
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		starts <- start

		for _, msg := range []string{
			`{"type":"init","terrain":{"points":[[0,700],[1200,700]],"landing_zones":[{"x1":500,"x2":600,"y":700,"multiplier":2}]},"lander":{"x":550,"y":100,"fuel":1000}}`,
			`{"type":"telemetry","lander":{"x":560,"y":690,"fuel":400,"landed":true},"altitude":0,"speed":1.5}`,
			`{"type":"game_over","landed":true,"score":120,"time":42,"fuel_remaining":400,"replay_id":"rp1"}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	endpoints, err := appconfig.NewEndpoints(srv.URL)
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	c, out := newTestClient(t, Deps{Endpoints: endpoints})

	c.startPlay("medium")
	stepUntil(t, c, "game over", func() bool { return c.state.Phase == PhaseGameOver })

	start := <-starts
	if start["type"] != "start" || start["difficulty"] != "medium" {
		raw, _ := json.Marshal(start)
		t.Fatalf("start message %s", raw)
	}
	if g := c.state.gameOver; g.Score != 120 || g.ReplayID != "rp1" {
		t.Fatalf("game over %+v", g)
	}
	if l := c.store.State().Lander; l == nil || l.X != 560 || !l.Landed {
		t.Fatalf("telemetry not merged: %+v", l)
	}

	c.step(press(func(in *input.Input) { in.Enter = true }), frame)
	if c.state.Phase != PhaseGameOver {
		t.Fatalf("results skipped before minimum display time")
	}
	c.state.gameOverAt = time.Now().Add(-time.Minute)
	if err := c.drawFrame(); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !strings.Contains(out.String(), "THE EAGLE HAS LANDED") {
		t.Fatalf("results screen not drawn")
	}
	c.step(press(func(in *input.Input) { in.Enter = true }), frame)
	if c.state.Phase != PhaseMenu {
		t.Fatalf("phase = %v", c.state.Phase)
	}
}
