package client

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tomz197/lander/internal/lobby"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
	"github.com/tomz197/lander/internal/render"
	"github.com/tomz197/lander/internal/replay"
)

// ASCII art title (figlet "small" font)
var titleArt = []string{
	`  _      _   _  _ ___  ___ ___ `,
	` | |    /_\ | \| |   \| __| _ \`,
	" | |__ / _ \\| .` | |) | _||   /",
	` |____/_/ \_\_|\_|___/|___|_|_\`,
}

// drawFrame draws the current frame.
func (c *Client) drawFrame() error {
	// On screen or inactivity transitions, do a full terminal clear
	// so UI elements from the previous screen don't persist.
	if view := c.state.view(); view != c.state.prevView {
		c.chunkWriter.Clear()
		c.canvas.ForceRedraw()
		c.state.prevView = view
	}

	if c.showsWorld() {
		snap := c.store.State()
		c.renderer.SetStatus(c.status())
		if err := c.renderer.Render(snap, c.thrusting(snap.Thrusting), c.state.delta.Seconds()); err != nil {
			return err
		}
	} else {
		c.canvas.Clear()
		if err := c.canvas.Render(c.chunkWriter); err != nil {
			return err
		}
		if err := c.canvas.RenderBorder(c.chunkWriter); err != nil {
			return err
		}
	}

	c.drawUI()
	return c.chunkWriter.Flush()
}

// showsWorld reports whether the game world is drawn behind the UI.
func (c *Client) showsWorld() bool {
	return c.state.Phase == PhaseActive && c.state.Mode != ModeLobby && !c.state.isInactive
}

// thrusting combines the server flag with the locally held thrust key so
// exhaust appears without waiting for the next telemetry frame.
func (c *Client) thrusting(server bool) bool {
	if c.state.Mode == ModePlay {
		return server || c.mapper.Thrusting()
	}
	return server
}

// status builds the HUD badge and key hints for the running mode.
func (c *Client) status() render.Status {
	s := c.sess
	st := render.Status{Latency: c.latency.Average()}
	switch c.state.Mode {
	case ModePlay:
		st.Mode = "PLAYING"
		if s != nil && s.multiplayer {
			st.Mode = "MULTIPLAYER"
		}
		st.Paused = c.mapper.Paused()
		st.Hint = "W thrust  A/D rotate  P pause  ESC menu"
	case ModeSpectate:
		st.Mode = "SPECTATING"
		st.Hint = "ESC menu"
	case ModeReplay:
		st.Latency = 0
		if s != nil && s.player != nil {
			p := s.player
			st.Mode = fmt.Sprintf("REPLAY %gx", p.Speed())
			st.Paused = p.Paused()
			st.Hint = p.Progress() + "   SPACE pause  +/- speed  R restart  ESC menu"
		}
	}
	return st
}

// drawUI draws the text layer for the current phase.
func (c *Client) drawUI() {
	centerY := c.canvas.TerminalHeight() / 2

	if c.state.isInactive {
		c.drawInactivityScreen(centerY)
		return
	}

	switch c.state.Phase {
	case PhaseMenu:
		c.drawMenuScreen(centerY)
	case PhaseConnecting:
		c.drawConnectingScreen(centerY)
	case PhaseActive:
		switch {
		case c.state.Mode == ModeLobby:
			c.drawLobbyScreen(centerY)
		case c.state.Mode == ModeReplay && c.sess != nil && c.sess.ended:
			c.drawReplayEnd(centerY)
		}
	case PhaseGameOver:
		c.drawGameOverScreen(centerY)
	case PhaseFailed:
		c.drawFailedScreen(centerY, "SOMETHING WENT WRONG")
	case PhaseConnectionLost:
		c.drawFailedScreen(centerY, "CONNECTION LOST")
	}

	c.drawNotice()
}

// text queues s at a 1-based canvas position and marks the cells so the
// canvas repaints them next frame. Text past the right edge is not drawn.
func (c *Client) text(col, row int, s string) {
	w := lipgloss.Width(s)
	if row < 1 || row > c.canvas.TerminalHeight() || col < 1 || col+w-1 > c.canvas.TerminalWidth() {
		return
	}
	c.chunkWriter.WriteAt(col, row, s)
	c.canvas.MarkTextDirty(col, row, w)
}

// centered draws s horizontally centered on row.
func (c *Client) centered(row int, s string) {
	c.text(c.canvas.TerminalWidth()/2-lipgloss.Width(s)/2+1, row, s)
}

// fit shortens plain text to the canvas width.
func (c *Client) fit(s string) string {
	limit := c.canvas.TerminalWidth() - 4
	r := []rune(s)
	if limit < 4 || len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func blink() bool {
	return time.Now().UnixMilli()/600%2 == 0
}

// drawInactivityScreen draws the inactivity warning screen.
func (c *Client) drawInactivityScreen(centerY int) {
	c.centered(centerY-2, c.styles.Warning.Render(" INACTIVITY WARNING "))

	msg := fmt.Sprintf(
		"You have been inactive for too long. You will be disconnected in %d seconds.",
		int(config.InactivityDisconnectUser-time.Since(c.lastInput).Seconds()),
	)
	c.centered(centerY, c.fit(msg))
	c.centered(centerY+2, c.styles.Muted.Render("Press any key to continue"))
}

// drawMenuScreen draws the title and the current menu page.
func (c *Client) drawMenuScreen(centerY int) {
	s := c.styles
	top := max(1, centerY-11)
	for i, line := range titleArt {
		c.centered(top+i, s.Title.Render(line))
	}
	row := top + len(titleArt) + 1
	c.centered(row, s.Muted.Render(c.fit(fmt.Sprintf("pilot %s  ·  %s", c.settings.PlayerName, c.deps.Endpoints.HTTPBase))))
	row += 2

	switch c.state.Screen {
	case screenMain:
		labels := make([]string, len(mainMenu))
		for i, item := range mainMenu {
			labels[i] = item.label
		}
		c.drawList(row, "", labels)
		c.drawHint("W/S move  ENTER select  Q quit")
	case screenDifficulty:
		title := "DIFFICULTY"
		if c.state.afterPick == actionCreateRoom {
			title = "NEW ROOM DIFFICULTY"
		}
		c.drawList(row, title, Difficulties)
		c.drawHint("W/S move  ENTER start  ESC back")
	case screenRooms:
		c.drawListing(row, "OPEN ROOMS", "rooms", c.state.listings.RoomsErr, roomLines(c.state.listings.Rooms))
		c.drawHint("ENTER join  R refresh  ESC back")
	case screenGames:
		c.drawListing(row, "LIVE GAMES", "games", c.state.listings.GamesErr, gameLines(c.state.listings.Games))
		c.drawHint("ENTER watch  R refresh  ESC back")
	case screenReplays:
		c.drawListing(row, "REPLAYS", "replays", c.state.listings.ReplaysErr, replayLines(c.state.listings.Replays, time.Now()))
		c.drawHint("ENTER play  R refresh  ESC back")
	}
}

// drawListing draws one fetched list, or why there is nothing to show.
func (c *Client) drawListing(row int, title, noun string, err error, lines []string) {
	s := c.styles
	switch {
	case err != nil:
		c.centered(row, s.Label.Render(title))
		c.centered(row+2, s.Danger.Render(fmt.Sprintf("Failed to load %s, press R to try again", noun)))
	case len(lines) == 0 && c.state.loading:
		c.centered(row, s.Label.Render(title))
		c.centered(row+2, s.Muted.Render("Loading..."))
	case len(lines) == 0:
		c.centered(row, s.Label.Render(title))
		c.centered(row+2, s.Muted.Render("Nothing here right now"))
	default:
		c.drawList(row, title, lines)
	}
	if !c.state.loadedAt.IsZero() {
		c.centered(c.canvas.TerminalHeight()-2, s.Muted.Render("updated "+humanize.Time(c.state.loadedAt)))
	}
}

// drawList draws numbered entries with the selection highlighted.
func (c *Client) drawList(row int, title string, lines []string) {
	s := c.styles
	if title != "" {
		c.centered(row, s.Label.Render(title))
		row += 2
	}
	lines = lines[:min(len(lines), config.ListPageSize)]

	width := 0
	for _, line := range lines {
		width = max(width, len([]rune(line))+4)
	}
	col := c.canvas.TerminalWidth()/2 - width/2 + 1
	for i, line := range lines {
		entry := fmt.Sprintf("%d. %s", i+1, line)
		entry += strings.Repeat(" ", max(0, width-len([]rune(entry))))
		if i == c.state.selection {
			c.text(col, row+i, s.Select.Render(c.fit(entry)))
		} else {
			c.text(col, row+i, c.fit(entry))
		}
	}
}

func (c *Client) drawHint(hint string) {
	c.centered(c.canvas.TerminalHeight(), c.styles.Muted.Render(hint))
}

func roomLines(rooms []protocol.Room) []string {
	lines := make([]string, 0, len(rooms))
	for _, r := range rooms {
		name := r.Name
		if name == "" {
			name = shortID(r.ID)
		}
		line := fmt.Sprintf("%-18s %-7s %d/%d players", name, r.Difficulty, r.Players, r.MaxPlayers)
		if r.Started {
			line += "  in progress"
		}
		lines = append(lines, line)
	}
	return lines
}

func gameLines(games []protocol.GameSummary) []string {
	lines := make([]string, 0, len(games))
	for _, g := range games {
		lines = append(lines, fmt.Sprintf("%-9s %-7s %-9s %d watching",
			shortID(g.SessionID), g.Difficulty, replay.FormatDuration(seconds(g.Duration)), g.Spectators))
	}
	return lines
}

func replayLines(replays []protocol.ReplaySummary, now time.Time) []string {
	lines := make([]string, 0, len(replays))
	for _, r := range replays {
		outcome := "ENDED"
		switch {
		case r.Landed:
			outcome = "LANDED"
		case r.Crashed:
			outcome = "CRASHED"
		}
		age := "unknown"
		if r.Timestamp > 0 {
			age = humanize.RelTime(time.Unix(int64(r.Timestamp), 0), now, "ago", "from now")
		}
		lines = append(lines, fmt.Sprintf("%-7s %-7s %-9s %s",
			outcome, r.Difficulty, replay.FormatDuration(seconds(r.Duration)), age))
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// drawConnectingScreen shows what the client is waiting for.
func (c *Client) drawConnectingScreen(centerY int) {
	title := "CONNECTING"
	switch {
	case c.state.Mode == ModeReplay:
		title = "LOADING REPLAY"
	case c.sess != nil && c.sess.conn != nil:
		title = "WAITING FOR THE SERVER"
	}
	dots := strings.Repeat(".", int(time.Now().UnixMilli()/400%4))
	c.centered(centerY-1, c.styles.Title.Render(title)+dots+strings.Repeat(" ", 3-len(dots)))
	if c.sess != nil {
		c.centered(centerY+1, c.styles.Muted.Render(c.fit(c.state.Mode.String()+" "+c.sess.target)))
	}
	c.centered(centerY+3, c.styles.Muted.Render("ESC to cancel"))
}

// drawLobbyScreen draws the room roster while waiting for the match.
func (c *Client) drawLobbyScreen(centerY int) {
	s := c.styles
	room := c.sess.room
	if room == nil {
		return
	}
	top := max(1, centerY-8)

	switch room.Phase() {
	case lobby.PhaseJoining:
		c.centered(top, s.Title.Render("ENTERING ROOM"))
		c.centered(top+2, s.Muted.Render(fmt.Sprintf("waiting for the server (%ds)", int(room.Remaining().Seconds())+1)))
	case lobby.PhaseWaiting, lobby.PhaseStarted:
		c.centered(top, s.Title.Render("ROOM "+shortID(room.RoomID())))
		row := top + 2
		for i, p := range room.Players() {
			line := fmt.Sprintf("%d. %s", i+1, p.Name)
			if p.IsCreator {
				line += "  (host)"
			}
			if p.Name == c.settings.PlayerName {
				line = s.Good.Render(line + "  (you)")
			}
			c.centered(row+i, line)
		}
		row += max(len(room.Players()), 1) + 1

		switch {
		case room.Phase() == lobby.PhaseStarted:
			c.centered(row, s.Caution.Render("Starting..."))
		case room.IsCreator():
			if blink() {
				c.centered(row, ">>  Press SPACE to start  <<")
			}
		default:
			c.centered(row, s.Muted.Render("Waiting for the host to start"))
		}
	}
	c.drawHint("ESC leave room  Q quit")
}

// drawReplayEnd overlays the end-of-replay prompt.
func (c *Client) drawReplayEnd(centerY int) {
	c.centered(centerY-2, c.styles.Badge.Render(" REPLAY FINISHED "))
	c.centered(centerY, c.styles.Muted.Render("R watch again  ESC menu"))
}

// drawGameOverScreen draws the results.
func (c *Client) drawGameOverScreen(centerY int) {
	m := c.state.gameOver
	if m == nil {
		return
	}
	s := c.styles
	top := max(1, centerY-7)

	switch {
	case m.Multiplayer:
		c.centered(top, s.Title.Render("MATCH OVER"))
	case m.Landed:
		c.centered(top, s.Good.Render("THE EAGLE HAS LANDED"))
	case m.Crashed:
		c.centered(top, s.Danger.Render("CRASHED"))
	default:
		c.centered(top, s.Title.Render("GAME OVER"))
	}

	row := top + 2
	if m.Multiplayer {
		for i, line := range resultLines(m.PlayersResults) {
			c.centered(row+i, c.fit(line))
		}
		row += len(m.PlayersResults) + 1
	} else {
		lines := []string{
			fmt.Sprintf("Score  %d", m.Score),
			fmt.Sprintf("Time   %s", replay.FormatDuration(seconds(m.Time))),
			fmt.Sprintf("Fuel   %.0f", m.FuelRemaining),
			fmt.Sprintf("Inputs %d", m.Inputs),
		}
		for i, line := range lines {
			c.centered(row+i, line)
		}
		row += len(lines) + 1
	}

	if time.Since(c.state.gameOverAt) < config.GameOverMinDisplay {
		return
	}
	if m.ReplayID != "" && c.state.gameOverMode != ModeSpectate {
		c.centered(row, s.Muted.Render("Press R to watch the replay"))
	}
	if blink() {
		c.centered(row+2, ">>  Press ENTER for the menu  <<")
	}
}

// resultLines ranks multiplayer results by score.
func resultLines(results []protocol.PlayerResult) []string {
	ranked := slices.Clone(results)
	slices.SortStableFunc(ranked, func(a, b protocol.PlayerResult) int {
		return b.Score - a.Score
	})

	lines := make([]string, 0, len(ranked))
	for i, r := range ranked {
		outcome := "-"
		switch {
		case r.Landed:
			outcome = "landed"
		case r.Crashed:
			outcome = "crashed"
		}
		lines = append(lines, fmt.Sprintf("%-4s %-16s %-7s %5d pts  %s",
			humanize.Ordinal(i+1), r.Name, outcome, r.Score, replay.FormatDuration(seconds(r.Time))))
	}
	return lines
}

// drawFailedScreen explains why the session ended.
func (c *Client) drawFailedScreen(centerY int, title string) {
	c.centered(centerY-2, c.styles.Warning.Render(" "+title+" "))
	c.centered(centerY, c.fit(c.state.failure))
	if blink() {
		c.centered(centerY+2, ">>  Press ENTER for the menu  <<")
	}
}

// drawNotice shows the latest transient message above the fuel bar.
func (c *Client) drawNotice() {
	if c.state.notice == "" || time.Since(c.state.noticeAt) > config.NoticeDuration {
		return
	}
	c.centered(c.canvas.TerminalHeight()-3, c.styles.Caution.Render(c.fit(c.state.notice)))
}
