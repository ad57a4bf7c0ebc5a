package client

import (
	"time"

	"github.com/tomz197/lander/internal/directory"
	"github.com/tomz197/lander/internal/input"
	"github.com/tomz197/lander/internal/loop/config"
	"github.com/tomz197/lander/internal/protocol"
)

// Phase is where the client is between the menu and a running session.
type Phase int

const (
	PhaseMenu           Phase = iota // Idle: menus and listings
	PhaseConnecting                  // Waiting for a socket, a recording or the first init frame
	PhaseActive                      // A mode is running
	PhaseGameOver                    // Results screen, idle-equivalent
	PhaseFailed                      // Fetch or connect failure, idle-equivalent
	PhaseConnectionLost              // An established session dropped
)

func (p Phase) String() string {
	switch p {
	case PhaseMenu:
		return "menu"
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseGameOver:
		return "gameover"
	case PhaseFailed:
		return "failed"
	case PhaseConnectionLost:
		return "connection-lost"
	}
	return "unknown"
}

// Mode is the kind of session running in PhaseConnecting or PhaseActive.
type Mode int

const (
	ModeNone Mode = iota
	ModePlay
	ModeSpectate
	ModeReplay
	ModeLobby
)

func (m Mode) String() string {
	switch m {
	case ModePlay:
		return "play"
	case ModeSpectate:
		return "spectate"
	case ModeReplay:
		return "replay"
	case ModeLobby:
		return "lobby"
	}
	return "none"
}

// menuScreen is the page shown in PhaseMenu.
type menuScreen int

const (
	screenMain menuScreen = iota
	screenDifficulty
	screenRooms
	screenGames
	screenReplays
)

type menuAction int

const (
	actionPlay menuAction = iota
	actionCreateRoom
	actionRooms
	actionGames
	actionReplays
	actionQuit
)

type menuItem struct {
	label  string
	action menuAction
}

var mainMenu = []menuItem{
	{"Play", actionPlay},
	{"Create multiplayer room", actionCreateRoom},
	{"Join multiplayer room", actionRooms},
	{"Spectate a live game", actionGames},
	{"Watch a replay", actionReplays},
	{"Quit", actionQuit},
}

// Difficulties offered by the difficulty picker.
var Difficulties = []string{"simple", "medium", "hard"}

// ClientState holds the per-connection UI state. The game world itself lives
// in the state store.
type ClientState struct {
	Input  input.Input
	Phase  Phase
	Mode   Mode
	Screen menuScreen

	Running bool
	delta   time.Duration

	prevView  viewKey // Last drawn screen, a change forces a full clear
	selection int
	afterPick menuAction // What the difficulty picker starts

	listings directory.Listings
	loading  bool
	loadedAt time.Time

	gameOver     *protocol.GameOver
	gameOverAt   time.Time
	gameOverMode Mode
	failure      string
	notice       string
	noticeAt     time.Time

	isInactive bool
}

// viewKey identifies what is on screen for full-clear decisions.
type viewKey struct {
	phase    Phase
	mode     Mode
	screen   menuScreen
	inactive bool
}

// NewClientState creates a new initialized client state.
func NewClientState() *ClientState {
	return &ClientState{
		Phase:   PhaseMenu,
		Running: true,
		Input:   input.Input{Number: -1},
		// Forces a clear on the first frame.
		prevView: viewKey{phase: -1},
	}
}

func (s *ClientState) view() viewKey {
	return viewKey{phase: s.Phase, mode: s.Mode, screen: s.Screen, inactive: s.isInactive}
}

// listLen returns the number of selectable entries on the current menu screen.
func (s *ClientState) listLen() int {
	switch s.Screen {
	case screenMain:
		return len(mainMenu)
	case screenDifficulty:
		return len(Difficulties)
	case screenRooms:
		return min(len(s.listings.Rooms), config.ListPageSize)
	case screenGames:
		return min(len(s.listings.Games), config.ListPageSize)
	case screenReplays:
		return min(len(s.listings.Replays), config.ListPageSize)
	}
	return 0
}
