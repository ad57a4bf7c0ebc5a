// Package input turns raw terminal bytes into per-frame key state.
package input

import (
	"bufio"
	"time"
)

// Terminals report no key releases, only repeated presses. A control key is
// considered held for initialRepeatDelay after its first press (covering the
// keyboard's autorepeat delay), then for repeatHold after each repeat.
const (
	initialRepeatDelay = 550 * time.Millisecond
	repeatHold         = 120 * time.Millisecond
)

// Input represents the current frame's input state.
// Up, Left and Right are held controls; every other field reports presses
// seen during this frame only.
type Input struct {
	Up    bool
	Left  bool
	Right bool

	Quit      bool
	NavUp     bool
	NavDown   bool
	Space     bool
	Enter     bool
	Backspace bool
	Escape    bool
	Pause     bool
	Restart   bool
	Faster    bool
	Slower    bool
	Number    int    // Digit pressed this frame, or -1
	Text      []rune // Printable characters typed this frame
	Pressed   []byte
	Closed    bool // The input source ended (e.g. SSH session closed)
}

// heldKey tracks autorepeat for one control.
type heldKey struct {
	last      time.Time
	repeating bool
}

func (h *heldKey) press(now time.Time) {
	h.repeating = !h.last.IsZero() && now.Sub(h.last) < initialRepeatDelay
	h.last = now
}

func (h *heldKey) release() {
	*h = heldKey{}
}

func (h *heldKey) down(now time.Time) bool {
	if h.last.IsZero() {
		return false
	}
	hold := initialRepeatDelay
	if h.repeating {
		hold = repeatHold
	}
	return now.Sub(h.last) < hold
}

// keyState tracks held controls across frames.
type keyState struct {
	up    heldKey
	left  heldKey
	right heldKey
}

// Stream delivers input bytes via a channel and tracks key state across frames.
type Stream struct {
	ch     chan byte
	state  keyState
	closed bool
}

func newStream() *Stream {
	return &Stream{ch: make(chan byte, 128)}
}

// StartStream spawns a goroutine that reads from r and sends bytes to the stream.
func StartStream(r *bufio.Reader) *Stream {
	s := newStream()
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(s.ch)
				return
			}
			s.ch <- b
		}
	}()
	return s
}

// ReadInput drains all available bytes from the stream (non-blocking).
func ReadInput(s *Stream) Input {
	return readInputAt(s, time.Now())
}

// Reset forgets held controls, e.g. when a new session starts.
func Reset(s *Stream) {
	s.state = keyState{}
}

func readInputAt(s *Stream, now time.Time) Input {
	var buf []byte

drain:
	for {
		select {
		case b, ok := <-s.ch:
			if !ok {
				s.closed = true
				break drain
			}
			buf = append(buf, b)
		default:
			break drain
		}
	}

	in := Input{Number: -1, Pressed: buf, Closed: s.closed}

	for i := 0; i < len(buf); i++ {
		b := buf[i]

		// CSI sequence: ESC [ <code>
		if b == '\x1b' && i+2 < len(buf) && buf[i+1] == '[' {
			switch buf[i+2] {
			case 'A':
				s.state.up.press(now)
				in.NavUp = true
			case 'B':
				in.NavDown = true
			case 'C':
				s.state.right.press(now)
				s.state.left.release()
			case 'D':
				s.state.left.press(now)
				s.state.right.release()
			}
			i += 2
			continue
		}

		applyByte(&s.state, &in, b, now)
	}

	in.Up = s.state.up.down(now)
	in.Left = s.state.left.down(now)
	in.Right = s.state.right.down(now)
	return in
}

// applyByte records one single-byte key press.
func applyByte(state *keyState, in *Input, b byte, now time.Time) {
	switch b {
	case 'q', 'Q', 0x03: // Ctrl-C arrives as a byte in raw mode
		in.Quit = true
	case 'a', 'A', 'j', 'J':
		state.left.press(now)
		state.right.release()
	case 'd', 'D', 'l', 'L':
		state.right.press(now)
		state.left.release()
	case 'w', 'W', 'i', 'I':
		state.up.press(now)
		in.NavUp = true
	case 's', 'S', 'k', 'K':
		in.NavDown = true
	case 'p', 'P':
		in.Pause = true
	case 'r', 'R':
		in.Restart = true
	case '+', '=':
		in.Faster = true
	case '-', '_':
		in.Slower = true
	case ' ':
		in.Space = true
	case '\n', '\r':
		in.Enter = true
	case '\b', '\x7f':
		in.Backspace = true
	case '\x1b':
		in.Escape = true
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		in.Number = int(b - '0')
	}
	if b >= 0x20 && b < 0x7f {
		in.Text = append(in.Text, rune(b))
	}
}
