package input

import (
	"bufio"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tomz197/lander/internal/protocol"
)

func feed(s *Stream, data string) {
	for i := 0; i < len(data); i++ {
		s.ch <- data[i]
	}
}

func TestReadInputParsesKeys(t *testing.T) {
	s := newStream()
	now := time.Now()

	feed(s, "\x1b[A\x1b[D7p+x\r")
	in := readInputAt(s, now)

	if !in.Up || !in.Left || in.Right {
		t.Fatalf("held controls: up=%v left=%v right=%v", in.Up, in.Left, in.Right)
	}
	if !in.NavUp || in.Number != 7 || !in.Pause || !in.Faster || !in.Enter {
		t.Fatalf("unexpected frame keys: %+v", in)
	}
	if in.Escape {
		t.Fatalf("arrow sequence reported as escape")
	}
	if string(in.Text) != "7p+x" {
		t.Fatalf("text = %q", string(in.Text))
	}

	feed(s, "\x1b")
	if in := readInputAt(s, now); !in.Escape {
		t.Fatalf("lone escape not reported")
	}
}

func TestHeldControlsExpire(t *testing.T) {
	s := newStream()
	start := time.Now()

	feed(s, "w")
	if in := readInputAt(s, start); !in.Up {
		t.Fatalf("thrust not held after press")
	}
	// Still held during the initial autorepeat delay.
	if in := readInputAt(s, start.Add(400*time.Millisecond)); !in.Up {
		t.Fatalf("thrust released before autorepeat started")
	}

	// Autorepeat shortens the hold.
	feed(s, "w")
	repeat := start.Add(450 * time.Millisecond)
	readInputAt(s, repeat)
	if in := readInputAt(s, repeat.Add(100*time.Millisecond)); !in.Up {
		t.Fatalf("thrust released between repeats")
	}
	if in := readInputAt(s, repeat.Add(200*time.Millisecond)); in.Up {
		t.Fatalf("thrust still held after repeats stopped")
	}
}

func TestOppositeRotationReleasesOther(t *testing.T) {
	s := newStream()
	now := time.Now()
	feed(s, "a")
	readInputAt(s, now)
	feed(s, "d")
	in := readInputAt(s, now.Add(10*time.Millisecond))
	if in.Left || !in.Right {
		t.Fatalf("left=%v right=%v", in.Left, in.Right)
	}
}

func TestClosedStream(t *testing.T) {
	s := StartStream(bufio.NewReader(strings.NewReader("")))
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if in := ReadInput(s); in.Closed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("closed input never reported")
}

func TestMapperTransitions(t *testing.T) {
	var m Mapper

	tests := []struct {
		in   Input
		want []protocol.Action
	}{
		{Input{Up: true}, []protocol.Action{protocol.ActionThrustOn}},
		{Input{Up: true}, nil},
		{Input{Up: true, Left: true}, []protocol.Action{protocol.ActionRotateLeft}},
		{Input{Up: false, Right: true}, []protocol.Action{protocol.ActionThrustOff, protocol.ActionRotateRight}},
		{Input{Left: true, Right: true}, []protocol.Action{protocol.ActionRotateStop}},
		{Input{}, nil},
	}
	for i, tt := range tests {
		if got := m.Update(tt.in); !slices.Equal(got, tt.want) {
			t.Fatalf("step %d: got %v, want %v", i, got, tt.want)
		}
	}
}

func TestMapperPauseSuppressesCommands(t *testing.T) {
	var m Mapper
	m.Update(Input{Up: true, Left: true})

	got := m.Update(Input{Up: true, Left: true, Pause: true})
	want := []protocol.Action{protocol.ActionThrustOff, protocol.ActionRotateStop}
	if !slices.Equal(got, want) || !m.Paused() {
		t.Fatalf("pause: got %v paused=%v", got, m.Paused())
	}

	if got := m.Update(Input{Up: true, Right: true}); got != nil {
		t.Fatalf("commands emitted while paused: %v", got)
	}

	got = m.Update(Input{Up: true, Pause: true})
	if !slices.Equal(got, []protocol.Action{protocol.ActionThrustOn}) || m.Paused() {
		t.Fatalf("resume: got %v paused=%v", got, m.Paused())
	}
}
