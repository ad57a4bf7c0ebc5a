package main

import (
	"strings"
	"testing"
)

func TestSSHEnvironLastValueWins(t *testing.T) {
	env := sshEnviron{"TERM=vt100", "COLORTERM=truecolor", "TERM=xterm-256color"}
	if got := env.Getenv("TERM"); got != "xterm-256color" {
		t.Fatalf("expected last TERM, got %q", got)
	}
	if got := env.Getenv("COLOR"); got != "" {
		t.Fatalf("expected no match on a key prefix, got %q", got)
	}
}

func TestPlayerName(t *testing.T) {
	if got := playerName("maria"); got != "maria" {
		t.Fatalf("expected ssh user as name, got %q", got)
	}
	for _, user := range []string{"", "root", " guest "} {
		if got := playerName(user); !strings.HasPrefix(got, "pilot-") {
			t.Fatalf("expected generated name for %q, got %q", user, got)
		}
	}
}

func TestSizeTracker(t *testing.T) {
	s := newSizeTracker(80, 24)
	s.update(120, 40)
	w, h, err := s.getSize()
	if err != nil || w != 120 || h != 40 {
		t.Fatalf("expected 120x40, got %dx%d (%v)", w, h, err)
	}
}
