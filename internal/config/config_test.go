package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewEndpoints(t *testing.T) {
	tests := []struct {
		origin   string
		httpBase string
		wsBase   string
	}{
		{"http://localhost:8000", "http://localhost:8000", "ws://localhost:8000"},
		{"https://lander.example.com/play/index.html", "https://lander.example.com", "wss://lander.example.com"},
		{"localhost:9000", "http://localhost:9000", "ws://localhost:9000"},
		{"wss://game.example.com", "https://game.example.com", "wss://game.example.com"},
	}

	for _, tt := range tests {
		e, err := NewEndpoints(tt.origin)
		if err != nil {
			t.Fatalf("%s: %v", tt.origin, err)
		}
		if e.HTTPBase != tt.httpBase || e.WSBase != tt.wsBase {
			t.Fatalf("%s: got %+v", tt.origin, e)
		}
	}
}

func TestNewEndpointsRejectsBadScheme(t *testing.T) {
	if _, err := NewEndpoints("ftp://host"); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}

func TestEndpointURLs(t *testing.T) {
	e, _ := NewEndpoints("http://h:1")
	if got := e.PlayURL(); got != "ws://h:1/ws" {
		t.Fatalf("PlayURL = %s", got)
	}
	if got := e.SpectateURL("a b"); got != "ws://h:1/spectate/a%20b" {
		t.Fatalf("SpectateURL = %s", got)
	}
	if got := e.HTTP("/games"); got != "http://h:1/games" {
		t.Fatalf("HTTP = %s", got)
	}
}

func TestLoadDevOverrideAndDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("LANDER_DIFFICULTY=hard\nLANDER_UPDATE_RATE=60\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LANDER_ORIGIN", "https://remote.example.com")
	t.Setenv("LANDER_DEV", "true")
	t.Setenv("LANDER_PLAYER_NAME", "")
	// godotenv never overrides variables that are already set.
	t.Setenv("LANDER_DIFFICULTY", "")
	os.Unsetenv("LANDER_DIFFICULTY")
	t.Setenv("LANDER_UPDATE_RATE", "")
	os.Unsetenv("LANDER_UPDATE_RATE")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Origin != DevOrigin {
		t.Fatalf("dev override ignored: %s", cfg.Origin)
	}
	if cfg.Difficulty != "hard" || cfg.UpdateRate != 60 {
		t.Fatalf(".env values not applied: %+v", cfg)
	}
	if !strings.HasPrefix(cfg.PlayerName, "pilot-") {
		t.Fatalf("expected generated player name, got %q", cfg.PlayerName)
	}
}

func TestLoadMissingDotenvIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
