// Package config provides shared configuration utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// DevOrigin is the game server address used during local development.
const DevOrigin = "http://localhost:8000"

// Config is the resolved client configuration.
type Config struct {
	Origin        string // Game server origin, e.g. https://lander.example.com
	Difficulty    string
	PlayerName    string
	UpdateRate    int
	TelemetryMode string
	Token         string
	LogFile       string
	LogLevel      string
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt is GetEnv for integer values. Unparseable values yield fallback.
func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// Load reads an optional .env file (existing variables win) and resolves the
// client configuration from the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Origin:        GetEnv("LANDER_ORIGIN", DevOrigin),
		Difficulty:    GetEnv("LANDER_DIFFICULTY", "simple"),
		PlayerName:    GetEnv("LANDER_PLAYER_NAME", ""),
		UpdateRate:    GetEnvInt("LANDER_UPDATE_RATE", 30),
		TelemetryMode: GetEnv("LANDER_TELEMETRY_MODE", "standard"),
		Token:         GetEnv("LANDER_TOKEN", ""),
		LogFile:       GetEnv("LANDER_LOG_FILE", ""),
		LogLevel:      GetEnv("LANDER_LOG_LEVEL", "info"),
	}
	if dev, _ := strconv.ParseBool(GetEnv("LANDER_DEV", "false")); dev {
		cfg.Origin = DevOrigin
	}
	if cfg.PlayerName == "" {
		cfg.PlayerName = DefaultPlayerName()
	}
	return cfg, nil
}

// DefaultPlayerName returns a random name for players who did not pick one.
func DefaultPlayerName() string {
	return "pilot-" + uuid.NewString()[:6]
}
