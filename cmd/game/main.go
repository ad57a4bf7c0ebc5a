package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/tomz197/lander/internal/config"
	"github.com/tomz197/lander/internal/draw"
	"github.com/tomz197/lander/internal/loop/client"
	"github.com/tomz197/lander/internal/render"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lander: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	endpoints, err := config.NewEndpoints(cfg.Origin)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// Color detection has to happen before the terminal goes raw.
	styles := render.NewStyles(lipgloss.NewRenderer(os.Stdout))

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enable raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	draw.EnterAltScreen(os.Stdout)
	defer draw.ExitAltScreen(os.Stdout)

	logger.Info("starting", "origin", cfg.Origin, "player", cfg.PlayerName)
	c := client.NewClient(bufio.NewReader(os.Stdin), os.Stdout, client.Deps{
		Endpoints: endpoints,
		Logger:    logger,
		Styles:    styles,
	}, client.ClientOptions{Settings: cfg})
	if err := c.Run(ctx); err != nil {
		logger.Error("game error", "err", err)
		return fmt.Errorf("game error: %w", err)
	}
	return nil
}

// newLogger logs to LANDER_LOG_FILE, or nowhere: the terminal belongs to the game.
func newLogger(cfg config.Config) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "lander",
	}), closeFn, nil
}
