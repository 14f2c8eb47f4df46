// Command server runs the night-owls shift coordination service.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/app"
	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
)

// Exit codes: 0 clean shutdown, 1 startup failure, 2 irrecoverable runtime error.
const (
	exitOK      = 0
	exitStartup = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := logging.WithComponent("main")
		logger.Error().Err(err).
			Str("event", "config.load_failed").
			Msg("failed to load configuration")
		return exitStartup
	}

	var out io.Writer = os.Stdout
	if cfg.LogFormat == "text" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logging.Configure(logging.Config{
		Level:   cfg.LogLevel,
		Output:  out,
		Service: "night-owls",
	})
	logger := logging.WithComponent("main")

	a, err := app.New(cfg)
	if err != nil {
		logger.Error().Err(err).
			Str("event", "startup.failed").
			Msg("startup failed")
		return exitStartup
	}

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).
			Str("event", "runtime.failed").
			Msg("service failed")
		return exitRuntime
	}
	return exitOK
}
