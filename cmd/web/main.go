package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/polematch/internal/config"
	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/web"
)

func main() {
	// Load environment configuration
	if err := config.LoadEnv(); err != nil {
		slog.Warn("no .env loaded", slog.Any("error", err))
	}

	webConfig := web.ConfigFromEnv()
	debug.Setup(os.Stderr, webConfig.Debug)

	rules, err := config.LoadRules(config.GetEnv(config.EnvPrefix+"RULES", ""))
	if err != nil {
		slog.Error("failed to load rules", slog.Any("error", err))
		os.Exit(1)
	}

	eng, err := engine.New(rules, webConfig.Debug)
	if err != nil {
		slog.Error("failed to build engine", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("polematch web",
		slog.String("host", webConfig.Server.Host),
		slog.Int("port", webConfig.Server.Port),
		slog.Bool("audit", webConfig.Database.Enabled))

	if err := web.Run(ctx, webConfig, eng); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
