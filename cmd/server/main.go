// Command server runs the Pimify lifecycle API: transitions, campaigns, audit,
// reviewers and edit sessions behind one HTTP listener.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("pimify exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("pimify starting", "version", cfg.Version, "addr", cfg.Server.Addr(), "env", cfg.Env())

	srv, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutdown requested", "timeout", cfg.ShutdownTimeoutDuration())

	if err := srv.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	logger.Info("pimify stopped")
	return nil
}
