package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coldwatch/config"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

// Run starts the full service and blocks until SIGINT/SIGTERM.
func Run(configPath string) error {
	logger := utils.NewLogger()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	comp, err := compose(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	comp.engine.StartWithContext(ctx)
	if err := comp.janitor.Start(ctx); err != nil {
		return err
	}
	if comp.mqtt != nil {
		if err := comp.mqtt.Start(ctx); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := comp.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if comp.mqtt != nil {
		_ = comp.mqtt.Close()
	}
	comp.janitor.Stop()
	_ = comp.engine.StopWithContext(shutdownCtx)
	return comp.server.Shutdown(shutdownCtx)
}
