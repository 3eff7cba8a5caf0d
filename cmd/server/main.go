// Command server runs the mock console backend: the placeholder API the
// vantage client talks to in development and demos.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vantage/internal/mockapi"
	"vantage/internal/platform/config"
	"vantage/internal/platform/logger"
)

func main() {
	cfg := config.ServerFromEnv()
	log := logger.New(cfg.Debug)

	backend := mockapi.New(cfg, log, prometheus.DefaultRegisterer)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           backend.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock console backend listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
