package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient/internal/devserver"
	"github.com/kailas-cloud/tsclient/internal/version"
)

// serve runs the development server until ctx is canceled.
func (a *app) serve(ctx context.Context) error {
	sc := a.cfg.Serve
	reg := prometheus.NewRegistry()
	dev, err := devserver.New(devserver.Config{
		APIKey:     sc.APIKey,
		Version:    version.Version,
		Registerer: reg,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("create dev server: %w", err)
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Mount("/", dev.Handler())

	addr := net.JoinHostPort("", strconv.Itoa(sc.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(sc.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(sc.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting dev server",
			zap.String("addr", addr),
			zap.String("version", version.Version),
			zap.String("env", a.env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dev server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}
