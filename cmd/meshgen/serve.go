package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshgen/internal/handler"
	"meshgen/internal/hub"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, addr string, a *app) error {
	sseHub := hub.New(a.bus)
	go sseHub.Run(ctx)

	mux := http.NewServeMux()
	handler.NewMeshHandler(a.svc).Register(mux)
	mux.Handle("GET /api/events", sseHub)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
