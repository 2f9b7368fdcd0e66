package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statusServer exposes liveness and metrics endpoints while a run is in
// flight. It is optional: a non-positive port disables it entirely, which is
// what CI invocations typically want.
type statusServer struct {
	app    *App
	server *http.Server
}

func (a *App) newStatusServer(port int) *statusServer {
	if port <= 0 {
		a.logger.Debug("Status server not started: disabled")
		return nil
	}

	s := &statusServer{app: a}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(
		a.metrics.Registry(),
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)

	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Run the server in a goroutine so it doesn't block the workflow.
	go func() {
		a.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/healthz", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown; only
		// anything else is a real failure.
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()

	return s
}

func (s *statusServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.app.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *statusServer) close() error {
	if s == nil || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.app.logger.Info("🩺 Shutting down status server...")
	if err := s.server.Shutdown(ctx); err != nil {
		s.app.logger.Error("Status server shutdown failed", "error", err)
		return err
	}

	s.app.logger.Debug("Status server shut down gracefully.")
	return nil
}
