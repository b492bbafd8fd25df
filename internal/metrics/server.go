package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const gracefulShutdownTimeout = 5 * time.Second

// Server serves /metrics and /healthz.
type Server struct {
	httpServer *http.Server
}

func NewServer(bindAddress string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              bindAddress,
			Handler:           Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns the metrics routes.
func Router() http.Handler {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.httpServer.SetKeepAlivesEnabled(false)
		_ = s.httpServer.Shutdown(ctxTimeout)
		slog.Info("Metrics server terminated.")
	}()

	slog.Info("Metrics server listening.", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
