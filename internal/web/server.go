// Package web exposes the continuity engine over a small JSON API.
package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidurdewan/the-digest-sub001/internal/continuity"
	"github.com/vidurdewan/the-digest-sub001/internal/store"
)

// NewServer creates and configures the HTTP server for the continuity API.
func NewServer(engine *continuity.Engine, st *store.LocalStore, addr string, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handlers{engine: engine, store: st, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /v1/continuity/snapshot", h.HandleSnapshot)
	mux.HandleFunc("POST /v1/continuity/ack", h.HandleAck)
	mux.HandleFunc("POST /v1/items", h.HandleIngest)
	mux.HandleFunc("POST /v1/items/{id}/reactions", h.HandleReaction)

	return &http.Server{
		Addr:              addr,
		Handler:           requestLog(mux, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLog tags each request with an id and logs one line per request.
func requestLog(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info("request",
			zap.String("id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Run starts the server and shuts it down gracefully on SIGINT/SIGTERM.
// Pending engine side effects are flushed before returning.
func Run(srv *http.Server, engine *continuity.Engine, log *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("continuity API listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx)
		engine.Flush()
		return err
	}
}
