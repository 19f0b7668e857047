// Package server provides the local preview server: it serves the built
// site directory and exposes build metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/milkyware/glacier/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server serves a built site over HTTP for local preview.
type Server struct {
	addr     string
	siteDir  string
	recorder *metrics.PrometheusRecorder // nil disables /metrics
	httpSrv  *http.Server

	boundAddr string
	ready     chan struct{} // closed once the listener is bound
}

// New creates a preview server for the given site directory.
func New(addr, siteDir string, recorder *metrics.PrometheusRecorder) *Server {
	s := &Server{addr: addr, siteDir: siteDir, recorder: recorder, ready: make(chan struct{})}

	mux := http.NewServeMux()
	if recorder != nil {
		mux.Handle("/metrics", recorder.Handler())
	}
	mux.Handle("/", noCache(http.FileServer(http.Dir(siteDir))))

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// noCache disables client caching so edits show up on plain reload during
// a watch session.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()
	close(s.ready)

	slog.Info("Preview server listening", "addr", s.boundAddr, "site", s.siteDir)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errChan
}

// Addr returns the bound listen address once Run has started serving; it
// blocks until the listener exists. With a ":0" address this is how the
// caller learns the assigned port.
func (s *Server) Addr() string {
	<-s.ready
	return s.boundAddr
}
