// Package server wires the QR runtime, the HTTP listener and the optional
// gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/homelabqr/internal/platform/grpc"
	"github.com/louisbranch/homelabqr/internal/platform/timeouts"
	"golang.org/x/net/netutil"
)

// HealthService is the gRPC health service name reported as serving.
const HealthService = "homelabqr"

// Server hosts the QR HTTP surface and storage lifecycle.
type Server struct {
	runtime         *Runtime
	listener        net.Listener
	httpServer      *http.Server
	shutdownTimeout time.Duration

	healthListener net.Listener
	health         *platformgrpc.Health
}

// New opens storage, wires the services and binds the listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	rt, err := NewRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{runtime: rt, shutdownTimeout: cfg.ShutdownTimeout}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           rt.Handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	if addr := strings.TrimSpace(cfg.GRPCHealthAddr); addr != "" {
		healthListener, err := net.Listen("tcp", addr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
		s.healthListener = healthListener
		s.health = platformgrpc.NewHealth(HealthService)
	}
	return s, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init homelabqr server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve homelabqr: %w", err)
	}
	return nil
}

// Serve runs the HTTP server, and the health server when configured, until
// the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 2)
	log.Printf("homelabqr listening on %s", s.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()
	if s.health != nil {
		log.Printf("health server listening on %s", s.HealthAddr())
		go func() {
			serveErr <- s.health.Serve(s.healthListener)
		}()
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-serveErr:
		_ = s.shutdown()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases listeners and storage.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if err := s.runtime.Close(); err != nil {
		log.Printf("close qr store: %v", err)
	}
}
