package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// GracefulServer wraps http.Server with graceful shutdown
type GracefulServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	onShutdown      []func(context.Context) error
	wg              sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a new graceful server
func New(handler http.Handler, config *Config) *GracefulServer {
	if config == nil {
		config = DefaultConfig()
	}

	return &GracefulServer{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		shutdownTimeout: config.ShutdownTimeout,
		onShutdown:      make([]func(context.Context) error, 0),
	}
}

// OnShutdown registers a shutdown hook, run concurrently with the
// others when the process receives SIGINT/SIGTERM/SIGHUP. cmd/main.go
// uses this to stop the invoice dispatch worker pool and flush the
// OpenTelemetry tracer before the HTTP listener closes.
func (s *GracefulServer) OnShutdown(fn func(context.Context) error) {
	s.onShutdown = append(s.onShutdown, fn)
}

// ListenAndServe starts the webhook HTTP server and blocks until a
// shutdown signal arrives.
func (s *GracefulServer) ListenAndServe() error {
	// Channel to receive errors from server
	errCh := make(chan error, 1)

	// Start server in goroutine
	go func() {
		fmt.Printf("Server starting on %s\n", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %v. Shutting down...\n", sig)
	}

	return s.Shutdown()
}

// ListenAndServeTLS starts the server with TLS
func (s *GracefulServer) ListenAndServeTLS(certFile, keyFile string) error {
	errCh := make(chan error, 1)

	go func() {
		fmt.Printf("Server starting on %s (TLS)\n", s.server.Addr)
		if err := s.server.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %v. Shutting down...\n", sig)
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *GracefulServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// Run shutdown hooks concurrently
	var wg sync.WaitGroup
	errCh := make(chan error, len(s.onShutdown))

	for _, hook := range s.onShutdown {
		wg.Add(1)
		go func(fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errCh <- err
			}
		}(hook)
	}

	// Wait for hooks to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All hooks completed
	case <-ctx.Done():
		fmt.Println("Shutdown hooks timed out")
	}

	// Shutdown server
	fmt.Println("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// Address returns the server address
func (s *GracefulServer) Address() string {
	return s.server.Addr
}
