// Package chat constructs and runs the BisonChat listeners: the primary TCP
// endpoint and the HTTP server hosting the WebSocket endpoint.
package chat

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server accepts connections and runs one session goroutine per client.
// Sessions coordinate only through the store.
type Server struct {
	store    *Store
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a Server around the given store.
func NewServer(store *Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Store returns the shared directory store.
func (s *Server) Store() *Store {
	return s.store
}

// Addr returns the bound TCP listen address, or "" before ListenAndServe has
// opened the listener. Useful when listening on an ephemeral port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe listens on the TCP address and accepts clients until the
// server is shut down. It returns nil after an orderly shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	log.Printf("Chat server listening on %s", addr)

	cfg := currentConfig()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		s.startSession(newTCPTransport(conn, cfg.MaxMessageSize))
	}
}

// startSession launches the worker goroutine for one connection.
func (s *Server) startSession(conn transport) {
	sess := NewSession(s.store, conn)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.Run()
	}()
}

// Shutdown stops accepting connections, closes every client transport while
// holding write permission, and waits for all session goroutines to finish
// or the timeout to expire.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating chat server shutdown...")

	s.cancel()

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing listener: %v", err)
		}
	}

	s.store.Update(func(d *Directory) {
		d.CloseAll()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat server shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Chat server shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}

// CreateHTTPServer creates and configures an HTTP server with the specified
// address and handler. It sets reasonable timeout values for production use.
func CreateHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

// StartHTTPServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartHTTPServer(server *http.Server) error {
	log.Printf("HTTP server listening on %s", server.Addr)
	return server.ListenAndServe()
}

// ShutdownHTTPServer gracefully shuts down the HTTP server without
// interrupting active connections. It waits for active connections to close
// or until the timeout is reached.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}
