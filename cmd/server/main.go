package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bisonchat/bisonchat/internal/chat"
)

func main() {
	fmt.Println("Starting BisonChat Server...")

	// Load configuration from environment
	config := chat.NewConfigFromEnv()
	chat.SetConfig(config)

	// Create the directory and the default room
	store := chat.NewStore()
	store.Update(func(d *chat.Directory) {
		d.CreateRoom(config.DefaultRoom)
	})

	srv := chat.NewServer(store)

	// HTTP server for the WebSocket endpoint and health check
	httpServer := chat.CreateHTTPServer(config.HTTPAddr, srv.Routes())
	go func() {
		if err := chat.StartHTTPServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(config.TCPAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Chat server error: %v", err)
		}
		return
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
	}

	if err := chat.ShutdownHTTPServer(httpServer, 5*time.Second); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.Printf("Shutdown incomplete: %v", err)
	}
}
