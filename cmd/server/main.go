package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nickchat/internal/config"
	"nickchat/internal/server"
	"nickchat/internal/status"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run starts the relay and blocks until it stops.  It returns the process
// exit code so deferred cleanup always runs before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	cfg, err := config.LoadServer(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		logger.Printf("[server] %v", err)
		return 1
	}

	srv := server.New(cfg, logger)
	defer srv.Shutdown()

	if cfg.StatusAddr != "" {
		app := status.New(srv, stdout)
		go func() {
			if err := app.Listen(cfg.StatusAddr); err != nil {
				logger.Printf("[status] stopped: %v", err)
			}
		}()
		defer func() {
			if err := app.Shutdown(); err != nil {
				logger.Printf("[status] shutdown: %v", err)
			}
		}()
		logger.Printf("[status] serving on %s", cfg.StatusAddr)
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-quit:
			logger.Println("[server] shutting down…")
			srv.Shutdown()
		case <-done:
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Printf("[server] %v", err)
		return 1
	}
	logger.Println("[server] stopped")
	return 0
}
