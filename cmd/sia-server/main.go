package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alxayo/go-galaxy-sia/internal/config"
	"github.com/alxayo/go-galaxy-sia/internal/ipcheck"
	"github.com/alxayo/go-galaxy-sia/internal/logger"
	"github.com/alxayo/go-galaxy-sia/internal/notify"
	"github.com/alxayo/go-galaxy-sia/internal/sia/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		// flag package already printed usage/error
		os.Exit(2)
	}
	if flags.showVersion {
		fmt.Println(version)
		return
	}

	var cfg *config.Config
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}
	if flags.listenAddr != "" {
		if err := overrideListen(cfg, flags.listenAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	logger.Init()
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.Logging.Level)
	}
	if err := logger.SetFormat(cfg.Logging.Format); err != nil {
		fmt.Printf("Warning: invalid log format %q, using default\n", cfg.Logging.Format)
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.UseWriter(f)
	}
	log := logger.Logger().With("component", "cli")

	log.Info("galaxy SIA receiver starting",
		"version", version,
		"listen", cfg.Listen.HostPort(),
		"accounts", len(cfg.Accounts),
		"queue_size", cfg.Queue.MaxQueueSize)
	if dump, derr := cfg.Dump(); derr == nil {
		log.Debug("effective configuration", "yaml", dump)
	}

	dispatcher := notify.NewDispatcher(cfg.Queue, notify.NewHTTPSender(), logger.Logger())
	dispatcher.Start()

	handler := server.NewHandler(cfg, dispatcher, logger.Logger())
	srv := server.New(cfg.Listen.HostPort(), handler, logger.Logger())
	if err := srv.Start(); err != nil {
		log.Error("failed to start receiver", "error", err)
		dispatcher.Stop()
		os.Exit(1)
	}

	var checker *ipcheck.Server
	if cfg.IPCheck.Enabled {
		checker = ipcheck.New(cfg.IPCheck, logger.Logger())
		if err := checker.Start(); err != nil {
			log.Error("failed to start IP check listener", "error", err)
			_ = srv.Stop()
			dispatcher.Stop()
			os.Exit(1)
		}
	}

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Perform shutdown in a separate goroutine in case it blocks; we just wait
	// or force exit on timeout. Sessions flush first so the dispatcher still
	// sees their events before its shutdown policy applies.
	done := make(chan struct{})
	go func() {
		if err := srv.Stop(); err != nil {
			log.Error("receiver stop error", "error", err)
		}
		if checker != nil {
			if err := checker.Stop(); err != nil {
				log.Error("IP check stop error", "error", err)
			}
		}
		dispatcher.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("receiver stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
}

// overrideListen replaces the configured receiver address with a host:port
// given on the command line.
func overrideListen(cfg *config.Config, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid listen port %q", portStr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	cfg.Listen = config.ListenerConfig{Addr: host, Port: port}
	return nil
}
