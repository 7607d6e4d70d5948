package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-irc-bridge/internal/admin"
	"github.com/omochice/toy-irc-bridge/internal/backend"
	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/config"
	"github.com/omochice/toy-irc-bridge/internal/ircd"
	"github.com/omochice/toy-irc-bridge/internal/mappings"
	"github.com/omochice/toy-irc-bridge/internal/server"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional, IRCBRIDGE_* variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	gin.SetMode(gin.ReleaseMode)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("Bridge stopped", err)
	}
	l.Info("Bridge stopped")
}

func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	var be backend.Backend
	if cfg.Backend.URL == "" {
		l.Warn("No backend url configured, using the loopback backend")
		be = backend.NewLoopback(cfg.QueueSize)
	} else {
		be = backend.NewClient(cfg.Backend.URL, cfg.Backend.ReconnectDelay, logger.NewPrefixedLogger(l, "backend"))
	}

	hub := chat.NewHub(logger.NewPrefixedLogger(l, "hub"))
	registry, err := mappings.New(be, cfg.Rooms, mappings.Options{
		Identity:      cfg.Backend.User,
		RatePerSecond: cfg.Backend.RatePerSecond,
		Burst:         cfg.Backend.Burst,
		EchoTTL:       cfg.Backend.EchoTTL,
	}, logger.NewPrefixedLogger(l, "mappings"))
	if err != nil {
		return fmt.Errorf("room mappings: %w", err)
	}

	srv := server.New(cfg.Listen, hub, registry, ircd.Config{
		ServerName:          cfg.ServerName,
		BridgeNick:          cfg.BridgeNick,
		QueueSize:           cfg.QueueSize,
		RegistrationTimeout: cfg.RegistrationTimeout,
		ShutdownGrace:       cfg.ShutdownGrace,
	}, logger.NewPrefixedLogger(l, "ircd"))
	if err := srv.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return be.Run(gctx)
	})
	g.Go(func() error {
		err := registry.Dispatch(gctx, be.Events(), hub)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if cfg.AdminListen != "" {
		listener, err := net.Listen("tcp", cfg.AdminListen)
		if err != nil {
			return fmt.Errorf("admin listener: %w", err)
		}
		router := admin.NewRouter(logger.NewPrefixedLogger(l, "admin"), hub, registry)
		g.Go(func() error {
			return router.Serve(listener)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return router.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
