package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cattleherd/internal/agent"
	"cattleherd/internal/config"
	"cattleherd/internal/identity"
	"cattleherd/internal/logger"
	"cattleherd/internal/snapshot"
	"cattleherd/internal/version"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println("cattle", version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Cattle never runs Poll; refused here, not at the protocol level
	if err := cfg.Validate(config.RoleCattle); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log = log.Named("cattle")
	defer func() {
		_ = log.Sync()
	}()

	// No device identity, no safe continuation
	store := identity.NewStore(cfg.Identity.Path, log.Named("identity"))
	ident, err := store.LoadOrCreate()
	if err != nil {
		log.Fatal("Failed to load device identity", zap.Error(err))
	}
	log.Info("Device identity ready",
		zap.String("id", ident.ID.String()),
		zap.String("mode", cfg.Mode.Type))

	engine := snapshot.NewEngine(cfg.Snapshot.SettleDelay, log.Named("snapshot"))
	ctrl := agent.New(cfg, ident, engine, log.Named("controller"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal("Failed to start controller", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal", zap.String("signal", sig.String()))

	log.Info("Starting graceful shutdown")
	cancel()

	if err := ctrl.Stop(); err != nil {
		log.Error("Failed to stop controller", zap.Error(err))
	}

	log.Info("Shutdown complete")
}
