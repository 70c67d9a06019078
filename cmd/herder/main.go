package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cattleherd/internal/config"
	"cattleherd/internal/logger"
	"cattleherd/internal/monitor"
	"cattleherd/internal/version"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println("herder", version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// The herder never runs Push; refused here, not at the protocol level
	if err := cfg.Validate(config.RoleHerder); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log = log.Named("herder")
	defer func() {
		_ = log.Sync()
	}()

	registry := monitor.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var components []lifecycle

	switch cfg.Mode.Type {
	case config.ModePull:
		intake := monitor.NewIntake(cfg.Mode.Pull, registry, log.Named("intake"))
		components = append(components, component("intake", intake.Start, intake.Stop))
	case config.ModePoll:
		poller := monitor.NewPoller(cfg.Mode.Poll, registry, log.Named("poller"))
		components = append(components, component("poller", poller.Start, poller.Stop))
	}

	api := monitor.NewServer(cfg.Web, registry, log.Named("api"))
	components = append(components, component("api", api.Start, api.Stop))

	for _, c := range components {
		if err := c.start(ctx); err != nil {
			log.Fatal("Failed to start component",
				zap.String("component", c.name),
				zap.Error(err))
		}
	}
	log.Info("Herder running", zap.String("mode", cfg.Mode.Type))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal", zap.String("signal", sig.String()))

	log.Info("Starting graceful shutdown")
	cancel()

	// Stop components in reverse order
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.stop(); err != nil {
			log.Error("Failed to stop component",
				zap.String("component", c.name),
				zap.Error(err))
		}
	}

	log.Info("Shutdown complete")
}

type lifecycle struct {
	name  string
	start func(context.Context) error
	stop  func() error
}

func component(name string, start func(context.Context) error, stop func() error) lifecycle {
	return lifecycle{name: name, start: start, stop: stop}
}
