package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chis/pathdesigner/internal/api"
	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/config"
	"github.com/chis/pathdesigner/internal/events"
	"github.com/chis/pathdesigner/internal/flow"
	"github.com/chis/pathdesigner/internal/logging"
	"github.com/chis/pathdesigner/internal/nodes"
	"github.com/chis/pathdesigner/internal/output"
	"github.com/chis/pathdesigner/internal/presets"
	"github.com/chis/pathdesigner/internal/storage"
)

func main() {
	// Default to serving when no subcommand is given.
	if len(os.Args) == 1 || os.Args[1][0] == '-' {
		runServe(os.Args[1:])
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve", "api":
		runServe(args)
	case "layout":
		runLayout(args)
	case "graph":
		runGraph(args)
	case "version":
		fmt.Println(output.Version)
	default:
		log.Fatalf("Unknown command: %s\nAvailable commands: serve, layout, graph, version", command)
	}
}

// runServe starts the editor backend and blocks until interrupted.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "pathdesigner.yaml", "Path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logger.SetJSON(cfg.LogJSON)

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open project database: %v", err)
	}
	defer store.Close()

	client := cam.NewClient(cfg.CAMServiceURL, cfg.CAMTimeout)

	// A down CAM service is not fatal: nodes report errors per call and
	// recover once it returns.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := client.Health(pingCtx); err != nil {
		logger.Warn("CAM service not reachable at %s: %v", cfg.CAMServiceURL, err)
	}
	cancelPing()

	presetItems := loadPresets(cfg, client, logger)
	bus := events.NewBus()
	graphStore := flow.NewStore(bus)
	runtime := nodes.NewRuntime(graphStore, client, nil, logger, cfg.LayoutOptions())

	server := api.NewServer(api.Config{
		ListenAddr: cfg.ListenAddr,
		Runtime:    runtime,
		Storage:    store,
		EventBus:   bus,
		Presets:    presetItems,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.WithFields(map[string]interface{}{
		"addr":    cfg.ListenAddr,
		"cam_url": cfg.CAMServiceURL,
		"db":      cfg.DatabasePath,
	}).Info("pathdesigner %s ready", output.Version)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}

	// Let in-flight CAM calls land before the process exits.
	runtime.Wait()
}

// loadPresets prefers the configured presets file, then the CAM
// service's preset list, then the built-in defaults.
func loadPresets(cfg config.Config, client *cam.Client, logger *logging.Logger) []cam.PresetItem {
	if cfg.PresetsPath != "" {
		items, err := presets.Load(cfg.PresetsPath)
		if err != nil {
			log.Fatalf("Failed to load presets from %s: %v", cfg.PresetsPath, err)
		}
		return items
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if items, err := client.Presets(ctx); err == nil && len(items) > 0 {
		return items
	}
	logger.Info("using built-in presets")
	return presets.Defaults()
}
