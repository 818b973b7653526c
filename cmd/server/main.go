package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	flag.StringVar(&cfg.Content.DevServerURL, "dev", cfg.Content.DevServerURL, "Renderer dev server URL")
	flag.StringVar(&cfg.Content.RendererDist, "dist", cfg.Content.RendererDist, "Packaged renderer directory")
	flag.StringVar(&cfg.Bridge.LaunchCommand, "launch", cfg.Bridge.LaunchCommand, "Command that opens a window URL")
	flag.Parse()

	if cfg.Content.DevMode() {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		stop()
		os.Exit(1)
	}
}
