// cmd/backup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/semmidev/netvault/internal/app"
	"github.com/semmidev/netvault/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single backup job and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		return application.RunOnce(ctx)
	}
	return application.Run(ctx)
}
