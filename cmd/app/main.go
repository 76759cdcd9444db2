package main

import (
	"context"
	"flag"
	"log"
	"os"

	"FinScan/internal/di"
	"FinScan/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults when empty)")
	input := flag.String("input", "", "process one CSV file, print its metrics and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx := context.Background()
	if *input != "" {
		if err := app.RunOnce(ctx, *input, os.Stdout); err != nil {
			log.Printf("run failed: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run application (blocks until signal)
	if err := app.Run(ctx); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
