// Package main wires together the pricewatch service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/seapigy/procuro-site-sub000/internal/config"
	"github.com/seapigy/procuro-site-sub000/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := run(context.Background(), *cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "pricewatch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if port, ok := portFromEnv(); ok {
		cfg.Server.Port = port
	}

	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("build app failed: %w", err)
	}
	return app.Run(ctx)
}

// portFromEnv reads the PORT variable Cloud Run injects.
func portFromEnv() (int, bool) {
	raw := os.Getenv("PORT")
	if raw == "" {
		return 0, false
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 {
		return 0, false
	}
	return port, true
}
