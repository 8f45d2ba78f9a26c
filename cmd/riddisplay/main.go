package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/uasmesh/rid-display/internal/config"
	"github.com/uasmesh/rid-display/internal/engine"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	serverAddr := flag.String("addr", "", "Server address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for persistence (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile, *serverAddr, *logLevel, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	e, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := e.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Service failed: %v\n", err)
		os.Exit(1)
	}
}
