package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coinbrief/ingestor/internal/app"
	"github.com/coinbrief/ingestor/internal/config"
	"github.com/coinbrief/ingestor/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)

	if err := app.Run(context.Background(), cfg, log); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}
