package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/kirinyoku/ticketcore/docs"
	"github.com/kirinyoku/ticketcore/internal/app"
	"github.com/kirinyoku/ticketcore/internal/config"
	"github.com/kirinyoku/ticketcore/internal/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// @title Ticketcore API
// @version 1.0
// @description Ticket inventory, reservations and payments for events.
// @host localhost:8080
// @BasePath /
func main() {
	envFile := pflag.String("env-file", ".env", "path to the dotenv file")
	migrate := pflag.Bool("migrate", false, "apply the database schema on startup")
	pflag.Parse()

	cfg, err := config.New(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log, app.Options{Migrate: *migrate})
	if err != nil {
		log.Error("failed to create application", zap.Error(err))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("application finished with error", zap.Error(err))
		os.Exit(1)
	}
}
