package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/app"
	"github.com/Freeeeeet/wellness_booking/internal/config"
)

// Разовый обход: статусы сессий, генерация recurring слотов, чистка прошедших.
// Журнал изменений статусов печатается в stdout как JSON.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	updates, sweepErr := a.SweepOnce(ctx)
	a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(updates); err != nil {
		logger.Error("Failed to write status updates", zap.Error(err))
	}

	if sweepErr != nil {
		logger.Error("Sweep finished with errors", zap.Error(sweepErr))
		os.Exit(1)
	}
	logger.Info("Sweep finished", zap.Int("updates", len(updates)))
}
