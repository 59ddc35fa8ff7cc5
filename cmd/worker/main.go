package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/config"
	"github.com/iliyamo/hostel-booking/internal/logger"
	"github.com/iliyamo/hostel-booking/internal/queue"
)

// The worker only needs the broker; it does not require the database
// variables that config.Load insists on.
func main() {
	log := logger.New(os.Getenv("APP_ENV"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewConsumer(config.LoadAMQPURL(), log.Named("consumer"))
	if p := os.Getenv("BOOKING_LOG_PATH"); p != "" {
		c.LogPath = p
	}
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer stopped", zap.Error(err))
	}
	log.Info("consumer stopped")
}
