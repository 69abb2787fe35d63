// Command mailer drains the email job queue and sends each job through the
// configured mailer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/linkbio/internal/config"
	"github.com/iliyamo/linkbio/internal/queue"
	"github.com/iliyamo/linkbio/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	if url == "" {
		logger.Error("RABBITMQ_URL is required")
		os.Exit(1)
	}
	adminURL := strings.TrimRight(os.Getenv("ADMIN_URL"), "/")
	if adminURL == "" {
		adminURL = "http://localhost:3000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := service.EmailSender{Mailer: service.LogMailer{Logger: logger}, AdminURL: adminURL}
	logger.Info("email consumer starting", "queue", queue.EmailQueueName)
	if err := queue.StartEmailConsumer(ctx, url, sender); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("email consumer stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("email consumer stopped")
}
