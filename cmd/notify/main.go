package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/leadflow/internal/notify"
	"github.com/diagnosis/leadflow/internal/platform/mailer"
	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/diagnosis/leadflow/pkg/events"
	"github.com/diagnosis/leadflow/pkg/logger"
)

func main() {
	cfg := config.Load()
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required for the notify worker")
		os.Exit(1)
	}
	if cfg.Email.AdminEmail == "" {
		logger.Error("ADMIN_EMAIL is required for the notify worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	var svc mailer.Service
	if cfg.Email.DevMode {
		svc = mailer.NewDevMailer()
	} else {
		m := mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
		if !m.Enabled {
			logger.Error("Mailer disabled", "error", errors.New("MAILERSEND_API_KEY and MAILER_FROM are required"))
			os.Exit(1)
		}
		svc = m
	}

	if err := notify.NewWorker(svc, cfg.Email.AdminEmail).Subscribe(bus, cfg.NATS.NotifyQueue); err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}

	logger.Info("Notify worker listening", "subject", events.LeadCreated, "queue", cfg.NATS.NotifyQueue)
	<-ctx.Done()

	logger.Info("Shutting down notify worker...")
	if err := bus.Close(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}
}
