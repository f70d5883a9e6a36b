package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"course-billing/internal/client"
	"course-billing/internal/config"
	"course-billing/internal/enrollment"
	"course-billing/internal/gateway/lemonsqueezy"
	"course-billing/internal/handler"
	"course-billing/internal/lifecycle"
	"course-billing/internal/notify"
	"course-billing/internal/repository"
	"course-billing/internal/server"
	"course-billing/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		logrus.WithError(err).Fatal("failed to parse config")
	}

	log := newLogger(&cfg.Log)

	db := client.InitMysqlClient(cfg.DatabaseURL, log)

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	deliveryRepo := repository.NewWebhookDeliveryRepository(db)

	enroller := enrollment.NewHTTPEnroller(&cfg.Enrollment, log)
	notifier := notify.NewLogNotifier(log)

	tracker := lifecycle.NewTracker(
		subscriptionRepo,
		orderRepo,
		deliveryRepo,
		enroller,
		notifier,
		cfg.Access.RevokeOnPause,
		log,
	)

	lsGateway := lemonsqueezy.New(&cfg.LemonSqueezy, tracker, subscriptionRepo, log)

	billingService := service.NewBillingService(lsGateway, subscriptionRepo, log)

	webhookHandler := handler.NewWebhookHandler(log, lsGateway)
	billingHandler := handler.NewBillingHandler(billingService, log)

	srv := server.NewServer(webhookHandler, billingHandler)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.WithField("addr", serverAddr).Info("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Fatal("HTTP server shutdown error")
	}
}

func newLogger(cfg *config.Log) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}
