package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/you/academia-payments/internal/events"
	"github.com/you/academia-payments/internal/notifier"
	"github.com/you/academia-payments/internal/repository"
	"github.com/you/academia-payments/pkg/config"
	"github.com/you/academia-payments/pkg/mq"
	"github.com/you/academia-payments/pkg/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	shutdownTracer := obs.InitTracer("academia-payments-notify")
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	db, err := repository.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	consumer := mq.NewConsumer(mq.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.PaymentExchange,
		Queue:    "notifications.queue",
		Bindings: []string{
			events.RKPaymentApproved,
			events.RKPaymentRejected,
			events.RKActivationRequired,
		},
		UseDLX:   true,
		DLXName:  cfg.PaymentExchange + ".dlx",
		DLXQueue: "notifications.dlq",
		Tag:      "notify-worker",
	})
	if err := consumer.Connect(); err != nil {
		log.Fatalf("connect rabbitmq: %v", err)
	}
	defer consumer.Close()

	var push notifier.PushSender = notifier.ConsoleSender{}
	if cfg.PushEndpoint != "" {
		push = notifier.NewHTTPSender(cfg.PushEndpoint, cfg.PushAPIKey)
	}

	worker := notifier.NewWorker(consumer, repository.NewNotificationRepo(db), repository.NewCatalogRepo(db), push, cfg.AppBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
	log.Printf("[notify] stopped")
}
