package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/academia-payments/internal/analytics"
	"github.com/you/academia-payments/internal/email"
	"github.com/you/academia-payments/internal/gateway"
	"github.com/you/academia-payments/internal/repository"
	"github.com/you/academia-payments/internal/service"
	transport "github.com/you/academia-payments/internal/transport/http"
	"github.com/you/academia-payments/internal/webhook"
	"github.com/you/academia-payments/pkg/config"
	"github.com/you/academia-payments/pkg/mq"
	"github.com/you/academia-payments/pkg/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	shutdownTracer := obs.InitTracer("academia-payments-api")
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	db, err := repository.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	pub := mq.NewPublisher(mq.PublisherConfig{URL: cfg.RabbitURL, Exchange: cfg.PaymentExchange})
	if err := pub.Connect(); err != nil {
		log.Fatalf("connect rabbitmq: %v", err)
	}
	defer pub.Close()

	payments := repository.NewPaymentRepo(db)
	subsRepo := repository.NewSubscriptionRepo(db)
	attendance := repository.NewAttendanceRepo(db)
	tickets := repository.NewTicketRepo(db)
	roster := repository.NewRosterRepo(db)
	users := repository.NewUserRepo(db)
	catalog := repository.NewCatalogRepo(db)

	tracker := analytics.NewHTTPTracker(cfg.AnalyticsURL, cfg.AnalyticsToken)
	mailer := email.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayToken)

	subSvc := service.NewSubscriptionSvc(
		service.TrialConfig{
			Enabled:    cfg.TrialEnabled,
			Scope:      cfg.TrialScope,
			Days:       cfg.TrialDays,
			ClassLimit: cfg.TrialClassLimit,
		},
		service.BillingConfig{
			Currency: cfg.Currency,
			Every:    cfg.BillingEvery,
			Unit:     cfg.BillingUnit,
		},
		subsRepo, users, attendance, catalog, pub,
	)
	ticketSvc := service.NewTicketSvc(tickets, roster, users, catalog, mailer, cfg.AppBaseURL)
	revenue := service.NewRevenueTracker(payments, catalog, tracker)
	paySvc := service.NewPaymentSvc(payments, subSvc, ticketSvc, revenue, pub)

	verifier := webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookSkipVerify)
	wh := webhook.NewHandler(verifier, gw, paySvc)
	srv := transport.NewServer(paySvc, payments, subSvc, ticketSvc, catalog)

	router := transport.NewRouter(srv, wh, cfg.JWTSecret)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[api] listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[api] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
