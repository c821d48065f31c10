package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	TrialScopeGlobal     = "global"
	TrialScopePerAcademy = "per-academy"
)

type App struct {
	Env      string `envconfig:"ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// DB
	PGDSN string `envconfig:"PG_DSN" required:"true"`
	// MQ
	RabbitURL       string `envconfig:"RABBIT_URL" required:"true"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payments.exchange"`
	// Auth
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Payment gateway
	GatewayBaseURL    string `envconfig:"GATEWAY_BASE_URL" default:"https://api.mercadopago.com"`
	GatewayToken      string `envconfig:"GATEWAY_ACCESS_TOKEN" required:"true"`
	WebhookSecret     string `envconfig:"WEBHOOK_SECRET"`
	WebhookSkipVerify bool   `envconfig:"WEBHOOK_SKIP_VERIFY" default:"false"`
	// Outbound side channels
	AppBaseURL     string `envconfig:"APP_BASE_URL" required:"true"`
	MailAPIURL     string `envconfig:"MAIL_API_URL" default:"https://api.resend.com/emails"`
	MailAPIKey     string `envconfig:"MAIL_API_KEY"`
	MailFrom       string `envconfig:"MAIL_FROM" default:"tickets@academia.app"`
	AnalyticsURL   string `envconfig:"ANALYTICS_URL" default:"https://api.mixpanel.com"`
	AnalyticsToken string `envconfig:"ANALYTICS_TOKEN"`
	PushEndpoint   string `envconfig:"PUSH_ENDPOINT"`
	PushAPIKey     string `envconfig:"PUSH_API_KEY"`
	// Trial / billing
	TrialEnabled    bool   `envconfig:"TRIAL_ENABLED" default:"true"`
	TrialScope      string `envconfig:"TRIAL_SCOPE" default:"global"`
	TrialDays       int    `envconfig:"TRIAL_DAYS" default:"7"`
	TrialClassLimit int    `envconfig:"TRIAL_CLASS_LIMIT" default:"1"`
	Currency        string `envconfig:"CURRENCY" default:"ARS"`
	BillingEvery    int    `envconfig:"BILLING_FREQUENCY" default:"1"`
	BillingUnit     string `envconfig:"BILLING_FREQUENCY_TYPE" default:"months"`
}

func Load() (App, error) {
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.TrialScope != TrialScopeGlobal && c.TrialScope != TrialScopePerAcademy {
		return c, fmt.Errorf("invalid TRIAL_SCOPE %q", c.TrialScope)
	}
	if c.BillingUnit != "months" && c.BillingUnit != "days" {
		return c, fmt.Errorf("invalid BILLING_FREQUENCY_TYPE %q", c.BillingUnit)
	}
	// The signature bypass exists for local testing only. A production config
	// that tries to enable it is a misconfiguration, not a choice.
	if c.IsProduction() && c.WebhookSkipVerify {
		return c, fmt.Errorf("WEBHOOK_SKIP_VERIFY cannot be enabled when ENV=production")
	}
	if c.IsProduction() && c.WebhookSecret == "" {
		return c, fmt.Errorf("WEBHOOK_SECRET is required when ENV=production")
	}
	return c, nil
}

func (c App) IsProduction() bool { return c.Env == "production" }
