package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`

	Database Database `envPrefix:"DB_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Paypal   Paypal   `envPrefix:"PAYPAL_"`
	Policy   Policy   `envPrefix:"COMMISSION_"`
	Worker   Worker   `envPrefix:"RECONCILE_"`

	AffiliateAutoActivate bool `env:"AFFILIATE_AUTO_ACTIVATE" envDefault:"true"`
}

type Paypal struct {
	BaseApiURL   string        `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	WebhookID    string        `env:"WEBHOOK_ID"`
	EmailSubject string        `env:"PAYOUT_EMAIL_SUBJECT" envDefault:"You have a payout!"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // mysql | sqlite
	URL    string `env:"URL" envDefault:"affiliates.db"`
}

type Redis struct {
	URL string `env:"URL"` // empty: in-process locks
}

// Policy holds the commission program parameters. Every value can also be
// overridden from the YAML file named by PolicyFile.
type Policy struct {
	PolicyFile        string          `env:"POLICY_FILE"`
	Tier1Rate         decimal.Decimal `env:"TIER1_RATE" envDefault:"0.10"`
	Tier2Rate         decimal.Decimal `env:"TIER2_RATE" envDefault:"0.05"`
	HoldPeriod        time.Duration   `env:"HOLD_PERIOD" envDefault:"720h"`
	AttributionWindow time.Duration   `env:"ATTRIBUTION_WINDOW" envDefault:"720h"`
	MinPayout         decimal.Decimal `env:"MIN_PAYOUT" envDefault:"25.00"`
	Currency          string          `env:"CURRENCY" envDefault:"USD"`
}

type Worker struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	Interval    time.Duration `env:"INTERVAL" envDefault:"5m"`
	PollTimeout time.Duration `env:"POLL_TIMEOUT" envDefault:"15s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
