package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMMISSION_POLICY_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Policy.Tier1Rate.String() != "0.1" || cfg.Policy.Tier2Rate.String() != "0.05" {
		t.Fatalf("rates = %s / %s", cfg.Policy.Tier1Rate, cfg.Policy.Tier2Rate)
	}
	if cfg.Policy.HoldPeriod != 30*24*time.Hour || cfg.Policy.AttributionWindow != 30*24*time.Hour {
		t.Fatalf("hold %s window %s", cfg.Policy.HoldPeriod, cfg.Policy.AttributionWindow)
	}
	if cfg.Policy.MinPayout.StringFixed(2) != "25.00" || cfg.Policy.Currency != "USD" {
		t.Fatalf("min payout %s %s", cfg.Policy.MinPayout, cfg.Policy.Currency)
	}
	if cfg.Worker.Interval != 5*time.Minute || !cfg.AffiliateAutoActivate {
		t.Fatalf("worker interval %s auto activate %v", cfg.Worker.Interval, cfg.AffiliateAutoActivate)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COMMISSION_TIER1_RATE", "0.2")
	t.Setenv("COMMISSION_HOLD_PERIOD", "48h")
	t.Setenv("DB_DRIVER", "mysql")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Policy.Tier1Rate.String() != "0.2" || cfg.Policy.HoldPeriod != 48*time.Hour || cfg.Database.Driver != "mysql" {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Policy, cfg.Database)
	}
}

func TestPolicyFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
commission:
  tier1_rate: "0.12"
  hold_period: 14d
payout:
  min_amount: "50.00"
  currency: eur
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("COMMISSION_POLICY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p := cfg.Policy
	if p.Tier1Rate.String() != "0.12" || p.Tier2Rate.String() != "0.05" {
		t.Fatalf("rates = %s / %s", p.Tier1Rate, p.Tier2Rate)
	}
	if p.HoldPeriod != 14*24*time.Hour {
		t.Fatalf("hold period = %s", p.HoldPeriod)
	}
	if p.MinPayout.StringFixed(2) != "50.00" || p.Currency != "EUR" {
		t.Fatalf("payout = %s %s", p.MinPayout, p.Currency)
	}
}

func TestPolicyValidate(t *testing.T) {
	t.Setenv("COMMISSION_TIER1_RATE", "0.7")
	t.Setenv("COMMISSION_TIER2_RATE", "0.4")

	if _, err := Load(); err == nil {
		t.Fatal("rates above 100% should be rejected")
	}
}
