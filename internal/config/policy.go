package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Commission struct {
		Tier1Rate         string `yaml:"tier1_rate"`
		Tier2Rate         string `yaml:"tier2_rate"`
		HoldPeriod        string `yaml:"hold_period"`
		AttributionWindow string `yaml:"attribution_window"`
	} `yaml:"commission"`
	Payout struct {
		MinAmount string `yaml:"min_amount"`
		Currency  string `yaml:"currency"`
	} `yaml:"payout"`
}

// Load parses the environment and applies the optional policy file on top.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Policy.PolicyFile != "" {
		if err := cfg.Policy.ApplyFile(cfg.Policy.PolicyFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFile overrides policy values with the non-empty entries of a YAML file.
func (p *Policy) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	if err := setDecimal(&p.Tier1Rate, f.Commission.Tier1Rate); err != nil {
		return fmt.Errorf("tier1_rate: %w", err)
	}
	if err := setDecimal(&p.Tier2Rate, f.Commission.Tier2Rate); err != nil {
		return fmt.Errorf("tier2_rate: %w", err)
	}
	if err := setDuration(&p.HoldPeriod, f.Commission.HoldPeriod); err != nil {
		return fmt.Errorf("hold_period: %w", err)
	}
	if err := setDuration(&p.AttributionWindow, f.Commission.AttributionWindow); err != nil {
		return fmt.Errorf("attribution_window: %w", err)
	}
	if err := setDecimal(&p.MinPayout, f.Payout.MinAmount); err != nil {
		return fmt.Errorf("min_amount: %w", err)
	}
	if c := strings.TrimSpace(f.Payout.Currency); c != "" {
		p.Currency = strings.ToUpper(c)
	}

	return nil
}

func (p *Policy) Validate() error {
	one := decimal.NewFromInt(1)
	if p.Tier1Rate.IsNegative() || p.Tier2Rate.IsNegative() {
		return errors.New("commission rates must not be negative")
	}
	if p.Tier1Rate.Add(p.Tier2Rate).GreaterThan(one) {
		return errors.New("combined commission rates exceed 100%")
	}
	if p.HoldPeriod < 0 || p.AttributionWindow <= 0 {
		return errors.New("hold period and attribution window must be positive")
	}
	if p.MinPayout.IsNegative() {
		return errors.New("minimum payout must not be negative")
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("invalid payout currency %q", p.Currency)
	}
	return nil
}

func setDecimal(dst *decimal.Decimal, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// setDuration accepts Go durations and a plain "<n>d" day count.
func setDuration(dst *time.Duration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := decimal.NewFromString(days)
		if err != nil {
			return err
		}
		*dst = time.Duration(n.Mul(decimal.NewFromInt(int64(24 * time.Hour))).IntPart())
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
