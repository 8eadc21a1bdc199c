package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rate limit categories
const (
	CategoryAI      = "ai"
	CategoryPayment = "payment"
	CategoryAPI     = "api"
	CategoryPublic  = "public"
)

// CategoryLimit is the per-window admission budget of one rate limit category
type CategoryLimit struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// Plan maps a provider price/plan ID to the credits granted each billing cycle
type Plan struct {
	Name           string `yaml:"name"`
	MonthlyCredits int64  `yaml:"monthly_credits"`
}

// CreditPack one-off satın alınabilen kredi paketi
type CreditPack struct {
	Name    string `yaml:"name"`
	Credits int64  `yaml:"credits"`
}

// Billing is the structured part of the configuration, loaded from YAML
type Billing struct {
	RateLimits map[string]CategoryLimit `yaml:"rate_limits"`
	Plans      map[string]Plan          `yaml:"plans"`
	Packs      map[string]CreditPack    `yaml:"packs"`
}

// DefaultBilling returns the built-in limits. ai is the strictest category,
// public the most permissive.
func DefaultBilling() *Billing {
	return &Billing{
		RateLimits: map[string]CategoryLimit{
			CategoryAI:      {PerMinute: 10, PerHour: 100, PerDay: 500},
			CategoryPayment: {PerMinute: 20, PerHour: 200, PerDay: 1000},
			CategoryAPI:     {PerMinute: 60, PerHour: 1000, PerDay: 10000},
			CategoryPublic:  {PerMinute: 120, PerHour: 3000, PerDay: 30000},
		},
		Plans: map[string]Plan{},
		Packs: map[string]CreditPack{},
	}
}

// LoadBilling reads the YAML billing file at path. A missing file yields the
// defaults; categories present in the file override the built-in ones.
func LoadBilling(path string) (*Billing, error) {
	billing := DefaultBilling()
	if path == "" {
		return billing, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return billing, nil
		}
		return nil, fmt.Errorf("billing config okunamadı: %w", err)
	}

	var fromFile Billing
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return nil, fmt.Errorf("billing config parse edilemedi: %w", err)
	}

	for name, limit := range fromFile.RateLimits {
		if limit.PerMinute <= 0 || limit.PerHour <= 0 || limit.PerDay <= 0 {
			return nil, fmt.Errorf("rate limit category %q: all windows must be positive", name)
		}
		billing.RateLimits[name] = limit
	}
	for id, plan := range fromFile.Plans {
		if plan.MonthlyCredits <= 0 {
			return nil, fmt.Errorf("plan %q: monthly_credits must be positive", id)
		}
		billing.Plans[id] = plan
	}
	for id, pack := range fromFile.Packs {
		if pack.Credits <= 0 {
			return nil, fmt.Errorf("pack %q: credits must be positive", id)
		}
		billing.Packs[id] = pack
	}

	return billing, nil
}

// PackFor returns the credit pack registered under id
func (b *Billing) PackFor(id string) (CreditPack, bool) {
	pack, ok := b.Packs[id]
	return pack, ok
}

// PlanFor returns the plan registered for a provider price/plan ID
func (b *Billing) PlanFor(id string) (Plan, bool) {
	plan, ok := b.Plans[id]
	return plan, ok
}
