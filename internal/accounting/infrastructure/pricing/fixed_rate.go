package pricing

import (
	"context"
	"errors"
)

// FixedRateProvider serves tariff rates from static configuration: one
// default rate with optional per-slot overrides.
type FixedRateProvider struct {
	rate  float64
	slots map[string]float64
}

// FixedRateOption configures the provider.
type FixedRateOption func(*FixedRateProvider)

// WithSlotRates sets per-slot overrides of the default rate.
func WithSlotRates(rates map[string]float64) FixedRateOption {
	return func(p *FixedRateProvider) {
		if len(rates) == 0 {
			return
		}
		p.slots = make(map[string]float64, len(rates))
		for slot, rate := range rates {
			if rate > 0 {
				p.slots[slot] = rate
			}
		}
	}
}

// NewFixedRateProvider constructs the provider.
func NewFixedRateProvider(rate float64, opts ...FixedRateOption) (*FixedRateProvider, error) {
	if rate <= 0 {
		return nil, errors.New("rate provider: non-positive rate")
	}
	p := &FixedRateProvider{rate: rate}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Rate returns the slot override when one is configured, otherwise the
// default rate.
func (p *FixedRateProvider) Rate(ctx context.Context, slot string) (float64, error) {
	_ = ctx
	if rate, ok := p.slots[slot]; ok {
		return rate, nil
	}
	return p.rate, nil
}
