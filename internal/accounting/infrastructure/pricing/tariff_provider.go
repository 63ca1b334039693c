package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultRatesTable = "tariff_rates"

// TariffRateProvider resolves per-slot tariff rates from a rates table.
// A slot with no row falls back to the configured default rate.
type TariffRateProvider struct {
	db          *sql.DB
	table       string
	defaultRate float64
}

// TariffOption configures the provider.
type TariffOption func(*TariffRateProvider)

// WithRatesTable overrides the rates table name.
func WithRatesTable(table string) TariffOption {
	return func(p *TariffRateProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// WithDefaultRate sets the fallback rate for slots without a row.
func WithDefaultRate(rate float64) TariffOption {
	return func(p *TariffRateProvider) {
		if rate > 0 {
			p.defaultRate = rate
		}
	}
}

// NewTariffRateProvider constructs a provider.
func NewTariffRateProvider(db *sql.DB, opts ...TariffOption) *TariffRateProvider {
	p := &TariffRateProvider{
		db:    db,
		table: defaultRatesTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rate returns the rate per kWh for a slot.
func (p *TariffRateProvider) Rate(ctx context.Context, slot string) (float64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("tariff provider: nil db")
	}
	if slot == "" {
		return 0, errors.New("tariff provider: empty slot name")
	}

	query := fmt.Sprintf(`SELECT rate_per_kwh FROM %s WHERE slot_name = $1`, p.table)

	var rate float64
	if err := p.db.QueryRowContext(ctx, query, slot).Scan(&rate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if p.defaultRate > 0 {
				return p.defaultRate, nil
			}
			return 0, fmt.Errorf("tariff provider: no rate for slot %q", slot)
		}
		return 0, err
	}
	if rate <= 0 {
		return 0, fmt.Errorf("tariff provider: non-positive rate for slot %q", slot)
	}
	return rate, nil
}
