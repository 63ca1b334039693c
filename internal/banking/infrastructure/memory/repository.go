package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	banking "gridledger/internal/banking/domain"
)

// Repository is an in-memory banking store for tests and tooling. It
// mirrors the Postgres repository contract: pools are the ingested
// input, settled rows are upserted per (client, unit, slot, date).
type Repository struct {
	mu    sync.RWMutex
	pools []banking.PoolInput
	rows  map[string]banking.SettlementRecord
}

// NewRepository constructs an empty store.
func NewRepository() *Repository {
	return &Repository{rows: make(map[string]banking.SettlementRecord)}
}

// AddPools stores pre-settlement pools.
func (r *Repository) AddPools(pools ...banking.PoolInput) {
	r.mu.Lock()
	r.pools = append(r.pools, pools...)
	r.mu.Unlock()
}

// PoolsForMonth returns the stored pools for a client month.
func (r *Repository) PoolsForMonth(ctx context.Context, client string, month time.Time) ([]banking.PoolInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []banking.PoolInput
	for _, pool := range r.pools {
		date := pool.Date.UTC()
		if pool.Client != client || date.Before(monthStart) || !date.Before(nextMonth) {
			continue
		}
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

// SaveAll upserts a settled snapshot.
func (r *Repository) SaveAll(ctx context.Context, plantID string, records []banking.SettlementRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = plantID
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.rows[rec.Client+"|"+rec.Key()] = rec
	}
	return nil
}

// ListByClientMonth returns stored rows for one calendar month.
func (r *Repository) ListByClientMonth(ctx context.Context, client string, month time.Time) ([]banking.SettlementRecord, error) {
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return r.ListByClientRange(ctx, client, monthStart, monthStart.AddDate(0, 1, -1))
}

// ListByClientRange returns stored rows for an inclusive date range.
func (r *Repository) ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	until := to.UTC().AddDate(0, 0, 1)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []banking.SettlementRecord
	for _, rec := range r.rows {
		date := rec.Date.UTC()
		if rec.Client != client || date.Before(from.UTC()) || !date.Before(until) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}
