package banking

import (
	"context"
	"time"
)

// PoolReader loads the pre-settlement pools for a client month.
type PoolReader interface {
	PoolsForMonth(ctx context.Context, client string, month time.Time) ([]PoolInput, error)
}

// Repository persists settled ledger rows and serves them back for
// reporting. SaveAll replaces the snapshot row-by-row keyed on
// (client, plant, unit, slot, date).
type Repository interface {
	SaveAll(ctx context.Context, plantID string, records []SettlementRecord) error
	ListByClientMonth(ctx context.Context, client string, month time.Time) ([]SettlementRecord, error)
	ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]SettlementRecord, error)
}
