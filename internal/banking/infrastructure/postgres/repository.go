package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	banking "gridledger/internal/banking/domain"
)

const defaultSettlementTable = "banking_settlements"

// BankingRepository stores the banking ledger in one table: ingestion
// writes the pool columns, a settlement pass fills the per-stage audit
// columns for the same rows.
type BankingRepository struct {
	db    *sql.DB
	table string
}

// NewBankingRepository constructs a repository with defaults.
func NewBankingRepository(db *sql.DB, opts ...RepositoryOption) *BankingRepository {
	repo := &BankingRepository{
		db:    db,
		table: defaultSettlementTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*BankingRepository)

// WithTable overrides the default table.
func WithTable(table string) RepositoryOption {
	return func(repo *BankingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// PoolsForMonth loads the pre-settlement pools for a client month.
func (r *BankingRepository) PoolsForMonth(ctx context.Context, client string, month time.Time) ([]banking.PoolInput, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("banking repo: nil db")
	}
	if client == "" {
		return nil, errors.New("banking repo: empty client")
	}

	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	query := fmt.Sprintf(`
SELECT client_name, cons_unit, slot_name, slot_window, settlement_date,
	surplus_generation_sum, surplus_demand_sum
FROM %s
WHERE client_name = $1 AND settlement_date >= $2 AND settlement_date < $3
ORDER BY settlement_date, cons_unit, slot_name`, r.table)

	rows, err := r.db.QueryContext(ctx, query, client, monthStart, nextMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []banking.PoolInput
	for rows.Next() {
		var pool banking.PoolInput
		var window sql.NullString
		if err := rows.Scan(&pool.Client, &pool.Unit, &pool.Slot, &window, &pool.Date,
			&pool.SurplusGenerationSum, &pool.SurplusDemandSum); err != nil {
			return nil, err
		}
		pool.SlotWindow = window.String
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// SaveAll upserts a settled snapshot row-by-row inside one
// transaction, keyed on (client, plant, unit, slot, date).
func (r *BankingRepository) SaveAll(ctx context.Context, plantID string, records []banking.SettlementRecord) error {
	if r == nil || r.db == nil {
		return errors.New("banking repo: nil db")
	}
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	client_name,
	plant_id,
	cons_unit,
	slot_name,
	slot_window,
	settlement_date,
	surplus_demand_sum,
	surplus_generation_sum,
	matched_settled_sum,
	surplus_generation_after_intra,
	surplus_demand_after_intra,
	intra_settlement,
	surplus_generation_after_inter,
	surplus_demand_after_inter,
	inter_settlement
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)
ON CONFLICT (client_name, plant_id, cons_unit, slot_name, settlement_date)
DO UPDATE SET
	slot_window = EXCLUDED.slot_window,
	surplus_demand_sum = EXCLUDED.surplus_demand_sum,
	surplus_generation_sum = EXCLUDED.surplus_generation_sum,
	matched_settled_sum = EXCLUDED.matched_settled_sum,
	surplus_generation_after_intra = EXCLUDED.surplus_generation_after_intra,
	surplus_demand_after_intra = EXCLUDED.surplus_demand_after_intra,
	intra_settlement = EXCLUDED.intra_settlement,
	surplus_generation_after_inter = EXCLUDED.surplus_generation_after_inter,
	surplus_demand_after_inter = EXCLUDED.surplus_demand_after_inter,
	inter_settlement = EXCLUDED.inter_settlement,
	updated_at = NOW()`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Unit == "" || rec.Slot == "" || rec.Date.IsZero() {
			_ = tx.Rollback()
			return errors.New("banking repo: invalid record")
		}
		if _, err := stmt.ExecContext(
			ctx,
			rec.Client,
			plantID,
			rec.Unit,
			rec.Slot,
			rec.SlotWindow,
			rec.Date.UTC(),
			rec.SurplusDemandSum,
			rec.SurplusGenerationSum,
			rec.MatchedSettledSum,
			rec.SurplusGenerationAfterIntra,
			rec.SurplusDemandAfterIntra,
			rec.IntraSettlement,
			rec.SurplusGenerationAfterInter,
			rec.SurplusDemandAfterInter,
			rec.InterSettlement,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListByClientMonth returns the stored rows for one calendar month.
func (r *BankingRepository) ListByClientMonth(ctx context.Context, client string, month time.Time) ([]banking.SettlementRecord, error) {
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return r.ListByClientRange(ctx, client, monthStart, monthStart.AddDate(0, 1, -1))
}

// ListByClientRange returns the stored rows for an inclusive date range.
func (r *BankingRepository) ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("banking repo: nil db")
	}
	if client == "" {
		return nil, errors.New("banking repo: empty client")
	}

	until := to.UTC().AddDate(0, 0, 1)

	query := fmt.Sprintf(`
SELECT client_name, cons_unit, slot_name, slot_window, settlement_date,
	surplus_demand_sum, surplus_generation_sum, matched_settled_sum,
	surplus_generation_after_intra, surplus_demand_after_intra, intra_settlement,
	surplus_generation_after_inter, surplus_demand_after_inter, inter_settlement
FROM %s
WHERE client_name = $1 AND settlement_date >= $2 AND settlement_date < $3
ORDER BY settlement_date, cons_unit, slot_name`, r.table)

	rows, err := r.db.QueryContext(ctx, query, client, from.UTC(), until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []banking.SettlementRecord
	for rows.Next() {
		var rec banking.SettlementRecord
		var window sql.NullString
		if err := rows.Scan(&rec.Client, &rec.Unit, &rec.Slot, &window, &rec.Date,
			&rec.SurplusDemandSum, &rec.SurplusGenerationSum, &rec.MatchedSettledSum,
			&rec.SurplusGenerationAfterIntra, &rec.SurplusDemandAfterIntra, &rec.IntraSettlement,
			&rec.SurplusGenerationAfterInter, &rec.SurplusDemandAfterInter, &rec.InterSettlement); err != nil {
			return nil, err
		}
		rec.SlotWindow = window.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
