package slots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridledger/internal/tod"
)

const defaultSlotTable = "tod_slots"

// Provider loads a validated tariff slot table.
type Provider interface {
	Load(ctx context.Context) (*tod.Table, error)
}

// TableProvider loads the slot table from Postgres. Rows are ordered
// by rank so first-match classification follows the stored order.
type TableProvider struct {
	db    *sql.DB
	table string
}

// TableOption configures the provider.
type TableOption func(*TableProvider)

// WithTable overrides the slot definition table.
func WithTable(table string) TableOption {
	return func(p *TableProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// NewTableProvider constructs a provider.
func NewTableProvider(db *sql.DB, opts ...TableOption) *TableProvider {
	provider := &TableProvider{
		db:    db,
		table: defaultSlotTable,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Load reads the slot definitions and validates them as a table.
func (p *TableProvider) Load(ctx context.Context) (*tod.Table, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("slot provider: nil db")
	}

	query := fmt.Sprintf(`
SELECT slot_name, start_hour, end_hour
FROM %s
ORDER BY rank`, p.table)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []tod.Slot
	for rows.Next() {
		var slot tod.Slot
		if err := rows.Scan(&slot.Name, &slot.StartHour, &slot.EndHour); err != nil {
			return nil, err
		}
		defs = append(defs, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tod.NewTable(defs)
}
