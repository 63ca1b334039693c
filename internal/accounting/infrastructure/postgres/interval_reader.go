package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	accounting "gridledger/internal/accounting/domain"
)

const (
	defaultGenerationTable  = "generation_intervals"
	defaultConsumptionTable = "consumption_intervals"
	defaultPlantTable       = "plants"
)

// IntervalRepository reads metering intervals from Postgres. Generation
// rows are keyed by plant, consumption rows by the plant's client; the
// two streams are merged per timestamp into one record. Repeated rows
// inside either table are kept as extra records so aggregation can
// flag them instead of silently collapsing them.
type IntervalRepository struct {
	db               *sql.DB
	generationTable  string
	consumptionTable string
	plantTable       string
}

// NewIntervalRepository constructs a repository with default tables.
func NewIntervalRepository(db *sql.DB, opts ...RepositoryOption) *IntervalRepository {
	repo := &IntervalRepository{
		db:               db,
		generationTable:  defaultGenerationTable,
		consumptionTable: defaultConsumptionTable,
		plantTable:       defaultPlantTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*IntervalRepository)

// WithGenerationTable overrides the generation intervals table.
func WithGenerationTable(table string) RepositoryOption {
	return func(repo *IntervalRepository) {
		if table != "" {
			repo.generationTable = table
		}
	}
}

// WithConsumptionTable overrides the consumption intervals table.
func WithConsumptionTable(table string) RepositoryOption {
	return func(repo *IntervalRepository) {
		if table != "" {
			repo.consumptionTable = table
		}
	}
}

// WithPlantTable overrides the plants table.
func WithPlantTable(table string) RepositoryOption {
	return func(repo *IntervalRepository) {
		if table != "" {
			repo.plantTable = table
		}
	}
}

type intervalRow struct {
	ts  time.Time
	kwh float64
}

// Read loads the merged record set for a window. The window bounds are
// inclusive dates; rows are fetched for [start, end+1d).
func (r *IntervalRepository) Read(ctx context.Context, window accounting.Window) ([]accounting.IntervalRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("interval repo: nil db")
	}
	if window.EntityID == "" {
		return nil, accounting.ErrEmptyEntityID
	}

	from := window.Start.UTC()
	until := window.End.UTC().AddDate(0, 0, 1)

	genQuery := fmt.Sprintf(`
SELECT interval_start, energy_kwh
FROM %s
WHERE plant_id = $1 AND interval_start >= $2 AND interval_start < $3
ORDER BY interval_start`, r.generationTable)

	consQuery := fmt.Sprintf(`
SELECT c.interval_start, c.energy_kwh
FROM %s c
JOIN %s p ON p.client_name = c.client_name
WHERE p.plant_id = $1 AND c.interval_start >= $2 AND c.interval_start < $3
ORDER BY c.interval_start`, r.consumptionTable, r.plantTable)

	generation, err := r.fetch(ctx, genQuery, window.EntityID, from, until)
	if err != nil {
		return nil, err
	}
	consumption, err := r.fetch(ctx, consQuery, window.EntityID, from, until)
	if err != nil {
		return nil, err
	}
	return mergeStreams(window.EntityID, generation, consumption), nil
}

func (r *IntervalRepository) fetch(ctx context.Context, query, plantID string, from, until time.Time) ([]intervalRow, error) {
	rows, err := r.db.QueryContext(ctx, query, plantID, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []intervalRow
	for rows.Next() {
		var row intervalRow
		if err := rows.Scan(&row.ts, &row.kwh); err != nil {
			return nil, err
		}
		row.ts = row.ts.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

// mergeStreams pairs generation and consumption samples by timestamp.
// The first row per timestamp and side lands in the shared record;
// further rows on an already-filled side become standalone records so
// duplicates stay visible downstream.
func mergeStreams(entityID string, generation, consumption []intervalRow) []accounting.IntervalRecord {
	type merged struct {
		index   int
		hasGen  bool
		hasCons bool
	}

	var records []accounting.IntervalRecord
	seen := make(map[int64]*merged)

	place := func(ts time.Time, kwh float64, gen bool) {
		key := ts.Unix()
		slot, ok := seen[key]
		if ok && ((gen && !slot.hasGen) || (!gen && !slot.hasCons)) {
			if gen {
				records[slot.index].Generation = kwh
				slot.hasGen = true
			} else {
				records[slot.index].Consumption = kwh
				slot.hasCons = true
			}
			return
		}
		rec := accounting.IntervalRecord{EntityID: entityID, Timestamp: ts}
		if gen {
			rec.Generation = kwh
		} else {
			rec.Consumption = kwh
		}
		records = append(records, rec)
		if !ok {
			seen[key] = &merged{index: len(records) - 1, hasGen: gen, hasCons: !gen}
		}
	}

	for _, row := range generation {
		place(row.ts, row.kwh, true)
	}
	for _, row := range consumption {
		place(row.ts, row.kwh, false)
	}
	return records
}
