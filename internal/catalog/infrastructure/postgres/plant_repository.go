package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	catalog "gridledger/internal/catalog/domain"
)

const (
	defaultPlantTable       = "plants"
	defaultGenerationTable  = "generation_intervals"
	defaultConsumptionTable = "consumption_intervals"
	defaultSettlementTable  = "banking_settlements"
)

// PlantRepository is a Postgres implementation of the plant catalog.
// It also answers availability probes over the interval and ledger
// tables so the API can validate ranges before aggregating.
type PlantRepository struct {
	db               *sql.DB
	plantTable       string
	generationTable  string
	consumptionTable string
	settlementTable  string
}

// NewPlantRepository constructs a repository with default table names.
func NewPlantRepository(db *sql.DB, opts ...RepositoryOption) *PlantRepository {
	repo := &PlantRepository{
		db:               db,
		plantTable:       defaultPlantTable,
		generationTable:  defaultGenerationTable,
		consumptionTable: defaultConsumptionTable,
		settlementTable:  defaultSettlementTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*PlantRepository)

// WithPlantTable overrides the plants table.
func WithPlantTable(table string) RepositoryOption {
	return func(repo *PlantRepository) {
		if table != "" {
			repo.plantTable = table
		}
	}
}

// WithGenerationTable overrides the generation intervals table.
func WithGenerationTable(table string) RepositoryOption {
	return func(repo *PlantRepository) {
		if table != "" {
			repo.generationTable = table
		}
	}
}

// WithConsumptionTable overrides the consumption intervals table.
func WithConsumptionTable(table string) RepositoryOption {
	return func(repo *PlantRepository) {
		if table != "" {
			repo.consumptionTable = table
		}
	}
}

// WithSettlementTable overrides the banking settlements table.
func WithSettlementTable(table string) RepositoryOption {
	return func(repo *PlantRepository) {
		if table != "" {
			repo.settlementTable = table
		}
	}
}

// List returns every registered plant ordered by id.
func (r *PlantRepository) List(ctx context.Context) ([]catalog.Plant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("plant repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT plant_id, plant_name, client_name, capacity_kw, created_at
FROM %s
ORDER BY plant_id`, r.plantTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plants []catalog.Plant
	for rows.Next() {
		var plant catalog.Plant
		var created sql.NullTime
		if err := rows.Scan(&plant.ID, &plant.Name, &plant.Client, &plant.CapacityKW, &created); err != nil {
			return nil, err
		}
		if created.Valid {
			plant.CreatedAt = created.Time
		}
		plants = append(plants, plant)
	}
	return plants, rows.Err()
}

// Get resolves one plant by id.
func (r *PlantRepository) Get(ctx context.Context, id string) (*catalog.Plant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("plant repo: nil db")
	}
	if id == "" {
		return nil, catalog.ErrEmptyPlantID
	}

	query := fmt.Sprintf(`
SELECT plant_id, plant_name, client_name, capacity_kw, created_at
FROM %s
WHERE plant_id = $1`, r.plantTable)

	var plant catalog.Plant
	var created sql.NullTime
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&plant.ID, &plant.Name, &plant.Client, &plant.CapacityKW, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrPlantNotFound
		}
		return nil, err
	}
	if created.Valid {
		plant.CreatedAt = created.Time
	}
	return &plant, nil
}

// AvailableRange reports the widest stored span for a plant across the
// generation interval and settlement tables.
func (r *PlantRepository) AvailableRange(ctx context.Context, plantID string) (time.Time, time.Time, error) {
	if r == nil || r.db == nil {
		return time.Time{}, time.Time{}, errors.New("plant repo: nil db")
	}
	if plantID == "" {
		return time.Time{}, time.Time{}, catalog.ErrEmptyPlantID
	}

	query := fmt.Sprintf(`
SELECT MIN(d), MAX(d) FROM (
	SELECT interval_start AS d FROM %s WHERE plant_id = $1
	UNION ALL
	SELECT settlement_date AS d FROM %s WHERE plant_id = $1
) spans`, r.generationTable, r.settlementTable)

	var min, max sql.NullTime
	row := r.db.QueryRowContext(ctx, query, plantID)
	if err := row.Scan(&min, &max); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !min.Valid || !max.Valid {
		return time.Time{}, time.Time{}, nil
	}
	return min.Time, max.Time, nil
}

// RangeAvailability checks per-type row presence inside a range.
// Generation and settlement rows are keyed by plant, consumption rows
// by the plant's client.
func (r *PlantRepository) RangeAvailability(ctx context.Context, plantID, client string, from, to time.Time) (catalog.TypeAvailability, error) {
	if r == nil || r.db == nil {
		return catalog.TypeAvailability{}, errors.New("plant repo: nil db")
	}
	if plantID == "" {
		return catalog.TypeAvailability{}, catalog.ErrEmptyPlantID
	}

	// End bound is exclusive at the following midnight so the last
	// requested date counts in full.
	until := to.AddDate(0, 0, 1)

	query := fmt.Sprintf(`
SELECT
	EXISTS (SELECT 1 FROM %s WHERE plant_id = $1 AND interval_start >= $3 AND interval_start < $4),
	EXISTS (SELECT 1 FROM %s WHERE client_name = $2 AND interval_start >= $3 AND interval_start < $4),
	EXISTS (SELECT 1 FROM %s WHERE plant_id = $1 AND settlement_date >= $3 AND settlement_date < $4)`,
		r.generationTable, r.consumptionTable, r.settlementTable)

	var out catalog.TypeAvailability
	row := r.db.QueryRowContext(ctx, query, plantID, client, from.UTC(), until.UTC())
	if err := row.Scan(&out.Generation, &out.Consumption, &out.Settlement); err != nil {
		return catalog.TypeAvailability{}, err
	}
	return out, nil
}
