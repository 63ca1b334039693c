package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultRunTable = "settlement_runs"

// Repository appends run entries to Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default run table.
func WithTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs a run log repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultRunTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Log appends one run entry.
func (r *Repository) Log(ctx context.Context, entry RunEntry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, client_name, plant_id, month, status, error,
	record_count, rounding_shortfall, snapshot_digest,
	requested_by, duration_ms, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Client, entry.PlantID, entry.Month.UTC(), entry.Status, entry.Error,
		entry.RecordCount, entry.RoundingShortfall, entry.SnapshotDigest,
		entry.RequestedBy, entry.Duration.Milliseconds(), entry.CreatedAt)
	return err
}
