package catalog

import (
	"context"
	"time"
)

// Plant is one registered generation site.
type Plant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Client     string    `json:"client"`
	CapacityKW float64   `json:"capacity_kw"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Validate checks plant invariants.
func (p Plant) Validate() error {
	if p.ID == "" {
		return ErrEmptyPlantID
	}
	if p.Name == "" {
		return ErrEmptyPlantName
	}
	return nil
}

// PlantRepository lists and resolves registered plants.
type PlantRepository interface {
	List(ctx context.Context) ([]Plant, error)
	Get(ctx context.Context, id string) (*Plant, error)
}

// DateRangeReader reports the span of stored data for a plant across
// the interval and ledger tables.
type DateRangeReader interface {
	AvailableRange(ctx context.Context, plantID string) (min, max time.Time, err error)
}

// TypeAvailability reports which data types have rows inside a range.
// Consumption rows are keyed by client, not plant.
type TypeAvailability struct {
	Generation  bool `json:"generation"`
	Consumption bool `json:"consumption"`
	Settlement  bool `json:"settlement"`
}

// AvailabilityReader checks per-type row presence for a plant and range.
type AvailabilityReader interface {
	RangeAvailability(ctx context.Context, plantID, client string, from, to time.Time) (TypeAvailability, error)
}
