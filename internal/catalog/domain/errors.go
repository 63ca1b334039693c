package catalog

import "errors"

var (
	// ErrEmptyPlantID is returned when a plant id is empty.
	ErrEmptyPlantID = errors.New("catalog: empty plant id")
	// ErrEmptyPlantName is returned when a plant name is empty.
	ErrEmptyPlantName = errors.New("catalog: empty plant name")
	// ErrPlantNotFound is returned when no plant matches the id.
	ErrPlantNotFound = errors.New("catalog: plant not found")
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("catalog: range start after end")
	// ErrFutureRange is returned when a requested range lies in the future.
	ErrFutureRange = errors.New("catalog: requested range is in the future")
	// ErrRangeTooWide is returned when a range exceeds the query limit.
	ErrRangeTooWide = errors.New("catalog: requested range too wide")
)
