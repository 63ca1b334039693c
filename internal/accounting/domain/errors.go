package accounting

import "errors"

var (
	// ErrEmptyEntityID is returned when a request names no entity.
	ErrEmptyEntityID = errors.New("accounting: empty entity id")
	// ErrInvalidWindow is returned when window bounds are zero or reversed.
	ErrInvalidWindow = errors.New("accounting: invalid window")
	// ErrNilSlotTable is returned when an aggregator is built without slots.
	ErrNilSlotTable = errors.New("accounting: nil slot table")
)
