package accounting

import "time"

// IntervalRecord is one metering sample for an entity: energy generated
// and consumed over one fixed-width interval ending at Timestamp.
// Records are read-only input; ingestion owns their lifecycle.
type IntervalRecord struct {
	EntityID    string
	Timestamp   time.Time
	Generation  float64
	Consumption float64
}

// Window bounds one aggregation request. Start and End are inclusive
// calendar dates; a window whose dates coincide is a single-day request
// and groups by slot only, anything wider produces the daily breakdown
// plus range totals.
type Window struct {
	EntityID string
	Start    time.Time
	End      time.Time
}

// NewWindow normalizes the bounds to UTC midnight and validates order.
func NewWindow(entityID string, start, end time.Time) (Window, error) {
	if entityID == "" {
		return Window{}, ErrEmptyEntityID
	}
	if start.IsZero() || end.IsZero() {
		return Window{}, ErrInvalidWindow
	}
	s := DayOf(start)
	e := DayOf(end)
	if e.Before(s) {
		return Window{}, ErrInvalidWindow
	}
	return Window{EntityID: entityID, Start: s, End: e}, nil
}

// SingleDay reports whether the window spans exactly one calendar date.
func (w Window) SingleDay() bool {
	return w.Start.Equal(w.End)
}

// Days returns the number of calendar dates the window spans.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}
