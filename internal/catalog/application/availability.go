package application

import (
	"context"
	"errors"
	"log"
	"time"

	catalog "gridledger/internal/catalog/domain"
)

// DefaultMaxRangeDays caps the width of a single availability query.
const DefaultMaxRangeDays = 365

const dayLayout = "2006-01-02"

// Availability describes what data exists for a plant inside a
// requested range, plus the stored span to steer retries.
type Availability struct {
	PlantID       string `json:"plant_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Generation    bool   `json:"generation"`
	Consumption   bool   `json:"consumption"`
	Settlement    bool   `json:"settlement"`
	AvailableFrom string `json:"available_from,omitempty"`
	AvailableTo   string `json:"available_to,omitempty"`
	SuggestedFrom string `json:"suggested_from,omitempty"`
	SuggestedTo   string `json:"suggested_to,omitempty"`
}

// Checker validates requested date ranges and reports data presence
// before any expensive aggregation query runs.
type Checker struct {
	directory *Directory
	types     catalog.AvailabilityReader
	ranges    catalog.DateRangeReader
	clock     Clock
	maxDays   int
	logger    *log.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithMaxRangeDays overrides the range width limit.
func WithMaxRangeDays(days int) CheckerOption {
	return func(c *Checker) {
		if days > 0 {
			c.maxDays = days
		}
	}
}

// NewChecker constructs an availability checker.
func NewChecker(directory *Directory, types catalog.AvailabilityReader, ranges catalog.DateRangeReader, clock Clock, logger *log.Logger, opts ...CheckerOption) (*Checker, error) {
	if directory == nil {
		return nil, errors.New("checker: nil directory")
	}
	if types == nil {
		return nil, errors.New("checker: nil availability reader")
	}
	if ranges == nil {
		return nil, errors.New("checker: nil range reader")
	}
	if clock == nil {
		return nil, errors.New("checker: nil clock")
	}
	if logger == nil {
		return nil, errors.New("checker: nil logger")
	}
	checker := &Checker{
		directory: directory,
		types:     types,
		ranges:    ranges,
		clock:     clock,
		maxDays:   DefaultMaxRangeDays,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker, nil
}

// CheckRange validates the requested range and reports what stored
// data covers it. Validation failures come back as catalog errors so
// callers can map them to client responses.
func (c *Checker) CheckRange(ctx context.Context, plantID string, from, to time.Time) (*Availability, error) {
	if plantID == "" {
		return nil, catalog.ErrEmptyPlantID
	}
	if to.Before(from) {
		return nil, catalog.ErrInvalidRange
	}

	today := startOfDay(c.clock.Now())
	if startOfDay(from).After(today) || startOfDay(to).After(today) {
		c.logger.Printf("availability: plant %s requested future range %s to %s",
			plantID, from.Format(dayLayout), to.Format(dayLayout))
		return nil, catalog.ErrFutureRange
	}
	if int(to.Sub(from).Hours()/24) > c.maxDays {
		return nil, catalog.ErrRangeTooWide
	}

	plant, err := c.directory.Plant(ctx, plantID)
	if err != nil {
		return nil, err
	}

	types, err := c.types.RangeAvailability(ctx, plantID, plant.Client, from, to)
	if err != nil {
		return nil, err
	}

	out := &Availability{
		PlantID:     plantID,
		From:        from.Format(dayLayout),
		To:          to.Format(dayLayout),
		Generation:  types.Generation,
		Consumption: types.Consumption,
		Settlement:  types.Settlement,
	}

	// The stored span is advisory. A failure here degrades the answer
	// but must not fail the whole check.
	min, max, err := c.ranges.AvailableRange(ctx, plantID)
	if err != nil {
		c.logger.Printf("availability: range lookup failed for plant %s: %v", plantID, err)
		return out, nil
	}
	if min.IsZero() || max.IsZero() {
		return out, nil
	}
	out.AvailableFrom = min.Format(dayLayout)
	out.AvailableTo = max.Format(dayLayout)

	if !types.Generation && !types.Settlement {
		suggested := max.AddDate(0, 0, -30)
		if suggested.Before(min) {
			suggested = min
		}
		out.SuggestedFrom = suggested.Format(dayLayout)
		out.SuggestedTo = max.Format(dayLayout)
		c.logger.Printf("availability: plant %s has no data in %s to %s, stored span is %s to %s",
			plantID, out.From, out.To, out.AvailableFrom, out.AvailableTo)
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
