package memory

import (
	"context"
	"sort"
	"sync"

	accounting "gridledger/internal/accounting/domain"
)

// IntervalSource is an in-memory IntervalReader for tests and seeding.
type IntervalSource struct {
	mu      sync.RWMutex
	records map[string][]accounting.IntervalRecord
}

// NewIntervalSource constructs an empty source.
func NewIntervalSource() *IntervalSource {
	return &IntervalSource{records: make(map[string][]accounting.IntervalRecord)}
}

// Add stores records under their entity ids.
func (s *IntervalSource) Add(records ...accounting.IntervalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.EntityID] = append(s.records[rec.EntityID], rec)
	}
}

// Read returns the stored records falling inside the window in
// timestamp order.
func (s *IntervalSource) Read(ctx context.Context, window accounting.Window) ([]accounting.IntervalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if window.EntityID == "" {
		return nil, accounting.ErrEmptyEntityID
	}

	from := window.Start
	until := window.End.AddDate(0, 0, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []accounting.IntervalRecord
	for _, rec := range s.records[window.EntityID] {
		ts := rec.Timestamp.UTC()
		if ts.Before(from) || !ts.Before(until) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
