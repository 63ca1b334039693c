package accounting

import (
	"fmt"
	"sort"
	"time"

	"gridledger/internal/tod"
)

// Aggregator folds interval records into per-slot pools. It is pure
// and stateless across calls: the slot table is validated once at
// construction and every Aggregate call recomputes from its input.
type Aggregator struct {
	table *tod.Table
}

// NewAggregator constructs an aggregator over a validated slot table.
func NewAggregator(table *tod.Table) (*Aggregator, error) {
	if table == nil {
		return nil, ErrNilSlotTable
	}
	return &Aggregator{table: table}, nil
}

// Result is one aggregation pass: pools in deterministic order plus
// any data-quality warnings the pass produced.
type Result struct {
	Window   Window     `json:"window"`
	Pools    []SlotPool `json:"pools"`
	Warnings []Warning  `json:"warnings,omitempty"`
}

// Daily returns the per-date pools in output order.
func (r *Result) Daily() []SlotPool {
	if r == nil {
		return nil
	}
	var out []SlotPool
	for _, p := range r.Pools {
		if p.Key.Kind == BucketDaily {
			out = append(out, p)
		}
	}
	return out
}

// RangeTotals returns the whole-range pools in output order.
func (r *Result) RangeTotals() []SlotPool {
	if r == nil {
		return nil
	}
	var out []SlotPool
	for _, p := range r.Pools {
		if p.Key.Kind == BucketRangeTotal {
			out = append(out, p)
		}
	}
	return out
}

// Aggregate groups records into pools for the window. A single-day
// window yields one pool per slot for that date. A multi-day window
// yields the per-(date, slot) breakdown plus per-slot totals over the
// whole range, both from the same pass. Every pool carries summed and
// normalized metric families regardless of which the caller charts.
// An empty input yields zero-valued pools and a warning, not an error.
func (a *Aggregator) Aggregate(records []IntervalRecord, window Window) (*Result, error) {
	if a == nil || a.table == nil {
		return nil, ErrNilSlotTable
	}
	if window.EntityID == "" {
		return nil, ErrEmptyEntityID
	}
	if window.Start.IsZero() || window.End.IsZero() || window.End.Before(window.Start) {
		return nil, ErrInvalidWindow
	}

	singleDay := window.SingleDay()
	sums := make(map[BucketKey]*SlotPool)
	seen := make(map[string]int, len(records))
	warnings := newWarningSet()

	fold := func(key BucketKey, rec IntervalRecord) {
		pool := sums[key]
		if pool == nil {
			pool = &SlotPool{EntityID: window.EntityID, Key: key}
			sums[key] = pool
		}
		pool.IntervalCount++
		pool.Total.Generation += rec.Generation
		pool.Total.Consumption += rec.Consumption
	}

	for _, rec := range records {
		ts := rec.Timestamp.UTC()
		slot := a.table.Classify(ts.Hour())
		if slot == tod.UnknownSlot {
			warnings.add(WarningUnknownHour, fmt.Sprintf("hour %d matches no slot", ts.Hour()))
		}

		dupKey := rec.EntityID + "|" + ts.Format(time.RFC3339)
		seen[dupKey]++
		if seen[dupKey] > 1 {
			warnings.add(WarningDuplicateInterval, dupKey)
		}

		if singleDay {
			fold(DailyBucket(ts, slot), rec)
			continue
		}
		fold(DailyBucket(ts, slot), rec)
		fold(RangeTotalBucket(slot), rec)
	}

	if len(records) == 0 {
		warnings.add(WarningEmptyWindow, window.EntityID)
		for _, name := range a.table.Names() {
			key := RangeTotalBucket(name)
			if singleDay {
				key = DailyBucket(window.Start, name)
			}
			sums[key] = &SlotPool{EntityID: window.EntityID, Key: key}
		}
	}

	pools := make([]SlotPool, 0, len(sums))
	for _, pool := range sums {
		pool.finalize()
		if slot, ok := a.table.Lookup(pool.Slot); ok {
			pool.SlotWindow = slot.Window()
		}
		pools = append(pools, *pool)
	}
	a.sortPools(pools)

	return &Result{Window: window, Pools: pools, Warnings: warnings.list()}, nil
}

// sortPools orders daily pools by date then slot order, with range
// totals after, so output is stable across runs.
func (a *Aggregator) sortPools(pools []SlotPool) {
	order := make(map[string]int)
	for i, name := range a.table.Names() {
		order[name] = i
	}
	rank := func(slot string) int {
		if i, ok := order[slot]; ok {
			return i
		}
		return len(order)
	}
	sort.SliceStable(pools, func(i, j int) bool {
		p, q := pools[i], pools[j]
		if p.Key.Kind != q.Key.Kind {
			return p.Key.Kind == BucketDaily
		}
		if p.Key.Kind == BucketDaily && !p.Key.Date.Equal(q.Key.Date) {
			return p.Key.Date.Before(q.Key.Date)
		}
		return rank(p.Slot) < rank(q.Slot)
	})
}

type warningSet struct {
	byCode map[WarningCode]*Warning
}

func newWarningSet() *warningSet {
	return &warningSet{byCode: make(map[WarningCode]*Warning)}
}

// add records one occurrence; the first detail per code is kept.
func (w *warningSet) add(code WarningCode, detail string) {
	if existing := w.byCode[code]; existing != nil {
		existing.Count++
		return
	}
	w.byCode[code] = &Warning{Code: code, Detail: detail, Count: 1}
}

func (w *warningSet) list() []Warning {
	var out []Warning
	for _, code := range []WarningCode{WarningUnknownHour, WarningDuplicateInterval, WarningEmptyWindow} {
		if warning := w.byCode[code]; warning != nil {
			out = append(out, *warning)
		}
	}
	return out
}
