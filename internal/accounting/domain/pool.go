package accounting

// Metrics is one family of pool values. Every pool carries two: the
// summed totals and the per-interval normalization of those sums.
// Surplus is signed; SurplusGeneration and SurplusDemand are its
// clamped halves and are mutually exclusive by construction. Deficit
// mirrors SurplusDemand under the name the tariff reports use.
type Metrics struct {
	Generation        float64 `json:"generation"`
	Consumption       float64 `json:"consumption"`
	Surplus           float64 `json:"surplus"`
	SurplusGeneration float64 `json:"surplus_generation"`
	SurplusDemand     float64 `json:"surplus_demand"`
	Deficit           float64 `json:"deficit"`
}

// derive fills the surplus family from summed generation/consumption.
// Clamping happens here, after summation, never per interval; clamping
// each interval first would hide netting inside a bucket.
func (m *Metrics) derive() {
	m.Surplus = m.Generation - m.Consumption
	if m.Surplus >= 0 {
		m.SurplusGeneration = m.Surplus
		m.SurplusDemand = 0
	} else {
		m.SurplusGeneration = 0
		m.SurplusDemand = -m.Surplus
	}
	m.Deficit = m.SurplusDemand
}

// scaled divides every value by count, zero-guarded.
func (m Metrics) scaled(count int) Metrics {
	if count <= 0 {
		return Metrics{}
	}
	n := float64(count)
	return Metrics{
		Generation:        m.Generation / n,
		Consumption:       m.Consumption / n,
		Surplus:           m.Surplus / n,
		SurplusGeneration: m.SurplusGeneration / n,
		SurplusDemand:     m.SurplusDemand / n,
		Deficit:           m.Deficit / n,
	}
}

// SlotPool is the aggregated energy for one (entity, bucket) pair.
// Derived on every aggregation call, never persisted.
type SlotPool struct {
	EntityID      string    `json:"entity_id"`
	Key           BucketKey `json:"-"`
	Slot          string    `json:"slot"`
	SlotWindow    string    `json:"slot_window,omitempty"`
	DateKey       string    `json:"date,omitempty"`
	RangeTotal    bool      `json:"range_total"`
	IntervalCount int       `json:"interval_count"`
	Total         Metrics   `json:"total"`
	Normalized    Metrics   `json:"normalized"`
}

// finalize derives the surplus family and the normalized metrics once
// all member intervals have been summed in.
func (p *SlotPool) finalize() {
	p.Total.derive()
	p.Normalized = p.Total.scaled(p.IntervalCount)
	p.Slot = p.Key.Slot
	p.DateKey = p.Key.DayKey()
	p.RangeTotal = p.Key.Kind == BucketRangeTotal
}
