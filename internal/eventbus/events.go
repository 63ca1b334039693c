package eventbus

import "time"

// MonthSettled is published after a settlement pass is persisted.
// Subscribers use it to refresh report caches and to append the
// run to the audit log.
type MonthSettled struct {
	Client      string
	PlantID     string
	Month       time.Time
	RecordCount int
	SettledAt   time.Time
}

// AggregationWarning is one data-quality finding attached to an
// aggregation pass.
type AggregationWarning struct {
	Code   string
	Detail string
	Count  int
}

// AggregationObserved is published after each aggregation pass so
// monitoring can weigh its findings against the pass size.
type AggregationObserved struct {
	EntityID   string
	From       time.Time
	To         time.Time
	Intervals  int
	Warnings   []AggregationWarning
	ObservedAt time.Time
}
