package quality

import (
	"fmt"

	accounting "gridledger/internal/accounting/domain"
	"gridledger/internal/eventbus"
	"gridledger/internal/tod"
)

const (
	// DefaultMaxUnknownShare is the tolerated fraction of intervals
	// landing in the sentinel slot before a pass is flagged.
	DefaultMaxUnknownShare = 0.05
	// DefaultMinDuplicates is the duplicate-row count that triggers a
	// finding. Occasional duplicates are logged by aggregation already.
	DefaultMinDuplicates = 10
)

// Checker turns raw aggregation warnings into findings using
// configured thresholds. It is stateless and safe for concurrent use.
type Checker struct {
	maxUnknownShare float64
	minDuplicates   int
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithMaxUnknownShare overrides the unknown-interval share threshold.
func WithMaxUnknownShare(share float64) CheckerOption {
	return func(c *Checker) {
		if share > 0 && share <= 1 {
			c.maxUnknownShare = share
		}
	}
}

// WithMinDuplicates overrides the duplicate-row threshold.
func WithMinDuplicates(count int) CheckerOption {
	return func(c *Checker) {
		if count > 0 {
			c.minDuplicates = count
		}
	}
}

// NewChecker constructs a checker with default thresholds.
func NewChecker(opts ...CheckerOption) *Checker {
	checker := &Checker{
		maxUnknownShare: DefaultMaxUnknownShare,
		minDuplicates:   DefaultMinDuplicates,
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker
}

// TableFindings inspects a slot table for coverage gaps. A table with
// uncovered hours still loads; this surfaces the gap on startup.
func (c *Checker) TableFindings(table *tod.Table) []Finding {
	if table == nil {
		return nil
	}
	uncovered := table.UncoveredHours()
	if len(uncovered) == 0 {
		return nil
	}
	return []Finding{{
		Code:   CodeUncoveredHours,
		Detail: fmt.Sprintf("slot table leaves %d hours unclassified: %v", len(uncovered), uncovered),
		Count:  len(uncovered),
	}}
}

// Evaluate weighs one aggregation pass against the thresholds.
func (c *Checker) Evaluate(event eventbus.AggregationObserved) []Finding {
	var findings []Finding
	for _, w := range event.Warnings {
		switch w.Code {
		case string(accounting.WarningUnknownHour):
			share := float64(w.Count) / float64(maxInt(event.Intervals, 1))
			if share > c.maxUnknownShare {
				findings = append(findings, Finding{
					EntityID: event.EntityID,
					Code:     CodeUnknownShare,
					Detail: fmt.Sprintf("%.1f%% of %d intervals hit no configured slot",
						share*100, event.Intervals),
					Count: w.Count,
				})
			}
		case string(accounting.WarningDuplicateInterval):
			if w.Count >= c.minDuplicates {
				findings = append(findings, Finding{
					EntityID: event.EntityID,
					Code:     CodeDuplicateRows,
					Detail:   w.Detail,
					Count:    w.Count,
				})
			}
		case string(accounting.WarningEmptyWindow):
			findings = append(findings, Finding{
				EntityID: event.EntityID,
				Code:     CodeEmptyWindow,
				Detail:   w.Detail,
			})
		}
	}
	return findings
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
