package accounting

// WarningCode classifies a non-fatal data-quality finding. Warnings
// never abort an aggregation; output is produced in degraded form and
// the finding is returned for the caller to surface.
type WarningCode string

const (
	// WarningUnknownHour marks intervals no configured slot claims.
	WarningUnknownHour WarningCode = "unknown_hour"
	// WarningDuplicateInterval marks repeated (entity, timestamp) rows.
	// Duplicates are summed into the pool, one IntervalCount each, so
	// aggregation conservation still holds against the raw input.
	WarningDuplicateInterval WarningCode = "duplicate_interval"
	// WarningEmptyWindow marks a request with no underlying records.
	WarningEmptyWindow WarningCode = "empty_window"
)

// Warning is one data-quality finding with a per-code occurrence count.
type Warning struct {
	Code   WarningCode `json:"code"`
	Detail string      `json:"detail"`
	Count  int         `json:"count"`
}
