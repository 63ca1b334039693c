package quality

import "time"

// Finding codes.
const (
	CodeUncoveredHours = "uncovered_hours"
	CodeUnknownShare   = "unknown_share"
	CodeDuplicateRows  = "duplicate_rows"
	CodeEmptyWindow    = "empty_window"
)

// Finding is one elevated data-quality result, already past the
// configured thresholds and worth a notification.
type Finding struct {
	EntityID string `json:"entity_id,omitempty"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Count    int    `json:"count,omitempty"`
}

// Report is one webhook delivery.
type Report struct {
	EntityID string    `json:"entity_id,omitempty"`
	Findings []Finding `json:"findings"`
	SentAt   time.Time `json:"sent_at"`
}
