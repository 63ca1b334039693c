package banking

import "time"

// PoolInput is one pre-settlement surplus pool for a billing unit and
// tariff slot on one settlement date. Pools clamped at the slot level
// carry at most one positive side; pools ingested as sums of
// per-interval surpluses can carry both. The ledger assumes neither
// shape: stage 0 nets whatever overlap a pool brings.
type PoolInput struct {
	Client               string
	Unit                 string
	Slot                 string
	SlotWindow           string
	Date                 time.Time
	SurplusGenerationSum float64
	SurplusDemandSum     float64
}

// DayOf truncates a timestamp to its UTC calendar date.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey renders the settlement-cycle key for a date.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// MonthKey renders the reporting key for a month.
func MonthKey(t time.Time) string {
	return t.UTC().Format("200601")
}
