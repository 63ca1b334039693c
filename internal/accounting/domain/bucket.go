package accounting

import "time"

// BucketKind distinguishes daily-breakdown pools from whole-range
// totals. Multi-day aggregation emits both kinds from one pass; the
// kind tag is explicit so no consumer has to guess from a sentinel
// date which rows are which.
type BucketKind int

const (
	// BucketDaily is a per-calendar-date pool.
	BucketDaily BucketKind = iota
	// BucketRangeTotal is a pool summed over the whole request range.
	BucketRangeTotal
)

// String returns the kind label used in output and logs.
func (k BucketKind) String() string {
	switch k {
	case BucketDaily:
		return "daily"
	case BucketRangeTotal:
		return "range_total"
	default:
		return "unknown"
	}
}

// BucketKey identifies one aggregation pool. Date is meaningful only
// for BucketDaily keys and is always UTC midnight.
type BucketKey struct {
	Kind BucketKind
	Date time.Time
	Slot string
}

// DailyBucket builds a key for one calendar date and slot.
func DailyBucket(date time.Time, slot string) BucketKey {
	return BucketKey{Kind: BucketDaily, Date: DayOf(date), Slot: slot}
}

// RangeTotalBucket builds a key for the whole-range pool of a slot.
func RangeTotalBucket(slot string) BucketKey {
	return BucketKey{Kind: BucketRangeTotal, Slot: slot}
}

// DayKey renders the date component, empty for range totals.
func (k BucketKey) DayKey() string {
	if k.Kind != BucketDaily {
		return ""
	}
	return DayKey(k.Date)
}
