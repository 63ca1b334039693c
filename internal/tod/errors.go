package tod

import "errors"

var (
	// ErrEmptyTable is returned when no slots are configured.
	ErrEmptyTable = errors.New("tod: empty slot table")
	// ErrEmptySlotName is returned when a slot has no name.
	ErrEmptySlotName = errors.New("tod: empty slot name")
	// ErrReservedSlotName is returned when a slot claims the sentinel name.
	ErrReservedSlotName = errors.New("tod: slot name is reserved")
	// ErrDuplicateSlotName is returned when two slots share a name.
	ErrDuplicateSlotName = errors.New("tod: duplicate slot name")
	// ErrInvalidHour is returned when a slot bound is outside 0..23.
	ErrInvalidHour = errors.New("tod: hour out of range")
	// ErrOverlappingSlots is returned when two slots claim the same hour.
	ErrOverlappingSlots = errors.New("tod: overlapping slots")
)
