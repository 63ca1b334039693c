package tod

import (
	"fmt"
	"sort"
)

// Table is an immutable, validated, ordered set of tariff slots.
// Overlap and malformed bounds are rejected at construction so Classify
// never has to re-check configuration per record. Gaps in 24-hour
// coverage are tolerated here (uncovered hours classify as UnknownSlot)
// and reported through UncoveredHours for the caller to surface.
type Table struct {
	slots []Slot
}

// NewTable validates the slot set and builds a table. Order is kept:
// the first slot whose window matches an hour wins classification.
func NewTable(slots []Slot) (*Table, error) {
	if len(slots) == 0 {
		return nil, ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(slots))
	claimed := make(map[int]string, 24)
	for _, slot := range slots {
		if err := slot.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[slot.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSlotName, slot.Name)
		}
		seen[slot.Name] = struct{}{}
		for _, hour := range slot.Hours() {
			if owner, taken := claimed[hour]; taken {
				return nil, fmt.Errorf("%w: hour %d claimed by %s and %s", ErrOverlappingSlots, hour, owner, slot.Name)
			}
			claimed[hour] = slot.Name
		}
	}
	table := &Table{slots: make([]Slot, len(slots))}
	copy(table.slots, slots)
	return table, nil
}

// Classify maps an hour of day to the owning slot name, or UnknownSlot
// when no configured slot claims it. First matching slot wins.
func (t *Table) Classify(hour int) string {
	if t == nil || hour < 0 || hour > 23 {
		return UnknownSlot
	}
	for _, slot := range t.slots {
		if slot.Contains(hour) {
			return slot.Name
		}
	}
	return UnknownSlot
}

// Slots returns a copy of the configured slots in classification order.
func (t *Table) Slots() []Slot {
	if t == nil {
		return nil
	}
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Names returns the slot names in classification order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.slots))
	for _, slot := range t.slots {
		names = append(names, slot.Name)
	}
	return names
}

// Lookup returns the slot carrying the given name.
func (t *Table) Lookup(name string) (Slot, bool) {
	if t == nil {
		return Slot{}, false
	}
	for _, slot := range t.slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return Slot{}, false
}

// UncoveredHours lists hours of the day no slot claims, ascending.
// A non-empty result means those hours classify as UnknownSlot.
func (t *Table) UncoveredHours() []int {
	if t == nil {
		return nil
	}
	var uncovered []int
	for hour := 0; hour < 24; hour++ {
		if t.Classify(hour) == UnknownSlot {
			uncovered = append(uncovered, hour)
		}
	}
	sort.Ints(uncovered)
	return uncovered
}
