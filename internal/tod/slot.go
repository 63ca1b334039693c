package tod

import (
	"fmt"
	"time"
)

// UnknownSlot is the sentinel bin for hours no configured slot claims.
// Classification into it is a data-quality signal, never a failure.
const UnknownSlot = "Unknown"

// Slot is a named tariff window over hours of the day. The window is
// half-open [StartHour, EndHour); EndHour <= StartHour means the slot
// wraps past midnight (22 -> 6 covers 22,23,0..5).
type Slot struct {
	Name      string
	StartHour int
	EndHour   int
}

// Wraps reports whether the slot crosses midnight.
func (s Slot) Wraps() bool {
	return s.EndHour <= s.StartHour
}

// Contains reports whether the hour falls inside the slot window.
func (s Slot) Contains(hour int) bool {
	if s.Wraps() {
		return hour >= s.StartHour || hour < s.EndHour
	}
	return hour >= s.StartHour && hour < s.EndHour
}

// Hours expands the window into the hours it claims, in window order.
func (s Slot) Hours() []int {
	hours := make([]int, 0, 24)
	h := s.StartHour
	for {
		hours = append(hours, h)
		h = (h + 1) % 24
		if h == s.EndHour || len(hours) == 24 {
			break
		}
	}
	return hours
}

// Window renders the slot bounds as a display label, e.g. "06:00 - 10:00".
func (s Slot) Window() string {
	return fmt.Sprintf("%02d:00 - %02d:00", s.StartHour, s.EndHour)
}

func (s Slot) validate() error {
	if s.Name == "" {
		return ErrEmptySlotName
	}
	if s.Name == UnknownSlot {
		return ErrReservedSlotName
	}
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 {
		return fmt.Errorf("%w: %s [%d, %d)", ErrInvalidHour, s.Name, s.StartHour, s.EndHour)
	}
	return nil
}

// HourOf extracts the classification hour from a timestamp.
func HourOf(t time.Time) int {
	return t.Hour()
}
