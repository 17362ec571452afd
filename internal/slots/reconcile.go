package slots

import "time"

// State is the render state of one slot.
type State string

const (
	StateAvailable State = "available"
	StateBooked    State = "booked"
	StatePast      State = "past"
	StateSelected  State = "selected"
	// StateUnavailable marks every slot when the availability fetch failed.
	StateUnavailable State = "unavailable"
)

// Slot is one catalog time with its reconciled state.
type Slot struct {
	Time  TimeOfDay `json:"time"`
	Label string    `json:"label"`
	State State     `json:"state"`
}

// Selectable reports whether the slot accepts a click.
func (s Slot) Selectable() bool {
	return s.State == StateAvailable || s.State == StateSelected
}

// Reconcile merges the catalog with the server snapshot and the current
// instant. A booked time is Booked regardless of now. Otherwise a time whose
// date@time instant is strictly before now is Past; equal to now is still
// Available. The clinic location is taken from now.
func Reconcile(catalog Catalog, avail Availability, date Date, now time.Time) []Slot {
	var blocked map[TimeOfDay]struct{}
	if avail != nil {
		blocked = avail.Blocked()
	}
	loc := now.Location()

	out := make([]Slot, 0, catalog.Len())
	for _, t := range catalog.times {
		state := StateAvailable
		if _, ok := blocked[t]; ok {
			state = StateBooked
		} else if date.At(t, loc).Before(now) {
			state = StatePast
		}
		out = append(out, Slot{Time: t, Label: t.Label(), State: state})
	}
	return out
}
