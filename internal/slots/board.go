package slots

import (
	"errors"
	"fmt"
)

const (
	NoticeNoSlots     = "No available slots for this day."
	NoticeUnavailable = "Time slots unavailable."
)

var (
	ErrSlotNotFound      = errors.New("slots: time is not in the catalog")
	ErrSlotNotSelectable = errors.New("slots: time is not available")
)

// Board is the rendered slot container for one (doctor, date) pair. At most
// one slot is Selected.
type Board struct {
	Slots  []Slot `json:"slots"`
	Notice string `json:"notice,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// NewBoard wraps reconciled slots, adding the empty-day notice when needed.
func NewBoard(slots []Slot) *Board {
	b := &Board{Slots: slots}
	if len(slots) == 0 {
		b.Notice = NoticeNoSlots
	}
	return b
}

// FailedBoard renders every catalog time as Unavailable after a failed fetch.
func FailedBoard(catalog Catalog) *Board {
	out := make([]Slot, 0, catalog.Len())
	for _, t := range catalog.times {
		out = append(out, Slot{Time: t, Label: t.Label(), State: StateUnavailable})
	}
	return &Board{Slots: out, Notice: NoticeUnavailable, Failed: true}
}

// Select marks t as the one Selected slot, clearing any previous choice.
func (b *Board) Select(t TimeOfDay) error {
	if b == nil {
		return ErrSlotNotFound
	}
	idx := -1
	for i, s := range b.Slots {
		if s.Time == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, t)
	}
	if !b.Slots[idx].Selectable() {
		return fmt.Errorf("%w: %s is %s", ErrSlotNotSelectable, t, b.Slots[idx].State)
	}
	b.ClearSelection()
	b.Slots[idx].State = StateSelected
	return nil
}

// ClearSelection turns the Selected slot, if any, back to Available.
func (b *Board) ClearSelection() {
	if b == nil {
		return
	}
	for i := range b.Slots {
		if b.Slots[i].State == StateSelected {
			b.Slots[i].State = StateAvailable
		}
	}
}

// Selected returns the selected time.
func (b *Board) Selected() (TimeOfDay, bool) {
	if b == nil {
		return 0, false
	}
	for _, s := range b.Slots {
		if s.State == StateSelected {
			return s.Time, true
		}
	}
	return 0, false
}

// Clone returns a deep copy safe to hand to renderers.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Slots = make([]Slot, len(b.Slots))
	copy(cp.Slots, b.Slots)
	return &cp
}
