package slots

import (
	"encoding/json"
	"strings"
)

// Availability is a server snapshot of which times are already taken for one
// (doctor, date) pair. The booking API reports it in two shapes; both
// implement this interface.
type Availability interface {
	// Blocked returns the set of times that must not be offered.
	Blocked() map[TimeOfDay]struct{}
}

// BookedTimes is the raw list of booked datetimes, e.g.
// "2025-06-02T10:00:00". Entries whose time component cannot be read are
// ignored.
type BookedTimes []string

func (b BookedTimes) Blocked() map[TimeOfDay]struct{} {
	out := make(map[TimeOfDay]struct{}, len(b))
	for _, raw := range b {
		t, ok := timeComponent(raw)
		if !ok {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// AvailabilityRecord is one explicit {time, isAvailable} entry.
type AvailabilityRecord struct {
	Time        string `json:"time"`
	IsAvailable *bool  `json:"isAvailable,omitempty"`
}

// UnmarshalJSON also accepts the snake_case is_available spelling.
func (r *AvailabilityRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time           string `json:"time"`
		IsAvailable    *bool  `json:"isAvailable"`
		IsAvailableAlt *bool  `json:"is_available"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Time = raw.Time
	r.IsAvailable = raw.IsAvailable
	if r.IsAvailable == nil {
		r.IsAvailable = raw.IsAvailableAlt
	}
	return nil
}

// AvailabilitySlots lists explicit records. Only entries marked unavailable
// block a time; unlisted times stay available. Records with an unreadable
// time or no availability flag are dropped.
type AvailabilitySlots []AvailabilityRecord

func (a AvailabilitySlots) Blocked() map[TimeOfDay]struct{} {
	out := make(map[TimeOfDay]struct{}, len(a))
	for _, rec := range a {
		if rec.IsAvailable == nil || *rec.IsAvailable {
			continue
		}
		t, ok := timeComponent(rec.Time)
		if !ok {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// NoBookings is an empty snapshot.
var NoBookings Availability = BookedTimes(nil)

// timeComponent extracts the wall-clock time from either a full datetime
// ("2025-06-02T10:00:00Z", "2025-06-02 10:00:00") or a bare "HH:MM[:SS]".
func timeComponent(raw string) (TimeOfDay, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if idx := strings.IndexAny(raw, "T "); idx >= 0 {
		raw = raw[idx+1:]
	}
	if end := strings.IndexFunc(raw, func(r rune) bool { return r != ':' && (r < '0' || r > '9') }); end >= 0 {
		raw = raw[:end]
	}
	if len(raw) > 8 {
		raw = raw[:8]
	}
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		return 0, false
	}
	return t, true
}
