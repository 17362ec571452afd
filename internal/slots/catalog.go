// Package slots owns the daily appointment slot grid and the rules that decide
// which of its times a patient may book.
package slots

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

var (
	ErrInvalidTime  = errors.New("slots: invalid time of day")
	ErrInvalidDate  = errors.New("slots: invalid date")
	ErrInvalidRange = errors.New("slots: invalid catalog range")
)

// TimeOfDay is a wall-clock time in the clinic's location, stored as seconds
// since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from its parts.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidTime, hour, minute, second)
	}
	return TimeOfDay(hour*3600 + minute*60 + second), nil
}

// MustTimeOfDay is NewTimeOfDay for constants.
func MustTimeOfDay(hour, minute, second int) TimeOfDay {
	t, err := NewTimeOfDay(hour, minute, second)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if len(s) != len(layout) {
			continue
		}
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return NewTimeOfDay(parsed.Hour(), parsed.Minute(), parsed.Second())
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String formats as HH:MM:SS, the form the booking API uses.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Label formats as HH:MM for display.
func (t TimeOfDay) Label() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTime, string(data))
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day in the clinic's location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(parsed), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At combines the date with a time of day in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// MarshalJSON writes the zero Date as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Catalog is the immutable ordered set of candidate times for any day.
type Catalog struct {
	times []TimeOfDay
}

// DefaultCatalog returns the clinic's hourly grid, 09:00 through 16:00.
func DefaultCatalog() Catalog {
	c, _ := NewCatalog(MustTimeOfDay(9, 0, 0), MustTimeOfDay(16, 0, 0), time.Hour)
	return c
}

// NewCatalog builds a grid from start to end inclusive at step granularity.
func NewCatalog(start, end TimeOfDay, step time.Duration) (Catalog, error) {
	if step < time.Second || step%time.Second != 0 {
		return Catalog{}, fmt.Errorf("%w: step %s", ErrInvalidRange, step)
	}
	if end < start {
		return Catalog{}, fmt.Errorf("%w: %s before %s", ErrInvalidRange, end, start)
	}
	if start < 0 || int(end) >= secondsPerDay {
		return Catalog{}, fmt.Errorf("%w: %s-%s", ErrInvalidRange, start, end)
	}
	stepSecs := int(step / time.Second)
	times := make([]TimeOfDay, 0, (int(end-start)/stepSecs)+1)
	for t := int(start); t <= int(end); t += stepSecs {
		times = append(times, TimeOfDay(t))
	}
	return Catalog{times: times}, nil
}

// CatalogOf wraps an explicit list of times, keeping their order.
func CatalogOf(times ...TimeOfDay) Catalog {
	cp := make([]TimeOfDay, len(times))
	copy(cp, times)
	return Catalog{times: cp}
}

// Times returns a copy of the catalog's times in order.
func (c Catalog) Times() []TimeOfDay {
	cp := make([]TimeOfDay, len(c.times))
	copy(cp, c.times)
	return cp
}

func (c Catalog) Len() int { return len(c.times) }

func (c Catalog) Contains(t TimeOfDay) bool {
	for _, ct := range c.times {
		if ct == t {
			return true
		}
	}
	return false
}
