// utils/daytime.go
package utils

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultProfitTimezone is the zone every "today" comparison is made in.
const DefaultProfitTimezone = "Asia/Kolkata"

const dayKeyLayout = "2006-01-02"

// DayClock resolves day boundaries in one canonical location.
type DayClock struct {
	loc *time.Location
	now func() time.Time
}

// NewDayClock loads the named zone. An empty name falls back to DefaultProfitTimezone.
func NewDayClock(zone string) (*DayClock, error) {
	if zone == "" {
		zone = DefaultProfitTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &DayClock{loc: loc, now: time.Now}, nil
}

// NewFixedDayClock builds a clock whose Now is provided by the caller.
func NewFixedDayClock(loc *time.Location, now func() time.Time) *DayClock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &DayClock{loc: loc, now: now}
}

func (d *DayClock) Location() *time.Location {
	return d.loc
}

func (d *DayClock) Now() time.Time {
	return d.now().In(d.loc)
}

// StartOfDay returns midnight of t's calendar day in the canonical location.
func (d *DayClock) StartOfDay(t time.Time) time.Time {
	t = t.In(d.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, d.loc)
}

// Today returns the start of the current canonical day.
func (d *DayClock) Today() time.Time {
	return d.StartOfDay(d.Now())
}

// DayBounds returns [start, end) of t's canonical day.
func (d *DayClock) DayBounds(t time.Time) (time.Time, time.Time) {
	start := d.StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// DayKey formats t's canonical day as YYYY-MM-DD.
func (d *DayClock) DayKey(t time.Time) string {
	return t.In(d.loc).Format(dayKeyLayout)
}

// ParseDay parses a YYYY-MM-DD string as the start of that day in the canonical location.
func (d *DayClock) ParseDay(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, value, d.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}
