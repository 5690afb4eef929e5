// Package policy implements the delivery time-window and daily-cap rules.
package policy

import (
	"time"
)

// HolidayFunc reports whether a date is a public holiday. The zero value
// (nil) treats no day as a holiday.
type HolidayFunc func(t time.Time) bool

// Window constrains when notifications may be delivered: an allowed
// hour-of-day range plus optional weekend/holiday delivery.
type Window struct {
	StartHour       int
	EndHour         int
	WeekendsAllowed bool
	HolidaysAllowed bool
	Location        *time.Location
	IsHoliday       HolidayFunc
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w Window) dayAllowed(t time.Time) bool {
	if !w.WeekendsAllowed {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	if !w.HolidaysAllowed && w.IsHoliday != nil && w.IsHoliday(t) {
		return false
	}
	return true
}

// Allows reports whether a notification may be delivered at the given
// instant.
func (w Window) Allows(t time.Time) bool {
	local := t.In(w.location())
	hour := local.Hour()
	if hour < w.StartHour || hour >= w.EndHour {
		return false
	}
	return w.dayAllowed(local)
}

// NextValidTime returns the earliest instant at or after t that falls inside
// the window: the window-start hour of the next allowed day, or t itself
// when it is already valid.
func (w Window) NextValidTime(t time.Time) time.Time {
	local := t.In(w.location())
	if w.Allows(local) {
		return local
	}

	next := local
	switch hour := local.Hour(); {
	case hour < w.StartHour:
		next = w.atStartHour(local)
	case hour >= w.EndHour:
		next = w.atStartHour(local.AddDate(0, 0, 1))
	default:
		// Hour is in range, so the day itself is disallowed.
		next = w.atStartHour(local)
	}

	for !w.dayAllowed(next) {
		next = w.atStartHour(next.AddDate(0, 0, 1))
	}
	return next
}

// NextDayStart returns the window-start hour of the first allowed day after
// t's calendar day. Used when a borrower's daily notification cap is hit.
func (w Window) NextDayStart(t time.Time) time.Time {
	local := t.In(w.location())
	next := w.atStartHour(local.AddDate(0, 0, 1))
	for !w.dayAllowed(next) {
		next = w.atStartHour(next.AddDate(0, 0, 1))
	}
	return next
}

// DayBounds returns the half-open calendar-day interval [start, end)
// containing t, in the window's location. The daily cap counts sent
// notifications inside this interval.
func (w Window) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(w.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.location())
	return start, start.AddDate(0, 0, 1)
}

func (w Window) atStartHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), w.StartHour, 0, 0, 0, w.location())
}
