// Package timeutil provides timezone utilities for Moscow timezone (UTC+3).
// The game audience is Russian-speaking, so all calendar-day boundaries
// (daily streaks, first-game-of-day bonus, leaderboard periods) are computed
// in Moscow time. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// MoscowTZ is the Moscow timezone (UTC+3, no DST).
// Russia abolished DST in 2014, so this is constant year-round.
var MoscowTZ = time.FixedZone("Europe/Moscow", 3*60*60)

// Now returns the current time in Moscow timezone.
func Now() time.Time {
	return time.Now().In(MoscowTZ)
}

// ToMoscow converts a time to Moscow timezone.
func ToMoscow(t time.Time) time.Time {
	return t.In(MoscowTZ)
}

// Date creates a time in Moscow timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, MoscowTZ)
}

// DateTime creates a time in Moscow timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, MoscowTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Moscow timezone.
func StartOfDay(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), msk.Day(), 0, 0, 0, 0, MoscowTZ)
}

// StartOfHour returns the start of the hour in Moscow timezone.
func StartOfHour(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), msk.Day(), msk.Hour(), 0, 0, 0, MoscowTZ)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in Moscow timezone.
func StartOfWeek(t time.Time) time.Time {
	msk := ToMoscow(t)
	weekday := int(msk.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(msk.AddDate(0, 0, -(weekday - 1)))
}

// StartOfMonth returns the start of the month in Moscow timezone.
func StartOfMonth(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), 1, 0, 0, 0, 0, MoscowTZ)
}

// SameDay reports whether two times fall on the same Moscow calendar day.
// A zero time never matches any day.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return StartOfDay(a).Equal(StartOfDay(b))
}

// SameHour reports whether two times fall within the same Moscow clock hour.
func SameHour(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return StartOfHour(a).Equal(StartOfHour(b))
}

// DaysBetween returns the number of whole calendar days between two times
// (Moscow calendar). The result is positive when b is after a.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// IsWeekend reports whether the time falls on Saturday or Sunday in Moscow.
func IsWeekend(t time.Time) bool {
	wd := ToMoscow(t).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// FormatDate formats a time as a date string in Moscow timezone.
func FormatDate(t time.Time) string {
	return ToMoscow(t).Format("2006-01-02")
}

// FormatDateTime formats a time as a date-time string in Moscow timezone.
func FormatDateTime(t time.Time) string {
	return ToMoscow(t).Format("2006-01-02 15:04:05")
}
