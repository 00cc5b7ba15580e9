// Package timeutil provides timezone utilities for Moscow time (UTC+3).
// Medsenger patients and doctors see message timestamps in Moscow time,
// so deadlines and day boundaries are computed there. Russia abolished
// DST in 2014, so the offset is constant year-round.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// MoscowTZ is the Moscow timezone (UTC+3, no DST).
var MoscowTZ = time.FixedZone("Europe/Moscow", 3*60*60)

// ActionDeadlineTTL is how long an actionable message stays clickable
// on the platform before the action link expires.
const ActionDeadlineTTL = 3 * time.Hour

// Now returns the current time in Moscow timezone.
func Now() time.Time {
	return time.Now().In(MoscowTZ)
}

// ToMoscow converts a time to Moscow timezone.
func ToMoscow(t time.Time) time.Time {
	return t.In(MoscowTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ActionDeadline returns the platform action deadline for a message
// sent at the given time.
func ActionDeadline(sentAt time.Time) time.Time {
	return sentAt.Add(ActionDeadlineTTL)
}

// ActionDeadlineUnix returns the deadline as a Unix timestamp, the form
// the Medsenger API expects.
func ActionDeadlineUnix(sentAt time.Time) int64 {
	return ActionDeadline(sentAt).Unix()
}

// StartOfDay returns the start of the day (00:00:00) in Moscow timezone.
func StartOfDay(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), msk.Day(), 0, 0, 0, 0, MoscowTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in Moscow timezone.
func EndOfDay(t time.Time) time.Time {
	msk := ToMoscow(t)
	return time.Date(msk.Year(), msk.Month(), msk.Day(), 23, 59, 59, 999999999, MoscowTZ)
}

// IsToday checks if the given time is today in Moscow timezone.
func IsToday(t time.Time) bool {
	now := Now()
	msk := ToMoscow(t)
	return msk.Year() == now.Year() &&
		msk.Month() == now.Month() &&
		msk.Day() == now.Day()
}

// IsSameDay checks if two times are on the same day in Moscow timezone.
func IsSameDay(t1, t2 time.Time) bool {
	m1, m2 := ToMoscow(t1), ToMoscow(t2)
	return m1.Year() == m2.Year() && m1.YearDay() == m2.YearDay()
}

// DaysSince calculates the number of days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatRussianDate is the Russian date format (DD.MM.YYYY).
	FormatRussianDate = "02.01.2006"
	// FormatRussianDateTime is the Russian datetime format.
	FormatRussianDateTime = "02.01.2006 15:04"
)

// FormatMoscow formats a time in Moscow timezone with the given layout.
func FormatMoscow(t time.Time, layout string) string {
	return ToMoscow(t).Format(layout)
}

// FormatRussian formats a time in Russian format (DD.MM.YYYY).
func FormatRussian(t time.Time) string {
	return FormatMoscow(t, FormatRussianDate)
}

// ParseMoscow parses a time string in Moscow timezone.
func ParseMoscow(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, MoscowTZ)
}
