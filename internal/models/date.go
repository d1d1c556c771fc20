package models

import (
	"fmt"
	"time"
)

// Date is a calendar date encoded as a YYYYMMDD integer, the same encoding
// used by GTFS calendar files. The zero value means "unknown".
type Date int

// NewDate builds a Date from a year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date(year*10000 + int(month)*100 + day)
}

// DateFromTime truncates t to its calendar date.
func DateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Time converts the date to a time.Time at midnight UTC.
func (d Date) Time() time.Time {
	year := int(d) / 10000
	month := time.Month(int(d) / 100 % 100)
	day := int(d) % 100
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d. n may be negative.
func (d Date) AddDays(n int) Date {
	return DateFromTime(d.Time().AddDate(0, 0, n))
}

// Weekday returns the day of the week d falls on.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%08d", int(d))
}

// DaysBetween returns the number of days from a to b. The result is negative
// when b precedes a.
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}
