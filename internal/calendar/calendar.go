// Package calendar indexes the feed's recurring calendars and per-date
// exceptions for lookup by date and by service identifier.
package calendar

import (
	"scheddb.mobitransit.org/internal/models"
)

// ExceptionKind distinguishes the two per-date override kinds.
type ExceptionKind int

const (
	ServiceAdded ExceptionKind = iota + 1
	ServiceRemoved
)

// Entry is a weekly recurring calendar record: a service identifier, seven
// day-of-week flags and an inclusive date interval. Immutable once read.
type Entry struct {
	ServiceID int
	Weekdays  [7]bool // indexed by time.Weekday
	Start     models.Date
	End       models.Date

	activations []models.Date
}

// ActiveOn reports whether the entry's weekly pattern is active on d and its
// interval contains d.
func (e *Entry) ActiveOn(d models.Date) bool {
	return e.Start <= d && d <= e.End && e.Weekdays[d.Weekday()]
}

// Overlaps reports whether the entry's interval intersects [start, end].
func (e *Entry) Overlaps(start, end models.Date) bool {
	return e.Start <= end && start <= e.End
}

// Within reports whether the entry's interval lies fully inside [start, end].
func (e *Entry) Within(start, end models.Date) bool {
	return start <= e.Start && e.End <= end
}

// Activations expands the entry into its concrete per-date activations. The
// expansion is computed on first use and memoized.
func (e *Entry) Activations() []models.Date {
	if e.activations == nil {
		e.activations = make([]models.Date, 0, models.DaysBetween(e.Start, e.End)+1)
		for d := e.Start; d <= e.End; d = d.AddDays(1) {
			if e.Weekdays[d.Weekday()] {
				e.activations = append(e.activations, d)
			}
		}
	}
	return e.activations
}

// DateException is a single-date override of a service's activation.
type DateException struct {
	ServiceID int
	Date      models.Date
	Kind      ExceptionKind
}

// Index holds the feed's calendar records, queryable by date and service.
type Index struct {
	entries    []*Entry
	exceptions []DateException
	byDate     map[models.Date][]DateException
	byService  map[int][]DateException
}

// NewIndex builds an index over the given entries and exceptions.
func NewIndex(entries []*Entry, exceptions []DateException) *Index {
	ix := &Index{
		entries:    entries,
		exceptions: exceptions,
		byDate:     make(map[models.Date][]DateException),
		byService:  make(map[int][]DateException),
	}
	for _, ex := range exceptions {
		ix.byDate[ex.Date] = append(ix.byDate[ex.Date], ex)
		ix.byService[ex.ServiceID] = append(ix.byService[ex.ServiceID], ex)
	}
	return ix
}

// HasCalendars reports whether any recurring calendars exist. When false, the
// feed defines service exclusively through per-date exceptions.
func (ix *Index) HasCalendars() bool {
	return len(ix.entries) > 0
}

// Entries returns all recurring calendar entries.
func (ix *Index) Entries() []*Entry {
	return ix.entries
}

// ActiveOn returns the entries active on d.
func (ix *Index) ActiveOn(d models.Date) []*Entry {
	var active []*Entry
	for _, e := range ix.entries {
		if e.ActiveOn(d) {
			active = append(active, e)
		}
	}
	return active
}

// Overlapping returns the entries whose interval intersects [start, end].
func (ix *Index) Overlapping(start, end models.Date) []*Entry {
	var overlapping []*Entry
	for _, e := range ix.entries {
		if e.Overlaps(start, end) {
			overlapping = append(overlapping, e)
		}
	}
	return overlapping
}

// ExceptionsOn returns all exceptions dated exactly d.
func (ix *Index) ExceptionsOn(d models.Date) []DateException {
	return ix.byDate[d]
}

// AddedOn returns the SERVICE_ADDED exceptions dated exactly d.
func (ix *Index) AddedOn(d models.Date) []DateException {
	var added []DateException
	for _, ex := range ix.byDate[d] {
		if ex.Kind == ServiceAdded {
			added = append(added, ex)
		}
	}
	return added
}

// ExceptionsForService returns all exceptions of one service.
func (ix *Index) ExceptionsForService(serviceID int) []DateException {
	return ix.byService[serviceID]
}

// Exceptions returns all exceptions in the feed.
func (ix *Index) Exceptions() []DateException {
	return ix.exceptions
}
