package models

// ScheduleEntry is one departure of a trip from a stop under a service.
// Departure is seconds since midnight; ArrivalLead is the number of seconds
// the vehicle arrives before it departs, zero when unknown.
type ScheduleEntry struct {
	ServiceID   int
	TripID      int64
	StopID      int
	Departure   int
	ArrivalLead int
	Headsign    string
}

// ScheduleKey is the natural key of a ScheduleEntry.
type ScheduleKey struct {
	ServiceID int
	TripID    int64
	StopID    int
	Departure int
}

// Key returns the natural key of the entry.
func (e *ScheduleEntry) Key() ScheduleKey {
	return ScheduleKey{ServiceID: e.ServiceID, TripID: e.TripID, StopID: e.StopID, Departure: e.Departure}
}

// SameValue reports whether two entries carry identical payloads. Entries with
// equal keys but different values are an internal inconsistency.
func (e *ScheduleEntry) SameValue(other *ScheduleEntry) bool {
	return *e == *other
}
