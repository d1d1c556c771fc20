package models

// TripStop records that a trip visits a stop at a given position. Sequence is
// the only mutable field: it is rewritten when stop orders from disagreeing
// trips are merged.
type TripStop struct {
	TripID      int64
	StopID      int
	Sequence    int
	DescentOnly bool
}

// TripStopKey is the natural key of a TripStop.
type TripStopKey struct {
	TripID int64
	StopID int
}

// Key returns the natural key of the trip stop.
func (ts *TripStop) Key() TripStopKey {
	return TripStopKey{TripID: ts.TripID, StopID: ts.StopID}
}
