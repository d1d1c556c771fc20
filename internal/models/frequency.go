package models

// Frequency describes headway-based service on a trip between Start and End,
// both seconds since midnight. HeadwaySecs is the interval between departures.
type Frequency struct {
	TripID      int64
	Start       int
	End         int
	HeadwaySecs int
	ExactTimes  bool
}

// FrequencyKey is the natural key of a Frequency.
type FrequencyKey struct {
	TripID int64
	Start  int
}

// Key returns the natural key of the frequency.
func (f *Frequency) Key() FrequencyKey {
	return FrequencyKey{TripID: f.TripID, Start: f.Start}
}

// SameValue reports whether two frequencies carry identical payloads.
func (f *Frequency) SameValue(other *Frequency) bool {
	return *f == *other
}
