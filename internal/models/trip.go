package models

// Trip is one canonical vehicle run on a route. Its ID is derived from the
// route and the headsign discriminator, so several feed trips that represent
// the same logical run collapse onto one Trip.
type Trip struct {
	ID        int64
	RouteID   int
	Headsign  Headsign
	Direction int
}

// TripIdentity derives the numeric identity of a trip from its route and
// headsign. Trips sharing an identity are the same logical run and are merged
// during materialization.
func TripIdentity(routeID int, headsign Headsign, direction int) int64 {
	return int64(routeID)*1000 + int64(headsign.Kind)*100 + int64(headsign.Discriminator(direction))
}

// NewTrip builds a canonical trip with its derived identity.
func NewTrip(routeID int, headsign Headsign, direction int) *Trip {
	return &Trip{
		ID:        TripIdentity(routeID, headsign, direction),
		RouteID:   routeID,
		Headsign:  headsign,
		Direction: direction,
	}
}
