// Package policy defines the agency-specific callbacks the materializer
// consults. Every callback is a pure function; agencies implement only the
// capabilities they need and compose the rest from the base policy.
package policy

import "strings"

// RouteFilter decides whether a route takes part in materialization.
type RouteFilter interface {
	IncludeRoute(routeID int, shortName string) bool
}

// TripFilter decides whether a feed trip takes part in materialization.
type TripFilter interface {
	IncludeTrip(tripID int, headsign string) bool
}

// HeadsignCleaner normalizes a rider-facing destination label.
type HeadsignCleaner interface {
	CleanHeadsign(headsign string) string
}

// StopMapper rewrites stop identifiers, for agencies whose feed ids differ
// from the ids the app database uses.
type StopMapper interface {
	MapStopID(stopID int) int
}

// ColorNormalizer normalizes a route color to the app's 6-digit hex form.
type ColorNormalizer interface {
	NormalizeColor(color string) string
}

// TimeCleaner adjusts the precision of a time-of-day value in seconds.
type TimeCleaner interface {
	CleanTimeSecs(secs int) int
}

// Policy is the full callback surface the core consumes.
type Policy interface {
	RouteFilter
	TripFilter
	HeadsignCleaner
	StopMapper
	ColorNormalizer
	TimeCleaner
}

// Base is the default policy: include everything, trim labels, pass ids and
// times through, normalize colors to uppercase hex without a leading '#'.
type Base struct{}

func (Base) IncludeRoute(int, string) bool { return true }

func (Base) IncludeTrip(int, string) bool { return true }

func (Base) CleanHeadsign(headsign string) string { return strings.TrimSpace(headsign) }

func (Base) MapStopID(stopID int) int { return stopID }

func (Base) NormalizeColor(color string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(color), "#"))
}

func (Base) CleanTimeSecs(secs int) int { return secs }

// Composite combines partial policies by delegation: each capability left nil
// falls back to the base policy. This lets an agency supply only the pieces
// it customizes.
type Composite struct {
	Routes   RouteFilter
	Trips    TripFilter
	Headsign HeadsignCleaner
	Stops    StopMapper
	Colors   ColorNormalizer
	Times    TimeCleaner

	base Base
}

func (c Composite) IncludeRoute(routeID int, shortName string) bool {
	if c.Routes != nil {
		return c.Routes.IncludeRoute(routeID, shortName)
	}
	return c.base.IncludeRoute(routeID, shortName)
}

func (c Composite) IncludeTrip(tripID int, headsign string) bool {
	if c.Trips != nil {
		return c.Trips.IncludeTrip(tripID, headsign)
	}
	return c.base.IncludeTrip(tripID, headsign)
}

func (c Composite) CleanHeadsign(headsign string) string {
	if c.Headsign != nil {
		return c.Headsign.CleanHeadsign(headsign)
	}
	return c.base.CleanHeadsign(headsign)
}

func (c Composite) MapStopID(stopID int) int {
	if c.Stops != nil {
		return c.Stops.MapStopID(stopID)
	}
	return c.base.MapStopID(stopID)
}

func (c Composite) NormalizeColor(color string) string {
	if c.Colors != nil {
		return c.Colors.NormalizeColor(color)
	}
	return c.base.NormalizeColor(color)
}

func (c Composite) CleanTimeSecs(secs int) int {
	if c.Times != nil {
		return c.Times.CleanTimeSecs(secs)
	}
	return c.base.CleanTimeSecs(secs)
}
