// Package materialize builds the final normalized schedule entities from the
// staged feed data: one task per route, fanned out over a bounded worker
// pool, joined by a single-threaded aggregator.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"scheddb.mobitransit.org/gtfsdb"
	"scheddb.mobitransit.org/internal/feed"
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/policy"
)

// RouteResult holds everything one route task produced. The task owns these
// maps exclusively until it returns; afterwards the aggregator is the only
// reader.
type RouteResult struct {
	Route       *feed.Route
	Trips       map[int64]*models.Trip
	TripStops   map[models.TripStopKey]*models.TripStop
	Stops       map[int]*models.Stop
	Schedules   map[models.ScheduleKey]*models.ScheduleEntry
	Frequencies map[models.FrequencyKey]*models.Frequency

	// Earliest and latest departure seen on this route, seconds since
	// midnight. Valid only when Schedules is non-empty.
	FirstDeparture int
	LastDeparture  int
}

// Materializer builds RouteResults. One instance is shared by all route
// tasks; it carries no per-route state.
type Materializer struct {
	store    *gtfsdb.Client
	data     *feed.Data
	pol      policy.Policy
	services map[int]struct{}
	logger   *slog.Logger
}

// NewMaterializer returns a materializer over the given feed snapshot. Only
// trips whose service id is in services are ever materialized.
func NewMaterializer(store *gtfsdb.Client, data *feed.Data, pol policy.Policy, services map[int]struct{}, logger *slog.Logger) *Materializer {
	return &Materializer{store: store, data: data, pol: pol, services: services, logger: logger}
}

// TripsFor returns the route's feed trips that survive the service-window and
// policy filters. The dispatcher uses this to skip routes with nothing to do.
func (m *Materializer) TripsFor(route *feed.Route) []*feed.Trip {
	var kept []*feed.Trip
	for _, t := range m.data.TripsByRoute[route.ID] {
		if _, ok := m.services[t.ServiceID]; !ok {
			continue
		}
		if !m.pol.IncludeTrip(t.ID, t.Headsign.Label()) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// MaterializeRoute builds the deduplicated entities for one route.
func (m *Materializer) MaterializeRoute(ctx context.Context, route *feed.Route) (*RouteResult, error) {
	feedTrips := m.TripsFor(route)
	if len(feedTrips) == 0 {
		return nil, fmt.Errorf("route %d has no trips after filtering", route.ID)
	}

	res := &RouteResult{
		Route:          route,
		Trips:          make(map[int64]*models.Trip),
		TripStops:      make(map[models.TripStopKey]*models.TripStop),
		Stops:          make(map[int]*models.Stop),
		Schedules:      make(map[models.ScheduleKey]*models.ScheduleEntry),
		Frequencies:    make(map[models.FrequencyKey]*models.Frequency),
		FirstDeparture: -1,
		LastDeparture:  -1,
	}

	// Canonical trips. Several feed trips can collapse onto one identity;
	// free-text headsigns that disagree are merged, anything else that
	// disagrees is fatal.
	tripFor := make(map[int]int64, len(feedTrips))
	serviceFor := make(map[int]int, len(feedTrips))
	for _, ft := range feedTrips {
		identity := models.TripIdentity(route.ID, ft.Headsign, ft.Direction)
		tripFor[ft.ID] = identity
		serviceFor[ft.ID] = ft.ServiceID
		existing, ok := res.Trips[identity]
		if !ok {
			res.Trips[identity] = models.NewTrip(route.ID, ft.Headsign, ft.Direction)
			continue
		}
		merged, err := mergeHeadsigns(route.ID, existing.Headsign, ft.Headsign)
		if err != nil {
			return nil, err
		}
		existing.Headsign = merged
	}

	tripIDs := make([]int, 0, len(feedTrips))
	for _, ft := range feedTrips {
		tripIDs = append(tripIDs, ft.ID)
	}
	sort.Ints(tripIDs)

	visits, err := m.store.StopVisitsForTrips(ctx, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("error loading stop visits for route %d: %w", route.ID, err)
	}

	byTrip := groupVisits(visits)
	coords := make(map[int]models.CoordinatePoint)

	// Stop orders per canonical trip, one observed ordering per feed trip.
	orders := make(map[int64][][]int)
	descent := make(map[int64]map[int]bool)
	orderTrips := make([]int, 0, len(byTrip))
	for tripID := range byTrip {
		orderTrips = append(orderTrips, tripID)
	}
	sort.Ints(orderTrips)

	for _, feedTripID := range orderTrips {
		rows := byTrip[feedTripID]
		identity := tripFor[feedTripID]

		interpolateTimes(rows, m.logger)

		order, descentHere, err := m.stopOrder(route.ID, rows)
		if err != nil {
			return nil, err
		}
		for _, stopID := range order {
			if err := m.cacheStop(route.ID, stopID, coords, res.Stops); err != nil {
				return nil, err
			}
		}

		orders[identity] = append(orders[identity], order)
		if descent[identity] == nil {
			descent[identity] = make(map[int]bool)
		}
		for stopID, d := range descentHere {
			if d {
				descent[identity][stopID] = true
			}
		}

		if err := m.buildSchedules(route.ID, identity, serviceFor[feedTripID], rows, res); err != nil {
			return nil, err
		}
	}

	if err := m.reconcileStopOrders(route.ID, orders, descent, coords, res); err != nil {
		return nil, err
	}

	if err := m.checkDescriptiveness(route.ID, res, byTrip, tripFor); err != nil {
		return nil, err
	}

	if err := m.buildFrequencies(ctx, route.ID, tripIDs, tripFor, res); err != nil {
		return nil, err
	}

	return res, nil
}

// mergeHeadsigns combines the headsigns of two feed trips that share an
// identity. Free-text values merge; everything else must already be equal.
func mergeHeadsigns(routeID int, a, b models.Headsign) (models.Headsign, error) {
	if a.Equal(b) {
		return a, nil
	}
	if a.Kind != b.Kind {
		return a, fatalf(KindHeadsignConflict, routeID,
			"trips with the same identity use %q and %q", a.Label(), b.Label())
	}
	if a.Kind != models.HeadsignText {
		return a, fatalf(KindHeadsignConflict, routeID,
			"trips with the same identity disagree on headsign %q vs %q", a.Label(), b.Label())
	}
	if strings.Contains(a.Text, b.Text) {
		return a, nil
	}
	if strings.Contains(b.Text, a.Text) {
		return b, nil
	}
	first, second := a.Text, b.Text
	if second < first {
		first, second = second, first
	}
	return models.TextHeadsign(first + " / " + second), nil
}

func groupVisits(visits []gtfsdb.StopVisit) map[int][]gtfsdb.StopVisit {
	byTrip := make(map[int][]gtfsdb.StopVisit)
	for _, v := range visits {
		byTrip[v.TripID] = append(byTrip[v.TripID], v)
	}
	return byTrip
}

// interpolateTimes fills unset arrival/departure times in place by linear
// interpolation between the nearest explicit rows, apportioned by
// stop-sequence distance. Rows arrive ordered by stop sequence.
func interpolateTimes(rows []gtfsdb.StopVisit, logger *slog.Logger) {
	for i := range rows {
		if rows[i].DepartureSecs >= 0 {
			continue
		}

		prev := -1
		for p := i - 1; p >= 0; p-- {
			if rows[p].DepartureSecs >= 0 {
				prev = p
				break
			}
		}
		next := -1
		for n := i + 1; n < len(rows); n++ {
			if rows[n].ArrivalSecs >= 0 {
				next = n
				break
			}
		}

		var secs int
		switch {
		case prev >= 0 && next >= 0:
			span := rows[next].StopSequence - rows[prev].StopSequence
			if span <= 0 {
				span = 1
			}
			offset := rows[i].StopSequence - rows[prev].StopSequence
			delta := rows[next].ArrivalSecs - rows[prev].DepartureSecs
			secs = rows[prev].DepartureSecs + delta*offset/span
		case prev >= 0:
			secs = rows[prev].DepartureSecs
		case next >= 0:
			secs = rows[next].ArrivalSecs
		default:
			if logger != nil {
				logger.Warn("trip has no explicit stop times, skipping row",
					slog.Int("trip_id", rows[i].TripID), slog.Int("stop_sequence", rows[i].StopSequence))
			}
			continue
		}
		rows[i].ArrivalSecs = secs
		rows[i].DepartureSecs = secs
	}
}

// stopOrder extracts the ordered stop-id list of one feed trip, applying the
// agency stop mapping. A repeated stop is tolerated when the repeat is
// descent-only or last on the trip; anything else is a key collision.
func (m *Materializer) stopOrder(routeID int, rows []gtfsdb.StopVisit) ([]int, map[int]bool, error) {
	var order []int
	seen := make(map[int]bool)
	descent := make(map[int]bool)
	for i, v := range rows {
		stopID := m.pol.MapStopID(v.StopID)
		last := i == len(rows)-1
		descentOnly := v.PickupType == 1 || last
		if seen[stopID] {
			if descentOnly {
				descent[stopID] = true
				continue
			}
			return nil, nil, fatalf(KindKeyCollision, routeID,
				"trip %d visits stop %d twice with pickup allowed", v.TripID, stopID)
		}
		seen[stopID] = true
		order = append(order, stopID)
		if descentOnly {
			descent[stopID] = true
		}
	}
	return order, descent, nil
}

func (m *Materializer) cacheStop(routeID, stopID int, coords map[int]models.CoordinatePoint, stops map[int]*models.Stop) error {
	if _, ok := coords[stopID]; ok {
		return nil
	}
	src, ok := m.data.Stops[stopID]
	if !ok {
		return fatalf(KindMissingCoordinate, routeID, "stop %d has no cached coordinate", stopID)
	}
	coords[stopID] = models.CoordinatePoint{Lat: src.Lat, Lon: src.Lon}
	stops[stopID] = &models.Stop{ID: src.ID, Code: src.Code, Name: src.Name, Lat: src.Lat, Lon: src.Lon}
	return nil
}

// reconcileStopOrders merges the per-feed-trip orderings of each canonical
// trip into one sequence and emits the trip stops, renumbered densely from 1.
func (m *Materializer) reconcileStopOrders(routeID int, orders map[int64][][]int, descent map[int64]map[int]bool, coords map[int]models.CoordinatePoint, res *RouteResult) error {
	identities := make([]int64, 0, len(orders))
	for id := range orders {
		identities = append(identities, id)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })

	for _, identity := range identities {
		observed := orders[identity]
		final := observed[0]
		for _, other := range observed[1:] {
			if equalOrders(final, other) {
				continue
			}
			merged, err := mergeStopOrders(routeID, final, other, coords)
			if err != nil {
				return err
			}
			final = merged
		}

		for seq, stopID := range final {
			last := seq == len(final)-1
			ts := &models.TripStop{
				TripID:      identity,
				StopID:      stopID,
				Sequence:    seq + 1,
				DescentOnly: descent[identity][stopID] || last,
			}
			res.TripStops[ts.Key()] = ts
		}
	}
	return nil
}

// buildSchedules emits one schedule entry per stop visit of one feed trip,
// deduplicated by natural key across the feed trips of a canonical trip.
func (m *Materializer) buildSchedules(routeID int, identity int64, serviceID int, rows []gtfsdb.StopVisit, res *RouteResult) error {
	for _, v := range rows {
		if v.DepartureSecs < 0 {
			continue
		}
		departure := m.pol.CleanTimeSecs(v.DepartureSecs)
		lead := 0
		if v.ArrivalSecs >= 0 {
			arrival := m.pol.CleanTimeSecs(v.ArrivalSecs)
			if arrival < departure {
				lead = departure - arrival
			}
		}
		entry := &models.ScheduleEntry{
			ServiceID:   serviceID,
			TripID:      identity,
			StopID:      m.pol.MapStopID(v.StopID),
			Departure:   departure,
			ArrivalLead: lead,
			Headsign:    v.Headsign,
		}
		key := entry.Key()
		if existing, ok := res.Schedules[key]; ok {
			if existing.SameValue(entry) {
				continue
			}
			return fatalf(KindKeyCollision, routeID,
				"schedule entry for trip %d stop %d at %d has two payloads", identity, entry.StopID, departure)
		}
		res.Schedules[key] = entry
		if res.FirstDeparture < 0 || departure < res.FirstDeparture {
			res.FirstDeparture = departure
		}
		if departure > res.LastDeparture {
			res.LastDeparture = departure
		}
	}
	return nil
}

// checkDescriptiveness enforces that free-text headsigns on a route are
// non-blank and mutually distinct. A trip in violation first tries the
// per-stop headsign recorded in its visits; after that a single trip per
// route may keep a non-distinct headsign.
func (m *Materializer) checkDescriptiveness(routeID int, res *RouteResult, byTrip map[int][]gtfsdb.StopVisit, tripFor map[int]int64) error {
	identities := make([]int64, 0, len(res.Trips))
	usesText := false
	for id, t := range res.Trips {
		identities = append(identities, id)
		if t.Headsign.Kind == models.HeadsignText {
			usesText = true
		}
	}
	if !usesText {
		return nil
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })

	labels := make(map[string]int64)
	grandfathered := false
	for _, identity := range identities {
		trip := res.Trips[identity]
		label := trip.Headsign.Label()
		holder, taken := labels[label]
		if label != "" && (!taken || holder == identity) {
			labels[label] = identity
			continue
		}

		if sub, ok := stopHeadsignFor(identity, byTrip, tripFor, label); ok {
			if _, dup := labels[sub]; !dup {
				trip.Headsign = models.TextHeadsign(sub)
				labels[sub] = identity
				continue
			}
		}

		if !grandfathered {
			grandfathered = true
			if m.logger != nil {
				m.logger.Warn("allowing non-distinct headsign",
					slog.Int("route_id", routeID), slog.Int64("trip_id", identity), slog.String("headsign", label))
			}
			continue
		}
		return fatalf(KindHeadsignNotDescriptive, routeID,
			"trip %d headsign %q is not distinct and the route's exception is spent", identity, label)
	}
	return nil
}

// stopHeadsignFor finds a per-stop headsign among the trip's visits that
// differs from the trip-level label.
func stopHeadsignFor(identity int64, byTrip map[int][]gtfsdb.StopVisit, tripFor map[int]int64, label string) (string, bool) {
	feedTrips := make([]int, 0, len(byTrip))
	for feedTripID := range byTrip {
		if tripFor[feedTripID] == identity {
			feedTrips = append(feedTrips, feedTripID)
		}
	}
	sort.Ints(feedTrips)
	for _, feedTripID := range feedTrips {
		for _, v := range byTrip[feedTripID] {
			if v.Headsign != "" && v.Headsign != label {
				return v.Headsign, true
			}
		}
	}
	return "", false
}

func (m *Materializer) buildFrequencies(ctx context.Context, routeID int, tripIDs []int, tripFor map[int]int64, res *RouteResult) error {
	rows, err := m.store.FrequenciesForTrips(ctx, tripIDs)
	if err != nil {
		return fmt.Errorf("error loading frequencies for route %d: %w", routeID, err)
	}
	for _, row := range rows {
		identity, ok := tripFor[row.TripID]
		if !ok {
			continue
		}
		f := &models.Frequency{
			TripID:      identity,
			Start:       m.pol.CleanTimeSecs(row.StartSecs),
			End:         m.pol.CleanTimeSecs(row.EndSecs),
			HeadwaySecs: row.HeadwaySecs,
			ExactTimes:  row.ExactTimes != 0,
		}
		key := f.Key()
		if existing, ok := res.Frequencies[key]; ok {
			if existing.SameValue(f) {
				continue
			}
			return fatalf(KindKeyCollision, routeID,
				"frequency for trip %d at %d has two payloads", identity, f.Start)
		}
		res.Frequencies[key] = f
	}
	return nil
}
