package materialize

import (
	"log/slog"
	"sort"

	"scheddb.mobitransit.org/internal/calendar"
	"scheddb.mobitransit.org/internal/feed"
	"scheddb.mobitransit.org/internal/logging"
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/window"
)

// ServiceDate records that a service operates on a concrete date inside the
// resolved window.
type ServiceDate struct {
	ServiceID int
	Date      models.Date
}

// Aggregate is the joined output of all route tasks, sorted deterministically
// by natural keys so it is independent of task completion order.
type Aggregate struct {
	Agencies    []feed.Agency
	Routes      []*feed.Route
	Stops       []*models.Stop
	Trips       []*models.Trip
	TripStops   []*models.TripStop
	Schedules   []*models.ScheduleEntry
	Frequencies []*models.Frequency

	ServiceDates []ServiceDate

	WindowStart    models.Date
	WindowEnd      models.Date
	FirstDeparture int
	LastDeparture  int
}

// Join merges per-route results into one aggregate. Stops are deduplicated
// across routes; a conflicting redefinition keeps the value seen last and is
// reported as a warning, never an error.
func Join(results []*RouteResult, data *feed.Data, res window.Result, logger *slog.Logger) *Aggregate {
	agg := &Aggregate{
		Agencies:       data.Agencies,
		WindowStart:    res.Period.WindowStart,
		WindowEnd:      res.Period.WindowEnd,
		FirstDeparture: -1,
		LastDeparture:  -1,
	}

	stops := make(map[int]*models.Stop)
	for _, r := range results {
		if r == nil {
			continue
		}
		agg.Routes = append(agg.Routes, r.Route)
		for _, t := range r.Trips {
			agg.Trips = append(agg.Trips, t)
		}
		for _, ts := range r.TripStops {
			agg.TripStops = append(agg.TripStops, ts)
		}
		for _, e := range r.Schedules {
			agg.Schedules = append(agg.Schedules, e)
		}
		for _, f := range r.Frequencies {
			agg.Frequencies = append(agg.Frequencies, f)
		}
		for id, s := range r.Stops {
			if prev, ok := stops[id]; ok && !prev.SameValue(s) {
				if logger != nil {
					logger.Warn("conflicting stop redefinition, keeping last",
						slog.Int("stop_id", id), slog.String("name", s.Name))
				}
			}
			stops[id] = s
		}
		if r.FirstDeparture >= 0 && (agg.FirstDeparture < 0 || r.FirstDeparture < agg.FirstDeparture) {
			agg.FirstDeparture = r.FirstDeparture
		}
		if r.LastDeparture > agg.LastDeparture {
			agg.LastDeparture = r.LastDeparture
		}
	}
	for _, s := range stops {
		agg.Stops = append(agg.Stops, s)
	}

	agg.ServiceDates = serviceDates(data.Calendars, res)
	agg.sortCollections()

	logging.LogOperation(logger, "results aggregated",
		slog.Int("routes", len(agg.Routes)),
		slog.Int("trips", len(agg.Trips)),
		slog.Int("stops", len(agg.Stops)),
		slog.Int("schedule_entries", len(agg.Schedules)),
		slog.Int("service_dates", len(agg.ServiceDates)))

	return agg
}

func (a *Aggregate) sortCollections() {
	sort.Slice(a.Routes, func(i, j int) bool { return a.Routes[i].ID < a.Routes[j].ID })
	sort.Slice(a.Stops, func(i, j int) bool { return a.Stops[i].ID < a.Stops[j].ID })
	sort.Slice(a.Trips, func(i, j int) bool { return a.Trips[i].ID < a.Trips[j].ID })
	sort.Slice(a.TripStops, func(i, j int) bool {
		if a.TripStops[i].TripID != a.TripStops[j].TripID {
			return a.TripStops[i].TripID < a.TripStops[j].TripID
		}
		return a.TripStops[i].Sequence < a.TripStops[j].Sequence
	})
	sort.Slice(a.Schedules, func(i, j int) bool {
		x, y := a.Schedules[i], a.Schedules[j]
		if x.ServiceID != y.ServiceID {
			return x.ServiceID < y.ServiceID
		}
		if x.TripID != y.TripID {
			return x.TripID < y.TripID
		}
		if x.StopID != y.StopID {
			return x.StopID < y.StopID
		}
		return x.Departure < y.Departure
	})
	sort.Slice(a.Frequencies, func(i, j int) bool {
		if a.Frequencies[i].TripID != a.Frequencies[j].TripID {
			return a.Frequencies[i].TripID < a.Frequencies[j].TripID
		}
		return a.Frequencies[i].Start < a.Frequencies[j].Start
	})
	sort.Slice(a.ServiceDates, func(i, j int) bool {
		if a.ServiceDates[i].Date != a.ServiceDates[j].Date {
			return a.ServiceDates[i].Date < a.ServiceDates[j].Date
		}
		return a.ServiceDates[i].ServiceID < a.ServiceDates[j].ServiceID
	})
}

// serviceDates expands the resolved window into concrete per-date service
// activations, honoring removed-service exceptions.
func serviceDates(idx *calendar.Index, res window.Result) []ServiceDate {
	if !res.Period.Resolved() || idx == nil {
		return nil
	}

	var dates []ServiceDate
	for d := res.Period.WindowStart; d <= res.Period.WindowEnd; d = d.AddDays(1) {
		removed := make(map[int]bool)
		for _, ex := range idx.ExceptionsOn(d) {
			if ex.Kind == calendar.ServiceRemoved {
				removed[ex.ServiceID] = true
			}
		}
		seen := make(map[int]bool)
		for _, e := range idx.ActiveOn(d) {
			if _, ok := res.ServiceIDs[e.ServiceID]; !ok {
				continue
			}
			if removed[e.ServiceID] || seen[e.ServiceID] {
				continue
			}
			seen[e.ServiceID] = true
			dates = append(dates, ServiceDate{ServiceID: e.ServiceID, Date: d})
		}
		for _, ex := range idx.AddedOn(d) {
			if _, ok := res.ServiceIDs[ex.ServiceID]; !ok {
				continue
			}
			if removed[ex.ServiceID] || seen[ex.ServiceID] {
				continue
			}
			seen[ex.ServiceID] = true
			dates = append(dates, ServiceDate{ServiceID: ex.ServiceID, Date: d})
		}
	}
	return dates
}
