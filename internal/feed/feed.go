// Package feed reads a GTFS static archive into normalized in-memory records
// with interned integer identifiers, and stages the bulky stop-visit and
// frequency rows into the tabular staging store.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jamespfennell/gtfs"

	"scheddb.mobitransit.org/gtfsdb"
	"scheddb.mobitransit.org/internal/calendar"
	"scheddb.mobitransit.org/internal/logging"
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/policy"
	"scheddb.mobitransit.org/internal/utils"
)

// Agency is a transit operator in the feed.
type Agency struct {
	ID       string
	Name     string
	Timezone string
}

// Route is a normalized route record.
type Route struct {
	ID        int
	AgencyID  string
	ShortName string
	LongName  string
	Type      int
	Color     string
	TextColor string
}

// Trip is a normalized feed trip. ID is the interned feed trip id, distinct
// from the derived canonical trip identity built during materialization.
type Trip struct {
	ID        int
	RouteID   int
	ServiceID int
	Headsign  models.Headsign
	Direction int
}

// Stop is a normalized stop record with mandatory coordinates.
type Stop struct {
	ID   int
	Code string
	Name string
	Lat  float64
	Lon  float64
}

// Data is the normalized, read-only view of one feed.
type Data struct {
	Agencies     []Agency
	Routes       []*Route
	Trips        []*Trip
	Stops        map[int]*Stop
	TripsByRoute map[int][]*Trip
	Calendars    *calendar.Index

	RouteIDs   *Interner
	TripIDs    *Interner
	StopIDs    *Interner
	ServiceIDs *Interner
}

// Load parses the GTFS zip at path, normalizes it and stages stop-visit and
// frequency rows into the store. When agency is non-empty, routes of other
// agencies are dropped.
func Load(ctx context.Context, path string, store *gtfsdb.Client, pol policy.Policy, agency string, logger *slog.Logger) (*Data, error) {
	start := time.Now()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading feed: %w", err)
	}
	static, err := gtfs.ParseStatic(raw, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing feed: %w", err)
	}
	if len(static.Warnings) > 0 {
		logging.LogOperation(logger, "feed parsed with warnings", slog.Int("warnings", len(static.Warnings)))
	}

	data := &Data{
		Stops:        make(map[int]*Stop),
		TripsByRoute: make(map[int][]*Trip),
		RouteIDs:     NewInterner(),
		TripIDs:      NewInterner(),
		StopIDs:      NewInterner(),
		ServiceIDs:   NewInterner(),
	}

	for _, a := range static.Agencies {
		data.Agencies = append(data.Agencies, Agency{ID: a.Id, Name: a.Name, Timezone: a.Timezone})
	}

	included := make(map[int]bool)
	for i := range static.Routes {
		r := &static.Routes[i]
		if agency != "" && r.Agency != nil && r.Agency.Id != agency {
			continue
		}
		id := data.RouteIDs.ID(r.Id)
		agencyID := agency
		if r.Agency != nil {
			agencyID = r.Agency.Id
		}
		data.Routes = append(data.Routes, &Route{
			ID:        id,
			AgencyID:  agencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      int(r.Type),
			Color:     pol.NormalizeColor(r.Color),
			TextColor: pol.NormalizeColor(r.TextColor),
		})
		included[id] = true
	}

	for i := range static.Stops {
		s := &static.Stops[i]
		if s.Latitude == nil || s.Longitude == nil {
			// Malformed row: tolerated upstream, skipped here.
			if logger != nil {
				logger.Warn("skipping stop without coordinates", slog.String("stop_id", s.Id))
			}
			continue
		}
		id := data.StopIDs.ID(s.Id)
		data.Stops[id] = &Stop{
			ID:   id,
			Code: s.Code,
			Name: s.Name,
			Lat:  *s.Latitude,
			Lon:  *s.Longitude,
		}
	}

	// With an agency filter in place, only services referenced by a surviving
	// trip may reach the calendar index; a foreign agency's calendars would
	// otherwise stretch the schedule window.
	var keepServices map[string]bool
	if agency != "" {
		keepServices = make(map[string]bool)
	}

	var visits []gtfsdb.StopVisit
	var freqs []gtfsdb.FrequencyRow
	for i := range static.Trips {
		t := &static.Trips[i]
		if t.Route == nil || t.Service == nil {
			if logger != nil {
				logger.Warn("skipping trip without route or service", slog.String("trip_id", t.ID))
			}
			continue
		}
		routeID, ok := data.RouteIDs.Lookup(t.Route.Id)
		if !ok || !included[routeID] {
			continue
		}
		if keepServices != nil {
			keepServices[t.Service.Id] = true
		}
		trip := &Trip{
			ID:        data.TripIDs.ID(t.ID),
			RouteID:   routeID,
			ServiceID: data.ServiceIDs.ID(t.Service.Id),
			Direction: int(t.DirectionId),
			Headsign:  deriveHeadsign(t, pol),
		}
		data.Trips = append(data.Trips, trip)
		data.TripsByRoute[routeID] = append(data.TripsByRoute[routeID], trip)

		for j := range t.StopTimes {
			st := &t.StopTimes[j]
			if st.Stop == nil {
				continue
			}
			stopID, ok := data.StopIDs.Lookup(st.Stop.Id)
			if !ok {
				continue
			}
			arr, dep := int(st.ArrivalTime/time.Second), int(st.DepartureTime/time.Second)
			if !st.ExactTimes {
				// Non-timepoint rows carry approximate times only; stage them
				// unset so the materializer interpolates.
				arr, dep = -1, -1
			}
			visits = append(visits, gtfsdb.StopVisit{
				RouteID:       routeID,
				TripID:        trip.ID,
				StopID:        stopID,
				StopSequence:  st.StopSequence,
				ArrivalSecs:   arr,
				DepartureSecs: dep,
				Headsign:      pol.CleanHeadsign(st.Headsign),
				PickupType:    int(st.PickupType),
				DropOffType:   int(st.DropOffType),
			})
		}
		for _, f := range t.Frequencies {
			exact := 0
			if f.ExactTimes != 0 {
				exact = 1
			}
			freqs = append(freqs, gtfsdb.FrequencyRow{
				TripID:      trip.ID,
				StartSecs:   int(f.StartTime / time.Second),
				EndSecs:     int(f.EndTime / time.Second),
				HeadwaySecs: int(f.Headway / time.Second),
				ExactTimes:  exact,
			})
		}
	}

	data.Calendars = buildCalendarIndex(static.Services, data.ServiceIDs, keepServices)

	if err := store.InsertStopVisits(ctx, visits); err != nil {
		return nil, fmt.Errorf("error staging stop visits: %w", err)
	}
	if err := store.InsertFrequencies(ctx, freqs); err != nil {
		return nil, fmt.Errorf("error staging frequencies: %w", err)
	}

	logging.LogOperation(logger, "feed loaded",
		slog.Int("agencies", len(data.Agencies)),
		slog.Int("routes", len(data.Routes)),
		slog.Int("trips", len(data.Trips)),
		slog.Int("stops", len(data.Stops)),
		slog.Int("stop_visits", len(visits)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// deriveHeadsign picks the headsign representation for a trip: the cleaned
// trip label when present, otherwise a compass direction computed from the
// trip's first and last stops, otherwise the feed's inbound/outbound flag.
func deriveHeadsign(t *gtfs.ScheduledTrip, pol policy.Policy) models.Headsign {
	if text := pol.CleanHeadsign(t.Headsign); text != "" {
		return models.TextHeadsign(text)
	}
	if n := len(t.StopTimes); n >= 2 {
		first, last := t.StopTimes[0].Stop, t.StopTimes[n-1].Stop
		if first != nil && last != nil &&
			first.Latitude != nil && first.Longitude != nil &&
			last.Latitude != nil && last.Longitude != nil {
			return models.CompassHeadsign(utils.CompassDirection(
				*first.Latitude, *first.Longitude, *last.Latitude, *last.Longitude))
		}
	}
	return models.InOutHeadsign(int(t.DirectionId) == 1)
}

// buildCalendarIndex converts feed services into calendar entries and
// per-date exceptions. A non-nil keep set restricts the index to the services
// it names.
func buildCalendarIndex(services []gtfs.Service, ids *Interner, keep map[string]bool) *calendar.Index {
	var entries []*calendar.Entry
	var exceptions []calendar.DateException
	for i := range services {
		s := &services[i]
		if keep != nil && !keep[s.Id] {
			continue
		}
		id := ids.ID(s.Id)
		if hasWeekday(s) {
			e := &calendar.Entry{
				ServiceID: id,
				Start:     models.DateFromTime(s.StartDate),
				End:       models.DateFromTime(s.EndDate),
			}
			e.Weekdays[time.Sunday] = s.Sunday
			e.Weekdays[time.Monday] = s.Monday
			e.Weekdays[time.Tuesday] = s.Tuesday
			e.Weekdays[time.Wednesday] = s.Wednesday
			e.Weekdays[time.Thursday] = s.Thursday
			e.Weekdays[time.Friday] = s.Friday
			e.Weekdays[time.Saturday] = s.Saturday
			entries = append(entries, e)
		}
		for _, d := range s.AddedDates {
			exceptions = append(exceptions, calendar.DateException{
				ServiceID: id, Date: models.DateFromTime(d), Kind: calendar.ServiceAdded,
			})
		}
		for _, d := range s.RemovedDates {
			exceptions = append(exceptions, calendar.DateException{
				ServiceID: id, Date: models.DateFromTime(d), Kind: calendar.ServiceRemoved,
			})
		}
	}
	return calendar.NewIndex(entries, exceptions)
}

func hasWeekday(s *gtfs.Service) bool {
	return s.Monday || s.Tuesday || s.Wednesday || s.Thursday || s.Friday || s.Saturday || s.Sunday
}
