package materialize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheddb.mobitransit.org/gtfsdb"
	"scheddb.mobitransit.org/internal/feed"
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/policy"
)

func twoRouteData(t *testing.T, secondRouteCollides bool) (*gtfsdb.Client, *feed.Data) {
	t.Helper()
	store := newTestStore(t)
	ctx := context.Background()

	r1 := &feed.Route{ID: 1, ShortName: "10"}
	r2 := &feed.Route{ID: 2, ShortName: "20"}
	t1 := &feed.Trip{ID: 1, RouteID: 1, ServiceID: 1, Headsign: models.TextHeadsign("East"), Direction: 0}
	t2 := &feed.Trip{ID: 2, RouteID: 2, ServiceID: 1, Headsign: models.TextHeadsign("West"), Direction: 0}
	t3 := &feed.Trip{ID: 3, RouteID: 2, ServiceID: 1, Headsign: models.TextHeadsign("West"), Direction: 0}

	data := &feed.Data{
		Routes: []*feed.Route{r1, r2},
		Trips:  []*feed.Trip{t1, t2, t3},
		Stops: map[int]*feed.Stop{
			1: {ID: 1, Lat: 0.00, Lon: 0},
			2: {ID: 2, Lat: 0.01, Lon: 0},
		},
		TripsByRoute: map[int][]*feed.Trip{1: {t1}, 2: {t2, t3}},
	}

	visits := []gtfsdb.StopVisit{
		{RouteID: 1, TripID: 1, StopID: 1, StopSequence: 1, ArrivalSecs: 100, DepartureSecs: 100},
		{RouteID: 1, TripID: 1, StopID: 2, StopSequence: 2, ArrivalSecs: 200, DepartureSecs: 200},
		{RouteID: 2, TripID: 2, StopID: 2, StopSequence: 1, ArrivalSecs: 300, DepartureSecs: 300, Headsign: "A"},
		{RouteID: 2, TripID: 2, StopID: 1, StopSequence: 2, ArrivalSecs: 400, DepartureSecs: 400},
		{RouteID: 2, TripID: 3, StopID: 1, StopSequence: 2, ArrivalSecs: 400, DepartureSecs: 400},
	}
	v := gtfsdb.StopVisit{RouteID: 2, TripID: 3, StopID: 2, StopSequence: 1, ArrivalSecs: 300, DepartureSecs: 300, Headsign: "A"}
	if secondRouteCollides {
		// Same schedule key as trip 2's first visit, different payload.
		v.Headsign = "B"
	}
	require.NoError(t, store.InsertStopVisits(ctx, append(visits, v)))

	return store, data
}

func TestDispatcher_CollectsResultsInSubmissionOrder(t *testing.T) {
	store, data := twoRouteData(t, false)

	m := NewMaterializer(store, data, policy.Base{}, allServices(1), nil)
	d := NewDispatcher(m, 2, nil)

	results, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Route.ID)
	assert.Equal(t, 2, results[1].Route.ID)
	assert.Len(t, results[0].Trips, 1)
	assert.Len(t, results[1].Trips, 1)
}

func TestDispatcher_FirstFatalAbortsTheRun(t *testing.T) {
	store, data := twoRouteData(t, true)

	m := NewMaterializer(store, data, policy.Base{}, allServices(1), nil)
	d := NewDispatcher(m, 2, nil)

	results, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, results)

	fatal, ok := AsFatal(err)
	require.True(t, ok)
	assert.Equal(t, KindKeyCollision, fatal.Kind)
	assert.Equal(t, 2, fatal.RouteID)
}

func TestDispatcher_SkipsRoutesWithoutActiveTrips(t *testing.T) {
	store, data := twoRouteData(t, false)

	// Route 2 is excluded by policy; only route 1 is submitted.
	pol := policy.Composite{Routes: routeFilterFunc(func(routeID int, _ string) bool { return routeID == 1 })}
	m := NewMaterializer(store, data, pol, allServices(1), nil)
	d := NewDispatcher(m, 2, nil)

	results, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Route.ID)
}

func TestDispatcher_CanceledContext(t *testing.T) {
	store, data := twoRouteData(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMaterializer(store, data, policy.Base{}, allServices(1), nil)
	d := NewDispatcher(m, 1, nil)

	_, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type routeFilterFunc func(routeID int, shortName string) bool

func (f routeFilterFunc) IncludeRoute(routeID int, shortName string) bool {
	return f(routeID, shortName)
}
