package materialize

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scheddb.mobitransit.org/internal/feed"
	"scheddb.mobitransit.org/internal/logging"
)

// Dispatcher fans materialization out over a bounded worker pool, one task
// per route, and collects results in submission order. The first task
// failure cancels everything in flight; no partial output survives.
type Dispatcher struct {
	m        *Materializer
	poolSize int
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher running at most poolSize tasks at once.
func NewDispatcher(m *Materializer, poolSize int, logger *slog.Logger) *Dispatcher {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Dispatcher{m: m, poolSize: poolSize, logger: logger}
}

type routeTask struct {
	index int
	route *feed.Route
}

// Run materializes every route that has at least one trip surviving the
// service-window and policy filters.
func (d *Dispatcher) Run(ctx context.Context) ([]*RouteResult, error) {
	start := time.Now()

	var routes []*feed.Route
	for _, r := range d.m.data.Routes {
		if !d.m.pol.IncludeRoute(r.ID, r.ShortName) {
			continue
		}
		if len(d.m.TripsFor(r)) == 0 {
			if d.logger != nil {
				d.logger.Debug("skipping route with no active trips", slog.Int("route_id", r.ID))
			}
			continue
		}
		routes = append(routes, r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan routeTask)
	results := make([]*RouteResult, len(routes))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for w := 0; w < d.poolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				// After a failure the channel is drained without doing work
				// so the submitter never blocks.
				if ctx.Err() != nil {
					continue
				}
				res, err := d.m.MaterializeRoute(ctx, t.route)
				if err != nil {
					fail(err)
					continue
				}
				results[t.index] = res
			}
		}()
	}

	for i, r := range routes {
		work <- routeTask{index: i, route: r}
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logging.LogOperation(d.logger, "routes materialized",
		slog.Int("routes", len(routes)),
		slog.Int("pool_size", d.poolSize),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}
