package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"

	"scheddb.mobitransit.org/gtfsdb"
	"scheddb.mobitransit.org/internal/appconf"
	"scheddb.mobitransit.org/internal/feed"
	"scheddb.mobitransit.org/internal/logging"
	"scheddb.mobitransit.org/internal/materialize"
	"scheddb.mobitransit.org/internal/models"
	"scheddb.mobitransit.org/internal/policy"
	"scheddb.mobitransit.org/internal/window"
)

// config holds all command-line settings of one ingestion run. A YAML run
// configuration can pre-populate it; flags win over the file.
type config struct {
	configPath      string
	feedPath        string
	agency          string
	env             string
	dbPath          string
	poolSize        int
	fixedDate       int
	lookBackward    bool
	publishTomorrow bool
	withNext        bool
	incremental     bool
	verbose         bool
}

// application bundles the collaborators of the ingestion pipeline. The logger
// travels in the context; ingest and materialize retrieve it there.
type application struct {
	config config
	store  *gtfsdb.Client
	policy policy.Policy
}

func main() {
	var cfg config

	flag.StringVar(&cfg.configPath, "config", "", "YAML run configuration file")
	flag.StringVar(&cfg.feedPath, "feed", "", "Path to a static GTFS zip file")
	flag.StringVar(&cfg.agency, "agency", "", "Restrict ingestion to one agency id")
	flag.StringVar(&cfg.env, "env", "development", "Environment (test|development|production)")
	flag.StringVar(&cfg.dbPath, "db", ":memory:", "Staging database path")
	flag.IntVar(&cfg.poolSize, "pool", 0, "Worker-pool size override (0 = auto)")
	flag.IntVar(&cfg.fixedDate, "fixed-date", 0, "Pin the reference date (YYYYMMDD)")
	flag.BoolVar(&cfg.lookBackward, "look-backward", false, "Allow the current window to grow into the past")
	flag.BoolVar(&cfg.publishTomorrow, "publish-tomorrow", false, "Resolve the window for tomorrow instead of today")
	flag.BoolVar(&cfg.withNext, "with-next", false, "Also materialize the following operating period")
	flag.BoolVar(&cfg.incremental, "incremental", false, "Current-only refresh: no resolvable window exits 0")
	flag.BoolVar(&cfg.verbose, "verbose", false, "Dump staging and aggregate statistics")
	flag.Parse()

	os.Exit(run(cfg))
}

func run(cfg config) int {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stdout, level)

	if cfg.configPath != "" {
		fileCfg, err := appconf.LoadRunConfig(cfg.configPath)
		if err != nil {
			logging.LogError(logger, "failed to load run config", err, slog.String("path", cfg.configPath))
			return 1
		}
		applyRunConfig(&cfg, fileCfg)
	}
	if cfg.feedPath == "" {
		logging.LogError(logger, "no feed given", fmt.Errorf("-feed or a run config with feed_path is required"))
		return 1
	}

	env := appconf.EnvFlagToEnvironment(cfg.env)
	store, err := gtfsdb.NewClient(gtfsdb.NewConfig(cfg.dbPath, env, cfg.verbose), logger)
	if err != nil {
		logging.LogError(logger, "failed to open staging store", err, slog.String("db", cfg.dbPath))
		return 1
	}
	defer logging.SafeCloseWithLogging(store, logger, "staging_store")

	app := &application{config: cfg, store: store, policy: policy.Base{}}
	return app.ingest(logging.WithLogger(context.Background(), logger))
}

// applyRunConfig fills in settings the flags left at their defaults.
func applyRunConfig(cfg *config, file appconf.RunConfig) {
	if cfg.feedPath == "" {
		cfg.feedPath = file.FeedPath
	}
	if cfg.agency == "" {
		cfg.agency = file.Agency
	}
	if cfg.poolSize == 0 {
		cfg.poolSize = file.PoolSize
	}
	if cfg.fixedDate == 0 {
		cfg.fixedDate = int(file.FixedDate)
	}
	cfg.lookBackward = cfg.lookBackward || file.LookBackward
	cfg.publishTomorrow = cfg.publishTomorrow || file.PublishTomorrow
	cfg.withNext = cfg.withNext || file.WithNext
	cfg.verbose = cfg.verbose || file.Verbose
}

func (app *application) ingest(ctx context.Context) int {
	logger := logging.FromContext(ctx)

	data, err := feed.Load(ctx, app.config.feedPath, app.store, app.policy, app.config.agency, logger)
	if err != nil {
		logging.LogError(logger, "failed to load feed", err, slog.String("feed", app.config.feedPath))
		return 1
	}
	if app.config.verbose {
		if dump, err := app.store.DumpCounts(); err == nil {
			logger.Debug("staging store contents", slog.String("dump", dump))
		}
	}

	resolver := window.New(data.Calendars, logger, window.Options{
		LookBackward:    app.config.lookBackward,
		PublishTomorrow: app.config.publishTomorrow,
		FixedDate:       models.Date(app.config.fixedDate),
	})
	today := models.DateFromTime(time.Now())

	current := resolver.ResolveCurrent(today)
	if current.NoSchedule {
		if app.config.incremental {
			logging.LogOperation(logger, "no changes", slog.String("reason", "no resolvable service window"))
			return 0
		}
		logging.LogError(logger, "no resolvable service window", fmt.Errorf("current-mode resolution found no coverage"))
		return 1
	}

	if _, err := app.materialize(ctx, data, current, "current"); err != nil {
		logging.LogError(logger, "materialization failed", err)
		return 1
	}

	if app.config.withNext {
		next := resolver.ResolveNext(today, current)
		if len(next.ServiceIDs) == 0 {
			logging.LogOperation(logger, "no following period to materialize")
			return 0
		}
		if _, err := app.materialize(ctx, data, next, "next"); err != nil {
			logging.LogError(logger, "materialization failed", err, slog.String("mode", "next"))
			return 1
		}
	}
	return 0
}

// materialize fans one resolved period out over the route pool and joins the
// results. The aggregate is the hand-off point for the export stage.
func (app *application) materialize(ctx context.Context, data *feed.Data, res window.Result, mode string) (*materialize.Aggregate, error) {
	logger := logging.FromContext(ctx)
	m := materialize.NewMaterializer(app.store, data, app.policy, res.ServiceIDs, logger)
	d := materialize.NewDispatcher(m, appconf.PoolSize(app.config.poolSize), logger)

	results, err := d.Run(ctx)
	if err != nil {
		return nil, err
	}
	agg := materialize.Join(results, data, res, logger)

	if app.config.verbose {
		logger.Debug("aggregate summary", slog.String("dump", spew.Sdump(struct {
			Window         string
			Routes         int
			Trips          int
			Stops          int
			TripStops      int
			Schedules      int
			Frequencies    int
			ServiceDates   int
			FirstDeparture int
			LastDeparture  int
		}{
			Window:         res.Period.String(),
			Routes:         len(agg.Routes),
			Trips:          len(agg.Trips),
			Stops:          len(agg.Stops),
			TripStops:      len(agg.TripStops),
			Schedules:      len(agg.Schedules),
			Frequencies:    len(agg.Frequencies),
			ServiceDates:   len(agg.ServiceDates),
			FirstDeparture: agg.FirstDeparture,
			LastDeparture:  agg.LastDeparture,
		})))
	}

	logging.LogOperation(logger, "period materialized",
		slog.String("mode", mode),
		slog.String("window", res.Period.String()),
		slog.Int("routes", len(agg.Routes)),
		slog.Int("trips", len(agg.Trips)),
		slog.Int("stops", len(agg.Stops)),
		slog.Int("schedule_entries", len(agg.Schedules)),
		slog.Int("frequencies", len(agg.Frequencies)),
		slog.Int("service_dates", len(agg.ServiceDates)),
		slog.Int("first_departure_secs", agg.FirstDeparture),
		slog.Int("last_departure_secs", agg.LastDeparture))
	return agg, nil
}
