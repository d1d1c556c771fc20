// Package window resolves the operating period of a feed: the date range and
// the service identifiers that make up the "current" schedule, and on request
// the one that follows it.
package window

import (
	"log/slog"

	"scheddb.mobitransit.org/internal/calendar"
	"scheddb.mobitransit.org/internal/logging"
	"scheddb.mobitransit.org/internal/models"
)

const (
	// MaxLookForwardDays bounds how far the resolver walks forward from the
	// reference date looking for coverage.
	MaxLookForwardDays = 60
	// MaxLookBackwardDays bounds the backward walk of the exception-only path.
	MaxLookBackwardDays = 7
	// MinCalendarCoverageTotalDays is the minimum window span, in days between
	// the bounds, for calendar-driven resolution.
	MinCalendarCoverageTotalDays = 5
	// MinCalendarDateCoverageTotalDays is the minimum window span for
	// exception-only resolution.
	MinCalendarDateCoverageTotalDays = 14
	// MinPreviousNextAddedDays is the threshold below which an adjacent day's
	// own short window is folded into the current one instead of being left
	// standalone.
	MinPreviousNextAddedDays = 2
	// MaxNextLookupDays bounds how far past today the current window's end may
	// lie before next-mode resolution is skipped entirely.
	MaxNextLookupDays = 60
)

// Mode selects which operating period a pass resolves.
type Mode int

const (
	Current Mode = iota
	Next
)

// Options tune a resolver.
type Options struct {
	// LookBackward permits current-mode resolution to grow the window into the
	// past. Next mode never looks backward.
	LookBackward bool
	// PublishTomorrow shifts the reference date one day forward, for feeds
	// published the evening before they take effect.
	PublishTomorrow bool
	// FixedDate overrides the reference date entirely. Debug aid.
	FixedDate models.Date
}

// Result is the outcome of one resolution pass. ServiceIDs is never nil: an
// empty set with NoSchedule unset means "nothing to publish but not an error"
// (next mode beyond the lookup bound), while NoSchedule reports that no window
// could be resolved at all.
type Result struct {
	Period     Period
	ServiceIDs map[int]struct{}
	NoSchedule bool
}

// Resolver computes operating periods from the calendar index. It is stateless
// between calls; each pass owns its own Period.
type Resolver struct {
	index  *calendar.Index
	logger *slog.Logger
	opts   Options
}

// New builds a resolver over the given index.
func New(index *calendar.Index, logger *slog.Logger, opts Options) *Resolver {
	return &Resolver{index: index, logger: logger, opts: opts}
}

// ResolveCurrent resolves the presently active operating period seeded at
// today, honoring the FixedDate and PublishTomorrow options.
func (r *Resolver) ResolveCurrent(today models.Date) Result {
	ref := today
	if !r.opts.FixedDate.IsZero() {
		ref = r.opts.FixedDate
	} else if r.opts.PublishTomorrow {
		ref = ref.AddDays(1)
	}
	var res Result
	if r.index.HasCalendars() {
		res = r.resolveCalendars(ref, Current)
	} else {
		res = r.resolveExceptions(ref, Current)
	}
	r.logResult("current", res)
	return res
}

// ResolveNext resolves the operating period that follows current. The pass is
// skipped, returning an empty set, when the current window already extends
// more than MaxNextLookupDays past today.
func (r *Resolver) ResolveNext(today models.Date, current Result) Result {
	if current.NoSchedule || !current.Period.Resolved() {
		return Result{ServiceIDs: map[int]struct{}{}, NoSchedule: true}
	}
	if models.DaysBetween(today, current.Period.WindowEnd) > MaxNextLookupDays {
		logging.LogOperation(r.logger, "next window lookup skipped",
			slog.String("current_end", current.Period.WindowEnd.String()))
		return Result{ServiceIDs: map[int]struct{}{}}
	}
	seed := current.Period.WindowEnd.AddDays(1)
	var res Result
	if r.index.HasCalendars() {
		res = r.resolveCalendars(seed, Next)
	} else {
		res = r.resolveExceptions(seed, Next)
	}
	r.logResult("next", res)
	return res
}

func (r *Resolver) logResult(mode string, res Result) {
	if res.NoSchedule {
		logging.LogOperation(r.logger, "no service window resolved", slog.String("mode", mode))
		return
	}
	logging.LogOperation(r.logger, "service window resolved",
		slog.String("mode", mode),
		slog.String("window", res.Period.String()),
		slog.Int("services", len(res.ServiceIDs)))
}

// resolveCalendars is the calendar-driven path: seed from the calendars active
// on the reference date, expand to every overlapping calendar, then grow to
// the minimum coverage.
func (r *Resolver) resolveCalendars(ref models.Date, mode Mode) Result {
	p := Period{ReferenceDate: ref}
	for i := 0; ; i++ {
		if r.seedFromCalendars(&p) {
			break
		}
		// Next mode never advances: absence of coverage at the seed date is a
		// valid terminal state.
		if mode == Next || i >= MaxLookForwardDays {
			return Result{Period: p, ServiceIDs: map[int]struct{}{}, NoSchedule: true}
		}
		p.ReferenceDate = p.ReferenceDate.AddDays(1)
	}
	r.expandOverlapping(&p)
	r.growCalendarWindow(&p, mode)
	// A next window never reaches back into the current one, even when an
	// overlapping calendar starts earlier.
	if mode == Next && p.WindowStart < ref {
		p.WindowStart = ref
	}
	return Result{Period: p, ServiceIDs: r.collectCalendarServices(p)}
}

// seedFromCalendars sets the window to the combined bounds of the calendars
// active on the reference date. Returns false when none are.
func (r *Resolver) seedFromCalendars(p *Period) bool {
	entries := r.index.ActiveOn(p.ReferenceDate)
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		p.extend(e.Start, e.End)
	}
	return true
}

// expandOverlapping widens the window to the bounds of every calendar whose
// interval overlaps it, iterating to a fixed point.
func (r *Resolver) expandOverlapping(p *Period) {
	for {
		changed := false
		for _, e := range r.index.Overlapping(p.WindowStart, p.WindowEnd) {
			if p.extend(e.Start, e.End) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// growCalendarWindow extends the window one day at a time until the minimum
// coverage is met. The direction is chosen by resolving the neighboring
// windows one day before the start and one day after the end: growth goes
// backward when the previous-day window is the shorter of the two, and only
// in current mode.
func (r *Resolver) growCalendarWindow(p *Period, mode Mode) {
	for p.SpanDays() < MinCalendarCoverageTotalDays {
		prev, prevOK := r.neighborCalendarWindow(p.WindowStart.AddDays(-1))
		next, nextOK := r.neighborCalendarWindow(p.WindowEnd.AddDays(1))
		if !prevOK && !nextOK {
			return
		}
		backward := mode == Current && r.opts.LookBackward && prevOK &&
			(!nextOK || prev.SpanDays() < next.SpanDays())
		if backward {
			p.WindowStart = p.WindowStart.AddDays(-1)
		} else {
			p.WindowEnd = p.WindowEnd.AddDays(1)
		}
		r.expandOverlapping(p)
	}
}

// neighborCalendarWindow resolves the window a single day would produce on its
// own, without any reference-date walking.
func (r *Resolver) neighborCalendarWindow(day models.Date) (Period, bool) {
	q := Period{ReferenceDate: day}
	if !r.seedFromCalendars(&q) {
		return q, false
	}
	r.expandOverlapping(&q)
	return q, true
}

// collectCalendarServices gathers the services whose calendar interval lies
// fully inside the window, plus exception-added services active inside it.
// SERVICE_REMOVED exceptions are logged and skipped.
func (r *Resolver) collectCalendarServices(p Period) map[int]struct{} {
	ids := make(map[int]struct{})
	for _, e := range r.index.Entries() {
		if e.Within(p.WindowStart, p.WindowEnd) {
			ids[e.ServiceID] = struct{}{}
		}
	}
	for _, ex := range r.index.Exceptions() {
		if !p.Contains(ex.Date) {
			continue
		}
		if ex.Kind == calendar.ServiceRemoved {
			if r.logger != nil {
				r.logger.Warn("skipping removed-service exception",
					slog.Int("service_id", ex.ServiceID),
					slog.String("date", ex.Date.String()))
			}
			continue
		}
		ids[ex.ServiceID] = struct{}{}
	}
	return ids
}

// resolveExceptions is the exception-only path, used when the feed defines
// service exclusively through per-date exceptions.
func (r *Resolver) resolveExceptions(ref models.Date, mode Mode) Result {
	p := Period{ReferenceDate: ref}
	services := make(map[int]struct{})

	// Walk forward from the reference date to the first date carrying added
	// exceptions.
	day := ref
	found := false
	for i := 0; i <= MaxLookForwardDays; i++ {
		if added := r.index.AddedOn(day); len(added) > 0 {
			for _, ex := range added {
				services[ex.ServiceID] = struct{}{}
			}
			p.ReferenceDate = day
			p.WindowStart, p.WindowEnd = day, day
			found = true
			break
		}
		day = day.AddDays(1)
	}
	// Current mode may also pick up services just behind the reference date.
	// When the forward walk came up empty this is the seeding walk: an
	// expired feed whose exceptions all lie behind the reference date still
	// resolves here.
	if mode == Current && r.opts.LookBackward {
		day = ref.AddDays(-1)
		for i := 1; i <= MaxLookBackwardDays; i++ {
			if added := r.index.AddedOn(day); len(added) > 0 {
				for _, ex := range added {
					services[ex.ServiceID] = struct{}{}
				}
				if !found {
					p.ReferenceDate = day
					p.WindowStart, p.WindowEnd = day, day
					found = true
				} else if day < p.WindowStart {
					p.WindowStart = day
				}
				break
			}
			day = day.AddDays(-1)
		}
	}
	if !found {
		return Result{Period: p, ServiceIDs: map[int]struct{}{}, NoSchedule: true}
	}

	r.expandServiceDates(&p, services)
	r.growExceptionWindow(&p, services, mode)
	r.improveWindow(&p, services)
	if mode == Next && p.WindowStart < ref {
		p.WindowStart = ref
	}
	return Result{Period: p, ServiceIDs: services}
}

// expandServiceDates widens the window to cover every date at which any
// accumulated service is exception-active.
func (r *Resolver) expandServiceDates(p *Period, services map[int]struct{}) {
	for {
		changed := false
		for id := range services {
			for _, ex := range r.index.ExceptionsForService(id) {
				if ex.Kind != calendar.ServiceAdded {
					continue
				}
				if p.extend(ex.Date, ex.Date) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// growExceptionWindow extends the window until the exception-path minimum
// coverage is met. An adjacent day owning a short window (fewer than
// MinPreviousNextAddedDays added days) is folded in wholly; an adjacent day
// owning a substantial window is a standalone period and blocks growth in that
// direction. Days owning no window at all are absorbed one at a time.
func (r *Resolver) growExceptionWindow(p *Period, services map[int]struct{}, mode Mode) {
	backBlocked := mode == Next || !r.opts.LookBackward
	fwdBlocked := false
	for p.SpanDays() < MinCalendarDateCoverageTotalDays {
		if backBlocked && fwdBlocked {
			return
		}
		var prev, next Period
		var prevSvc, nextSvc map[int]struct{}
		prevOK, nextOK := false, false
		if !backBlocked {
			prev, prevSvc, prevOK = r.neighborExceptionWindow(p.WindowStart.AddDays(-1))
		}
		if !fwdBlocked {
			next, nextSvc, nextOK = r.neighborExceptionWindow(p.WindowEnd.AddDays(1))
		}
		backward := prevOK && (!nextOK || prev.SpanDays() < next.SpanDays())
		switch {
		case backward:
			if prev.SpanDays()+1 >= MinPreviousNextAddedDays {
				backBlocked = true
				continue
			}
			p.WindowStart = prev.WindowStart
			mergeServiceSets(services, prevSvc)
		case !fwdBlocked:
			if nextOK {
				if next.SpanDays()+1 >= MinPreviousNextAddedDays {
					fwdBlocked = true
					continue
				}
				p.WindowEnd = next.WindowEnd
				mergeServiceSets(services, nextSvc)
			} else {
				p.WindowEnd = p.WindowEnd.AddDays(1)
			}
		case !backBlocked:
			p.WindowStart = p.WindowStart.AddDays(-1)
		default:
			return
		}
		r.expandServiceDates(p, services)
	}
}

// neighborExceptionWindow resolves the window a single day's exceptions would
// produce on their own.
func (r *Resolver) neighborExceptionWindow(day models.Date) (Period, map[int]struct{}, bool) {
	added := r.index.AddedOn(day)
	if len(added) == 0 {
		return Period{ReferenceDate: day}, nil, false
	}
	q := Period{ReferenceDate: day, WindowStart: day, WindowEnd: day}
	svc := make(map[int]struct{})
	for _, ex := range added {
		svc[ex.ServiceID] = struct{}{}
	}
	r.expandServiceDates(&q, svc)
	return q, svc, true
}

// improveWindow absorbs exception clusters that sit immediately outside the
// resolved window, on either end, as long as their own window is short enough
// to fold rather than stand alone. Repeats until nothing more is absorbed.
func (r *Resolver) improveWindow(p *Period, services map[int]struct{}) {
	for {
		absorbed := false
		if nb, svc, ok := r.neighborExceptionWindow(p.WindowEnd.AddDays(1)); ok &&
			nb.SpanDays()+1 < MinPreviousNextAddedDays {
			p.WindowEnd = nb.WindowEnd
			mergeServiceSets(services, svc)
			absorbed = true
		}
		if nb, svc, ok := r.neighborExceptionWindow(p.WindowStart.AddDays(-1)); ok &&
			nb.SpanDays()+1 < MinPreviousNextAddedDays {
			p.WindowStart = nb.WindowStart
			mergeServiceSets(services, svc)
			absorbed = true
		}
		if !absorbed {
			return
		}
		r.expandServiceDates(p, services)
	}
}

func mergeServiceSets(dst, src map[int]struct{}) {
	for id := range src {
		dst[id] = struct{}{}
	}
}
