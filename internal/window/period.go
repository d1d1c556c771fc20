package window

import (
	"fmt"

	"scheddb.mobitransit.org/internal/models"
)

// Period is the working state of one resolution pass: the reference date being
// examined and the inclusive window bounds resolved so far. A zero date means
// unknown. A Period is owned by a single resolution pass and never shared.
type Period struct {
	ReferenceDate models.Date
	WindowStart   models.Date
	WindowEnd     models.Date
}

// Resolved reports whether both window bounds are known.
func (p Period) Resolved() bool {
	return !p.WindowStart.IsZero() && !p.WindowEnd.IsZero()
}

// SpanDays returns the window span measured as end minus start in days, zero
// when the window is unresolved.
func (p Period) SpanDays() int {
	if !p.Resolved() {
		return 0
	}
	return models.DaysBetween(p.WindowStart, p.WindowEnd)
}

// Contains reports whether d lies inside the resolved window.
func (p Period) Contains(d models.Date) bool {
	return p.Resolved() && p.WindowStart <= d && d <= p.WindowEnd
}

// extend widens the window to include [start, end] and reports whether either
// bound moved.
func (p *Period) extend(start, end models.Date) bool {
	changed := false
	if p.WindowStart.IsZero() || start < p.WindowStart {
		p.WindowStart = start
		changed = true
	}
	if p.WindowEnd.IsZero() || end > p.WindowEnd {
		p.WindowEnd = end
		changed = true
	}
	return changed
}

func (p Period) String() string {
	if !p.Resolved() {
		return fmt.Sprintf("unresolved (reference %s)", p.ReferenceDate)
	}
	return fmt.Sprintf("[%s, %s]", p.WindowStart, p.WindowEnd)
}
