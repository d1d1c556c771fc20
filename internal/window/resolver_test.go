package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheddb.mobitransit.org/internal/calendar"
	"scheddb.mobitransit.org/internal/models"
)

func weekdayEntry(serviceID int, start, end models.Date) *calendar.Entry {
	e := &calendar.Entry{ServiceID: serviceID, Start: start, End: end}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		e.Weekdays[wd] = true
	}
	return e
}

func saturdayEntry(serviceID int, day models.Date) *calendar.Entry {
	e := &calendar.Entry{ServiceID: serviceID, Start: day, End: day}
	e.Weekdays[time.Saturday] = true
	return e
}

// December 2019 fixture: a weekday calendar and three Saturday-only calendars.
func decemberIndex() *calendar.Index {
	entries := []*calendar.Entry{
		weekdayEntry(1, 20191216, 20191220),
		saturdayEntry(2, 20191221),
		saturdayEntry(3, 20191221),
		saturdayEntry(4, 20191221),
	}
	return calendar.NewIndex(entries, nil)
}

// April 2024 fixture: one block of exception-only services followed by a
// second block, no recurring calendars at all.
func aprilExceptionIndex() *calendar.Index {
	var exceptions []calendar.DateException
	groupA := []int{1203, 1205, 1214, 1215, 1216, 1169}
	for d := models.Date(20240406); d <= 20240425; d = d.AddDays(1) {
		for _, id := range groupA {
			exceptions = append(exceptions, calendar.DateException{ServiceID: id, Date: d, Kind: calendar.ServiceAdded})
		}
	}
	groupB := []int{1209, 1210, 1211}
	for d := models.Date(20240426); d <= 20240505; d = d.AddDays(1) {
		for _, id := range groupB {
			exceptions = append(exceptions, calendar.DateException{ServiceID: id, Date: d, Kind: calendar.ServiceAdded})
		}
	}
	return calendar.NewIndex(nil, exceptions)
}

func TestResolveCurrent_CalendarFixture(t *testing.T) {
	r := New(decemberIndex(), nil, Options{LookBackward: true, FixedDate: 20191217})

	res := r.ResolveCurrent(20191217)
	require.False(t, res.NoSchedule)
	assert.Equal(t, models.Date(20191216), res.Period.WindowStart)
	assert.Equal(t, models.Date(20191221), res.Period.WindowEnd)
	assert.Len(t, res.ServiceIDs, 4)
}

func TestResolveCurrent_WindowCoversActiveCalendarBounds(t *testing.T) {
	// Every calendar active on the reference date contributes its full
	// interval to the window.
	entries := []*calendar.Entry{
		weekdayEntry(1, 20240401, 20240430),
		weekdayEntry(2, 20240408, 20240412),
	}
	r := New(calendar.NewIndex(entries, nil), nil, Options{})

	res := r.ResolveCurrent(20240410)
	require.False(t, res.NoSchedule)
	assert.LessOrEqual(t, res.Period.WindowStart, models.Date(20240401))
	assert.GreaterOrEqual(t, res.Period.WindowEnd, models.Date(20240430))
}

func TestResolveCurrent_AdvancesToCoverage(t *testing.T) {
	// Reference date precedes all coverage; current mode walks forward.
	entries := []*calendar.Entry{weekdayEntry(1, 20240415, 20240430)}
	r := New(calendar.NewIndex(entries, nil), nil, Options{})

	res := r.ResolveCurrent(20240401)
	require.False(t, res.NoSchedule)
	assert.Equal(t, models.Date(20240415), res.Period.WindowStart)
	assert.Contains(t, res.ServiceIDs, 1)
}

func TestResolveCurrent_NoCoverageWithinBound(t *testing.T) {
	entries := []*calendar.Entry{weekdayEntry(1, 20270101, 20270131)}
	r := New(calendar.NewIndex(entries, nil), nil, Options{})

	res := r.ResolveCurrent(20240401)
	assert.True(t, res.NoSchedule)
	assert.NotNil(t, res.ServiceIDs)
	assert.Empty(t, res.ServiceIDs)
}

func TestResolveCurrent_RemovedExceptionSkipped(t *testing.T) {
	entries := []*calendar.Entry{weekdayEntry(1, 20240401, 20240430)}
	exceptions := []calendar.DateException{
		{ServiceID: 7, Date: 20240410, Kind: calendar.ServiceAdded},
		{ServiceID: 8, Date: 20240411, Kind: calendar.ServiceRemoved},
	}
	r := New(calendar.NewIndex(entries, exceptions), nil, Options{})

	res := r.ResolveCurrent(20240410)
	require.False(t, res.NoSchedule)
	assert.Contains(t, res.ServiceIDs, 1)
	assert.Contains(t, res.ServiceIDs, 7)
	assert.NotContains(t, res.ServiceIDs, 8)
}

func TestResolveCurrent_Idempotent(t *testing.T) {
	r := New(decemberIndex(), nil, Options{LookBackward: true, FixedDate: 20191217})

	first := r.ResolveCurrent(20191217)
	second := r.ResolveCurrent(20191217)
	assert.Equal(t, first.Period, second.Period)
	assert.Equal(t, first.ServiceIDs, second.ServiceIDs)
}

func TestResolveCurrent_ExceptionFixture(t *testing.T) {
	r := New(aprilExceptionIndex(), nil, Options{LookBackward: true})

	res := r.ResolveCurrent(20240409)
	require.False(t, res.NoSchedule)
	assert.Equal(t, models.Date(20240406), res.Period.WindowStart)
	assert.Equal(t, models.Date(20240425), res.Period.WindowEnd)

	for _, id := range []int{1203, 1205, 1214, 1215, 1216, 1169} {
		assert.Contains(t, res.ServiceIDs, id)
	}
	for _, id := range []int{1209, 1210, 1211} {
		assert.NotContains(t, res.ServiceIDs, id)
	}
}

func TestResolveCurrent_ExpiredExceptionsBehindReference(t *testing.T) {
	// Every exception lies behind the reference date; the backward walk alone
	// seeds the window.
	var exceptions []calendar.DateException
	for d := models.Date(20240401); d <= 20240407; d = d.AddDays(1) {
		exceptions = append(exceptions, calendar.DateException{ServiceID: 901, Date: d, Kind: calendar.ServiceAdded})
	}
	r := New(calendar.NewIndex(nil, exceptions), nil, Options{LookBackward: true})

	res := r.ResolveCurrent(20240409)
	require.False(t, res.NoSchedule)
	assert.Equal(t, models.Date(20240401), res.Period.WindowStart)
	assert.Equal(t, models.Date(20240415), res.Period.WindowEnd)
	assert.Contains(t, res.ServiceIDs, 901)
	assert.Len(t, res.ServiceIDs, 1)

	// Without the backward walk the same feed has nothing to resolve.
	fwd := New(calendar.NewIndex(nil, exceptions), nil, Options{})
	assert.True(t, fwd.ResolveCurrent(20240409).NoSchedule)
}

func TestResolveNext_ExceptionFixture(t *testing.T) {
	r := New(aprilExceptionIndex(), nil, Options{LookBackward: true})

	current := r.ResolveCurrent(20240409)
	require.False(t, current.NoSchedule)

	next := r.ResolveNext(20240409, current)
	require.False(t, next.NoSchedule)
	assert.Equal(t, models.Date(20240426), next.Period.WindowStart)
	assert.Equal(t, models.Date(20240510), next.Period.WindowEnd)
	for _, id := range []int{1209, 1210, 1211} {
		assert.Contains(t, next.ServiceIDs, id)
	}
	assert.Len(t, next.ServiceIDs, 3)
}

func TestResolveNext_StartsAfterCurrentEnd(t *testing.T) {
	r := New(aprilExceptionIndex(), nil, Options{LookBackward: true})

	current := r.ResolveCurrent(20240409)
	next := r.ResolveNext(20240409, current)
	require.False(t, next.NoSchedule)
	assert.GreaterOrEqual(t, next.Period.WindowStart, current.Period.WindowEnd.AddDays(1))
}

func TestResolveNext_SkippedBeyondLookupBound(t *testing.T) {
	current := Result{
		Period:     Period{ReferenceDate: 20240409, WindowStart: 20240406, WindowEnd: 20240806},
		ServiceIDs: map[int]struct{}{1: {}},
	}
	r := New(aprilExceptionIndex(), nil, Options{})

	next := r.ResolveNext(20240409, current)
	assert.False(t, next.NoSchedule)
	assert.NotNil(t, next.ServiceIDs)
	assert.Empty(t, next.ServiceIDs)
}

func TestResolveNext_NoFollowingSchedule(t *testing.T) {
	// A feed with nothing after the current window: valid terminal state.
	var exceptions []calendar.DateException
	for d := models.Date(20240406); d <= 20240425; d = d.AddDays(1) {
		exceptions = append(exceptions, calendar.DateException{ServiceID: 1, Date: d, Kind: calendar.ServiceAdded})
	}
	r := New(calendar.NewIndex(nil, exceptions), nil, Options{})

	current := r.ResolveCurrent(20240409)
	require.False(t, current.NoSchedule)

	next := r.ResolveNext(20240409, current)
	assert.True(t, next.NoSchedule)
}

func TestResolveCurrent_MinimumCoverageGrowth(t *testing.T) {
	// A single two-day exception cluster grows forward to the exception-path
	// minimum span.
	exceptions := []calendar.DateException{
		{ServiceID: 1, Date: 20240406, Kind: calendar.ServiceAdded},
		{ServiceID: 1, Date: 20240407, Kind: calendar.ServiceAdded},
	}
	r := New(calendar.NewIndex(nil, exceptions), nil, Options{})

	res := r.ResolveCurrent(20240406)
	require.False(t, res.NoSchedule)
	assert.Equal(t, models.Date(20240406), res.Period.WindowStart)
	assert.Equal(t, MinCalendarDateCoverageTotalDays, res.Period.SpanDays())
}

func TestPeriodSpanAndContains(t *testing.T) {
	p := Period{ReferenceDate: 20240409, WindowStart: 20240406, WindowEnd: 20240425}
	assert.Equal(t, 19, p.SpanDays())
	assert.True(t, p.Contains(20240406))
	assert.True(t, p.Contains(20240425))
	assert.False(t, p.Contains(20240426))
	assert.False(t, Period{}.Resolved())
	assert.Equal(t, 0, Period{}.SpanDays())
}
