package ics

import (
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendarComponent(t *testing.T, lines ...string) *Component {
	t.Helper()
	c, err := ComponentFromString("BEGIN:VCALENDAR\n" + strings.Join(lines, "\n") + "\nEND:VCALENDAR\n")
	require.NoError(t, err)
	return c
}

func eventDetails(t *testing.T, e *Event, max int) []*OccurrenceDetails {
	t.Helper()
	it, err := e.Iterator(nil)
	require.NoError(t, err)
	var r []*OccurrenceDetails
	for i := 0; i < max; i++ {
		next, err := it.Next()
		require.NoError(t, err)
		if next == nil {
			break
		}
		d, err := e.GetOccurrenceDetails(next)
		require.NoError(t, err)
		r = append(r, d)
	}
	return r
}

func TestEventRelatesSiblingExceptions(t *testing.T) {
	f, err := os.Open("testdata/roundtrip/recurring.ics")
	require.NoError(t, err)
	defer f.Close()
	cal, err := ParseCalendar(f)
	require.NoError(t, err)

	events, err := cal.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "weekly@example.com", ev.UID())
	assert.True(t, ev.IsRecurring())
	assert.False(t, ev.IsRecurrenceException())
	types, err := ev.GetRecurrenceTypes()
	require.NoError(t, err)
	assert.Equal(t, map[Frequency]bool{FrequencyWeekly: true}, types)

	exceptions := ev.Exceptions()
	require.Len(t, exceptions, 1)
	moved, ok := exceptions["2024-06-10T09:00:00"]
	require.True(t, ok)
	assert.True(t, moved.IsRecurrenceException())
	assert.False(t, moved.IsRecurring())
	assert.Equal(t, 1, moved.Sequence())

	details := eventDetails(t, ev, 20)
	var starts []string
	for _, d := range details {
		starts = append(starts, d.StartDate.String())
	}
	assert.Equal(t, []string{
		"2024-06-03T09:00:00",
		"2024-06-10T11:00:00",
		"2024-07-01T09:00:00",
		"2024-07-08T09:00:00",
		"2024-07-15T09:00:00",
		"2024-07-22T09:00:00",
		"2024-07-29T09:00:00",
		"2024-08-05T09:00:00",
	}, starts)

	assert.Same(t, moved, details[1].Item)
	assert.Equal(t, "Weekly sync (moved)", details[1].Item.Summary())
	assert.Equal(t, "2024-06-10T09:00:00", details[1].RecurrenceID.String())
	assert.Equal(t, "2024-06-10T12:00:00", details[1].EndDate.String())

	assert.Same(t, ev, details[0].Item)
	assert.Equal(t, "2024-06-03T10:00:00", details[0].EndDate.String())
	assert.Equal(t, "America/New_York", details[0].StartDate.Zone().Tzid)
}

func TestEventRangeExceptions(t *testing.T) {
	cal := calendarComponent(t,
		"BEGIN:VEVENT",
		"UID:range",
		"DTSTART:20120101T100000Z",
		"DURATION:PT1H",
		"RRULE:FREQ=DAILY;COUNT=6",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:range",
		"RECURRENCE-ID;RANGE=THISANDFUTURE:20120103T100000Z",
		"DTSTART:20120103T120000Z",
		"DTEND:20120103T150000Z",
		"SUMMARY:later",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:range",
		"RECURRENCE-ID:20120105T100000Z",
		"DTSTART:20120105T080000Z",
		"DURATION:PT30M",
		"SUMMARY:early",
		"END:VEVENT",
	)
	ev, err := NewEvent(cal.GetFirstSubcomponent("vevent"), nil)
	require.NoError(t, err)
	require.Len(t, ev.Exceptions(), 2)

	id, ok := ev.FindRangeException(NewTime(2012, 1, 4, 10, 0, 0, UTCTimezone()))
	assert.True(t, ok)
	assert.Equal(t, "2012-01-03T10:00:00Z", id)
	_, ok = ev.FindRangeException(NewTime(2012, 1, 2, 10, 0, 0, UTCTimezone()))
	assert.False(t, ok)

	tests := []struct {
		start   string
		end     string
		summary string
	}{
		{"2012-01-01T10:00:00Z", "2012-01-01T11:00:00Z", ""},
		{"2012-01-02T10:00:00Z", "2012-01-02T11:00:00Z", ""},
		{"2012-01-03T12:00:00Z", "2012-01-03T15:00:00Z", "later"},
		{"2012-01-04T12:00:00Z", "2012-01-04T15:00:00Z", "later"},
		{"2012-01-05T08:00:00Z", "2012-01-05T08:30:00Z", "early"},
		{"2012-01-06T12:00:00Z", "2012-01-06T15:00:00Z", "later"},
	}
	details := eventDetails(t, ev, 20)
	require.Len(t, details, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.start, details[i].StartDate.String())
		assert.Equal(t, tt.end, details[i].EndDate.String())
		assert.Equal(t, tt.summary, details[i].Item.Summary())
	}
	// the occurrence itself is never shifted
	assert.Equal(t, "2012-01-04T10:00:00Z", details[3].RecurrenceID.String())
}

func TestEventExceptionByUTCRecurrenceID(t *testing.T) {
	cal := calendarComponent(t,
		strings.TrimSuffix(newYorkTimezone, "\n"),
		"BEGIN:VEVENT",
		"UID:utc",
		"DTSTART;TZID=America/New_York:20240701T090000",
		"DTEND;TZID=America/New_York:20240701T093000",
		"RRULE:FREQ=DAILY;COUNT=3",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:utc",
		"RECURRENCE-ID:20240702T130000Z",
		"DTSTART:20240702T150000Z",
		"DTEND:20240702T160000Z",
		"END:VEVENT",
	)
	ev, err := NewEvent(cal.GetFirstSubcomponent("vevent"), nil)
	require.NoError(t, err)

	details := eventDetails(t, ev, 10)
	require.Len(t, details, 3)
	assert.Same(t, ev, details[0].Item)
	assert.Equal(t, "2024-07-01T09:30:00", details[0].EndDate.String())
	assert.NotSame(t, ev, details[1].Item)
	assert.Equal(t, "2024-07-02T15:00:00Z", details[1].StartDate.String())
	assert.Same(t, ev, details[2].Item)
}

func TestEventExceptionErrors(t *testing.T) {
	cal := calendarComponent(t,
		"BEGIN:VEVENT",
		"UID:a",
		"DTSTART:20120101T100000Z",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b",
		"RECURRENCE-ID:20120102T100000Z",
		"DTSTART:20120102T110000Z",
		"END:VEVENT",
	)
	vevents := cal.GetAllSubcomponents("vevent")

	ev, err := NewEvent(vevents[0], nil)
	require.NoError(t, err)
	assert.Len(t, ev.Exceptions(), 1)

	_, err = NewEvent(vevents[0], &EventOptions{StrictExceptions: true})
	assert.ErrorIs(t, err, ErrUnrelatedException)

	ex, err := NewEvent(vevents[1], nil)
	require.NoError(t, err)
	assert.Empty(t, ex.Exceptions())
	assert.ErrorIs(t, ex.RelateException(vevents[0]), ErrNestedException)
	assert.ErrorIs(t, ex.RelateExceptionEvent(ev), ErrNestedException)

	// explicit exceptions replace the sibling scan
	standalone, err := ComponentFromString("BEGIN:VEVENT\nUID:a\nRECURRENCE-ID:20120103T100000Z\nDTSTART:20120103T120000Z\nEND:VEVENT\n")
	require.NoError(t, err)
	ev, err = NewEvent(vevents[0], &EventOptions{Exceptions: []*Component{standalone}})
	require.NoError(t, err)
	exceptions := ev.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Contains(t, exceptions, "2012-01-03T10:00:00Z")
}

func TestEventNewComponent(t *testing.T) {
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "vevent", e.Component().Name())
	_, err = uuid.Parse(e.UID())
	assert.NoError(t, err)
	assert.False(t, e.IsRecurring())

	_, err = e.StartDate()
	assert.ErrorIs(t, err, ErrorPropertyNotFound)

	other, err := NewEvent(nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, e.UID(), other.UID())
}

func TestEventEndAndDuration(t *testing.T) {
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.SetStartDate(NewTime(2012, 1, 1, 12, 0, 0, UTCTimezone())))

	require.NoError(t, e.SetDuration(&Duration{Hours: 1}))
	end, err := e.EndDate()
	require.NoError(t, err)
	assert.Equal(t, "2012-01-01T13:00:00Z", end.String())

	require.NoError(t, e.SetEndDate(NewTime(2012, 1, 1, 14, 0, 0, UTCTimezone())))
	assert.False(t, e.Component().HasProperty("duration"))
	d, err := e.Duration()
	require.NoError(t, err)
	assert.Equal(t, "PT2H", d.String())

	require.NoError(t, e.SetDuration(&Duration{Minutes: 45}))
	assert.False(t, e.Component().HasProperty("dtend"))
	end, err = e.EndDate()
	require.NoError(t, err)
	assert.Equal(t, "2012-01-01T12:45:00Z", end.String())

	allDay, err := ComponentFromString("BEGIN:VEVENT\nUID:d\nDTSTART;VALUE=DATE:20121231\nEND:VEVENT\n")
	require.NoError(t, err)
	e, err = NewEvent(allDay, nil)
	require.NoError(t, err)
	end, err = e.EndDate()
	require.NoError(t, err)
	assert.Equal(t, "2013-01-01", end.String())
	d, err = e.Duration()
	require.NoError(t, err)
	assert.Equal(t, "P1D", d.String())
}

func TestEventSetters(t *testing.T) {
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)

	e.SetUID("set@example.com")
	e.SetSummary("Lunch, later")
	e.SetLocation("Cafe")
	e.SetDescription("bring cash")
	e.SetColor("red")
	e.SetOrganizer("mailto:boss@example.com")
	e.SetSequence(2)
	e.SetSequence(3)

	assert.Equal(t, "set@example.com", e.UID())
	assert.Equal(t, "Lunch, later", e.Summary())
	assert.Equal(t, "Cafe", e.Location())
	assert.Equal(t, "bring cash", e.Description())
	assert.Equal(t, "red", e.Color())
	assert.Equal(t, "mailto:boss@example.com", e.Organizer())
	assert.Equal(t, 3, e.Sequence())
	assert.Len(t, e.Component().GetAllProperties("uid"), 1)
	assert.Len(t, e.Component().GetAllProperties("sequence"), 1)
	assert.Contains(t, e.String(), "SUMMARY:Lunch\\, later\r\n")
}

func TestEventZonedSetters(t *testing.T) {
	ny := newYork(t)
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)

	require.NoError(t, e.SetStartDate(NewTime(2012, 1, 1, 9, 0, 0, ny)))
	p := e.Component().GetFirstProperty("dtstart")
	tzid, ok := p.GetParameter("tzid")
	assert.True(t, ok)
	assert.Equal(t, "America/New_York", tzid)
	assert.Equal(t, "DTSTART;TZID=America/New_York:20120101T090000", p.ToICALString())
	start, err := e.StartDate()
	require.NoError(t, err)
	assert.Same(t, ny, start.Zone())

	require.NoError(t, e.SetStartDate(NewTime(2012, 1, 1, 14, 0, 0, UTCTimezone())))
	_, ok = p.GetParameter("tzid")
	assert.False(t, ok)
	assert.Equal(t, "DTSTART:20120101T140000Z", p.ToICALString())

	require.NoError(t, e.SetRecurrenceID(NewTime(2012, 1, 1, 9, 0, 0, ny)))
	assert.True(t, e.IsRecurrenceException())
}

func TestEventRecurrenceSetters(t *testing.T) {
	ny := newYork(t)
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.SetStartDate(NewTime(2012, 1, 2, 9, 0, 0, UTCTimezone())))

	rule, err := RecurFromString("FREQ=DAILY;COUNT=4")
	require.NoError(t, err)
	require.NoError(t, e.AddRecurrenceRule(rule))
	monthly, err := RecurFromString("FREQ=MONTHLY;COUNT=2;BYMONTHDAY=15")
	require.NoError(t, err)
	require.NoError(t, e.AddRecurrenceRule(monthly))
	assert.True(t, e.IsRecurring())
	types, err := e.GetRecurrenceTypes()
	require.NoError(t, err)
	assert.Equal(t, map[Frequency]bool{FrequencyDaily: true, FrequencyMonthly: true}, types)

	require.NoError(t, e.AddRecurrenceDate(NewTime(2012, 1, 10, 10, 0, 0, UTCTimezone())))
	require.NoError(t, e.AddExceptionDate(NewTime(2012, 1, 5, 9, 0, 0, ny)))
	require.NoError(t, e.AddExceptionDate(NewTime(2012, 1, 3, 9, 0, 0, UTCTimezone())))

	assert.Equal(t, "RDATE:20120110T100000Z", e.Component().GetFirstProperty("rdate").ToICALString())
	exdates := e.Component().GetAllProperties("exdate")
	require.Len(t, exdates, 2)
	assert.Equal(t, "EXDATE;TZID=America/New_York:20120105T090000", exdates[0].ToICALString())
	assert.Equal(t, "EXDATE:20120103T090000Z", exdates[1].ToICALString())

	details := eventDetails(t, e, 20)
	var starts []string
	for _, d := range details {
		starts = append(starts, d.StartDate.String())
	}
	assert.Equal(t, []string{
		"2012-01-02T09:00:00Z",
		"2012-01-04T09:00:00Z",
		"2012-01-05T09:00:00Z",
		"2012-01-10T10:00:00Z",
		"2012-01-15T09:00:00Z",
		"2012-02-15T09:00:00Z",
	}, starts)
}

func TestEventAttendees(t *testing.T) {
	e, err := NewEvent(nil, nil)
	require.NoError(t, err)
	a := e.AddAttendee("a@example.com", WithCN("A"))
	require.NotNil(t, a)
	assert.Equal(t, "ATTENDEE;CN=A:mailto:a@example.com", a.ToICALString())
	b := e.AddAttendee("mailto:b@example.com", ParticipationStatusDeclined)
	assert.Equal(t, "mailto:b@example.com", b.FirstString())

	attendees := e.Attendees()
	require.Len(t, attendees, 2)
	assert.Same(t, a, attendees[0])
	status, ok := attendees[1].GetParameter("partstat")
	assert.True(t, ok)
	assert.Equal(t, "DECLINED", status)
}
