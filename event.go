package ics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EventOptions configures NewEvent.
type EventOptions struct {
	// StrictExceptions rejects exceptions whose UID differs from the event.
	StrictExceptions bool
	// Exceptions are related instead of the sibling VEVENTs carrying a
	// RECURRENCE-ID.
	Exceptions []*Component
	// Expansion is passed to every RecurExpansion created by Iterator.
	Expansion *ExpansionOptions
}

type rangeException struct {
	unix int64
	id   string
}

func compareRangeException(a, b rangeException) int {
	switch {
	case a.unix > b.unix:
		return 1
	case b.unix > a.unix:
		return -1
	}
	return 0
}

// Event wraps a VEVENT and resolves the occurrences of a recurring event
// against its exceptions.
type Event struct {
	component *Component

	exceptions          map[string]*Event
	rangeExceptions     []rangeException
	rangeExceptionCache map[string]*Duration

	strictExceptions bool
	expansion        *ExpansionOptions
}

// OccurrenceDetails describes one resolved occurrence.  Item is the event
// the details come from, either the base event or an exception.
type OccurrenceDetails struct {
	RecurrenceID *Time
	Item         *Event
	StartDate    *Time
	EndDate      *Time
}

// NewEvent wraps c.  A nil component creates a fresh VEVENT with a random
// UID.  Unless opts lists exceptions, sibling VEVENTs with a RECURRENCE-ID
// are related automatically.
func NewEvent(c *Component, opts *EventOptions) (*Event, error) {
	if opts == nil {
		opts = &EventOptions{}
	}
	if c == nil {
		c = NewComponent(string(ComponentVEvent))
		if _, err := c.AddPropertyWithValue(string(PropertyUid), uuid.NewString()); err != nil {
			return nil, err
		}
	}
	e := &Event{
		component:           c,
		exceptions:          map[string]*Event{},
		rangeExceptionCache: map[string]*Duration{},
		strictExceptions:    opts.StrictExceptions,
		expansion:           opts.Expansion,
	}

	switch {
	case len(opts.Exceptions) > 0:
		for _, ex := range opts.Exceptions {
			if err := e.RelateException(ex); err != nil {
				return nil, err
			}
		}
	case c.Parent() != nil && !e.IsRecurrenceException():
		for _, sibling := range c.Parent().GetAllSubcomponents(string(ComponentVEvent)) {
			if !sibling.HasProperty(string(PropertyRecurrenceId)) {
				continue
			}
			if err := e.RelateException(sibling); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func (e *Event) Component() *Component { return e.component }

// IsRecurrenceException reports whether the event carries a RECURRENCE-ID.
func (e *Event) IsRecurrenceException() bool {
	return e.component.HasProperty(string(PropertyRecurrenceId))
}

// ModifiesFuture reports whether the exception has RANGE=THISANDFUTURE.
func (e *Event) ModifiesFuture() bool {
	p := e.component.GetFirstProperty(string(PropertyRecurrenceId))
	if p == nil {
		return false
	}
	r, _ := p.GetParameter(string(ParameterRange))
	return r == RangeThisAndFuture
}

// FindRangeException returns the id of the nearest THISANDFUTURE
// exception at or before t.
func (e *Event) FindRangeException(t *Time) (string, bool) {
	if len(e.rangeExceptions) == 0 {
		return "", false
	}
	utc := t.ToUnixTime()
	idx := binsearchInsert(e.rangeExceptions, rangeException{unix: utc}, compareRangeException) - 1
	if idx < 0 {
		return "", false
	}
	item := e.rangeExceptions[idx]
	if utc < item.unix {
		return "", false
	}
	return item.id, true
}

// RelateException wraps c and registers it as an exception.
func (e *Event) RelateException(c *Component) error {
	if e.IsRecurrenceException() {
		return ErrNestedException
	}
	ex, err := NewEvent(c, nil)
	if err != nil {
		return err
	}
	return e.RelateExceptionEvent(ex)
}

// RelateExceptionEvent registers ex under its RECURRENCE-ID.
func (e *Event) RelateExceptionEvent(ex *Event) error {
	if e.IsRecurrenceException() {
		return ErrNestedException
	}
	if e.strictExceptions && ex.UID() != e.UID() {
		return fmt.Errorf("%w: %q is not %q", ErrUnrelatedException, ex.UID(), e.UID())
	}
	rid, err := ex.RecurrenceID()
	if err != nil {
		return err
	}
	id := rid.String()
	e.exceptions[id] = ex

	if ex.ModifiesFuture() {
		item := rangeException{unix: rid.ToUnixTime(), id: id}
		e.rangeExceptions = insertSorted(e.rangeExceptions, item, compareRangeException)
	}
	return nil
}

// Exceptions returns the related exceptions keyed by recurrence id.
func (e *Event) Exceptions() map[string]*Event {
	r := make(map[string]*Event, len(e.exceptions))
	for k, v := range e.exceptions {
		r[k] = v
	}
	return r
}

// GetOccurrenceDetails resolves an occurrence produced by Iterator.  An
// exact exception wins over its UTC form, which wins over the nearest
// THISANDFUTURE exception, which wins over the base event.
func (e *Event) GetOccurrenceDetails(occurrence *Time) (*OccurrenceDetails, error) {
	id := occurrence.String()
	utcID := occurrence.ConvertToZone(UTCTimezone()).String()
	result := &OccurrenceDetails{RecurrenceID: occurrence}

	item, ok := e.exceptions[id]
	if !ok {
		item, ok = e.exceptions[utcID]
	}
	if ok {
		start, err := item.StartDate()
		if err != nil {
			return nil, err
		}
		end, err := item.EndDate()
		if err != nil {
			return nil, err
		}
		result.Item, result.StartDate, result.EndDate = item, start, end
		return result, nil
	}

	if rangeID, found := e.FindRangeException(occurrence); found {
		exception := e.exceptions[rangeID]
		exStart, err := exception.StartDate()
		if err != nil {
			return nil, err
		}
		startDiff, cached := e.rangeExceptionCache[rangeID]
		if !cached {
			original, err := exception.RecurrenceID()
			if err != nil {
				return nil, err
			}
			original = original.Clone()
			// same zone or the subtraction is off by the offset
			original.SetZone(exStart.Zone())
			startDiff = exStart.SubtractDate(original)
			e.rangeExceptionCache[rangeID] = startDiff
		}
		duration, err := exception.Duration()
		if err != nil {
			return nil, err
		}
		start := occurrence.Clone()
		start.SetZone(exStart.Zone())
		start.AddDuration(startDiff)
		end := start.Clone()
		end.AddDuration(duration)
		result.Item, result.StartDate, result.EndDate = exception, start, end
		return result, nil
	}

	duration, err := e.Duration()
	if err != nil {
		return nil, err
	}
	end := occurrence.Clone()
	end.AddDuration(duration)
	result.Item, result.StartDate, result.EndDate = e, occurrence, end
	return result, nil
}

// Iterator expands the occurrences from startTime, or from DTSTART when
// startTime is nil.
func (e *Event) Iterator(startTime *Time) (*RecurExpansion, error) {
	if startTime == nil {
		var err error
		if startTime, err = e.StartDate(); err != nil {
			return nil, err
		}
	}
	return NewRecurExpansion(e.component, startTime, e.expansion)
}

// IsRecurring reports whether the event has an RRULE or RDATE.
func (e *Event) IsRecurring() bool {
	return e.component.HasProperty(string(PropertyRrule)) || e.component.HasProperty(string(PropertyRdate))
}

// GetRecurrenceTypes returns the frequencies of every RRULE.
func (e *Event) GetRecurrenceTypes() (map[Frequency]bool, error) {
	r := map[Frequency]bool{}
	for _, p := range e.component.GetAllProperties(string(PropertyRrule)) {
		rule, err := firstValueAs[*Recur](p)
		if err != nil {
			return nil, err
		}
		r[rule.Freq] = true
	}
	return r, nil
}

func (e *Event) firstTime(name PropertyName) (*Time, error) {
	p := e.component.GetFirstProperty(string(name))
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrorPropertyNotFound, name)
	}
	t, err := firstValueAs[*Time](p)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (e *Event) setTime(name PropertyName, t *Time) error {
	p := e.component.GetFirstProperty(string(name))
	if p == nil {
		p = e.component.AddProperty(NewProperty(string(name)))
	}
	if z := t.Zone(); z == LocalTimezone() || z == UTCTimezone() {
		p.RemoveParameter(string(ParameterTzid))
	} else {
		p.SetParameter(string(ParameterTzid), z.Tzid)
	}
	return p.SetValue(t)
}

func (e *Event) firstText(name PropertyName) string {
	if p := e.component.GetFirstProperty(string(name)); p != nil {
		return p.FirstString()
	}
	return ""
}

func (e *Event) setText(name PropertyName, v string) {
	// text values cannot fail to decorate
	_, _ = e.component.UpdatePropertyWithValue(string(name), v)
}

func (e *Event) StartDate() (*Time, error) { return e.firstTime(PropertyDtstart) }

func (e *Event) SetStartDate(t *Time) error { return e.setTime(PropertyDtstart, t) }

// EndDate returns DTEND, or DTSTART plus DURATION, or the day after a
// date-only DTSTART.
func (e *Event) EndDate() (*Time, error) {
	if e.component.HasProperty(string(PropertyDtend)) {
		return e.firstTime(PropertyDtend)
	}
	start, err := e.StartDate()
	if err != nil {
		return nil, err
	}
	end := start.Clone()
	if e.component.HasProperty(string(PropertyDuration)) {
		d, err := firstValueAs[*Duration](e.component.GetFirstProperty(string(PropertyDuration)))
		if err != nil {
			return nil, err
		}
		return end.AddDuration(d), nil
	}
	if end.IsDate() {
		end.SetDay(end.Day() + 1)
	}
	return end, nil
}

// SetEndDate sets DTEND and drops DURATION.
func (e *Event) SetEndDate(t *Time) error {
	e.component.RemoveAllProperties(string(PropertyDuration))
	return e.setTime(PropertyDtend, t)
}

// Duration returns DURATION, or the absolute time between start and end.
func (e *Event) Duration() (*Duration, error) {
	if p := e.component.GetFirstProperty(string(PropertyDuration)); p != nil {
		return firstValueAs[*Duration](p)
	}
	start, err := e.StartDate()
	if err != nil {
		return nil, err
	}
	end, err := e.EndDate()
	if err != nil {
		return nil, err
	}
	return end.SubtractDateTz(start), nil
}

// SetDuration sets DURATION and drops DTEND.
func (e *Event) SetDuration(d *Duration) error {
	e.component.RemoveAllProperties(string(PropertyDtend))
	_, err := e.component.UpdatePropertyWithValue(string(PropertyDuration), d)
	return err
}

func (e *Event) RecurrenceID() (*Time, error) { return e.firstTime(PropertyRecurrenceId) }

func (e *Event) SetRecurrenceID(t *Time) error { return e.setTime(PropertyRecurrenceId, t) }

func (e *Event) UID() string          { return e.firstText(PropertyUid) }
func (e *Event) SetUID(v string)      { e.setText(PropertyUid, v) }
func (e *Event) Location() string     { return e.firstText(PropertyLocation) }
func (e *Event) SetLocation(v string) { e.setText(PropertyLocation, v) }
func (e *Event) Summary() string      { return e.firstText(PropertySummary) }
func (e *Event) SetSummary(v string)  { e.setText(PropertySummary, v) }
func (e *Event) Description() string  { return e.firstText(PropertyDescription) }
func (e *Event) Color() string        { return e.firstText(PropertyColor) }
func (e *Event) SetColor(v string)    { e.setText(PropertyColor, v) }
func (e *Event) Organizer() string    { return e.firstText(PropertyOrganizer) }

func (e *Event) SetDescription(v string) { e.setText(PropertyDescription, v) }
func (e *Event) SetOrganizer(v string)   { e.setText(PropertyOrganizer, v) }

// Sequence returns SEQUENCE, or 0 when unset.
func (e *Event) Sequence() int {
	return lenientParseInt(e.firstText(PropertySequence))
}

func (e *Event) SetSequence(v int) {
	_, _ = e.component.UpdatePropertyWithValue(string(PropertySequence), v)
}

// AddRecurrenceRule appends an RRULE.
func (e *Event) AddRecurrenceRule(r *Recur) error {
	_, err := e.component.AddPropertyWithValue(string(PropertyRrule), r)
	return err
}

// AddRecurrenceDate appends an RDATE holding t.
func (e *Event) AddRecurrenceDate(t *Time) error {
	return e.addTime(PropertyRdate, t)
}

// AddExceptionDate appends an EXDATE holding t.
func (e *Event) AddExceptionDate(t *Time) error {
	return e.addTime(PropertyExdate, t)
}

func (e *Event) addTime(name PropertyName, t *Time) error {
	var params []PropertyParameter
	if z := t.Zone(); z != LocalTimezone() && z != UTCTimezone() {
		params = append(params, WithTZID(z.Tzid))
	}
	_, err := e.component.AddPropertyWithValue(string(name), t, params...)
	return err
}

// AddAttendee appends an ATTENDEE.  A bare address gets the mailto: scheme.
func (e *Event) AddAttendee(address string, params ...PropertyParameter) *Property {
	if !strings.Contains(address, ":") {
		address = "mailto:" + address
	}
	// cal-address values are plain strings
	p, _ := e.component.AddPropertyWithValue(string(PropertyAttendee), address, params...)
	return p
}

// Attendees returns the ATTENDEE properties.
func (e *Event) Attendees() []*Property {
	return e.component.GetAllProperties(string(PropertyAttendee))
}

// String returns the VEVENT in text form.
func (e *Event) String() string {
	return e.component.String()
}

// sequenceString is used in log records.
func (e *Event) sequenceString() string {
	return strconv.Itoa(e.Sequence())
}
