package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Calendar-level properties outside RFC 5545 that feeds commonly carry.
const (
	PropertyCalendarName    PropertyName = "name"
	PropertyRefreshInterval PropertyName = "refresh-interval"
	PropertyXPublishedTTL   PropertyName = "x-published-ttl"
	PropertyXWRCalName      PropertyName = "x-wr-calname"
	PropertyXWRCalDesc      PropertyName = "x-wr-caldesc"
	PropertyXWRTimezone     PropertyName = "x-wr-timezone"
)

type CalendarUserType string

// CalendarUserType enumerates the CUTYPE parameter values from RFC 5545 section 3.2.3.
const (
	CalendarUserTypeIndividual CalendarUserType = "INDIVIDUAL"
	CalendarUserTypeGroup      CalendarUserType = "GROUP"
	CalendarUserTypeResource   CalendarUserType = "RESOURCE"
	CalendarUserTypeRoom       CalendarUserType = "ROOM"
	CalendarUserTypeUnknown    CalendarUserType = "UNKNOWN"
)

func (cut CalendarUserType) Param() Param { return singleParam(ParameterCutype, string(cut)) }

type ParticipationStatus string

// ParticipationStatus enumerates the PARTSTAT parameter values from RFC 5545 section 3.2.12.
const (
	ParticipationStatusNeedsAction ParticipationStatus = "NEEDS-ACTION"
	ParticipationStatusAccepted    ParticipationStatus = "ACCEPTED"
	ParticipationStatusDeclined    ParticipationStatus = "DECLINED"
	ParticipationStatusTentative   ParticipationStatus = "TENTATIVE"
	ParticipationStatusDelegated   ParticipationStatus = "DELEGATED"
)

func (ps ParticipationStatus) Param() Param { return singleParam(ParameterParticipationStatus, string(ps)) }

type ParticipationRole string

// ParticipationRole enumerates the ROLE parameter values for participants
// (RFC 5545 section 3.2.16).
const (
	ParticipationRoleChair          ParticipationRole = "CHAIR"
	ParticipationRoleReqParticipant ParticipationRole = "REQ-PARTICIPANT"
	ParticipationRoleOptParticipant ParticipationRole = "OPT-PARTICIPANT"
	ParticipationRoleNonParticipant ParticipationRole = "NON-PARTICIPANT"
)

func (pr ParticipationRole) Param() Param { return singleParam(ParameterRole, string(pr)) }

type Method string

// Method enumerates METHOD property values used with scheduling messages
// (RFC 5545 section 3.7.2).
const (
	MethodPublish        Method = "PUBLISH"
	MethodRequest        Method = "REQUEST"
	MethodReply          Method = "REPLY"
	MethodAdd            Method = "ADD"
	MethodCancel         Method = "CANCEL"
	MethodRefresh        Method = "REFRESH"
	MethodCounter        Method = "COUNTER"
	MethodDeclinecounter Method = "DECLINECOUNTER"
)

// Calendar is a VCALENDAR component with helpers for the calendar-level
// properties and its events.
type Calendar struct {
	*Component
}

// NewCalendar returns a calendar using a default product identifier.  The
// result carries the VERSION and PRODID properties RFC 5545 requires.
func NewCalendar() *Calendar {
	return NewCalendarFor("arran4")
}

// NewCalendarFor constructs a Calendar whose PRODID names service.
func NewCalendarFor(service string) *Calendar {
	c := &Calendar{Component: NewComponent(string(ComponentVCalendar))}
	c.SetVersion("2.0")
	c.SetProductId("-//" + service + "//Golang ICS Engine")
	return c
}

func (cal *Calendar) setProperty(name PropertyName, value any, params ...PropertyParameter) {
	cal.RemoveAllProperties(string(name))
	// plain text and time values always decorate
	_, _ = cal.AddPropertyWithValue(string(name), value, params...)
}

func (cal *Calendar) SetMethod(method Method, params ...PropertyParameter) {
	cal.setProperty(PropertyMethod, string(method), params...)
}

func (cal *Calendar) SetVersion(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyVersion, s, params...)
}

func (cal *Calendar) SetProductId(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyProductId, s, params...)
}

// SetName sets both NAME and the X-WR-CALNAME most clients read.
func (cal *Calendar) SetName(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyCalendarName, s, params...)
	cal.setProperty(PropertyXWRCalName, s, params...)
}

func (cal *Calendar) SetColor(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyColor, s, params...)
}

func (cal *Calendar) SetDescription(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyDescription, s, params...)
	cal.setProperty(PropertyXWRCalDesc, s, params...)
}

func (cal *Calendar) SetXWRTimezone(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXWRTimezone, s, params...)
}

func (cal *Calendar) SetXPublishedTTL(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXPublishedTTL, s, params...)
}

func (cal *Calendar) SetRefreshInterval(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyRefreshInterval, s, params...)
}

func (cal *Calendar) SetCalscale(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyCalscale, s, params...)
}

func (cal *Calendar) SetLastModified(t time.Time, params ...PropertyParameter) {
	cal.setProperty(PropertyLastModified, TimeFromGoTime(t, true), params...)
}

// AddEvent appends a VEVENT with the given UID.
func (cal *Calendar) AddEvent(uid string) (*Event, error) {
	c := NewComponent(string(ComponentVEvent))
	if _, err := c.AddPropertyWithValue(string(PropertyUid), uid); err != nil {
		return nil, err
	}
	cal.AddSubcomponent(c)
	return NewEvent(c, nil)
}

// AddVEvent appends the component behind e.
func (cal *Calendar) AddVEvent(e *Event) {
	cal.AddSubcomponent(e.Component())
}

// Events wraps every VEVENT that is not a recurrence exception.  The
// exceptions are related to their master event.
func (cal *Calendar) Events() ([]*Event, error) {
	var r []*Event
	for _, c := range cal.GetAllSubcomponents(string(ComponentVEvent)) {
		if c.HasProperty(string(PropertyRecurrenceId)) {
			continue
		}
		e, err := NewEvent(c, nil)
		if err != nil {
			return nil, err
		}
		r = append(r, e)
	}
	return r, nil
}

// Timezones returns the VTIMEZONE definitions of the calendar.
func (cal *Calendar) Timezones() ([]*Timezone, error) {
	var r []*Timezone
	for _, c := range cal.GetAllSubcomponents(string(ComponentVTimezone)) {
		tz, err := NewTimezone(c)
		if err != nil {
			return nil, err
		}
		r = append(r, tz)
	}
	return r, nil
}

// RegisterTimezones adds every VTIMEZONE to s.
func (cal *Calendar) RegisterTimezones(s *TimezoneService) error {
	tzs, err := cal.Timezones()
	if err != nil {
		return err
	}
	for _, tz := range tzs {
		s.Register(tz)
	}
	return nil
}

// RemoveEvent removes every VEVENT with the given UID, exceptions included.
func (cal *Calendar) RemoveEvent(uid string) bool {
	removed := false
	for _, c := range cal.GetAllSubcomponents(string(ComponentVEvent)) {
		if p := c.GetFirstProperty(string(PropertyUid)); p != nil && p.FirstString() == uid {
			removed = cal.RemoveSubcomponent(c) || removed
		}
	}
	return removed
}

// Doer sends HTTP requests.  *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type fetchConfig struct {
	client Doer
	header http.Header
}

// FetchOption adjusts how FetchCalendar talks to the server.
type FetchOption func(*fetchConfig)

// WithClient replaces http.DefaultClient.
func WithClient(d Doer) FetchOption {
	return func(c *fetchConfig) { c.client = d }
}

// WithHeader adds a request header, e.g. an Authorization token for a
// private feed.
func WithHeader(key, value string) FetchOption {
	return func(c *fetchConfig) { c.header.Add(key, value) }
}

// FetchCalendar GETs url and parses the body as one VCALENDAR.  Transport
// failures and non-2xx answers wrap ErrFetch.
func FetchCalendar(ctx context.Context, url string, opts ...FetchOption) (cal *Calendar, err error) {
	conf := &fetchConfig{client: http.DefaultClient, header: http.Header{}}
	for _, opt := range opts {
		opt(conf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header = conf.header
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/calendar")
	}

	resp, err := conf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing body: %w", ErrFetch, cerr)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s answered %s", ErrFetch, url, resp.Status)
	}
	return ParseCalendar(resp.Body)
}

// ParseCalendar reads a document whose first root is a VCALENDAR.  Any
// further roots are ignored.
func ParseCalendar(r io.Reader) (*Calendar, error) {
	comps, err := ParseReader(r)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrNotCalendar)
	}
	if name := comps[0].Name; name != string(ComponentVCalendar) {
		return nil, fmt.Errorf("%w: found %s", ErrNotCalendar, strings.ToUpper(name))
	}
	return &Calendar{Component: WrapComponent(comps[0], nil)}, nil
}
