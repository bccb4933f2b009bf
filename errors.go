package ics

import (
	"errors"
)

var (
	// ErrParse is returned for any malformed iCalendar line.  A document
	// with an unparseable line is rejected as a whole.
	ErrParse = errors.New("parse error")
	// ErrUnterminatedComponent is returned when a BEGIN has no matching END.
	ErrUnterminatedComponent = errors.New("invalid ical body: component began but did not end")
	ErrInvalidDuration       = errors.New("invalid duration value")
	ErrInvalidPeriod         = errors.New("invalid period value")
	ErrInvalidTime           = errors.New("invalid date-time value")
	ErrInvalidUtcOffset      = errors.New("invalid utc-offset value")
	ErrInvalidRecur          = errors.New("invalid recurrence rule")
	ErrInvalidFrequency      = errors.New("invalid frequency")
	// ErrIllegalRuleCombination is returned by NewRecurIterator when the
	// BYxxx parts of a rule cannot be combined.
	ErrIllegalRuleCombination = errors.New("illegal rule part combination")
	// ErrDuplicateOccurrence protects callers from rules that keep producing
	// the same instant.
	ErrDuplicateOccurrence       = errors.New("same occurrence found twice")
	ErrExpansionRetriesExhausted = errors.New("max tries have occurred, rule may be impossible to fulfill")
	ErrNestedException           = errors.New("cannot relate exception to exceptions")
	ErrUnrelatedException        = errors.New("attempted to relate unrelated exception")
	ErrMissingRule               = errors.New("iterator requires a rule and a dtstart")
	ErrNotTimezone               = errors.New("timezone must be a vtimezone component")
	ErrNotCalendar               = errors.New("document is not a vcalendar")
	// ErrFetch wraps transport failures and non-2xx answers from
	// FetchCalendar.
	ErrFetch = errors.New("fetching calendar")
	// ErrorPropertyNotFound is the error returned if the requested valid
	// property is not set.
	ErrorPropertyNotFound  = errors.New("property not found")
	ErrUnexpectedValueKind = errors.New("unexpected value kind")
)
