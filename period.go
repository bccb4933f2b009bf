package ics

import (
	"fmt"
	"strings"
)

// Period is a PERIOD value.  Exactly one of End and Duration is set.
type Period struct {
	Start    *Time
	End      *Time
	Duration *Duration
}

// NewPeriod validates that end and duration are not both given.
func NewPeriod(start, end *Time, duration *Duration) (*Period, error) {
	if end != nil && duration != nil {
		return nil, fmt.Errorf("%w: cannot accept both end and duration", ErrInvalidPeriod)
	}
	return &Period{Start: start, End: end, Duration: duration}, nil
}

// PeriodFromString parses "<date-time>/<date-time-or-duration>" in jCal
// form.
func PeriodFromString(s string, p *Property) (*Period, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q must contain a \"/\" char", ErrInvalidPeriod, s)
	}
	return PeriodFromJSON([]any{parts[0], parts[1]}, p, false)
}

// PeriodFromJSON decorates the jCal [start, end-or-duration] pair.  With
// lenient set, date values are accepted in place of date-times.
func PeriodFromJSON(data []any, p *Property, lenient bool) (*Period, error) {
	if len(data) != 2 {
		return nil, fmt.Errorf("%w: expected 2 members, got %d", ErrInvalidPeriod, len(data))
	}
	parse := func(s string) (*Time, error) {
		if lenient {
			return TimeFromString(s, p)
		}
		return TimeFromDateTimeString(s, p)
	}
	start, err := parse(rawString(data[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrInvalidPeriod, err)
	}
	second := rawString(data[1])
	if IsDurationValueString(second) {
		d, err := DurationFromString(second)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPeriod, err)
		}
		return NewPeriod(start, nil, d)
	}
	end, err := parse(second)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %w", ErrInvalidPeriod, err)
	}
	return NewPeriod(start, end, nil)
}

// GetDuration returns the duration, deriving it from the end if needed.
func (p *Period) GetDuration() *Duration {
	if p.Duration != nil {
		return p.Duration
	}
	return p.End.SubtractDate(p.Start)
}

// GetEnd returns the end, deriving it from the duration if needed.
func (p *Period) GetEnd() *Time {
	if p.End != nil {
		return p.End
	}
	end := p.Start.Clone()
	end.AddDuration(p.Duration)
	return end
}

func (p *Period) Clone() *Period {
	c := &Period{}
	if p.Start != nil {
		c.Start = p.Start.Clone()
	}
	if p.End != nil {
		c.End = p.End.Clone()
	}
	if p.Duration != nil {
		c.Duration = p.Duration.Clone()
	}
	return c
}

func (p *Period) ValueDataType() ValueDataType { return ValueDataTypePeriod }

func (p *Period) second() Value {
	if p.End != nil {
		return p.End
	}
	return p.Duration
}

func (p *Period) String() string {
	return fmt.Sprintf("%s/%s", p.Start, p.second())
}

func (p *Period) ToICALString() string {
	return p.Start.ToICALString() + "/" + p.second().ToICALString()
}

// ToJSON returns the jCal pair.
func (p *Period) ToJSON() []any {
	return []any{p.Start.String(), fmt.Sprint(p.second())}
}
