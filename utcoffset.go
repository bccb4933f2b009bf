package ics

import (
	"fmt"
)

// UtcOffset is a signed hours and minutes offset from UTC.
type UtcOffset struct {
	Hours   int
	Minutes int
	// Factor is +1 or -1.
	Factor int
}

// NewUtcOffset builds an offset; a zero factor is treated as positive.
func NewUtcOffset(hours, minutes, factor int) *UtcOffset {
	if factor == 0 {
		factor = 1
	}
	return &UtcOffset{Hours: hours, Minutes: minutes, Factor: factor}
}

// UtcOffsetFromString parses the jCal form "-05:00" or "-05:00:30".  The
// text form "-0500" is rejected; seconds are accepted and dropped.
func UtcOffsetFromString(s string) (*UtcOffset, error) {
	if (len(s) != 6 && len(s) != 9) || s[3] != ':' || (len(s) == 9 && s[6] != ':') {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUtcOffset, s)
	}
	o := &UtcOffset{}
	switch s[0] {
	case '+':
		o.Factor = 1
	case '-':
		o.Factor = -1
	default:
		return nil, fmt.Errorf("%w: %q has no sign", ErrInvalidUtcOffset, s)
	}
	var err error
	if o.Hours, err = strictParseInt(s[1:3]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUtcOffset, err)
	}
	if o.Minutes, err = strictParseInt(s[4:6]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUtcOffset, err)
	}
	if len(s) == 9 {
		if _, err = strictParseInt(s[7:9]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidUtcOffset, err)
		}
	}
	return o, nil
}

// UtcOffsetFromSeconds converts a signed number of seconds.
func UtcOffsetFromSeconds(seconds int) *UtcOffset {
	o := &UtcOffset{}
	o.FromSeconds(seconds)
	return o
}

// FromSeconds resets the offset from a signed number of seconds.  Seconds
// below a minute are dropped.
func (o *UtcOffset) FromSeconds(seconds int) *UtcOffset {
	secs := seconds
	if secs < 0 {
		secs = -secs
	}
	o.Factor = 1
	if seconds < 0 {
		o.Factor = -1
	}
	o.Hours = secs / 3600
	secs -= o.Hours * 3600
	o.Minutes = secs / 60
	return o
}

// ToSeconds returns the offset in seconds.
func (o *UtcOffset) ToSeconds() int {
	return o.Factor * (60*o.Minutes + 3600*o.Hours)
}

// Compare returns -1, 0 or 1.
func (o *UtcOffset) Compare(other *UtcOffset) int {
	a, b := o.ToSeconds(), other.ToSeconds()
	switch {
	case a > b:
		return 1
	case b > a:
		return -1
	}
	return 0
}

func (o *UtcOffset) Clone() *UtcOffset {
	c := *o
	return &c
}

func (o *UtcOffset) ValueDataType() ValueDataType { return ValueDataTypeUtcOffset }

// ToICALString returns the text form "-0500".
func (o *UtcOffset) ToICALString() string {
	return lookupValue(ValueDataTypeUtcOffset).toICAL(o.String())
}

// String returns the jCal form "-05:00".
func (o *UtcOffset) String() string {
	sign := "-"
	if o.Factor >= 0 {
		sign = "+"
	}
	return sign + pad2(o.Hours) + ":" + pad2(o.Minutes)
}
