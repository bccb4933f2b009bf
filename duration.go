package ics

import (
	"fmt"
	"strconv"
	"strings"
)

// Duration is a DURATION value.  All fields are non-negative; the sign is
// carried by IsNegative.
type Duration struct {
	Weeks      int
	Days       int
	Hours      int
	Minutes    int
	Seconds    int
	IsNegative bool
}

// DurationFromSeconds builds a normalized duration.
func DurationFromSeconds(seconds int) *Duration {
	return (&Duration{}).FromSeconds(seconds)
}

// FromSeconds resets the duration.  A day count evenly divisible by seven
// becomes weeks.
func (d *Duration) FromSeconds(seconds int) *Duration {
	secs := seconds
	if secs < 0 {
		secs = -secs
	}
	d.IsNegative = seconds < 0
	d.Days = secs / 86400
	if d.Days%7 == 0 {
		d.Weeks = d.Days / 7
		d.Days = 0
	} else {
		d.Weeks = 0
	}
	secs -= (d.Days + 7*d.Weeks) * 86400
	d.Hours = secs / 3600
	secs -= d.Hours * 3600
	d.Minutes = secs / 60
	secs -= d.Minutes * 60
	d.Seconds = secs
	return d
}

// ToSeconds returns the signed length in seconds.
func (d *Duration) ToSeconds() int {
	seconds := d.Seconds + 60*d.Minutes + 3600*d.Hours + 86400*d.Days + 7*86400*d.Weeks
	if d.IsNegative {
		return -seconds
	}
	return seconds
}

// Normalize redistributes the fields.
func (d *Duration) Normalize() *Duration {
	return d.FromSeconds(d.ToSeconds())
}

// Compare returns -1, 0 or 1.
func (d *Duration) Compare(other *Duration) int {
	a, b := d.ToSeconds(), other.ToSeconds()
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func (d *Duration) Clone() *Duration {
	c := *d
	return &c
}

func (d *Duration) ValueDataType() ValueDataType { return ValueDataTypeDuration }

func (d *Duration) ToICALString() string { return d.String() }

// String returns the RFC 5545 text form, "PT0S" for zero.
func (d *Duration) String() string {
	if d.ToSeconds() == 0 {
		return "PT0S"
	}
	b := &strings.Builder{}
	if d.IsNegative {
		b.WriteString("-")
	}
	b.WriteString("P")
	if d.Weeks != 0 {
		b.WriteString(strconv.Itoa(d.Weeks) + "W")
	}
	if d.Days != 0 {
		b.WriteString(strconv.Itoa(d.Days) + "D")
	}
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteString("T")
		if d.Hours != 0 {
			b.WriteString(strconv.Itoa(d.Hours) + "H")
		}
		if d.Minutes != 0 {
			b.WriteString(strconv.Itoa(d.Minutes) + "M")
		}
		if d.Seconds != 0 {
			b.WriteString(strconv.Itoa(d.Seconds) + "S")
		}
	}
	return b.String()
}

// IsDurationValueString reports whether s looks like a duration rather than
// a date-time.
func IsDurationValueString(s string) bool {
	return (len(s) > 0 && s[0] == 'P') || (len(s) > 1 && s[1] == 'P')
}

// DurationFromString parses "[+-]P[nW][nD][T[nH][nM][nS]]".  At least one
// component must follow the P designator.
func DurationFromString(s string) (*Duration, error) {
	d := &Duration{}
	chunks := 0
	rest := s
	for {
		pos := strings.IndexAny(rest, "PDWHMTS")
		if pos < 0 {
			break
		}
		letter := rest[pos]
		number := rest[:pos]
		rest = rest[pos+1:]
		n, err := d.parseChunk(letter, number)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, s, err)
		}
		chunks += n
	}
	if chunks < 2 {
		return nil, fmt.Errorf("%w: not enough duration components in %q", ErrInvalidDuration, s)
	}
	return d, nil
}

func (d *Duration) parseChunk(letter byte, number string) (int, error) {
	var field *int
	switch letter {
	case 'P':
		d.IsNegative = number == "-"
		return 1, nil
	case 'W':
		field = &d.Weeks
	case 'D':
		field = &d.Days
	case 'H':
		field = &d.Hours
	case 'M':
		field = &d.Minutes
	case 'S':
		field = &d.Seconds
	default:
		return 0, nil
	}
	if number == "" {
		return 0, fmt.Errorf("missing number before %q", letter)
	}
	v, err := strconv.Atoi(number)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q before %q", number, letter)
	}
	*field = v
	return 1, nil
}
