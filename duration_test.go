package ics

import (
	"testing"

	duration "github.com/channelmeter/iso8601duration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationFromString(t *testing.T) {
	tests := []struct {
		input   string
		seconds int
		text    string
	}{
		{"P1DT2H", 93600, "P1DT2H"},
		{"PT0S", 0, "PT0S"},
		{"P2W", 1209600, "P2W"},
		{"-PT15M", -900, "-PT15M"},
		{"+PT1H30M", 5400, "PT1H30M"},
		{"P1W2DT3H4M5S", 788645, "P1W2DT3H4M5S"},
		{"PT90M", 5400, "PT90M"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := DurationFromString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.seconds, d.ToSeconds())
			assert.Equal(t, tt.text, d.String())
			assert.Equal(t, tt.text, d.ToICALString())
		})
	}
}

func TestDurationFromStringErrors(t *testing.T) {
	for _, bad := range []string{"", "P", "PxD", "P1", "PDT"} {
		_, err := DurationFromString(bad)
		assert.ErrorIsf(t, err, ErrInvalidDuration, "input %q", bad)
	}

	assert.True(t, IsDurationValueString("PT1H"))
	assert.True(t, IsDurationValueString("-P1D"))
	assert.False(t, IsDurationValueString("20120101T100000Z"))
}

func TestDurationSeconds(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 3600, 86399, 86400, 604800, 93600, 700000, -5400, -1209600} {
		d := DurationFromSeconds(secs)
		assert.Equalf(t, secs, d.ToSeconds(), "%d seconds", secs)
		parsed, err := DurationFromString(d.String())
		require.NoError(t, err)
		assert.Equal(t, secs, parsed.ToSeconds())
	}

	assert.Equal(t, &Duration{Weeks: 2}, DurationFromSeconds(1209600))
	assert.Equal(t, &Duration{Days: 8, Hours: 2}, DurationFromSeconds(8*86400+7200))
	assert.Equal(t, &Duration{Minutes: 30, IsNegative: true}, DurationFromSeconds(-1800))
}

func TestDurationNormalizeCompare(t *testing.T) {
	d := &Duration{Hours: 36}
	d.Normalize()
	assert.Equal(t, &Duration{Days: 1, Hours: 12}, d)

	assert.Equal(t, 1, DurationFromSeconds(60).Compare(DurationFromSeconds(59)))
	assert.Equal(t, -1, DurationFromSeconds(-60).Compare(DurationFromSeconds(0)))
	assert.Equal(t, 0, (&Duration{Days: 7}).Compare(&Duration{Weeks: 1}))

	c := d.Clone()
	c.Days = 5
	assert.Equal(t, 1, d.Days)
}

// The positive forms shared with ISO 8601 must agree with an independent
// parser.
func TestDurationAgreesWithISO8601(t *testing.T) {
	for _, s := range []string{"P1DT2H", "P3W", "PT45M10S", "P2DT12H", "PT1S"} {
		want, err := duration.FromString(s)
		require.NoError(t, err, s)
		got, err := DurationFromString(s)
		require.NoError(t, err, s)
		assert.Equalf(t, int(want.ToDuration().Seconds()), got.ToSeconds(), "duration %s", s)
	}
}
