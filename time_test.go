package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLeapYear(t *testing.T) {
	for year, want := range map[int]bool{
		1700: true,
		1752: true,
		1800: false,
		1900: false,
		2000: true,
		2012: true,
		2013: false,
	} {
		assert.Equalf(t, want, IsLeapYear(year), "year %d", year)
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 28, DaysInMonth(2, 2013))
	assert.Equal(t, 29, DaysInMonth(2, 2012))
	assert.Equal(t, 29, DaysInMonth(2, 1700))
	assert.Equal(t, 31, DaysInMonth(12, 2013))
	assert.Equal(t, 30, DaysInMonth(13, 2013))
}

func TestTimeNormalization(t *testing.T) {
	tests := []struct {
		name string
		time *Time
		want string
	}{
		{"second overflow", NewTime(2012, 1, 31, 23, 59, 60, UTCTimezone()), "2012-02-01T00:00:00Z"},
		{"day underflow", NewTime(2012, 3, 0, 10, 0, 0, nil), "2012-02-29T10:00:00"},
		{"month overflow", NewTime(2012, 13, 1, 0, 0, 0, UTCTimezone()), "2013-01-01T00:00:00Z"},
		{"negative hours", NewTime(2012, 1, 1, -1, 0, 0, UTCTimezone()), "2011-12-31T23:00:00Z"},
		{"date drops clock", NewDate(2012, 1, 32), "2012-02-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.time.String())
			before := tt.time.String()
			tt.time.Normalize()
			assert.Equal(t, before, tt.time.String(), "normalization is idempotent")
		})
	}
}

func TestTimeAdjust(t *testing.T) {
	tm := NewTime(2012, 1, 31, 23, 59, 59, UTCTimezone())
	tm.Adjust(0, 0, 0, 1)
	assert.Equal(t, "2012-02-01T00:00:00Z", tm.String())

	d := NewDate(2012, 3, 1)
	d.Adjust(-1, 0, 0, 0)
	assert.Equal(t, "2012-02-29", d.String())

	big := NewTime(2012, 1, 1, 0, 0, 0, UTCTimezone())
	big.Adjust(366, 0, 0, 0)
	assert.Equal(t, "2013-01-01T00:00:00Z", big.String())
}

func TestTimeWeekdays(t *testing.T) {
	sunday := NewDate(2012, 1, 1)
	assert.Equal(t, Sunday, sunday.DayOfWeek())
	assert.Equal(t, 7, sunday.DayOfWeekStarting(Monday))
	assert.Equal(t, 1, NewDate(2012, 1, 2).DayOfWeekStarting(Monday))
	assert.Equal(t, Wednesday, NewDate(2012, 1, 4).DayOfWeek())
}

func TestTimeDayOfYear(t *testing.T) {
	assert.Equal(t, 1, NewDate(2012, 1, 1).DayOfYear())
	assert.Equal(t, 366, NewDate(2012, 12, 31).DayOfYear())
	assert.Equal(t, 365, NewDate(2013, 12, 31).DayOfYear())

	tests := []struct {
		doy, year int
		want      string
	}{
		{1, 2012, "2012-01-01"},
		{60, 2012, "2012-02-29"},
		{0, 2012, "2011-12-31"},
		{367, 2012, "2013-01-01"},
		{-365, 2012, "2010-12-31"},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, TimeFromDayOfYear(tt.doy, tt.year).String(), "doy %d of %d", tt.doy, tt.year)
	}
}

func TestTimeWeekNumber(t *testing.T) {
	assert.Equal(t, 52, NewDate(2012, 1, 1).WeekNumber(Monday))
	assert.Equal(t, 1, NewDate(2012, 1, 2).WeekNumber(Monday))
	assert.Equal(t, 1, NewDate(2014, 12, 29).WeekNumber(Monday))
	assert.Equal(t, 53, NewDate(2015, 12, 31).WeekNumber(Monday))
	assert.Equal(t, "2012-01-02", WeekOneStarts(2012, Monday).String())
	assert.Equal(t, "2011-01-03", WeekOneStarts(2011, Monday).String())
}

func TestTimeNthWeekDay(t *testing.T) {
	jan := NewDate(2012, 1, 15)
	assert.Equal(t, 2, jan.NthWeekDay(Monday, 1))
	assert.Equal(t, 2, jan.NthWeekDay(Monday, 0))
	assert.Equal(t, 9, jan.NthWeekDay(Monday, 2))
	assert.Equal(t, 27, jan.NthWeekDay(Friday, -1))
	assert.Equal(t, 20, jan.NthWeekDay(Friday, -2))

	assert.True(t, NewDate(2012, 1, 27).IsNthWeekDay(Friday, -1))
	assert.False(t, NewDate(2012, 1, 20).IsNthWeekDay(Friday, -1))
	assert.True(t, NewDate(2012, 1, 20).IsNthWeekDay(Friday, 0))
}

func TestGetDominicalLetter(t *testing.T) {
	assert.Equal(t, "AG", GetDominicalLetter(2012))
	assert.Equal(t, "F", GetDominicalLetter(2013))
}

func TestTimeWeekBoundaries(t *testing.T) {
	wed := NewTime(2012, 1, 4, 15, 30, 0, UTCTimezone())
	assert.Equal(t, "2012-01-01", wed.StartOfWeek(Sunday).String())
	assert.Equal(t, "2012-01-07", wed.EndOfWeek(Sunday).String())
	assert.Equal(t, "2012-01-02", wed.StartOfWeek(Monday).String())
	assert.Equal(t, "2012-01-08", wed.EndOfWeek(Monday).String())
	assert.Equal(t, "2012-01-01", wed.StartOfMonth().String())
	assert.Equal(t, "2012-01-31", wed.EndOfMonth().String())
	assert.Equal(t, "2012-12-31", wed.EndOfYear().String())
	assert.Equal(t, "2012-01-04T15:30:00Z", wed.String(), "boundaries work on copies")
}

func TestTimeSubtractDate(t *testing.T) {
	a := NewTime(2012, 1, 2, 0, 0, 0, UTCTimezone())
	b := NewTime(2012, 1, 1, 12, 0, 0, UTCTimezone())
	d := a.SubtractDate(b)
	assert.Equal(t, 43200, d.ToSeconds())
	assert.Equal(t, "PT12H", d.String())
	assert.Equal(t, -43200, b.SubtractDate(a).ToSeconds())
}

func TestTimeAddDuration(t *testing.T) {
	tm := NewTime(2012, 1, 31, 22, 0, 0, UTCTimezone())
	tm.AddDuration(&Duration{Days: 1, Hours: 3})
	assert.Equal(t, "2012-02-02T01:00:00Z", tm.String())

	tm.AddDuration(&Duration{Weeks: 1, IsNegative: true})
	assert.Equal(t, "2012-01-26T01:00:00Z", tm.String())
}

func TestTimeCompare(t *testing.T) {
	a := NewTime(2012, 1, 1, 10, 0, 0, UTCTimezone())
	b := NewTime(2012, 1, 1, 11, 0, 0, UTCTimezone())
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a.Clone()))

	assert.Equal(t, 0, NewTime(2012, 1, 1, 23, 0, 0, UTCTimezone()).CompareDateOnlyTz(NewTime(2012, 1, 1, 1, 0, 0, UTCTimezone()), UTCTimezone()))
}

func TestTimeStrings(t *testing.T) {
	utc := NewTime(2012, 1, 1, 10, 0, 0, UTCTimezone())
	assert.Equal(t, "2012-01-01T10:00:00Z", utc.String())
	assert.Equal(t, "20120101T100000Z", utc.ToICALString())
	assert.Equal(t, ValueDataTypeDateTime, utc.ValueDataType())

	floating := NewTime(2012, 1, 1, 10, 0, 0, nil)
	assert.Equal(t, "2012-01-01T10:00:00", floating.String())
	assert.Equal(t, "20120101T100000", floating.ToICALString())

	date := NewDate(2012, 1, 1)
	assert.Equal(t, "2012-01-01", date.String())
	assert.Equal(t, "20120101", date.ToICALString())
	assert.Equal(t, ValueDataTypeDate, date.ValueDataType())
}

func TestTimeFromStrings(t *testing.T) {
	tm, err := TimeFromString("2012-01-01T10:00:00Z", nil)
	require.NoError(t, err)
	assert.Same(t, UTCTimezone(), tm.Zone())
	assert.False(t, tm.IsDate())

	tm, err = TimeFromString("2012-01-01T10:00:00", nil)
	require.NoError(t, err)
	assert.Same(t, LocalTimezone(), tm.Zone())

	tm, err = TimeFromString("2012-01-01", nil)
	require.NoError(t, err)
	assert.True(t, tm.IsDate())

	for _, bad := range []string{"2012-0x-01", "2012-01", "2012-01-01T1a:00:00"} {
		_, err := TimeFromString(bad, nil)
		assert.ErrorIsf(t, err, ErrInvalidTime, "input %q", bad)
	}
}

func TestTimeGoConversion(t *testing.T) {
	gt := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)
	tm := TimeFromGoTime(gt, true)
	assert.Equal(t, "2024-03-10T15:04:05Z", tm.String())
	assert.True(t, gt.Equal(tm.ToGoTime()))
	assert.Equal(t, gt.Unix(), tm.ToUnixTime())

	back := (&Time{}).FromUnixTime(gt.Unix())
	assert.Equal(t, tm.String(), back.String())

	assert.Equal(t, "1970-01-01T00:00:00Z", EpochTime().String())
	assert.Equal(t, int64(0), EpochTime().ToUnixTime())
}

func TestTimeData(t *testing.T) {
	tm := NewTime(2012, 2, 3, 4, 5, 6, UTCTimezone())
	d := tm.ToData()
	assert.Equal(t, TimeData{Year: 2012, Month: 2, Day: 3, Hour: 4, Minute: 5, Second: 6, Timezone: "UTC"}, d)
	assert.Equal(t, tm.String(), TimeFromData(d).String())

	d.Timezone = "Nowhere/Unknown"
	assert.Same(t, LocalTimezone(), TimeFromData(d).Zone())
}
