package ics

import (
	"encoding/json"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurStringReparses(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29", "FREQ=YEARLY;BYMONTHDAY=29;BYMONTH=2"},
		{"FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4", "FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE"},
		{"FREQ=DAILY;INTERVAL=2;UNTIL=20121231T235959Z", "FREQ=DAILY;INTERVAL=2;UNTIL=20121231T235959Z"},
		{"FREQ=MONTHLY;UNTIL=20121231;BYDAY=-1FR", "FREQ=MONTHLY;BYDAY=-1FR;UNTIL=20121231"},
		{"FREQ=WEEKLY;WKST=SU;BYDAY=TU,TH", "FREQ=WEEKLY;BYDAY=TU,TH;WKST=SU"},
		{"FREQ=WEEKLY;WKST=MO", "FREQ=WEEKLY"},
		{"FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1", "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1"},
		{"FREQ=DAILY;X-NAME=value", "FREQ=DAILY;X-NAME=value"},
		{"freq=DAILY;byhour=9,17", "FREQ=DAILY;BYHOUR=9,17"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := RecurFromString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.String())
			assert.Equal(t, tt.want, r.ToICALString())

			again, err := RecurFromString(r.String())
			require.NoError(t, err)
			assert.Equal(t, tt.want, again.String())
			assert.Equal(t, r, again)
		})
	}
}

func TestRecurFromStringErrors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"COUNT=3", ErrInvalidRecur},
		{"FREQ=FORTNIGHTLY", ErrInvalidFrequency},
		{"FREQ=DAILY;COUNT=0", ErrInvalidRecur},
		{"FREQ=DAILY;COUNT=x", ErrInvalidRecur},
		{"FREQ=YEARLY;BYMONTH=13", ErrInvalidRecur},
		{"FREQ=MONTHLY;BYMONTHDAY=0", ErrInvalidRecur},
		{"FREQ=WEEKLY;BYDAY=XX", ErrInvalidRecur},
		{"FREQ=WEEKLY;BYDAY=9MO0", ErrInvalidRecur},
		{"FREQ=WEEKLY;WKST=XX", ErrInvalidRecur},
		{"FREQ=DAILY;UNTIL=2012", ErrInvalidRecur},
	}
	for _, tt := range tests {
		_, err := RecurFromString(tt.input)
		assert.ErrorIsf(t, err, tt.err, "input %q", tt.input)
	}
}

func TestRecurOptions(t *testing.T) {
	r, err := RecurFromString("FREQ=DAILY;INTERVAL=0;BYDAY=MO,MO,TU;BYHOUR=+9")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Interval)
	assert.Equal(t, []string{"MO", "TU"}, r.ByDay())
	assert.Equal(t, []int{9}, r.Part(ByHour))
	assert.Equal(t, DefaultWeekStart, r.Wkst)
	assert.False(t, r.IsFinite())
	assert.False(t, r.IsByCount())

	r, err = RecurFromString("FREQ=DAILY;COUNT=5;UNTIL=20120101T000000Z")
	require.NoError(t, err)
	assert.True(t, r.IsFinite())
	assert.False(t, r.IsByCount(), "UNTIL wins over COUNT")
	assert.Equal(t, mo.Some(5), r.Count)
	assert.Equal(t, "2012-01-01T00:00:00Z", r.Until.String())
}

func TestRecurComponents(t *testing.T) {
	r := NewRecur(FrequencyYearly)
	require.NoError(t, r.SetComponent("BYMONTH", []string{"2"}))
	require.NoError(t, r.AddComponent("bymonth", "3"))
	assert.Equal(t, []string{"2", "3"}, r.GetComponent("BYMONTH"))
	assert.True(t, r.HasPart(ByMonth))

	require.NoError(t, r.AddComponent("BYDAY", "-1SU"))
	assert.Equal(t, []string{"-1SU"}, r.GetComponent("BYDAY"))
	assert.Error(t, r.SetComponent("BYNOTHING", []string{"1"}))
	assert.Nil(t, r.GetComponent("BYNOTHING"))

	r.SetPart(ByMonth, nil)
	assert.False(t, r.HasPart(ByMonth))
	assert.Equal(t, "FREQ=YEARLY;BYDAY=-1SU", r.String())

	c := r.Clone()
	require.NoError(t, c.SetComponent("BYDAY", []string{"MO"}))
	assert.Equal(t, []string{"-1SU"}, r.ByDay())
}

func TestByPartNames(t *testing.T) {
	for i, name := range byPartNames {
		part, ok := ParseByPart(name)
		require.True(t, ok, name)
		assert.Equal(t, ByPart(i), part)
		assert.Equal(t, name, part.String())
	}
	_, ok := ParseByPart("BYFOO")
	assert.False(t, ok)
}

func TestIcalDayConversion(t *testing.T) {
	assert.Equal(t, 2, IcalDayToNumericDay("MO", Sunday))
	assert.Equal(t, 1, IcalDayToNumericDay("MO", Monday))
	assert.Equal(t, 7, IcalDayToNumericDay("SU", Monday))
	assert.Equal(t, 1, IcalDayToNumericDay("SU", 0))
	for _, wkst := range []int{Sunday, Monday, Thursday, Saturday} {
		for _, day := range []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"} {
			assert.Equal(t, day, NumericDayToIcalDay(IcalDayToNumericDay(day, wkst), wkst))
		}
	}
}

func TestRecurData(t *testing.T) {
	r, err := RecurFromString("FREQ=WEEKLY;COUNT=4;INTERVAL=2;BYDAY=MO,WE;BYHOUR=9;UNTIL=20121231;WKST=SU")
	require.NoError(t, err)
	data := r.ToData()
	assert.Equal(t, map[string]any{
		"freq":     "WEEKLY",
		"count":    4,
		"interval": 2,
		"byday":    []string{"MO", "WE"},
		"byhour":   9,
		"until":    "2012-12-31",
		"wkst":     "SU",
	}, data)

	back, err := RecurFromData(data)
	require.NoError(t, err)
	assert.Equal(t, r.String(), back.String())

	// the jCal object form after a trip through JSON
	b, err := json.Marshal(data)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	back, err = RecurFromData(decoded)
	require.NoError(t, err)
	assert.Equal(t, r.String(), back.String())

	_, err = RecurFromData(map[string]any{"count": 1})
	assert.ErrorIs(t, err, ErrInvalidRecur)
}

func TestRecurGetNextOccurrence(t *testing.T) {
	r, err := RecurFromString("FREQ=DAILY;COUNT=5")
	require.NoError(t, err)
	start := NewTime(2012, 1, 1, 10, 0, 0, UTCTimezone())

	next, err := r.GetNextOccurrence(start, NewTime(2012, 1, 3, 10, 0, 0, UTCTimezone()))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "2012-01-04T10:00:00Z", next.String())

	next, err = r.GetNextOccurrence(start, NewTime(2012, 1, 5, 10, 0, 0, UTCTimezone()))
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRecurPropertyValue(t *testing.T) {
	p, err := PropertyFromString("RRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4")
	require.NoError(t, err)
	assert.Equal(t, ValueDataTypeRecur, p.Type())
	v, err := p.FirstValue()
	require.NoError(t, err)
	r, ok := v.(*Recur)
	require.True(t, ok)
	assert.Equal(t, FrequencyWeekly, r.Freq)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4", p.ToICALString(), "text values are kept as read")
	require.NoError(t, p.SetValue(r))
	assert.Equal(t, "RRULE:FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE", p.ToICALString())

	b, err := json.Marshal(p.JCal())
	require.NoError(t, err)
	assert.JSONEq(t, `["rrule",{},"recur",{"freq":"WEEKLY","count":4,"byday":["MO","WE"]}]`, string(b))
}
