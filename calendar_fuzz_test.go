package ics

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzParseCalendar(f *testing.F) {
	ics, err := os.ReadFile("testdata/roundtrip/recurring.ics")
	require.NoError(f, err)
	f.Add(ics)
	f.Fuzz(func(t *testing.T, ics []byte) {
		cal, err := ParseCalendar(bytes.NewReader(ics))
		if err != nil {
			t.Log(err)
			return
		}
		// whatever parses must serialize and parse again
		_, err = ParseCalendar(bytes.NewReader([]byte(cal.Serialize())))
		require.NoError(t, err)
	})
}

func FuzzRecurFromString(f *testing.F) {
	for _, s := range []string{
		"FREQ=DAILY;COUNT=3",
		"FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1",
		"FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29;UNTIL=20301231",
		"FREQ=WEEKLY;WKST=SU;INTERVAL=2;BYDAY=1MO",
	} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		r, err := RecurFromString(s)
		if err != nil {
			return
		}
		again, err := RecurFromString(r.String())
		require.NoError(t, err)
		require.Equal(t, r.String(), again.String())
	})
}

func FuzzDurationFromString(f *testing.F) {
	for _, s := range []string{"P1D", "-PT15M", "P1W2DT3H4M5S", "PT0S"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		d, err := DurationFromString(s)
		if err != nil {
			return
		}
		again, err := DurationFromString(d.String())
		require.NoError(t, err)
		require.Equal(t, d.ToSeconds(), again.ToSeconds())
	})
}
