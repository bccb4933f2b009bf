package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ics "github.com/arran4/golang-ical-engine"
	"github.com/arran4/golang-ical-engine/internal/config"
)

const recurringFile = "../../testdata/roundtrip/recurring.ics"

func loadRecurring(t *testing.T) *ics.Calendar {
	t.Helper()
	f, err := os.Open(recurringFile)
	require.NoError(t, err)
	defer f.Close()
	cal, err := ics.ParseCalendar(f)
	require.NoError(t, err)
	return cal
}

func windowConfig(start, end string) *config.Config {
	conf := config.DefaultConfig()
	conf.Window = config.Window{Start: start, End: end}
	return conf
}

func TestExpandText(t *testing.T) {
	var out bytes.Buffer
	x, err := newExpander(windowConfig("2024-06-01", "2024-07-10"), &out)
	require.NoError(t, err)
	require.NoError(t, x.expandCalendar(context.Background(), loadRecurring(t)))
	require.NoError(t, x.flush())

	assert.Equal(t, strings.Join([]string{
		"2024-06-03T09:00:00\t2024-06-03T10:00:00\tweekly@example.com\tWeekly sync, all hands",
		"2024-06-10T11:00:00\t2024-06-10T12:00:00\tweekly@example.com\tWeekly sync (moved)",
		"2024-07-01T09:00:00\t2024-07-01T10:00:00\tweekly@example.com\tWeekly sync, all hands",
		"2024-07-08T09:00:00\t2024-07-08T10:00:00\tweekly@example.com\tWeekly sync, all hands",
	}, "\n")+"\n", out.String())
}

func TestExpandWindowAndLimit(t *testing.T) {
	var out bytes.Buffer
	conf := windowConfig("2024-07-02", "")
	conf.MaxOccurrences = 2
	conf.DefaultTimezone = "UTC"
	x, err := newExpander(conf, &out)
	require.NoError(t, err)
	require.NoError(t, x.expandCalendar(context.Background(), loadRecurring(t)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2024-07-08T13:00:00Z\t2024-07-08T14:00:00Z\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-07-15T13:00:00Z\t"), lines[1])
}

func TestExpandJSON(t *testing.T) {
	var out bytes.Buffer
	conf := windowConfig("2024-06-01", "2024-06-30")
	conf.Output = config.OutputJSON
	x, err := newExpander(conf, &out)
	require.NoError(t, err)
	require.NoError(t, x.expandCalendar(context.Background(), loadRecurring(t)))
	require.NoError(t, x.flush())

	var got []occurrence
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []occurrence{
		{
			UID:          "weekly@example.com",
			Summary:      "Weekly sync, all hands",
			RecurrenceID: "2024-06-03T09:00:00",
			Start:        "2024-06-03T09:00:00",
			End:          "2024-06-03T10:00:00",
		},
		{
			UID:          "weekly@example.com",
			Summary:      "Weekly sync (moved)",
			RecurrenceID: "2024-06-10T09:00:00",
			Start:        "2024-06-10T11:00:00",
			End:          "2024-06-10T12:00:00",
			Exception:    true,
		},
	}, got)

	// an empty window is still a JSON array
	out.Reset()
	x, err = newExpander(conf, &out)
	require.NoError(t, err)
	require.NoError(t, x.flush())
	assert.Equal(t, "[]\n", out.String())
}

func TestExpandUnknownTimezone(t *testing.T) {
	conf := config.DefaultConfig()
	conf.DefaultTimezone = "Mars/Olympus_Mons"
	_, err := newExpander(conf, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown timezone")

	conf = windowConfig("2024-02-01", "2024-01-01")
	_, err = newExpander(conf, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = newExpander(windowConfig("yesterday", "tomorrow"), &bytes.Buffer{})
	assert.NoError(t, err)
}

func TestExpandCancelled(t *testing.T) {
	x, err := newExpander(config.DefaultConfig(), &bytes.Buffer{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, x.expandCalendar(ctx, loadRecurring(t)), context.Canceled)
}

func TestRegisterTimezones(t *testing.T) {
	t.Cleanup(ics.DefaultTimezoneService.Reset)
	data, err := os.ReadFile(recurringFile)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "zones.ics")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	assert.False(t, ics.DefaultTimezoneService.Has("America/New_York"))
	require.NoError(t, registerTimezones(path))
	assert.True(t, ics.DefaultTimezoneService.Has("America/New_York"))

	assert.Error(t, registerTimezones(filepath.Join(t.TempDir(), "missing.ics")))
}

func TestLoadConfigFlags(t *testing.T) {
	conf, err := loadConfig(flagConfig{
		configPath:  filepath.Join(t.TempDir(), "absent.yaml"),
		windowStart: "2024-01-01",
		windowEnd:   "2024-02-01",
		max:         3,
		output:      "JSON",
		tz:          "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, config.Window{Start: "2024-01-01", End: "2024-02-01"}, conf.Window)
	assert.Equal(t, 3, conf.MaxOccurrences)
	assert.Equal(t, config.OutputJSON, conf.Output)
	assert.Equal(t, "UTC", conf.DefaultTimezone)
}

func TestRunFromURL(t *testing.T) {
	data, err := os.ReadFile(recurringFile)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	var out bytes.Buffer
	conf := windowConfig("2024-07-01", "2024-07-02")
	require.NoError(t, run(context.Background(), conf, flagConfig{url: srv.URL}, &out))
	assert.Equal(t, "2024-07-01T09:00:00\t2024-07-01T10:00:00\tweekly@example.com\tWeekly sync, all hands\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), conf, flagConfig{url: srv.URL, serialize: true}, &out))
	assert.Contains(t, out.String(), "UID:weekly@example.com\r\n")
	assert.True(t, strings.HasPrefix(out.String(), "BEGIN:VCALENDAR\r\n"))
}
