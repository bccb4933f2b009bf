package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	ics "github.com/arran4/golang-ical-engine"
	"github.com/arran4/golang-ical-engine/internal/config"
)

// occurrence is one printed line, or one JSON array member.
type occurrence struct {
	UID          string `json:"uid"`
	Summary      string `json:"summary,omitempty"`
	RecurrenceID string `json:"recurrenceId"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Exception    bool   `json:"exception,omitempty"`
}

type expander struct {
	start, end *ics.Time
	max        int
	zone       *ics.Timezone
	json       bool
	out        io.Writer
	collected  []occurrence
}

func newExpander(conf *config.Config, out io.Writer) (*expander, error) {
	start, end, err := conf.Window.Bounds()
	if err != nil {
		return nil, err
	}
	x := &expander{
		start: ics.TimeFromGoTime(start, true),
		max:   conf.MaxOccurrences,
		json:  conf.Output == config.OutputJSON,
		out:   out,
	}
	if !end.IsZero() {
		x.end = ics.TimeFromGoTime(end, true)
	}
	switch tzid := conf.DefaultTimezone; {
	case tzid == "":
	case strings.EqualFold(tzid, "UTC") || tzid == "Z":
		x.zone = ics.UTCTimezone()
	default:
		tz, ok := ics.DefaultTimezoneService.Lookup(tzid).Get()
		if !ok {
			return nil, fmt.Errorf("unknown timezone %q", tzid)
		}
		x.zone = tz
	}
	return x, nil
}

func (x *expander) expandCalendar(ctx context.Context, cal *ics.Calendar) error {
	events, err := cal.Events()
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.expandEvent(e); err != nil {
			return fmt.Errorf("event %q: %w", e.UID(), err)
		}
	}
	return nil
}

func (x *expander) expandEvent(e *ics.Event) error {
	iter, err := e.Iterator(nil)
	if errors.Is(err, ics.ErrorPropertyNotFound) {
		slog.Warn("skipping event without start", "uid", e.UID())
		return nil
	}
	if err != nil {
		return err
	}
	count := 0
	for count < x.max {
		next, err := iter.Next()
		if err != nil {
			return err
		}
		if next == nil {
			break
		}
		if x.end != nil && next.Compare(x.end) >= 0 {
			break
		}
		details, err := e.GetOccurrenceDetails(next)
		if err != nil {
			return err
		}
		if details.EndDate.Compare(x.start) <= 0 {
			continue
		}
		count++
		if err := x.emit(e, details); err != nil {
			return err
		}
	}
	slog.Debug("expanded event", "uid", e.UID(), "occurrences", count, "complete", iter.Complete())
	return nil
}

func (x *expander) convert(t *ics.Time) string {
	if x.zone != nil && !t.IsDate() {
		t = t.ConvertToZone(x.zone)
	}
	return t.String()
}

func (x *expander) emit(e *ics.Event, d *ics.OccurrenceDetails) error {
	o := occurrence{
		UID:          e.UID(),
		Summary:      d.Item.Summary(),
		RecurrenceID: d.RecurrenceID.String(),
		Start:        x.convert(d.StartDate),
		End:          x.convert(d.EndDate),
		Exception:    d.Item != e,
	}
	if x.json {
		x.collected = append(x.collected, o)
		return nil
	}
	_, err := fmt.Fprintf(x.out, "%s\t%s\t%s\t%s\n", o.Start, o.End, o.UID, o.Summary)
	return err
}

func (x *expander) flush() error {
	if !x.json {
		return nil
	}
	enc := json.NewEncoder(x.out)
	enc.SetIndent("", "  ")
	if x.collected == nil {
		x.collected = []occurrence{}
	}
	return enc.Encode(x.collected)
}
