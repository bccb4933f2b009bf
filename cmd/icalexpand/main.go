// Command icalexpand prints the occurrences of every event in one or more
// iCalendar files, or re-serializes them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	ics "github.com/arran4/golang-ical-engine"
	"github.com/arran4/golang-ical-engine/internal/config"
)

type flagConfig struct {
	configPath  string
	windowStart string
	windowEnd   string
	max         int
	output      string
	tz          string
	url         string
	serialize   bool
}

func parseFlags() flagConfig {
	var f flagConfig
	flag.StringVar(&f.configPath, "config", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	flag.StringVar(&f.windowStart, "start", "", "window start: 2006-01-02, RFC 3339 or a phrase like \"last monday\"")
	flag.StringVar(&f.windowEnd, "end", "", "window end: 2006-01-02, RFC 3339 or a phrase like \"next friday\"")
	flag.IntVar(&f.max, "max", 0, "maximum occurrences per event")
	flag.StringVar(&f.output, "output", "", "output format: text or json")
	flag.StringVar(&f.tz, "tz", "", "TZID occurrences are converted to")
	flag.StringVar(&f.url, "url", "", "fetch the calendar from this URL instead of files")
	flag.BoolVar(&f.serialize, "serialize", false, "re-serialize the input instead of expanding it")
	flag.Parse()
	return f
}

func loadConfig(f flagConfig) (*config.Config, error) {
	var conf *config.Config
	var err error
	if f.configPath != "" {
		conf, err = config.Load(f.configPath)
	} else {
		conf, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	if f.windowStart != "" {
		conf.Window.Start = f.windowStart
	}
	if f.windowEnd != "" {
		conf.Window.End = f.windowEnd
	}
	if f.max > 0 {
		conf.MaxOccurrences = f.max
	}
	if f.output != "" {
		conf.Output = f.output
	}
	if f.tz != "" {
		conf.DefaultTimezone = f.tz
	}
	conf.Normalize()
	return conf, nil
}

func main() {
	flags := parseFlags()
	conf, err := loadConfig(flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      conf.Level(),
			TimeFormat: time.Kitchen,
		}),
	))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags, os.Stdout); err != nil {
		slog.Error("icalexpand failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, out io.Writer) error {
	for _, path := range conf.TimezoneFiles {
		if err := registerTimezones(path); err != nil {
			return err
		}
	}

	calendars, err := readCalendars(ctx, flags)
	if err != nil {
		return err
	}

	if flags.serialize {
		for _, cal := range calendars {
			if err := cal.SerializeTo(out); err != nil {
				return err
			}
		}
		return nil
	}

	x, err := newExpander(conf, out)
	if err != nil {
		return err
	}
	for _, cal := range calendars {
		if err := x.expandCalendar(ctx, cal); err != nil {
			return err
		}
	}
	return x.flush()
}

func registerTimezones(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("timezone file: %w", err)
	}
	cp := ics.NewComponentParser()
	cp.ParseEvent = false
	cp.Logger = slog.Default()
	cp.OnTimezone = func(tz *ics.Timezone) {
		slog.Debug("registered timezone", "tzid", tz.Tzid, "file", path)
		ics.DefaultTimezoneService.Register(tz)
	}
	if err := cp.Process(data); err != nil {
		return fmt.Errorf("timezone file %s: %w", path, err)
	}
	return nil
}

func readCalendars(ctx context.Context, flags flagConfig) ([]*ics.Calendar, error) {
	if flags.url != "" {
		cal, err := ics.FetchCalendar(ctx, flags.url)
		if err != nil {
			return nil, err
		}
		return []*ics.Calendar{cal}, nil
	}
	if flag.NArg() == 0 {
		cal, err := ics.ParseCalendar(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return []*ics.Calendar{cal}, nil
	}
	var r []*ics.Calendar
	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		cal, err := ics.ParseCalendar(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r = append(r, cal)
	}
	return r, nil
}
