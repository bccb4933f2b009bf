package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML path.
const EnvConfigPath = "ICALEXPAND_CONFIG"

const (
	OutputText = "text"
	OutputJSON = "json"
)

const dateLayout = "2006-01-02"

// Window bounds the occurrences that are printed.  Both ends accept
// "2006-01-02", RFC 3339 or English phrases such as "tomorrow" or
// "next friday".  An empty End leaves the window open, in which
// case MaxOccurrences is the only limit.
type Window struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Config is the icalexpand configuration.
type Config struct {
	Window Window `yaml:"window" json:"window"`

	// MaxOccurrences caps the occurrences printed per event.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Output is text or json.
	Output string `yaml:"output" json:"output"`

	// DefaultTimezone is the TZID occurrences are converted to.  Empty
	// keeps each occurrence in its own zone.
	DefaultTimezone string `yaml:"default_timezone" json:"default_timezone"`

	// TimezoneFiles are iCalendar files whose VTIMEZONE definitions are
	// registered before any calendar is read.
	TimezoneFiles []string `yaml:"timezone_files" json:"timezone_files"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Window:         Window{Start: "1970-01-01"},
		MaxOccurrences: 100,
		LogLevel:       "info",
		Output:         OutputText,
	}
}

// Normalize fills in zero values and folds case.
func (c *Config) Normalize() {
	if c.Window.Start == "" {
		c.Window.Start = "1970-01-01"
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = 100
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	c.Output = strings.ToLower(c.Output)
	if c.Output != OutputJSON {
		c.Output = OutputText
	}
}

// Level maps LogLevel onto slog.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Bounds parses the window relative to the current time.  A zero end
// means open.
func (w Window) Bounds() (start, end time.Time, err error) {
	return w.BoundsAt(time.Now())
}

// BoundsAt parses the window, resolving phrases against base.
func (w Window) BoundsAt(base time.Time) (start, end time.Time, err error) {
	if start, err = parseBound(w.Start, base); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window start: %w", err)
	}
	if w.End == "" {
		return start, time.Time{}, nil
	}
	if end, err = parseBound(w.End, base); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s before start %s", w.End, w.Start)
	}
	return start, end, nil
}

var phrases = newPhraseParser()

func newPhraseParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

func parseBound(s string, base time.Time) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	r, err := phrases.Parse(s, base)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
	}
	return r.Time, nil
}

// Load reads the YAML file at path.  A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	if _, _, err := cfg.Window.Bounds(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads .env files, when present, and then the file named by
// ICALEXPAND_CONFIG.  Without the variable the defaults are returned.
func FromEnv(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env: %w", err)
	}
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}
