package ics

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ComponentParser walks the children of a calendar and hands typed
// Timezone and Event values to its callbacks.  Callbacks run synchronously
// in document order; calls to Process are serialized.
type ComponentParser struct {
	ParseEvent    bool
	ParseTimezone bool

	OnTimezone func(*Timezone)
	OnEvent    func(*Event)
	// OnError receives every failure Process also returns.
	OnError    func(error)
	OnComplete func()

	// EventOptions is used for every Event built.
	EventOptions *EventOptions
	Logger       *slog.Logger

	mu sync.Mutex
}

// NewComponentParser returns a parser that emits both events and
// timezones.
func NewComponentParser() *ComponentParser {
	return &ComponentParser{ParseEvent: true, ParseTimezone: true}
}

func (cp *ComponentParser) logger() *slog.Logger {
	if cp.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cp.Logger
}

func (cp *ComponentParser) fail(err error) error {
	if cp.OnError != nil {
		cp.OnError(err)
	}
	return err
}

// Process accepts text as a string, []byte or io.Reader, a parsed
// *JComponent or a *Component.  A parse failure stops processing before
// OnComplete; failures building single components are reported and the
// walk continues.
func (cp *ComponentParser) Process(input any) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	roots, err := cp.roots(input)
	if err != nil {
		return cp.fail(err)
	}

	var errs []error
	for _, root := range roots {
		for _, c := range root.GetAllSubcomponents("") {
			if err := cp.visit(c); err != nil {
				errs = append(errs, cp.fail(err))
			}
		}
	}

	if cp.OnComplete != nil {
		cp.OnComplete()
	}
	return errors.Join(errs...)
}

func (cp *ComponentParser) roots(input any) ([]*Component, error) {
	var parsed []*JComponent
	var err error
	switch in := input.(type) {
	case string:
		parsed, err = Parse(in)
	case []byte:
		parsed, err = Parse(string(in))
	case io.Reader:
		parsed, err = ParseReader(in)
	case *JComponent:
		parsed = []*JComponent{in}
	case *Component:
		return []*Component{in}, nil
	default:
		return nil, fmt.Errorf("%w: cannot process %T", ErrUnexpectedValueKind, input)
	}
	if err != nil {
		return nil, err
	}
	r := make([]*Component, 0, len(parsed))
	for _, j := range parsed {
		r = append(r, WrapComponent(j, nil))
	}
	return r, nil
}

func (cp *ComponentParser) visit(c *Component) error {
	log := cp.logger()
	switch ComponentType(c.Name()) {
	case ComponentVTimezone:
		if !cp.ParseTimezone {
			log.Debug("skipping component", "component", c.Name())
			return nil
		}
		p := c.GetFirstProperty(string(PropertyTzid))
		if p == nil || p.FirstString() == "" {
			log.Debug("skipping timezone without tzid")
			return nil
		}
		tz, err := TimezoneFromData(TimezoneData{Tzid: p.FirstString(), Component: c})
		if err != nil {
			return fmt.Errorf("timezone %s: %w", p.FirstString(), err)
		}
		if cp.OnTimezone != nil {
			cp.OnTimezone(tz)
		}
	case ComponentVEvent:
		if !cp.ParseEvent {
			log.Debug("skipping component", "component", c.Name())
			return nil
		}
		ev, err := NewEvent(c, cp.EventOptions)
		if err != nil {
			uid := ""
			if p := c.GetFirstProperty(string(PropertyUid)); p != nil {
				uid = p.FirstString()
			}
			return fmt.Errorf("event %q: %w", uid, err)
		}
		log.Debug("event", "uid", ev.UID(), "sequence", ev.sequenceString())
		if cp.OnEvent != nil {
			cp.OnEvent(ev)
		}
	default:
		log.Debug("skipping component", "component", c.Name())
	}
	return nil
}
