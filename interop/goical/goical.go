// Package goical converts between the engine's component model and the
// component tree of github.com/emersion/go-ical, as used by CalDAV
// servers and clients.
package goical

import (
	"fmt"
	"sort"
	"strings"

	ical "github.com/emersion/go-ical"

	ics "github.com/arran4/golang-ical-engine"
)

// ToGoICal copies c into a go-ical component.  Values keep their wire
// form; a non-default value type is carried as a VALUE parameter.
func ToGoICal(c *ics.Component) *ical.Component {
	return toGoICal(c.JCal())
}

func toGoICal(j *ics.JComponent) *ical.Component {
	out := ical.NewComponent(strings.ToUpper(j.Name))
	for _, p := range j.Properties {
		prop := ical.NewProp(strings.ToUpper(p.Name))
		for _, param := range p.Params {
			key := strings.ToUpper(param.Name)
			prop.Params[key] = append(prop.Params[key], param.Values...)
		}
		if !p.IsDefaultType() {
			prop.Params.Set(ical.ParamValue, strings.ToUpper(string(p.Type)))
		}
		prop.Value = p.ValueString()
		out.Props.Add(prop)
	}
	for _, child := range j.Components {
		out.Children = append(out.Children, toGoICal(child))
	}
	return out
}

// ToGoICalCalendar wraps the converted vcalendar so it can be handed to
// an ical.Encoder.
func ToGoICalCalendar(c *ics.Component) (*ical.Calendar, error) {
	if c.Name() != string(ics.ComponentVCalendar) {
		return nil, fmt.Errorf("goical: expected vcalendar, got %s", c.Name())
	}
	return &ical.Calendar{Component: ToGoICal(c)}, nil
}

// FromGoICal converts a go-ical component.  go-ical does not keep the
// order of properties with different names, so they come back sorted by
// name.
func FromGoICal(c *ical.Component) (*ics.Component, error) {
	j, err := fromGoICal(c)
	if err != nil {
		return nil, err
	}
	return ics.WrapComponent(j, nil), nil
}

func fromGoICal(c *ical.Component) (*ics.JComponent, error) {
	out := ics.NewJComponent(strings.ToLower(c.Name))
	names := make([]string, 0, len(c.Props))
	for name := range c.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for i := range c.Props[name] {
			p, err := ics.ParseProperty(contentLine(&c.Props[name][i]))
			if err != nil {
				return nil, fmt.Errorf("goical: property %s: %w", name, err)
			}
			out.Properties = append(out.Properties, p)
		}
	}
	for _, child := range c.Children {
		j, err := fromGoICal(child)
		if err != nil {
			return nil, err
		}
		out.Components = append(out.Components, j)
	}
	return out, nil
}

func contentLine(p *ical.Prop) ics.ContentLine {
	b := &strings.Builder{}
	b.WriteString(p.Name)
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(";" + k + "=")
		for i, v := range p.Params[k] {
			if i > 0 {
				b.WriteString(",")
			}
			if strings.ContainsAny(v, ",:;") {
				v = `"` + v + `"`
			}
			b.WriteString(v)
		}
	}
	b.WriteString(":" + p.Value)
	return ics.ContentLine(b.String())
}
