package ics

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// Component wraps a jCal component.  Child wrappers are created on first
// access and kept in caches aligned by index with the backing jCal slices;
// every mutation goes through Component so the two never drift apart.
type Component struct {
	jcal       *JComponent
	parent     *Component
	components []*Component
	properties []*Property

	// vtimezone lookups of a root vcalendar
	timezones map[string]*Timezone
}

// NewComponent returns an empty component.
func NewComponent(name string) *Component {
	return WrapComponent(NewJComponent(name), nil)
}

// WrapComponent wraps an existing jCal tree without copying it.
func WrapComponent(j *JComponent, parent *Component) *Component {
	return &Component{jcal: j, parent: parent}
}

// ComponentFromString parses text and wraps its first component.
func ComponentFromString(s string) (*Component, error) {
	j, err := ParseComponent(s)
	if err != nil {
		return nil, err
	}
	return WrapComponent(j, nil), nil
}

func (c *Component) Name() string       { return c.jcal.Name }
func (c *Component) Parent() *Component { return c.parent }
func (c *Component) JCal() *JComponent  { return c.jcal }

func (c *Component) hydrateComponent(i int) *Component {
	if n := len(c.jcal.Components); len(c.components) < n {
		c.components = append(c.components, make([]*Component, n-len(c.components))...)
	}
	if c.components[i] == nil {
		c.components[i] = WrapComponent(c.jcal.Components[i], c)
	}
	return c.components[i]
}

func (c *Component) hydrateProperty(i int) *Property {
	if n := len(c.jcal.Properties); len(c.properties) < n {
		c.properties = append(c.properties, make([]*Property, n-len(c.properties))...)
	}
	if c.properties[i] == nil {
		c.properties[i] = WrapProperty(c.jcal.Properties[i], c)
	}
	return c.properties[i]
}

// GetFirstSubcomponent returns the first child named name, or the first
// child at all when name is empty.
func (c *Component) GetFirstSubcomponent(name string) *Component {
	name = strings.ToLower(name)
	for i, sc := range c.jcal.Components {
		if name == "" || sc.Name == name {
			return c.hydrateComponent(i)
		}
	}
	return nil
}

// GetAllSubcomponents returns every child named name, or every child when
// name is empty.
func (c *Component) GetAllSubcomponents(name string) []*Component {
	name = strings.ToLower(name)
	var r []*Component
	for i, sc := range c.jcal.Components {
		if name == "" || sc.Name == name {
			r = append(r, c.hydrateComponent(i))
		}
	}
	return r
}

// HasProperty returns true if a property named name is present.
func (c *Component) HasProperty(name string) bool {
	name = strings.ToLower(name)
	for _, p := range c.jcal.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// GetFirstProperty returns the first match for the property you're after,
// or the first property when name is empty.
func (c *Component) GetFirstProperty(name string) *Property {
	name = strings.ToLower(name)
	for i, p := range c.jcal.Properties {
		if name == "" || p.Name == name {
			return c.hydrateProperty(i)
		}
	}
	return nil
}

// GetFirstPropertyValue returns the first value of the first property
// named name.  A missing property yields ErrorPropertyNotFound.
func (c *Component) GetFirstPropertyValue(name string) (any, error) {
	p := c.GetFirstProperty(name)
	if p == nil {
		return nil, ErrorPropertyNotFound
	}
	return p.FirstValue()
}

// GetAllProperties returns all matches for the property you're after.
func (c *Component) GetAllProperties(name string) []*Property {
	name = strings.ToLower(name)
	var r []*Property
	for i, p := range c.jcal.Properties {
		if name == "" || p.Name == name {
			r = append(r, c.hydrateProperty(i))
		}
	}
	return r
}

// AddSubcomponent appends sc, detaching it from any previous parent.
func (c *Component) AddSubcomponent(sc *Component) *Component {
	if sc.parent != nil {
		sc.parent.RemoveSubcomponent(sc)
	}
	c.hydrateAllComponents()
	c.jcal.Components = append(c.jcal.Components, sc.jcal)
	c.components = append(c.components, sc)
	sc.parent = c
	c.timezones = nil
	return sc
}

func (c *Component) hydrateAllComponents() {
	if n := len(c.jcal.Components); len(c.components) < n {
		c.components = append(c.components, make([]*Component, n-len(c.components))...)
	}
}

func (c *Component) hydrateAllProperties() {
	if n := len(c.jcal.Properties); len(c.properties) < n {
		c.properties = append(c.properties, make([]*Property, n-len(c.properties))...)
	}
}

func (c *Component) removeComponentAt(i int) {
	c.hydrateAllComponents()
	if sc := c.components[i]; sc != nil {
		sc.parent = nil
	}
	c.components = append(c.components[:i], c.components[i+1:]...)
	c.jcal.Components = append(c.jcal.Components[:i], c.jcal.Components[i+1:]...)
	c.timezones = nil
}

func (c *Component) removePropertyAt(i int) {
	c.hydrateAllProperties()
	if p := c.properties[i]; p != nil {
		p.parent = nil
	}
	c.properties = append(c.properties[:i], c.properties[i+1:]...)
	c.jcal.Properties = append(c.jcal.Properties[:i], c.jcal.Properties[i+1:]...)
}

// RemoveSubcomponent removes sc and reports whether it was a child.
func (c *Component) RemoveSubcomponent(sc *Component) bool {
	for i, j := range c.jcal.Components {
		if j == sc.jcal {
			c.removeComponentAt(i)
			sc.parent = nil
			return true
		}
	}
	return false
}

// RemoveSubcomponentByName removes the first child named name.
func (c *Component) RemoveSubcomponentByName(name string) bool {
	name = strings.ToLower(name)
	for i, j := range c.jcal.Components {
		if j.Name == name {
			c.removeComponentAt(i)
			return true
		}
	}
	return false
}

// RemoveAllSubcomponents removes every child named name, or every child
// when name is empty.  It reports whether anything was removed.
func (c *Component) RemoveAllSubcomponents(name string) bool {
	name = strings.ToLower(name)
	removed := false
	for i := len(c.jcal.Components) - 1; i >= 0; i-- {
		if name == "" || c.jcal.Components[i].Name == name {
			c.removeComponentAt(i)
			removed = true
		}
	}
	return removed
}

// AddProperty appends p, detaching it from any previous parent.
func (c *Component) AddProperty(p *Property) *Property {
	if p.parent != nil {
		p.parent.RemoveProperty(p)
	}
	c.hydrateAllProperties()
	c.jcal.Properties = append(c.jcal.Properties, p.jcal)
	c.properties = append(c.properties, p)
	p.parent = c
	return p
}

// PropertyParameter attaches a parameter to a property as it is created.
// Param and the parameter enums implement it.
type PropertyParameter interface {
	Param() Param
}

func (p Param) Param() Param { return p }

func singleParam(name Parameter, value string) Param {
	return Param{Name: string(name), Values: []string{value}}
}

func WithCN(cn string) PropertyParameter { return singleParam(ParameterCn, cn) }

func WithTZID(tzid string) PropertyParameter { return singleParam(ParameterTzid, tzid) }

func WithEncoding(encType string) PropertyParameter {
	return singleParam(ParameterEncoding, encType)
}

func WithFmtType(contentType string) PropertyParameter {
	return singleParam(ParameterFmttype, contentType)
}

// WithRange sets RANGE, normally "THISANDFUTURE" on a RECURRENCE-ID.
func WithRange(r string) PropertyParameter { return singleParam(ParameterRange, r) }

func WithRSVP(b bool) PropertyParameter {
	return singleParam(ParameterRsvp, strings.ToUpper(strconv.FormatBool(b)))
}

// AddPropertyWithValue creates a property holding value and appends it.
func (c *Component) AddPropertyWithValue(name string, value any, params ...PropertyParameter) (*Property, error) {
	p := NewProperty(name)
	for _, param := range params {
		kv := param.Param()
		p.SetParameter(kv.Name, kv.Values...)
	}
	if err := p.SetValue(value); err != nil {
		return nil, err
	}
	c.AddProperty(p)
	return p, nil
}

// UpdatePropertyWithValue sets the value of the first property named name,
// adding the property when it is missing.
func (c *Component) UpdatePropertyWithValue(name string, value any) (*Property, error) {
	if p := c.GetFirstProperty(name); p != nil {
		return p, p.SetValue(value)
	}
	return c.AddPropertyWithValue(name, value)
}

// RemoveProperty removes p and reports whether it belonged to c.
func (c *Component) RemoveProperty(p *Property) bool {
	for i, j := range c.jcal.Properties {
		if j == p.jcal {
			c.removePropertyAt(i)
			p.parent = nil
			return true
		}
	}
	return false
}

// RemovePropertyByName removes the first property named name.
func (c *Component) RemovePropertyByName(name string) bool {
	name = strings.ToLower(name)
	for i, j := range c.jcal.Properties {
		if j.Name == name {
			c.removePropertyAt(i)
			return true
		}
	}
	return false
}

// RemoveAllProperties removes every property named name, or all properties
// when name is empty.
func (c *Component) RemoveAllProperties(name string) bool {
	name = strings.ToLower(name)
	removed := false
	for i := len(c.jcal.Properties) - 1; i >= 0; i-- {
		if name == "" || c.jcal.Properties[i].Name == name {
			c.removePropertyAt(i)
			removed = true
		}
	}
	return removed
}

// GetTimezoneByID resolves tzid against the VTIMEZONE children of the root
// vcalendar.  Results are cached on the root.
func (c *Component) GetTimezoneByID(tzid string) *Timezone {
	if c.parent != nil {
		return c.parent.GetTimezoneByID(tzid)
	}
	if c.jcal.Name != string(ComponentVCalendar) {
		return nil
	}
	if tz, ok := c.timezones[tzid]; ok {
		return tz
	}
	for _, zone := range c.GetAllSubcomponents(string(ComponentVTimezone)) {
		p := zone.GetFirstProperty(string(PropertyTzid))
		if p == nil || p.FirstString() != tzid {
			continue
		}
		tz, err := TimezoneFromData(TimezoneData{Component: zone, Tzid: tzid})
		if err != nil {
			return nil
		}
		if c.timezones == nil {
			c.timezones = map[string]*Timezone{}
		}
		c.timezones[tzid] = tz
		return tz
	}
	return nil
}

// Serialize returns the text form using the given serialization ops.
func (c *Component) Serialize(ops ...any) string {
	b := &strings.Builder{}
	// We are intentionally ignoring the return value. _ used to communicate this to lint.
	_ = c.SerializeTo(b, ops...)
	return b.String()
}

func (c *Component) SerializeTo(w io.Writer, ops ...any) error {
	return StringifyTo(w, c.jcal, ops...)
}

// String returns the text form without a trailing line break.
func (c *Component) String() string {
	return StringifyComponent(c.jcal)
}

// MarshalJSON writes the jCal form.
func (c *Component) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.jcal)
}
