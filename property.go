package ics

import (
	"fmt"
	"strings"
)

// Property wraps a jCal property.  Values of decorated types (date-time,
// duration, period, recur, utc-offset, binary) are converted to Value
// implementations on first access and cached by index.
type Property struct {
	jcal   *JProperty
	parent *Component
	values []Value

	isDecorated  bool
	isMultiValue bool
	isStructured bool
}

// NewProperty returns an empty property with the default type for name.
func NewProperty(name string) *Property {
	name = strings.ToLower(name)
	return WrapProperty(&JProperty{Name: name, Type: DefaultTypeOf(name)}, nil)
}

// WrapProperty wraps an existing jCal property without copying it.
func WrapProperty(j *JProperty, parent *Component) *Property {
	p := &Property{jcal: j, parent: parent}
	p.updateType()
	return p
}

// PropertyFromString parses a single content line.
func PropertyFromString(s string) (*Property, error) {
	j, err := ParseProperty(ContentLine(strings.TrimRight(s, "\r\n")))
	if err != nil {
		return nil, err
	}
	return WrapProperty(j, nil), nil
}

func (p *Property) updateType() {
	p.isDecorated = IsDecoratedType(p.jcal.Type)
	d, _ := lookupProperty(p.jcal.Name)
	p.isMultiValue = d.multiValue != ""
	p.isStructured = d.structuredValue != ""
}

func (p *Property) Name() string         { return p.jcal.Name }
func (p *Property) Type() ValueDataType  { return p.jcal.Type }
func (p *Property) Parent() *Component   { return p.parent }
func (p *Property) JCal() *JProperty     { return p.jcal }
func (p *Property) IsMultiValue() bool   { return p.isMultiValue }
func (p *Property) IsStructured() bool   { return p.isStructured }
func (p *Property) IsDecorated() bool    { return p.isDecorated }
func (p *Property) GetDefaultType() ValueDataType {
	return DefaultTypeOf(p.jcal.Name)
}

// GetParameter returns the first value of a parameter.
func (p *Property) GetParameter(name string) (string, bool) {
	return p.jcal.Params.Get(name)
}

func (p *Property) GetParameterValues(name string) []string {
	return p.jcal.Params.Values(name)
}

func (p *Property) SetParameter(name string, values ...string) {
	p.jcal.Params.Set(name, values...)
}

func (p *Property) RemoveParameter(name string) bool {
	return p.jcal.Params.Remove(name)
}

// ResetType drops every value and switches to type t.
func (p *Property) ResetType(t ValueDataType) {
	p.RemoveAllValues()
	p.jcal.Type = t
	p.updateType()
}

func (p *Property) RemoveAllValues() {
	p.values = nil
	p.jcal.Values = nil
}

func (p *Property) hydrate(i int) (any, error) {
	if i >= len(p.jcal.Values) {
		return nil, nil
	}
	if !p.isDecorated {
		return p.jcal.Values[i], nil
	}
	if len(p.values) < len(p.jcal.Values) {
		p.values = append(p.values, make([]Value, len(p.jcal.Values)-len(p.values))...)
	}
	if p.values[i] != nil {
		return p.values[i], nil
	}
	v, err := lookupValue(p.jcal.Type).decorate(p.jcal.Values[i], p)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", p.jcal.Name, err)
	}
	p.values[i] = v
	return v, nil
}

// FirstValue returns the first value, decorated when the type calls for
// it.  A property without values returns nil.
func (p *Property) FirstValue() (any, error) {
	return p.hydrate(0)
}

// Values returns every value, decorating as needed.
func (p *Property) Values() ([]any, error) {
	r := make([]any, 0, len(p.jcal.Values))
	for i := range p.jcal.Values {
		v, err := p.hydrate(i)
		if err != nil {
			return nil, err
		}
		r = append(r, v)
	}
	return r, nil
}

// FirstString returns the first raw value as text.
func (p *Property) FirstString() string {
	if len(p.jcal.Values) == 0 {
		return ""
	}
	return rawString(p.jcal.Values[0])
}

// convert returns the raw and decorated forms of v under type t without
// touching the property.
func (p *Property) convert(t ValueDataType, v any) (any, Value, error) {
	if !IsDecoratedType(t) {
		return v, nil, nil
	}
	vd := lookupValue(t)
	if dv, ok := v.(Value); ok {
		return vd.undecorate(dv), dv, nil
	}
	dv, err := vd.decorate(v, p)
	if err != nil {
		return nil, nil, fmt.Errorf("property %s: %w", p.jcal.Name, err)
	}
	return v, dv, nil
}

// replace swaps in already converted values.
func (p *Property) replace(t ValueDataType, raw []any, decorated []Value) {
	p.jcal.Type = t
	p.updateType()
	p.jcal.Values = raw
	p.values = nil
	if p.isDecorated {
		p.values = decorated
	}
}

// SetValue replaces all values with v.  A Value switches the property to
// its type.  On error the property is left unchanged.
func (p *Property) SetValue(v any) error {
	t := p.jcal.Type
	if dv, ok := v.(Value); ok {
		t = dv.ValueDataType()
	}
	raw, dv, err := p.convert(t, v)
	if err != nil {
		return err
	}
	p.replace(t, []any{raw}, []Value{dv})
	return nil
}

// SetValues replaces the values of a multi-valued property.  Either every
// value is accepted or none is.
func (p *Property) SetValues(values []any) error {
	if !p.isMultiValue {
		return fmt.Errorf("%w: %s does not support multiple values", ErrUnexpectedValueKind, p.jcal.Name)
	}
	t := p.jcal.Type
	if len(values) > 0 {
		if dv, ok := values[0].(Value); ok {
			t = dv.ValueDataType()
		}
	}
	raw := make([]any, 0, len(values))
	decorated := make([]Value, 0, len(values))
	for _, v := range values {
		r, dv, err := p.convert(t, v)
		if err != nil {
			return err
		}
		raw = append(raw, r)
		decorated = append(decorated, dv)
	}
	p.replace(t, raw, decorated)
	return nil
}

// ToICALString returns the unfolded content line.
func (p *Property) ToICALString() string {
	return propertyLine(p.jcal)
}

func (p *Property) String() string {
	return p.ToICALString()
}

// firstValueAs returns the first value when it has the wanted kind.
func firstValueAs[T any](p *Property) (T, error) {
	var zero T
	if p == nil {
		return zero, ErrorPropertyNotFound
	}
	v, err := p.FirstValue()
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrUnexpectedValueKind, p.jcal.Name, v)
	}
	return t, nil
}
