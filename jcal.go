package ics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JComponent is the jCal form of a component: [name, properties, components].
// Names are kept lowercase.
type JComponent struct {
	Name       string
	Properties []*JProperty
	Components []*JComponent
}

// JProperty is the jCal form of a property: [name, params, type, value...].
// Raw values are string, int, float64, bool or []any for structured values.
type JProperty struct {
	Name   string
	Params Params
	Type   ValueDataType
	Values []any
}

// Param is a single property parameter.  Multi-valued parameters such as
// MEMBER keep every value.
type Param struct {
	Name   string
	Values []string
}

// Params keeps parameters in the order they were read so serialization is
// stable.
type Params []Param

func (ps Params) index(name string) int {
	name = strings.ToLower(name)
	for i := range ps {
		if ps[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the first value of the named parameter.
func (ps Params) Get(name string) (string, bool) {
	i := ps.index(name)
	if i < 0 || len(ps[i].Values) == 0 {
		return "", false
	}
	return ps[i].Values[0], true
}

// Values returns all values of the named parameter.
func (ps Params) Values(name string) []string {
	i := ps.index(name)
	if i < 0 {
		return nil
	}
	return append([]string(nil), ps[i].Values...)
}

// Set replaces the named parameter, appending it when absent.
func (ps *Params) Set(name string, values ...string) {
	name = strings.ToLower(name)
	if i := ps.index(name); i >= 0 {
		(*ps)[i].Values = append([]string(nil), values...)
		return
	}
	*ps = append(*ps, Param{Name: name, Values: append([]string(nil), values...)})
}

// Remove deletes the named parameter and reports whether it was present.
func (ps *Params) Remove(name string) bool {
	i := ps.index(name)
	if i < 0 {
		return false
	}
	*ps = append((*ps)[:i], (*ps)[i+1:]...)
	return true
}

func (ps Params) clone() Params {
	if ps == nil {
		return nil
	}
	r := make(Params, len(ps))
	for i, p := range ps {
		r[i] = Param{Name: p.Name, Values: append([]string(nil), p.Values...)}
	}
	return r
}

// NewJComponent returns an empty jCal component.
func NewJComponent(name string) *JComponent {
	return &JComponent{Name: strings.ToLower(name)}
}

// Clone deep copies the component tree.
func (c *JComponent) Clone() *JComponent {
	r := &JComponent{Name: c.Name}
	for _, p := range c.Properties {
		r.Properties = append(r.Properties, p.Clone())
	}
	for _, sc := range c.Components {
		r.Components = append(r.Components, sc.Clone())
	}
	return r
}

// Clone deep copies the property including structured values.
func (p *JProperty) Clone() *JProperty {
	r := &JProperty{Name: p.Name, Params: p.Params.clone(), Type: p.Type}
	for _, v := range p.Values {
		r.Values = append(r.Values, cloneRaw(v))
	}
	return r
}

func cloneRaw(v any) any {
	if vs, ok := v.([]any); ok {
		r := make([]any, len(vs))
		for i := range vs {
			r[i] = cloneRaw(vs[i])
		}
		return r
	}
	return v
}

// MarshalJSON writes the component as nested jCal arrays.
func (c *JComponent) MarshalJSON() ([]byte, error) {
	b := &bytes.Buffer{}
	name, _ := json.Marshal(c.Name)
	b.WriteString("[")
	b.Write(name)
	b.WriteString(",[")
	for i, p := range c.Properties {
		if i > 0 {
			b.WriteString(",")
		}
		pj, err := p.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(pj)
	}
	b.WriteString("],[")
	for i, sc := range c.Components {
		if i > 0 {
			b.WriteString(",")
		}
		cj, err := sc.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(cj)
	}
	b.WriteString("]]")
	return b.Bytes(), nil
}

// MarshalJSON writes [name, {params}, type, values...].  Recurrence rules
// are written as jCal objects.
func (p *JProperty) MarshalJSON() ([]byte, error) {
	b := &bytes.Buffer{}
	name, _ := json.Marshal(p.Name)
	b.WriteString("[")
	b.Write(name)
	b.WriteString(",{")
	for i, param := range p.Params {
		if i > 0 {
			b.WriteString(",")
		}
		k, _ := json.Marshal(param.Name)
		b.Write(k)
		b.WriteString(":")
		var v []byte
		if len(param.Values) == 1 {
			v, _ = json.Marshal(param.Values[0])
		} else {
			v, _ = json.Marshal(param.Values)
		}
		b.Write(v)
	}
	b.WriteString("},")
	t, _ := json.Marshal(string(p.Type))
	b.Write(t)
	for _, v := range p.Values {
		if s, ok := v.(string); ok && p.Type == ValueDataTypeRecur {
			r, err := RecurFromString(s)
			if err != nil {
				return nil, fmt.Errorf("marshal %s: %w", p.Name, err)
			}
			v = r.ToData()
		}
		vj, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", p.Name, err)
		}
		b.WriteString(",")
		b.Write(vj)
	}
	b.WriteString("]")
	return b.Bytes(), nil
}

// UnmarshalJSON reads a nested jCal array.
func (c *JComponent) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("%w: jCal component must have 3 members, got %d", ErrParse, len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Name); err != nil {
		return err
	}
	c.Name = strings.ToLower(c.Name)
	c.Properties = nil
	c.Components = nil
	if err := json.Unmarshal(raw[1], &c.Properties); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &c.Components)
}

// UnmarshalJSON reads a jCal property array.
func (p *JProperty) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 4 {
		return fmt.Errorf("%w: jCal property needs at least 4 members, got %d", ErrParse, len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return err
	}
	p.Name = strings.ToLower(p.Name)
	params, err := decodeParams(raw[1])
	if err != nil {
		return err
	}
	p.Params = params
	var t string
	if err := json.Unmarshal(raw[2], &t); err != nil {
		return err
	}
	p.Type = ValueDataType(strings.ToLower(t))
	p.Values = nil
	for _, rv := range raw[3:] {
		var v any
		if err := json.Unmarshal(rv, &v); err != nil {
			return err
		}
		v, err := rawFromJSON(p.Type, v)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		p.Values = append(p.Values, v)
	}
	return nil
}

// decodeParams reads the parameter object keeping the document order.
func decodeParams(data json.RawMessage) (Params, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: jCal parameters must be an object", ErrParse)
	}
	var params Params
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			params.Set(k, one)
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		params.Set(k, many...)
	}
	return params, nil
}

func rawFromJSON(t ValueDataType, v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if t == ValueDataTypeInteger {
			return int(x), nil
		}
		return x, nil
	case map[string]any:
		if t != ValueDataTypeRecur {
			return nil, fmt.Errorf("%w: object value for %s", ErrUnexpectedValueKind, t)
		}
		r, err := RecurFromData(x)
		if err != nil {
			return nil, err
		}
		return r.String(), nil
	case []any:
		for i := range x {
			e, err := rawFromJSON(t, x[i])
			if err != nil {
				return nil, err
			}
			x[i] = e
		}
		return x, nil
	}
	return v, nil
}
