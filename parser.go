package ics

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CalendarStream reads content lines from an iCalendar stream.  Lines in an
// iCalendar file are "folded" by inserting a line break followed by a single
// space or tab; ReadLine hides that and returns logical lines.  Both CRLF
// and bare LF line breaks are accepted.
type CalendarStream struct {
	r io.Reader
	b *bufio.Reader
}

func NewCalendarStream(r io.Reader) *CalendarStream {
	return &CalendarStream{
		r: r,
		b: bufio.NewReader(r),
	}
}

// ContentLine is one unfolded line.
type ContentLine string

// ReadLine reads the next unfolded content line, skipping blank lines.  At
// the end of input the last line is returned together with io.EOF.
func (cs *CalendarStream) ReadLine() (*ContentLine, error) {
	r := []byte{}
	c := true
	var err error
	for c {
		var b []byte
		b, err = cs.b.ReadBytes('\n')
		switch {
		case len(b) == 0:
			if err == nil {
				continue
			}
			c = false
		case b[len(b)-1] == '\n':
			o := 1
			if len(b) > 1 && b[len(b)-2] == '\r' {
				o = 2
			}
			r = append(r, b[:len(b)-o]...)
			p, perr := cs.b.Peek(1)
			switch {
			case perr == io.EOF || len(p) == 0:
				c = false
			case p[0] == ' ' || p[0] == '\t':
				_, _ = cs.b.Discard(1)
			default:
				c = false
			}
		default:
			r = append(r, b...)
		}
		switch err {
		case nil:
			if len(r) == 0 {
				c = true
			}
		case io.EOF:
			c = false
		default:
			return nil, err
		}
	}
	if len(r) == 0 && err != nil {
		return nil, err
	}
	cl := ContentLine(r)
	return &cl, err
}

// Parse reads every top level component of an iCalendar document into
// jCal form.  Any malformed line fails the whole document.
func Parse(text string) ([]*JComponent, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseComponent parses text and returns its first top level component.
func ParseComponent(text string) (*JComponent, error) {
	roots, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no component found", ErrParse)
	}
	return roots[0], nil
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) ([]*JComponent, error) {
	var roots []*JComponent
	var stack []*JComponent
	cs := NewCalendarStream(r)
	for ln := 1; ; ln++ {
		l, err := cs.ReadLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if l != nil && len(*l) > 0 {
			if perr := handleContentLine(*l, &roots, &stack); perr != nil {
				return nil, fmt.Errorf("parsing line %d: %w", ln, perr)
			}
		}
		if err != nil {
			break
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnterminatedComponent, stack[len(stack)-1].Name)
	}
	return roots, nil
}

// ParseJSON reads a jCal document.
func ParseJSON(data []byte) (*JComponent, error) {
	c := &JComponent{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return c, nil
}

func handleContentLine(line ContentLine, roots *[]*JComponent, stack *[]*JComponent) error {
	p, err := ParseProperty(line)
	if err != nil {
		return err
	}
	switch p.Name {
	case string(PropertyBegin):
		c := NewJComponent(rawString(p.Values[0]))
		if n := len(*stack); n == 0 {
			*roots = append(*roots, c)
		} else {
			parent := (*stack)[n-1]
			parent.Components = append(parent.Components, c)
		}
		*stack = append(*stack, c)
		return nil
	case string(PropertyEnd):
		if len(*stack) == 0 {
			return fmt.Errorf("%w: END:%s without BEGIN", ErrParse, rawString(p.Values[0]))
		}
		*stack = (*stack)[:len(*stack)-1]
		return nil
	}
	if len(*stack) == 0 {
		return fmt.Errorf("%w: property %s outside of a component", ErrParse, p.Name)
	}
	current := (*stack)[len(*stack)-1]
	current.Properties = append(current.Properties, p)
	return nil
}

// ParseProperty parses one unfolded content line into a jCal property.
// BEGIN and END lines come back as properties named "begin" and "end".
func ParseProperty(line ContentLine) (*JProperty, error) {
	s := string(line)
	valuePos := strings.IndexByte(s, ':')
	paramPos := strings.IndexByte(s, ';')
	if valuePos < 0 {
		return nil, fmt.Errorf("%w: invalid line (no token \";\" or \":\") %q", ErrParse, s)
	}
	if paramPos > valuePos {
		paramPos = -1
	}

	var name, value string
	var params Params
	if paramPos >= 0 {
		name = s[:paramPos]
		var end int
		var err error
		params, end, err = parseParameters(s, paramPos)
		if err != nil {
			return nil, err
		}
		value = s[end+1:]
	} else {
		name = s[:valuePos]
		value = s[valuePos+1:]
	}
	if name == "" {
		return nil, fmt.Errorf("%w: missing property name in %q", ErrParse, s)
	}
	name = strings.ToLower(name)

	if name == string(PropertyBegin) || name == string(PropertyEnd) {
		return &JProperty{Name: name, Params: params, Type: ValueDataTypeText, Values: []any{strings.ToLower(value)}}, nil
	}

	design, _ := lookupProperty(name)
	var valueType ValueDataType
	if v, ok := params.Get(string(ParameterValue)); ok {
		valueType = ValueDataType(strings.ToLower(v))
		params.Remove(string(ParameterValue))
	} else if design.detectType != nil && value != "" {
		valueType = design.detectType(value)
	} else {
		valueType = design.defaultType
	}

	p := &JProperty{Name: name, Params: params, Type: valueType}
	switch {
	case design.multiValue != "" && design.structuredValue != "":
		p.Values = []any{parseMultiValue(value, design.structuredValue, valueType, design.multiValue)}
	case design.multiValue != "":
		for _, part := range splitUnescaped(value, design.multiValue) {
			p.Values = append(p.Values, lookupValue(valueType).fromICAL(part))
		}
	case design.structuredValue != "":
		p.Values = []any{parseMultiValue(value, design.structuredValue, valueType, "")}
	default:
		p.Values = []any{lookupValue(valueType).fromICAL(value)}
	}
	return p, nil
}

// parseMultiValue splits a structured value.  A single member collapses to
// a scalar.
func parseMultiValue(s, delim string, t ValueDataType, inner string) any {
	var r []any
	for _, part := range splitUnescaped(s, delim) {
		if inner != "" {
			r = append(r, parseMultiValue(part, inner, t, ""))
		} else {
			r = append(r, lookupValue(t).fromICAL(part))
		}
	}
	if len(r) == 1 {
		return r[0]
	}
	return r
}

var rfc6868Unescaper = strings.NewReplacer(
	"^'", `"`,
	"^n", "\n",
	"^^", "^",
)

var rfc6868Escaper = strings.NewReplacer(
	"^", "^^",
	"\n", "^n",
	`"`, "^'",
)

// parseParameters reads ";NAME=VALUE" pairs starting at the first ';' and
// returns the index of the ':' that starts the property value.
func parseParameters(s string, p int) (Params, int, error) {
	var params Params
	for p < len(s) && s[p] == ';' {
		p++
		eq := strings.IndexByte(s[p:], '=')
		if eq < 0 {
			return nil, 0, fmt.Errorf("%w: missing parameter value in %q", ErrParse, s)
		}
		name := s[p : p+eq]
		if name == "" || strings.ContainsAny(name, ";:") {
			return nil, 0, fmt.Errorf("%w: empty parameter name in %q", ErrParse, s)
		}
		p += eq + 1

		var values []string
		for {
			var v string
			if p < len(s) && s[p] == '"' {
				end := strings.IndexByte(s[p+1:], '"')
				if end < 0 {
					return nil, 0, fmt.Errorf("%w: invalid line (no matching double quote) %q", ErrParse, s)
				}
				v = s[p+1 : p+1+end]
				p += end + 2
			} else {
				end := strings.IndexAny(s[p:], ",;:")
				if end < 0 {
					return nil, 0, fmt.Errorf("%w: missing property value in %q", ErrParse, s)
				}
				v = s[p : p+end]
				p += end
			}
			values = append(values, rfc6868Unescaper.Replace(v))
			if p < len(s) && s[p] == ',' {
				p++
				continue
			}
			break
		}
		if p >= len(s) {
			return nil, 0, fmt.Errorf("%w: missing property value in %q", ErrParse, s)
		}
		if s[p] != ';' && s[p] != ':' {
			return nil, 0, fmt.Errorf("%w: unexpected %q after parameter %s in %q", ErrParse, s[p], name, s)
		}
		params = appendParam(params, name, values)
	}
	return params, p, nil
}

// appendParam merges repeated multi-valued parameters.  Values of
// parameters that are not multi-valued are rejoined with commas.
func appendParam(params Params, name string, values []string) Params {
	lc := strings.ToLower(name)
	d, _ := lookupParameter(lc)
	if d == nil || d.multiValue == "" {
		return append(params, Param{Name: lc, Values: []string{strings.Join(values, ",")}})
	}
	if i := params.index(lc); i >= 0 {
		params[i].Values = append(params[i].Values, values...)
		return params
	}
	return append(params, Param{Name: lc, Values: values})
}
