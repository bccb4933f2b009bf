package ics

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

type WithLineLength int
type WithNewLine string

// The WithNewLine constants select the newline style used when serializing.
// RFC 5545 section 3.1 requires CRLF, but many tools also accept LF.
const (
	WithNewLineUnix    WithNewLine = "\n"
	WithNewLineWindows WithNewLine = "\r\n"
)

// SerializationConfiguration controls how components are written out.
// MaxLength is the fold length in octets; zero or less disables folding.
type SerializationConfiguration struct {
	MaxLength int
	NewLine   string
}

func defaultSerializationOptions() *SerializationConfiguration {
	return &SerializationConfiguration{
		MaxLength: FoldLength,
		NewLine:   string(WithNewLineWindows),
	}
}

// parseSerializeOps accepts WithLineLength, WithNewLine or a
// *SerializationConfiguration.
func parseSerializeOps(ops []any) (*SerializationConfiguration, error) {
	serializeConfig := defaultSerializationOptions()
	for opi, op := range ops {
		switch op := op.(type) {
		case WithLineLength:
			serializeConfig.MaxLength = int(op)
		case WithNewLine:
			serializeConfig.NewLine = string(op)
		case *SerializationConfiguration:
			return op, nil
		case error:
			return nil, op
		default:
			return nil, fmt.Errorf("unknown op %d of type %s", opi, reflect.TypeOf(op))
		}
	}
	return serializeConfig, nil
}

// Stringify writes every component, each followed by a line break.
func Stringify(components []*JComponent, ops ...any) (string, error) {
	b := &strings.Builder{}
	for _, c := range components {
		if err := StringifyTo(b, c, ops...); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// StringifyComponent returns the text form of c.  The final END line has
// no trailing line break.
func StringifyComponent(c *JComponent, ops ...any) string {
	conf, err := parseSerializeOps(ops)
	if err != nil {
		conf = defaultSerializationOptions()
	}
	b := &strings.Builder{}
	writeComponent(b, c, conf)
	return strings.TrimSuffix(b.String(), conf.NewLine)
}

// StringifyTo writes c to w, ending with a line break.
func StringifyTo(w io.Writer, c *JComponent, ops ...any) error {
	conf, err := parseSerializeOps(ops)
	if err != nil {
		return err
	}
	b := &strings.Builder{}
	writeComponent(b, c, conf)
	_, err = io.WriteString(w, b.String())
	return err
}

func writeComponent(b *strings.Builder, c *JComponent, conf *SerializationConfiguration) {
	name := strings.ToUpper(c.Name)
	b.WriteString("BEGIN:" + name + conf.NewLine)
	for _, p := range c.Properties {
		b.WriteString(foldLineAt(propertyLine(p), conf.NewLine, conf.MaxLength))
		b.WriteString(conf.NewLine)
	}
	for _, sc := range c.Components {
		writeComponent(b, sc, conf)
	}
	b.WriteString("END:" + name + conf.NewLine)
}

// StringifyProperty returns the folded content line of p.
func StringifyProperty(p *JProperty, ops ...any) string {
	conf, err := parseSerializeOps(ops)
	if err != nil {
		conf = defaultSerializationOptions()
	}
	return foldLineAt(propertyLine(p), conf.NewLine, conf.MaxLength)
}

// propertyLine builds the unfolded content line.  VALUE is only written
// when the type differs from the property's default.
func propertyLine(p *JProperty) string {
	b := &strings.Builder{}
	b.WriteString(strings.ToUpper(p.Name))
	for _, param := range p.Params {
		b.WriteString(";")
		b.WriteString(strings.ToUpper(param.Name))
		b.WriteString("=")
		b.WriteString(paramValue(param))
	}

	if !p.IsDefaultType() {
		b.WriteString(";VALUE=" + strings.ToUpper(string(p.Type)))
	}
	b.WriteString(":")
	b.WriteString(p.ValueString())
	return b.String()
}

// ValueString returns the wire form of the values, without name or
// parameters.
func (p *JProperty) ValueString() string {
	if len(p.Values) == 0 {
		return ""
	}
	design, _ := lookupProperty(p.Name)
	vd := lookupValue(p.Type)
	structured := ""
	if _, ok := p.Values[0].([]any); ok {
		structured = design.structuredValue
	}
	switch {
	case design.multiValue != "" && structured != "":
		return stringifyMulti(p.Values[0].([]any), structured, vd, design.multiValue)
	case design.multiValue != "":
		return stringifyMulti(p.Values, design.multiValue, vd, "")
	case structured != "":
		return stringifyMulti(p.Values[0].([]any), structured, vd, "")
	}
	return vd.toICAL(p.Values[0])
}

// IsDefaultType reports whether the value type of p is the default for its
// name, in which case no VALUE parameter is written.
func (p *JProperty) IsDefaultType() bool {
	design, _ := lookupProperty(p.Name)
	return p.Type == design.defaultType || p.Type == ValueDataTypeUnknown || p.Type == ""
}

func stringifyMulti(values []any, delim string, vd *valueDesign, inner string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if vs, ok := v.([]any); ok && inner != "" {
			parts = append(parts, stringifyMulti(vs, inner, vd, ""))
			continue
		}
		parts = append(parts, vd.toICAL(v))
	}
	return strings.Join(parts, delim)
}

func paramValue(param Param) string {
	values := make([]string, len(param.Values))
	for i, v := range param.Values {
		values[i] = rfc6868Escaper.Replace(v)
	}
	d, _ := lookupParameter(param.Name)
	delim := ","
	if d != nil && d.multiValue != "" && d.multiValueSeparateDQuote {
		delim = `"` + d.multiValue + `"`
	}
	return quoteParamValue(strings.Join(values, delim))
}

func quoteParamValue(v string) string {
	if unescapedIndexOf(v, ",", 0) < 0 && unescapedIndexOf(v, ":", 0) < 0 && unescapedIndexOf(v, ";", 0) < 0 {
		return v
	}
	return `"` + v + `"`
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	`;`, `\;`,
	`,`, `\,`,
)

// ToText escapes a TEXT value for the wire.
func ToText(s string) string {
	return textEscaper.Replace(s)
}

var textUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\N`, "\n",
	`\;`, `;`,
	`\,`, `,`,
)

// FromText reverses ToText.
func FromText(s string) string {
	return textUnescaper.Replace(s)
}
