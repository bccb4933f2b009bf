package ics

import (
	"fmt"
	"strconv"
	"strings"
)

// ComponentType enumerates the component names defined in RFC 5545 section 3.6.
// Names are lowercase as they are stored in the jCal tree.
type ComponentType string

const (
	ComponentVCalendar ComponentType = "vcalendar"
	ComponentVEvent    ComponentType = "vevent"
	ComponentVTodo     ComponentType = "vtodo"
	ComponentVJournal  ComponentType = "vjournal"
	ComponentVFreeBusy ComponentType = "vfreebusy"
	ComponentVTimezone ComponentType = "vtimezone"
	ComponentVAlarm    ComponentType = "valarm"
	ComponentStandard  ComponentType = "standard"
	ComponentDaylight  ComponentType = "daylight"
)

// PropertyName is a lowercase iCalendar property name.
type PropertyName string

const (
	PropertyCalscale        PropertyName = "calscale"
	PropertyMethod          PropertyName = "method"
	PropertyProductId       PropertyName = "prodid"
	PropertyVersion         PropertyName = "version"
	PropertyAttach          PropertyName = "attach"
	PropertyCategories      PropertyName = "categories"
	PropertyClass           PropertyName = "class"
	PropertyComment         PropertyName = "comment"
	PropertyDescription     PropertyName = "description"
	PropertyGeo             PropertyName = "geo"
	PropertyLocation        PropertyName = "location"
	PropertyPercentComplete PropertyName = "percent-complete"
	PropertyPriority        PropertyName = "priority"
	PropertyResources       PropertyName = "resources"
	PropertyStatus          PropertyName = "status"
	PropertySummary         PropertyName = "summary"
	PropertyCompleted       PropertyName = "completed"
	PropertyDtend           PropertyName = "dtend"
	PropertyDue             PropertyName = "due"
	PropertyDtstart         PropertyName = "dtstart"
	PropertyDuration        PropertyName = "duration"
	PropertyFreebusy        PropertyName = "freebusy"
	PropertyTransp          PropertyName = "transp"
	PropertyTzid            PropertyName = "tzid"
	PropertyTzname          PropertyName = "tzname"
	PropertyTzoffsetfrom    PropertyName = "tzoffsetfrom"
	PropertyTzoffsetto      PropertyName = "tzoffsetto"
	PropertyTzurl           PropertyName = "tzurl"
	PropertyAttendee        PropertyName = "attendee"
	PropertyContact         PropertyName = "contact"
	PropertyOrganizer       PropertyName = "organizer"
	PropertyRecurrenceId    PropertyName = "recurrence-id"
	PropertyRelatedTo       PropertyName = "related-to"
	PropertyUrl             PropertyName = "url"
	PropertyUid             PropertyName = "uid"
	PropertyExdate          PropertyName = "exdate"
	PropertyExrule          PropertyName = "exrule"
	PropertyRdate           PropertyName = "rdate"
	PropertyRrule           PropertyName = "rrule"
	PropertyAction          PropertyName = "action"
	PropertyRepeat          PropertyName = "repeat"
	PropertyTrigger         PropertyName = "trigger"
	PropertyCreated         PropertyName = "created"
	PropertyDtstamp         PropertyName = "dtstamp"
	PropertyLastModified    PropertyName = "last-modified"
	PropertySequence        PropertyName = "sequence"
	PropertyRequestStatus   PropertyName = "request-status"
	PropertyColor           PropertyName = "color"
	PropertyBegin           PropertyName = "begin"
	PropertyEnd             PropertyName = "end"
)

// Parameter is a lowercase property parameter name.
type Parameter string

const (
	ParameterAltrep              Parameter = "altrep"
	ParameterCn                  Parameter = "cn"
	ParameterCutype              Parameter = "cutype"
	ParameterDelegatedFrom       Parameter = "delegated-from"
	ParameterDelegatedTo         Parameter = "delegated-to"
	ParameterDir                 Parameter = "dir"
	ParameterEncoding            Parameter = "encoding"
	ParameterFmttype             Parameter = "fmttype"
	ParameterFbtype              Parameter = "fbtype"
	ParameterLanguage            Parameter = "language"
	ParameterMember              Parameter = "member"
	ParameterParticipationStatus Parameter = "partstat"
	ParameterRange               Parameter = "range"
	ParameterRelated             Parameter = "related"
	ParameterReltype             Parameter = "reltype"
	ParameterRole                Parameter = "role"
	ParameterRsvp                Parameter = "rsvp"
	ParameterSentBy              Parameter = "sent-by"
	ParameterTzid                Parameter = "tzid"
	ParameterValue               Parameter = "value"
)

// RangeThisAndFuture is the RANGE parameter value that extends an exception
// to every later occurrence.
const RangeThisAndFuture = "THISANDFUTURE"

// ValueDataType is the lowercase value type tag of a jCal property.
type ValueDataType string

const (
	ValueDataTypeBinary     ValueDataType = "binary"
	ValueDataTypeBoolean    ValueDataType = "boolean"
	ValueDataTypeCalAddress ValueDataType = "cal-address"
	ValueDataTypeDate       ValueDataType = "date"
	ValueDataTypeDateTime   ValueDataType = "date-time"
	ValueDataTypeDuration   ValueDataType = "duration"
	ValueDataTypeFloat      ValueDataType = "float"
	ValueDataTypeInteger    ValueDataType = "integer"
	ValueDataTypePeriod     ValueDataType = "period"
	ValueDataTypeRecur      ValueDataType = "recur"
	ValueDataTypeText       ValueDataType = "text"
	ValueDataTypeTime       ValueDataType = "time"
	ValueDataTypeUri        ValueDataType = "uri"
	ValueDataTypeUtcOffset  ValueDataType = "utc-offset"
	ValueDataTypeUnknown    ValueDataType = "unknown"
)

// DefaultValueType is used for properties and parameters the registry does
// not know.
const DefaultValueType = ValueDataTypeText

// Value is implemented by every decorated value kind: *Time, *Duration,
// *Period, *Recur, *UtcOffset and *Binary.
type Value interface {
	ValueDataType() ValueDataType
	ToICALString() string
}

type valueDesign struct {
	// fromICAL converts text form into the raw jCal value.
	fromICAL func(s string) any
	// toICAL converts a raw jCal value into text form.
	toICAL func(v any) string
	// decorate and undecorate are nil for value kinds kept raw.
	decorate   func(v any, p *Property) (Value, error)
	undecorate func(v Value) any
}

type propertyDesign struct {
	defaultType     ValueDataType
	allowedTypes    []ValueDataType
	multiValue      string
	structuredValue string
	detectType      func(raw string) ValueDataType
}

type parameterDesign struct {
	values                   []string
	valueType                ValueDataType
	multiValue               string
	multiValueSeparateDQuote bool
}

func substr(s string, start, n int) string {
	if start >= len(s) {
		return ""
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

func rawString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case Value:
		return x.ToICALString()
	}
	return fmt.Sprint(v)
}

func identity(s string) any { return s }

func dateFromICAL(s string) any {
	if len(s) < 8 {
		return s
	}
	return substr(s, 0, 4) + "-" + substr(s, 4, 2) + "-" + substr(s, 6, 2)
}

func dateToICAL(v any) string {
	s := rawString(v)
	if len(s) > 11 {
		return dateTimeToICAL(s)
	}
	return substr(s, 0, 4) + substr(s, 5, 2) + substr(s, 8, 2)
}

func dateTimeFromICAL(s string) any {
	if len(s) == 8 {
		return dateFromICAL(s)
	}
	r := substr(s, 0, 4) + "-" + substr(s, 4, 2) + "-" + substr(s, 6, 2) + "T" +
		substr(s, 9, 2) + ":" + substr(s, 11, 2) + ":" + substr(s, 13, 2)
	if len(s) > 15 && s[15] == 'Z' {
		r += "Z"
	}
	return r
}

func dateTimeToICAL(v any) string {
	s := rawString(v)
	if len(s) == 10 {
		return dateToICAL(s)
	}
	r := substr(s, 0, 4) + substr(s, 5, 2) + substr(s, 8, 5) + substr(s, 14, 2) + substr(s, 17, 2)
	if len(s) > 19 && s[19] == 'Z' {
		r += "Z"
	}
	return r
}

func periodFromICAL(s string) any {
	parts := strings.SplitN(s, "/", 2)
	r := []any{dateTimeFromICAL(parts[0])}
	if len(parts) == 2 {
		if IsDurationValueString(parts[1]) {
			r = append(r, parts[1])
		} else {
			r = append(r, dateTimeFromICAL(parts[1]))
		}
	}
	return r
}

func periodToICAL(v any) string {
	parts, ok := v.([]any)
	if !ok {
		return rawString(v)
	}
	var r []string
	for _, p := range parts {
		s := rawString(p)
		if IsDurationValueString(s) {
			r = append(r, s)
		} else {
			r = append(r, dateTimeToICAL(s))
		}
	}
	return strings.Join(r, "/")
}

// valueDesigns is filled in init: its decorators reach back into the
// registry through IsDecoratedType.
var valueDesigns map[ValueDataType]*valueDesign

func init() {
	valueDesigns = map[ValueDataType]*valueDesign{
		ValueDataTypeBoolean: {
			fromICAL: func(s string) any {
				switch s {
				case "TRUE":
					return true
				case "FALSE":
					return false
				}
				// parser warning territory
				return false
			},
			toICAL: func(v any) string {
				if b, ok := v.(bool); ok && b {
					return "TRUE"
				}
				return "FALSE"
			},
		},
		ValueDataTypeFloat: {
			fromICAL: func(s string) any {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return 0.0
				}
				return f
			},
			toICAL: rawString,
		},
		ValueDataTypeInteger: {
			fromICAL: func(s string) any { return lenientParseInt(s) },
			toICAL:   rawString,
		},
		ValueDataTypeText: {
			fromICAL: func(s string) any { return FromText(s) },
			toICAL:   func(v any) string { return ToText(rawString(v)) },
		},
		ValueDataTypeUri: {
			fromICAL: identity,
			toICAL:   rawString,
		},
		ValueDataTypeCalAddress: {
			fromICAL: identity,
			toICAL:   rawString,
		},
		ValueDataTypeUnknown: {
			fromICAL: identity,
			toICAL:   rawString,
		},
		ValueDataTypeBinary: {
			fromICAL: identity,
			toICAL:   rawString,
			decorate: func(v any, _ *Property) (Value, error) {
				return BinaryFromString(rawString(v)), nil
			},
			undecorate: func(v Value) any { return v.ToICALString() },
		},
		ValueDataTypeDate: {
			fromICAL: dateFromICAL,
			toICAL:   dateToICAL,
			decorate: func(v any, p *Property) (Value, error) {
				s := rawString(v)
				if len(s) > 10 {
					return TimeFromDateTimeString(s, p)
				}
				return TimeFromDateString(s)
			},
			undecorate: func(v Value) any { return v.(*Time).String() },
		},
		ValueDataTypeDateTime: {
			fromICAL: dateTimeFromICAL,
			toICAL:   dateTimeToICAL,
			decorate: func(v any, p *Property) (Value, error) {
				s := rawString(v)
				if len(s) == 10 {
					return TimeFromDateString(s)
				}
				return TimeFromDateTimeString(s, p)
			},
			undecorate: func(v Value) any { return v.(*Time).String() },
		},
		ValueDataTypeTime: {
			fromICAL: func(s string) any {
				r := substr(s, 0, 2) + ":" + substr(s, 2, 2) + ":" + substr(s, 4, 2)
				if len(s) > 6 && s[6] == 'Z' {
					r += "Z"
				}
				return r
			},
			toICAL: func(v any) string {
				s := rawString(v)
				r := substr(s, 0, 2) + substr(s, 3, 2) + substr(s, 6, 2)
				if len(s) > 8 && s[8] == 'Z' {
					r += "Z"
				}
				return r
			},
		},
		ValueDataTypeDuration: {
			fromICAL: identity,
			toICAL:   rawString,
			decorate: func(v any, _ *Property) (Value, error) {
				return DurationFromString(rawString(v))
			},
			undecorate: func(v Value) any { return v.ToICALString() },
		},
		ValueDataTypePeriod: {
			fromICAL: periodFromICAL,
			toICAL:   periodToICAL,
			decorate: func(v any, p *Property) (Value, error) {
				parts, ok := v.([]any)
				if !ok {
					return PeriodFromString(rawString(v), p)
				}
				return PeriodFromJSON(parts, p, true)
			},
			undecorate: func(v Value) any { return v.(*Period).ToJSON() },
		},
		ValueDataTypeRecur: {
			fromICAL: identity,
			toICAL:   rawString,
			decorate: func(v any, _ *Property) (Value, error) {
				return RecurFromString(rawString(v))
			},
			undecorate: func(v Value) any { return v.ToICALString() },
		},
		ValueDataTypeUtcOffset: {
			fromICAL: func(s string) any {
				if len(s) < 6 {
					return substr(s, 0, 3) + ":" + substr(s, 3, 2)
				}
				return substr(s, 0, 3) + ":" + substr(s, 3, 2) + ":" + substr(s, 5, 2)
			},
			toICAL: func(v any) string {
				s := rawString(v)
				if len(s) < 7 {
					return substr(s, 0, 3) + substr(s, 4, 2)
				}
				return substr(s, 0, 3) + substr(s, 4, 2) + substr(s, 7, 2)
			},
			decorate: func(v any, _ *Property) (Value, error) {
				return UtcOffsetFromString(rawString(v))
			},
			undecorate: func(v Value) any { return v.(*UtcOffset).String() },
		},
	}
}

func detectDateOrDateTime(raw string) ValueDataType {
	if strings.Contains(raw, "T") {
		return ValueDataTypeDateTime
	}
	return ValueDataTypeDate
}

func dateAndOrTime() *propertyDesign {
	return &propertyDesign{
		defaultType:  ValueDataTypeDateTime,
		allowedTypes: []ValueDataType{ValueDataTypeDateTime, ValueDataTypeDate},
		detectType:   detectDateOrDateTime,
	}
}

func typed(t ValueDataType) *propertyDesign {
	return &propertyDesign{defaultType: t}
}

func listOf(t ValueDataType) *propertyDesign {
	return &propertyDesign{defaultType: t, multiValue: ","}
}

var propertyDesigns = map[PropertyName]*propertyDesign{
	PropertyCalscale:        typed(ValueDataTypeText),
	PropertyMethod:          typed(ValueDataTypeText),
	PropertyProductId:       typed(ValueDataTypeText),
	PropertyVersion:         typed(ValueDataTypeText),
	PropertyAttach:          typed(ValueDataTypeUri),
	PropertyCategories:      listOf(ValueDataTypeText),
	PropertyClass:           typed(ValueDataTypeText),
	PropertyComment:         typed(ValueDataTypeText),
	PropertyDescription:     typed(ValueDataTypeText),
	PropertyGeo:             {defaultType: ValueDataTypeFloat, structuredValue: ";"},
	PropertyLocation:        typed(ValueDataTypeText),
	PropertyPercentComplete: typed(ValueDataTypeInteger),
	PropertyPriority:        typed(ValueDataTypeInteger),
	PropertyResources:       listOf(ValueDataTypeText),
	PropertyStatus:          typed(ValueDataTypeText),
	PropertySummary:         typed(ValueDataTypeText),
	PropertyCompleted:       typed(ValueDataTypeDateTime),
	PropertyDtend:           dateAndOrTime(),
	PropertyDue:             dateAndOrTime(),
	PropertyDtstart:         dateAndOrTime(),
	PropertyRecurrenceId:    dateAndOrTime(),
	PropertyDuration:        typed(ValueDataTypeDuration),
	PropertyFreebusy:        listOf(ValueDataTypePeriod),
	PropertyTransp:          typed(ValueDataTypeText),
	PropertyTzid:            typed(ValueDataTypeText),
	PropertyTzname:          typed(ValueDataTypeText),
	PropertyTzoffsetfrom:    typed(ValueDataTypeUtcOffset),
	PropertyTzoffsetto:      typed(ValueDataTypeUtcOffset),
	PropertyTzurl:           typed(ValueDataTypeUri),
	PropertyAttendee:        typed(ValueDataTypeCalAddress),
	PropertyContact:         typed(ValueDataTypeText),
	PropertyOrganizer:       typed(ValueDataTypeCalAddress),
	PropertyRelatedTo:       typed(ValueDataTypeText),
	PropertyUrl:             typed(ValueDataTypeUri),
	PropertyUid:             typed(ValueDataTypeText),
	PropertyExdate: {
		defaultType:  ValueDataTypeDateTime,
		allowedTypes: []ValueDataType{ValueDataTypeDateTime, ValueDataTypeDate},
		multiValue:   ",",
		detectType:   detectDateOrDateTime,
	},
	PropertyRdate: {
		defaultType:  ValueDataTypeDateTime,
		allowedTypes: []ValueDataType{ValueDataTypeDateTime, ValueDataTypeDate, ValueDataTypePeriod},
		multiValue:   ",",
		detectType: func(raw string) ValueDataType {
			if strings.Contains(raw, "/") {
				return ValueDataTypePeriod
			}
			return detectDateOrDateTime(raw)
		},
	},
	PropertyExrule:        typed(ValueDataTypeRecur),
	PropertyRrule:         typed(ValueDataTypeRecur),
	PropertyAction:        typed(ValueDataTypeText),
	PropertyRepeat:        typed(ValueDataTypeInteger),
	PropertyTrigger:       {defaultType: ValueDataTypeDuration, allowedTypes: []ValueDataType{ValueDataTypeDuration, ValueDataTypeDateTime}},
	PropertyCreated:       typed(ValueDataTypeDateTime),
	PropertyDtstamp:       typed(ValueDataTypeDateTime),
	PropertyLastModified:  typed(ValueDataTypeDateTime),
	PropertySequence:      typed(ValueDataTypeInteger),
	PropertyRequestStatus: {defaultType: ValueDataTypeText, structuredValue: ";"},
	PropertyColor:         typed(ValueDataTypeText),
}

func calAddressList() *parameterDesign {
	return &parameterDesign{valueType: ValueDataTypeCalAddress, multiValue: ",", multiValueSeparateDQuote: true}
}

var parameterDesigns = map[Parameter]*parameterDesign{
	ParameterCutype:              {values: []string{"INDIVIDUAL", "GROUP", "RESOURCE", "ROOM", "UNKNOWN"}},
	ParameterDelegatedFrom:       calAddressList(),
	ParameterDelegatedTo:         calAddressList(),
	ParameterMember:              calAddressList(),
	ParameterEncoding:            {values: []string{"8BIT", "BASE64"}},
	ParameterFbtype:              {values: []string{"FREE", "BUSY", "BUSY-UNAVAILABLE", "BUSY-TENTATIVE"}},
	ParameterParticipationStatus: {values: []string{"NEEDS-ACTION", "ACCEPTED", "DECLINED", "TENTATIVE", "DELEGATED", "COMPLETED", "IN-PROCESS"}},
	ParameterRange:               {values: []string{RangeThisAndFuture}},
	ParameterRelated:             {values: []string{"START", "END"}},
	ParameterReltype:             {values: []string{"PARENT", "CHILD", "SIBLING"}},
	ParameterRole:                {values: []string{"REQ-PARTICIPANT", "CHAIR", "OPT-PARTICIPANT", "NON-PARTICIPANT"}},
	ParameterRsvp:                {values: []string{"TRUE", "FALSE"}},
	ParameterSentBy:              {valueType: ValueDataTypeCalAddress},
	ParameterValue: {values: []string{
		"BINARY", "BOOLEAN", "CAL-ADDRESS", "DATE", "DATE-TIME", "DURATION", "FLOAT",
		"INTEGER", "PERIOD", "RECUR", "TEXT", "TIME", "URI", "UTC-OFFSET",
	}},
}

var unknownPropertyDesign = &propertyDesign{defaultType: DefaultValueType}

// lookupProperty returns the design for name, falling back to text for
// unknown and extension properties.
func lookupProperty(name string) (*propertyDesign, bool) {
	if d, ok := propertyDesigns[PropertyName(strings.ToLower(name))]; ok {
		return d, true
	}
	return unknownPropertyDesign, false
}

func lookupValue(t ValueDataType) *valueDesign {
	if d, ok := valueDesigns[t]; ok {
		return d
	}
	return valueDesigns[ValueDataTypeUnknown]
}

func lookupParameter(name string) (*parameterDesign, bool) {
	d, ok := parameterDesigns[Parameter(strings.ToLower(name))]
	return d, ok
}

// DefaultTypeOf returns the value type a property has when no VALUE
// parameter is given.
func DefaultTypeOf(name string) ValueDataType {
	d, _ := lookupProperty(name)
	return d.defaultType
}

// IsDecoratedType reports whether values of type t are exposed as Value
// implementations rather than raw jCal values.
func IsDecoratedType(t ValueDataType) bool {
	d, ok := valueDesigns[t]
	return ok && d.decorate != nil
}
