package ics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Frequency is the FREQ of a recurrence rule.
type Frequency string

const (
	FrequencySecondly Frequency = "SECONDLY"
	FrequencyMinutely Frequency = "MINUTELY"
	FrequencyHourly   Frequency = "HOURLY"
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyYearly   Frequency = "YEARLY"
)

var frequencies = []Frequency{
	FrequencySecondly, FrequencyMinutely, FrequencyHourly, FrequencyDaily,
	FrequencyWeekly, FrequencyMonthly, FrequencyYearly,
}

func (f Frequency) index() int {
	for i, v := range frequencies {
		if v == f {
			return i
		}
	}
	return -1
}

// ByPart names one of the BYxxx rule parts.  The order matches the columns
// of the expand/contract table used by RecurIterator.
type ByPart int

const (
	BySecond ByPart = iota
	ByMinute
	ByHour
	ByDay
	ByMonthDay
	ByYearDay
	ByWeekNo
	ByMonth
	BySetPos
)

var byPartNames = [...]string{
	"BYSECOND", "BYMINUTE", "BYHOUR", "BYDAY", "BYMONTHDAY",
	"BYYEARDAY", "BYWEEKNO", "BYMONTH", "BYSETPOS",
}

func (b ByPart) String() string {
	if b < 0 || int(b) >= len(byPartNames) {
		return "BY" + strconv.Itoa(int(b))
	}
	return byPartNames[b]
}

// ParseByPart looks up a rule part by name, case insensitively.
func ParseByPart(name string) (ByPart, bool) {
	name = strings.ToUpper(name)
	for i, n := range byPartNames {
		if n == name {
			return ByPart(i), true
		}
	}
	return 0, false
}

type numericRange struct {
	min, max int
	nonZero  bool
}

var numericParts = map[ByPart]numericRange{
	BySecond:   {0, 60, false},
	ByMinute:   {0, 59, false},
	ByHour:     {0, 23, false},
	ByMonthDay: {-31, 31, true},
	ByYearDay:  {-366, 366, true},
	ByWeekNo:   {-53, 53, true},
	ByMonth:    {1, 12, false},
	BySetPos:   {-366, 366, true},
}

var (
	validDayName   = regexp.MustCompile(`^(SU|MO|TU|WE|TH|FR|SA)$`)
	validByDayPart = regexp.MustCompile(`^([+-])?(5[0-3]|[1-4][0-9]|[1-9])?(SU|MO|TU|WE|TH|FR|SA)$`)
)

var dowMap = map[string]int{
	"SU": Sunday, "MO": Monday, "TU": Tuesday, "WE": Wednesday,
	"TH": Thursday, "FR": Friday, "SA": Saturday,
}

var reverseDowMap = map[int]string{
	Sunday: "SU", Monday: "MO", Tuesday: "TU", Wednesday: "WE",
	Thursday: "TH", Friday: "FR", Saturday: "SA",
}

// IcalDayToNumericDay converts "SU".."SA" to 1..7 counted from weekStart.
// A zero weekStart means Sunday.
func IcalDayToNumericDay(day string, weekStart int) int {
	if weekStart == 0 {
		weekStart = Sunday
	}
	return (dowMap[day]-weekStart+7)%7 + 1
}

// NumericDayToIcalDay is the inverse of IcalDayToNumericDay.
func NumericDayToIcalDay(num int, weekStart int) string {
	if weekStart == 0 {
		weekStart = Sunday
	}
	dow := num + weekStart - Sunday
	if dow > 7 {
		dow -= 7
	}
	return reverseDowMap[dow]
}

// Recur is a RECUR value.
type Recur struct {
	Freq     Frequency
	Interval int
	// Wkst is 1 (Sunday) through 7 (Saturday).
	Wkst  int
	Until *Time
	Count mo.Option[int]

	parts map[ByPart][]int
	byDay []string
	// rule parts this package does not interpret, kept for round trips
	extra map[string]string
}

// NewRecur returns an empty rule with the default interval and week start.
func NewRecur(freq Frequency) *Recur {
	return &Recur{Freq: freq, Interval: 1, Wkst: DefaultWeekStart, Count: mo.None[int](), parts: map[ByPart][]int{}}
}

// RecurFromString parses "FREQ=DAILY;COUNT=3;BYDAY=MO,WE".  Repeated values
// inside one part are dropped.
func RecurFromString(s string) (*Recur, error) {
	r := NewRecur("")
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		name, value, _ := strings.Cut(kv, "=")
		uc := strings.ToUpper(name)
		if part, ok := ParseByPart(uc); ok {
			if err := r.SetComponent(part.String(), strings.Split(value, ",")); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.setOption(uc, value); err != nil {
			return nil, err
		}
	}
	if r.Freq == "" {
		return nil, fmt.Errorf("%w: missing FREQ in %q", ErrInvalidRecur, s)
	}
	return r, nil
}

func (r *Recur) setOption(name, value string) error {
	switch name {
	case "FREQ":
		f := Frequency(value)
		if f.index() < 0 {
			return fmt.Errorf("%w: %q expected one of %v", ErrInvalidFrequency, value, frequencies)
		}
		r.Freq = f
	case "COUNT":
		n, err := strictParseInt(value)
		if err != nil {
			return fmt.Errorf("%w: COUNT: %w", ErrInvalidRecur, err)
		}
		if n < 1 {
			return fmt.Errorf("%w: COUNT must be positive, got %d", ErrInvalidRecur, n)
		}
		r.Count = mo.Some(n)
	case "INTERVAL":
		n, err := strictParseInt(value)
		if err != nil {
			return fmt.Errorf("%w: INTERVAL: %w", ErrInvalidRecur, err)
		}
		if n < 1 {
			n = 1
		}
		r.Interval = n
	case "UNTIL":
		var raw string
		if len(value) > 10 {
			raw = rawString(dateTimeFromICAL(value))
		} else {
			raw = rawString(dateFromICAL(value))
		}
		t, err := TimeFromString(raw, nil)
		if err != nil {
			return fmt.Errorf("%w: UNTIL: %w", ErrInvalidRecur, err)
		}
		r.Until = t
	case "WKST":
		if !validDayName.MatchString(value) {
			return fmt.Errorf("%w: invalid WKST value %q", ErrInvalidRecur, value)
		}
		r.Wkst = IcalDayToNumericDay(value, Sunday)
	default:
		if r.extra == nil {
			r.extra = map[string]string{}
		}
		r.extra[name] = value
	}
	return nil
}

func parseNumericPart(part ByPart, value string) (int, error) {
	rng := numericParts[part]
	n, err := strictParseInt(strings.TrimPrefix(value, "+"))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidRecur, part, err)
	}
	if n < rng.min || n > rng.max || (rng.nonZero && n == 0) {
		return 0, fmt.Errorf("%w: %s: invalid value %q must be within [%d, %d]", ErrInvalidRecur, part, value, rng.min, rng.max)
	}
	return n, nil
}

// SetComponent validates and replaces the values of a BYxxx part.
func (r *Recur) SetComponent(name string, values []string) error {
	part, ok := ParseByPart(name)
	if !ok {
		return fmt.Errorf("%w: unknown rule part %q", ErrInvalidRecur, name)
	}
	if part == ByDay {
		days := make([]string, 0, len(values))
		for _, v := range values {
			if !validByDayPart.MatchString(v) {
				return fmt.Errorf("%w: invalid BYDAY value %q", ErrInvalidRecur, v)
			}
			if !containsString(days, v) {
				days = append(days, v)
			}
		}
		r.byDay = days
		return nil
	}
	nums := make([]int, 0, len(values))
	for _, v := range values {
		n, err := parseNumericPart(part, v)
		if err != nil {
			return err
		}
		if !containsInt(nums, n) {
			nums = append(nums, n)
		}
	}
	r.SetPart(part, nums)
	return nil
}

// AddComponent validates and appends one value to a BYxxx part.
func (r *Recur) AddComponent(name string, value string) error {
	return r.SetComponent(name, append(r.GetComponent(name), value))
}

// GetComponent returns the text values of a BYxxx part.
func (r *Recur) GetComponent(name string) []string {
	part, ok := ParseByPart(name)
	if !ok {
		return nil
	}
	if part == ByDay {
		return append([]string(nil), r.byDay...)
	}
	var r2 []string
	for _, n := range r.parts[part] {
		r2 = append(r2, strconv.Itoa(n))
	}
	return r2
}

// Part returns a copy of the numeric values of a BYxxx part.  BYDAY is
// available through ByDay.
func (r *Recur) Part(part ByPart) []int {
	return append([]int(nil), r.parts[part]...)
}

// SetPart replaces a numeric BYxxx part without validation.  An empty
// slice removes the part.
func (r *Recur) SetPart(part ByPart, values []int) {
	if r.parts == nil {
		r.parts = map[ByPart][]int{}
	}
	if len(values) == 0 {
		delete(r.parts, part)
		return
	}
	r.parts[part] = append([]int(nil), values...)
}

func (r *Recur) ByDay() []string {
	return append([]string(nil), r.byDay...)
}

// HasPart reports whether the rule carries any value for part.
func (r *Recur) HasPart(part ByPart) bool {
	if part == ByDay {
		return len(r.byDay) > 0
	}
	return len(r.parts[part]) > 0
}

// IsFinite reports whether the rule ends by COUNT or UNTIL.
func (r *Recur) IsFinite() bool {
	return r.Count.IsPresent() || r.Until != nil
}

// IsByCount reports whether COUNT ends the rule.  UNTIL takes priority
// when both are set.
func (r *Recur) IsByCount() bool {
	return r.Count.IsPresent() && r.Until == nil
}

// Iterator returns an iterator over the occurrences starting at dtstart.
func (r *Recur) Iterator(dtstart *Time) (*RecurIterator, error) {
	return NewRecurIterator(r, dtstart)
}

// GetNextOccurrence returns the first occurrence strictly after
// recurrenceID, or nil when the rule ends first.
func (r *Recur) GetNextOccurrence(start, recurrenceID *Time) (*Time, error) {
	iter, err := r.Iterator(start)
	if err != nil {
		return nil, err
	}
	for {
		next, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		if next.Compare(recurrenceID) > 0 {
			next.SetZone(recurrenceID.Zone())
			return next, nil
		}
	}
}

func (r *Recur) Clone() *Recur {
	c := *r
	if r.Until != nil {
		c.Until = r.Until.Clone()
	}
	c.parts = map[ByPart][]int{}
	for k, v := range r.parts {
		c.parts[k] = append([]int(nil), v...)
	}
	c.byDay = append([]string(nil), r.byDay...)
	if r.extra != nil {
		c.extra = map[string]string{}
		for k, v := range r.extra {
			c.extra[k] = v
		}
	}
	return &c
}

func (r *Recur) ValueDataType() ValueDataType { return ValueDataTypeRecur }

func (r *Recur) ToICALString() string { return r.String() }

// String returns the RRULE text.  Parts are written in a fixed order.
func (r *Recur) String() string {
	b := &strings.Builder{}
	b.WriteString("FREQ=" + string(r.Freq))
	if n, ok := r.Count.Get(); ok {
		b.WriteString(";COUNT=" + strconv.Itoa(n))
	}
	if r.Interval > 1 {
		b.WriteString(";INTERVAL=" + strconv.Itoa(r.Interval))
	}
	for i := range byPartNames {
		part := ByPart(i)
		if !r.HasPart(part) {
			continue
		}
		b.WriteString(";" + part.String() + "=" + strings.Join(r.GetComponent(part.String()), ","))
	}
	if r.Until != nil {
		b.WriteString(";UNTIL=" + r.Until.ToICALString())
	}
	if r.Wkst != 0 && r.Wkst != DefaultWeekStart {
		b.WriteString(";WKST=" + NumericDayToIcalDay(r.Wkst, Sunday))
	}
	for _, k := range sortedKeys(r.extra) {
		b.WriteString(";" + k + "=" + r.extra[k])
	}
	return b.String()
}

// ToData returns the jCal object form of the rule.  Single valued parts
// are written as scalars.
func (r *Recur) ToData() map[string]any {
	res := map[string]any{"freq": string(r.Freq)}
	if n, ok := r.Count.Get(); ok {
		res["count"] = n
	}
	if r.Interval > 1 {
		res["interval"] = r.Interval
	}
	for part, values := range r.parts {
		key := strings.ToLower(part.String())
		if len(values) == 1 {
			res[key] = values[0]
		} else {
			res[key] = append([]int(nil), values...)
		}
	}
	if len(r.byDay) == 1 {
		res["byday"] = r.byDay[0]
	} else if len(r.byDay) > 1 {
		res["byday"] = append([]string(nil), r.byDay...)
	}
	if r.Until != nil {
		res["until"] = r.Until.String()
	}
	if r.Wkst != 0 && r.Wkst != DefaultWeekStart {
		res["wkst"] = NumericDayToIcalDay(r.Wkst, Sunday)
	}
	for k, v := range r.extra {
		res[strings.ToLower(k)] = v
	}
	return res
}

// RecurFromData builds a rule from its object form.  Numbers may be given
// as int, float64 or text; UNTIL is a jCal date or date-time string.
func RecurFromData(data map[string]any) (*Recur, error) {
	r := NewRecur("")
	for _, key := range sortedKeys(data) {
		uc := strings.ToUpper(key)
		values := dataStrings(data[key])
		if part, ok := ParseByPart(uc); ok {
			if err := r.SetComponent(part.String(), values); err != nil {
				return nil, err
			}
			continue
		}
		if len(values) == 0 {
			continue
		}
		switch uc {
		case "UNTIL":
			t, err := TimeFromString(values[0], nil)
			if err != nil {
				return nil, fmt.Errorf("%w: UNTIL: %w", ErrInvalidRecur, err)
			}
			r.Until = t
		case "WKST":
			if n, err := strconv.Atoi(values[0]); err == nil {
				r.Wkst = n
				continue
			}
			if err := r.setOption(uc, values[0]); err != nil {
				return nil, err
			}
		default:
			if err := r.setOption(uc, values[0]); err != nil {
				return nil, err
			}
		}
	}
	if r.Freq == "" {
		return nil, fmt.Errorf("%w: missing freq", ErrInvalidRecur)
	}
	return r, nil
}

func dataStrings(v any) []string {
	switch x := v.(type) {
	case []any:
		r := make([]string, 0, len(x))
		for _, e := range x {
			r = append(r, dataStrings(e)...)
		}
		return r
	case []string:
		return x
	case []int:
		r := make([]string, len(x))
		for i, n := range x {
			r[i] = strconv.Itoa(n)
		}
		return r
	case int:
		return []string{strconv.Itoa(x)}
	case *Time:
		return []string{x.String()}
	case nil:
		return nil
	}
	return []string{rawString(v)}
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// sortedInts returns a sorted copy.
func sortedInts(v []int) []int {
	r := append([]int(nil), v...)
	sort.Ints(r)
	return r
}
