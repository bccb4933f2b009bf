package ics

import (
	"fmt"
	"time"
)

// Days of the week, numbered the way RRULE processing expects.
const (
	Sunday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DefaultWeekStart is the WKST assumed when a rule does not set one.
const DefaultWeekStart = Monday

var daysInYearPassedMonth = [2][13]int{
	{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365},
	{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366},
}

var daysInMonthTable = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear uses the Julian rule up to 1752 and the Gregorian rule after.
func IsLeapYear(year int) bool {
	if year <= 1752 {
		return year%4 == 0
	}
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func leapIndex(year int) int {
	if IsLeapYear(year) {
		return 1
	}
	return 0
}

// DaysInMonth returns the number of days in month, or 30 for an out of
// range month.
func DaysInMonth(month, year int) int {
	if month < 1 || month > 12 {
		return 30
	}
	days := daysInMonthTable[month]
	if month == 2 && IsLeapYear(year) {
		days++
	}
	return days
}

func daysInYear(year int) int {
	return daysInYearPassedMonth[leapIndex(year)][12]
}

// timeFields is the raw wall clock shared by Time and timezone change
// records.
type timeFields struct {
	year, month, day, hour, minute, second int
	isDate                                 bool
}

// adjust adds the deltas and carries overflow through every field, rolling
// the month and year as needed.  Deltas may exceed a full cycle in either
// direction.
func (f *timeFields) adjust(extraDays, extraHours, extraMinutes, extraSeconds int) {
	daysOverflow := 0
	if !f.isDate {
		second := f.second + extraSeconds
		f.second = second % 60
		minutesOverflow := second / 60
		if f.second < 0 {
			f.second += 60
			minutesOverflow--
		}

		minute := f.minute + extraMinutes + minutesOverflow
		f.minute = minute % 60
		hoursOverflow := minute / 60
		if f.minute < 0 {
			f.minute += 60
			hoursOverflow--
		}

		hour := f.hour + extraHours + hoursOverflow
		f.hour = hour % 24
		daysOverflow = hour / 24
		if f.hour < 0 {
			f.hour += 24
			daysOverflow--
		}
	}

	// the month has to be valid before the day can be placed in it
	yearsOverflow := 0
	if f.month > 12 {
		yearsOverflow = (f.month - 1) / 12
	} else if f.month < 1 {
		yearsOverflow = f.month/12 - 1
	}
	f.year += yearsOverflow
	f.month -= 12 * yearsOverflow

	day := f.day + extraDays + daysOverflow
	if day > 0 {
		for {
			dim := DaysInMonth(f.month, f.year)
			if day <= dim {
				break
			}
			f.month++
			if f.month > 12 {
				f.year++
				f.month = 1
			}
			day -= dim
		}
	} else {
		for day <= 0 {
			if f.month == 1 {
				f.year--
				f.month = 12
			} else {
				f.month--
			}
			day += DaysInMonth(f.month, f.year)
		}
	}
	f.day = day
}

func compareFields(a, b *timeFields) int {
	for _, p := range [][2]int{
		{a.year, b.year}, {a.month, b.month}, {a.day, b.day},
		{a.hour, b.hour}, {a.minute, b.minute}, {a.second, b.second},
	} {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Time is a wall clock date or date-time bound to a Timezone.  Setting a
// field defers normalization until the next read, so callers may push a
// field out of range and let the carry happen later.
type Time struct {
	f       timeFields
	zone    *Timezone
	pending bool

	unixCached bool
	unix       int64
}

// TimeData is the plain record form of a Time.
type TimeData struct {
	Year     int    `json:"year" yaml:"year"`
	Month    int    `json:"month" yaml:"month"`
	Day      int    `json:"day" yaml:"day"`
	Hour     int    `json:"hour" yaml:"hour"`
	Minute   int    `json:"minute" yaml:"minute"`
	Second   int    `json:"second" yaml:"second"`
	IsDate   bool   `json:"isDate" yaml:"isDate"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// NewTime returns a date-time in zone; a nil zone means floating.
func NewTime(year, month, day, hour, minute, second int, zone *Timezone) *Time {
	t := &Time{f: timeFields{year: year, month: month, day: day, hour: hour, minute: minute, second: second}, zone: zone}
	if t.zone == nil {
		t.zone = LocalTimezone()
	}
	t.pending = true
	return t
}

// NewDate returns a floating date value.
func NewDate(year, month, day int) *Time {
	t := NewTime(year, month, day, 0, 0, 0, nil)
	t.f.isDate = true
	return t
}

// TimeFromData builds a Time from its record form.  The timezone name is
// resolved through the default TimezoneService, falling back to floating.
func TimeFromData(d TimeData) *Time {
	var zone *Timezone
	if d.Timezone != "" {
		zone = DefaultTimezoneService.Get(d.Timezone)
	}
	t := NewTime(d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, zone)
	t.f.isDate = d.IsDate
	return t
}

// EpochTime returns 1970-01-01T00:00:00Z.
func EpochTime() *Time {
	return NewTime(1970, 1, 1, 0, 0, 0, UTCTimezone())
}

// TimeFromGoTime converts a time.Time.  With useUTC the UTC wall clock is
// used, otherwise the value's own wall clock becomes a floating time.
func TimeFromGoTime(gt time.Time, useUTC bool) *Time {
	zone := LocalTimezone()
	if useUTC {
		gt = gt.UTC()
		zone = UTCTimezone()
	}
	return NewTime(gt.Year(), int(gt.Month()), gt.Day(), gt.Hour(), gt.Minute(), gt.Second(), zone)
}

// Now returns the current local wall clock as a floating time.
func Now() *Time {
	return TimeFromGoTime(time.Now(), false)
}

// TimeFromDateString parses the jCal date form "2012-01-01".
func TimeFromDateString(s string) (*Time, error) {
	if len(s) < 10 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	year, err1 := strictParseInt(s[0:4])
	month, err2 := strictParseInt(s[5:7])
	day, err3 := strictParseInt(s[8:10])
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTime, err)
		}
	}
	return NewDate(year, month, day), nil
}

// zoneForProperty resolves the TZID parameter of p.  Values inside
// STANDARD and DAYLIGHT definitions are always floating.  Otherwise the
// VTIMEZONE children of the enclosing calendar win over the default
// TimezoneService.
func zoneForProperty(p *Property) *Timezone {
	if parent := p.Parent(); parent != nil {
		if n := parent.Name(); n == string(ComponentStandard) || n == string(ComponentDaylight) {
			return localTimezone
		}
	}
	tzid, ok := p.GetParameter(string(ParameterTzid))
	if !ok {
		return nil
	}
	if parent := p.Parent(); parent != nil {
		if tz := parent.GetTimezoneByID(tzid); tz != nil {
			return tz
		}
	}
	return DefaultTimezoneService.Get(tzid)
}

// TimeFromDateTimeString parses the jCal date-time form
// "2012-01-01T10:00:00[Z]".  Without a Z suffix the TZID parameter of p,
// when given, selects the zone.
func TimeFromDateTimeString(s string, p *Property) (*Time, error) {
	if len(s) < 19 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	var zone *Timezone
	if len(s) > 19 && s[19] == 'Z' {
		zone = UTCTimezone()
	} else if p != nil {
		zone = zoneForProperty(p)
	}
	var fields [6]int
	for i, r := range [][2]int{{0, 4}, {5, 7}, {8, 10}, {11, 13}, {14, 16}, {17, 19}} {
		v, err := strictParseInt(s[r[0]:r[1]])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTime, err)
		}
		fields[i] = v
	}
	return NewTime(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], zone), nil
}

// TimeFromString picks the date or date-time parser by length.
func TimeFromString(s string, p *Property) (*Time, error) {
	if len(s) > 10 {
		return TimeFromDateTimeString(s, p)
	}
	return TimeFromDateString(s)
}

// TimeFromDayOfYear returns the date for a 1 based day of year, rolling
// into neighbouring years when doy is out of range.
func TimeFromDayOfYear(doy, year int) *Time {
	for {
		if doy < 1 {
			year--
			doy += daysInYear(year)
			continue
		}
		if diy := daysInYear(year); doy > diy {
			doy -= diy
			year++
			continue
		}
		break
	}
	t := &Time{f: timeFields{year: year, isDate: true}, zone: LocalTimezone()}
	passed := daysInYearPassedMonth[leapIndex(year)]
	for month := 11; month >= 0; month-- {
		if doy > passed[month] {
			t.f.month = month + 1
			t.f.day = doy - passed[month]
			break
		}
	}
	return t
}

// WeekOneStarts returns the first day of week one of year for the given
// week start.
func WeekOneStarts(year, weekStart int) *Time {
	t := NewDate(year, 1, 1)
	dow := t.DayOfWeek()
	if weekStart == 0 {
		weekStart = DefaultWeekStart
	}
	day := t.Day()
	if dow > Thursday {
		day += 7
	}
	if weekStart > Thursday {
		day -= 7
	}
	day -= dow - weekStart
	t.SetDay(day)
	return t
}

// GetDominicalLetter returns the dominical letter(s) of year.
func GetDominicalLetter(year int) string {
	const letters = "GFEDCBA"
	dom := (year + year/4 + year/400 - year/100 - 1) % 7
	if IsLeapYear(year) {
		return string(letters[(dom+6)%7]) + string(letters[dom])
	}
	return string(letters[dom])
}

func (t *Time) resolve() {
	if t.pending {
		t.normalizeNow()
	}
}

func (t *Time) normalizeNow() {
	if t.f.isDate {
		t.f.hour, t.f.minute, t.f.second = 0, 0, 0
	}
	t.f.adjust(0, 0, 0, 0)
	t.pending = false
}

func (t *Time) touch() {
	t.unixCached = false
	t.pending = true
}

func (t *Time) Year() int   { t.resolve(); return t.f.year }
func (t *Time) Month() int  { t.resolve(); return t.f.month }
func (t *Time) Day() int    { t.resolve(); return t.f.day }
func (t *Time) Hour() int   { t.resolve(); return t.f.hour }
func (t *Time) Minute() int { t.resolve(); return t.f.minute }
func (t *Time) Second() int { t.resolve(); return t.f.second }
func (t *Time) IsDate() bool {
	t.resolve()
	return t.f.isDate
}

func (t *Time) SetYear(v int)   { t.touch(); t.f.year = v }
func (t *Time) SetMonth(v int)  { t.touch(); t.f.month = v }
func (t *Time) SetDay(v int)    { t.touch(); t.f.day = v }
func (t *Time) SetHour(v int)   { t.touch(); t.f.hour = v }
func (t *Time) SetMinute(v int) { t.touch(); t.f.minute = v }
func (t *Time) SetSecond(v int) { t.touch(); t.f.second = v }

// SetIsDate switches between date and date-time.  Turning a date-time into
// a date first carries any pending overflow so no day is lost.
func (t *Time) SetIsDate(v bool) {
	if v && !t.f.isDate {
		t.f.adjust(0, 0, 0, 0)
	}
	t.touch()
	t.f.isDate = v
}

// Zone returns the timezone; it is never nil.
func (t *Time) Zone() *Timezone {
	if t.zone == nil {
		return LocalTimezone()
	}
	return t.zone
}

func (t *Time) SetZone(z *Timezone) {
	t.unixCached = false
	t.zone = z
}

// Clone returns an independent copy sharing the timezone.
func (t *Time) Clone() *Time {
	c := *t
	return &c
}

// Normalize carries overflowed fields.
func (t *Time) Normalize() *Time {
	t.normalizeNow()
	t.unixCached = false
	return t
}

// Adjust adds signed deltas and normalizes.
func (t *Time) Adjust(days, hours, minutes, seconds int) *Time {
	t.resolve()
	t.f.adjust(days, hours, minutes, seconds)
	t.unixCached = false
	return t
}

// ToData returns the record form.
func (t *Time) ToData() TimeData {
	t.resolve()
	return TimeData{
		Year: t.f.year, Month: t.f.month, Day: t.f.day,
		Hour: t.f.hour, Minute: t.f.minute, Second: t.f.second,
		IsDate: t.f.isDate, Timezone: t.Zone().Tzid,
	}
}

// DayOfWeek returns 1 for Sunday through 7 for Saturday.
func (t *Time) DayOfWeek() int {
	return t.DayOfWeekStarting(Sunday)
}

// DayOfWeekStarting numbers the days so that weekStart is 1.
func (t *Time) DayOfWeekStarting(weekStart int) int {
	if weekStart == 0 {
		weekStart = Sunday
	}
	t.resolve()
	q := t.f.day
	m := t.f.month
	y := t.f.year
	if m < 3 {
		m += 12
		y--
	}
	h := q + y + (m+1)*26/10 + y/4
	h += (y/100)*6 + y/400
	return ((h+7-weekStart)%7+7)%7 + 1
}

// DayOfYear returns the 1 based day of the year.
func (t *Time) DayOfYear() int {
	t.resolve()
	return daysInYearPassedMonth[leapIndex(t.f.year)][t.f.month-1] + t.f.day
}

// StartOfWeek returns the date of the first day of this week.
func (t *Time) StartOfWeek(weekStart int) *Time {
	if weekStart == 0 {
		weekStart = Sunday
	}
	r := t.Clone()
	r.SetDay(r.Day() - (t.DayOfWeek()+7-weekStart)%7)
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

// EndOfWeek returns the date of the last day of this week.
func (t *Time) EndOfWeek(weekStart int) *Time {
	if weekStart == 0 {
		weekStart = Sunday
	}
	r := t.Clone()
	r.SetDay(r.Day() + (7-t.DayOfWeek()+weekStart-Sunday)%7)
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

func (t *Time) StartOfMonth() *Time {
	r := t.Clone()
	r.SetDay(1)
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

func (t *Time) EndOfMonth() *Time {
	r := t.Clone()
	r.SetDay(DaysInMonth(r.Month(), r.Year()))
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

func (t *Time) StartOfYear() *Time {
	r := t.Clone()
	r.SetDay(1)
	r.SetMonth(1)
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

func (t *Time) EndOfYear() *Time {
	r := t.Clone()
	r.SetDay(31)
	r.SetMonth(12)
	r.SetIsDate(true)
	r.SetHour(0)
	r.SetMinute(0)
	r.SetSecond(0)
	return r
}

// StartDoyWeek returns the day of year on which this week begins.  The
// result may be below 1 for weeks starting in the previous year.
func (t *Time) StartDoyWeek(weekStart int) int {
	if weekStart == 0 {
		weekStart = Sunday
	}
	delta := t.DayOfWeek() - weekStart
	if delta < 0 {
		delta += 7
	}
	return t.DayOfYear() - delta
}

// NthWeekDay returns the day of month of the pos-th dow in this month.
// Positions 0 and 1 both mean the first; negative positions count from the
// end.  The result may fall outside the month.
func (t *Time) NthWeekDay(dow, pos int) int {
	dim := DaysInMonth(t.Month(), t.Year())
	other := t.Clone()
	start := 0
	weekday := 0
	if pos >= 0 {
		other.SetDay(1)
		if pos != 0 {
			pos--
		}
		start = other.Day()
		offset := dow - other.DayOfWeek()
		if offset < 0 {
			offset += 7
		}
		start += offset
		start -= dow
		weekday = dow
	} else {
		other.SetDay(dim)
		endDow := other.DayOfWeek()
		pos++
		weekday = endDow - dow
		if weekday < 0 {
			weekday += 7
		}
		weekday = dim - weekday
	}
	weekday += pos * 7
	return start + weekday
}

// IsNthWeekDay reports whether this date is the pos-th dow of its month.
func (t *Time) IsNthWeekDay(dow, pos int) bool {
	if pos == 0 && t.DayOfWeek() == dow {
		return true
	}
	return t.NthWeekDay(dow, pos) == t.Day()
}

// WeekNumber returns the ISO 8601 style week number relative to weekStart.
func (t *Time) WeekNumber(weekStart int) int {
	dt := t.Clone()
	dt.SetIsDate(true)
	isoYear := dt.Year()
	var week1 *Time
	if dt.Month() == 12 && dt.Day() > 25 {
		week1 = WeekOneStarts(isoYear+1, weekStart)
		if dt.Compare(week1) < 0 {
			week1 = WeekOneStarts(isoYear, weekStart)
		}
	} else {
		week1 = WeekOneStarts(isoYear, weekStart)
		if dt.Compare(week1) < 0 {
			isoYear--
			week1 = WeekOneStarts(isoYear, weekStart)
		}
	}
	daysBetween := dt.SubtractDate(week1).ToSeconds() / 86400
	return daysBetween/7 + 1
}

// AddDuration adds d field by field; the carry happens lazily.
func (t *Time) AddDuration(d *Duration) *Time {
	mult := 1
	if d.IsNegative {
		mult = -1
	}
	second, minute, hour, day := t.Second(), t.Minute(), t.Hour(), t.Day()
	second += mult * d.Seconds
	minute += mult * d.Minutes
	hour += mult * d.Hours
	day += mult * d.Days
	day += mult * 7 * d.Weeks
	t.SetSecond(second)
	t.SetMinute(minute)
	t.SetHour(hour)
	t.SetDay(day)
	return t
}

// SubtractDate returns the wall clock difference t - other.
func (t *Time) SubtractDate(other *Time) *Duration {
	a := t.ToUnixTime() + int64(t.UtcOffset())
	b := other.ToUnixTime() + int64(other.UtcOffset())
	return DurationFromSeconds(int(a - b))
}

// SubtractDateTz returns the absolute difference t - other.
func (t *Time) SubtractDateTz(other *Time) *Duration {
	return DurationFromSeconds(int(t.ToUnixTime() - other.ToUnixTime()))
}

// Compare orders by absolute time, so values in different zones compare
// correctly.
func (t *Time) Compare(other *Time) int {
	a, b := t.ToUnixTime(), other.ToUnixTime()
	switch {
	case a > b:
		return 1
	case b > a:
		return -1
	}
	return 0
}

// CompareDateOnlyTz compares only the dates after converting both values
// to tz.
func (t *Time) CompareDateOnlyTz(other *Time, tz *Timezone) int {
	a := t.ConvertToZone(tz)
	b := other.ConvertToZone(tz)
	for _, p := range [][2]int{{a.Year(), b.Year()}, {a.Month(), b.Month()}, {a.Day(), b.Day()}} {
		if p[0] > p[1] {
			return 1
		}
		if p[0] < p[1] {
			return -1
		}
	}
	return 0
}

// ConvertToZone returns a copy expressed in zone.
func (t *Time) ConvertToZone(zone *Timezone) *Time {
	c := t.Clone()
	if !t.IsDate() && t.Zone().Tzid != zone.Tzid {
		ConvertTime(c, t.Zone(), zone)
	}
	c.SetZone(zone)
	return c
}

// UtcOffset returns the offset of this wall clock in seconds.
func (t *Time) UtcOffset() int {
	z := t.Zone()
	if z == LocalTimezone() || z == UTCTimezone() {
		return 0
	}
	return z.UtcOffset(t)
}

// ToUnixTime returns seconds since the epoch.
func (t *Time) ToUnixTime() int64 {
	t.resolve()
	if t.unixCached {
		return t.unix
	}
	offset := t.UtcOffset()
	t.unix = time.Date(t.f.year, time.Month(t.f.month), t.f.day, t.f.hour, t.f.minute, t.f.second-offset, 0, time.UTC).Unix()
	t.unixCached = true
	return t.unix
}

// FromUnixTime resets the value to the UTC wall clock of seconds.
func (t *Time) FromUnixTime(seconds int64) *Time {
	gt := time.Unix(seconds, 0).UTC()
	t.zone = UTCTimezone()
	t.f.year, t.f.month, t.f.day = gt.Year(), int(gt.Month()), gt.Day()
	t.f.hour, t.f.minute, t.f.second = gt.Hour(), gt.Minute(), gt.Second()
	t.touch()
	return t
}

// ToGoTime converts to a time.Time.  Floating values use time.Local.
func (t *Time) ToGoTime() time.Time {
	if t.Zone() == LocalTimezone() {
		t.resolve()
		return time.Date(t.f.year, time.Month(t.f.month), t.f.day, t.f.hour, t.f.minute, t.f.second, 0, time.Local)
	}
	return time.Unix(t.ToUnixTime(), 0).UTC()
}

func (t *Time) ValueDataType() ValueDataType {
	if t.IsDate() {
		return ValueDataTypeDate
	}
	return ValueDataTypeDateTime
}

// String returns the jCal form, "2012-01-01" or "2012-01-01T10:00:00[Z]".
func (t *Time) String() string {
	t.resolve()
	r := pad4(t.f.year) + "-" + pad2(t.f.month) + "-" + pad2(t.f.day)
	if !t.f.isDate {
		r += "T" + pad2(t.f.hour) + ":" + pad2(t.f.minute) + ":" + pad2(t.f.second)
		if t.Zone() == UTCTimezone() {
			r += "Z"
		}
	}
	return r
}

// ToICALString returns the text form, "20120101" or "20120101T100000[Z]".
func (t *Time) ToICALString() string {
	s := t.String()
	if len(s) > 10 {
		return dateTimeToICAL(s)
	}
	return dateToICAL(s)
}
