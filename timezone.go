package ics

import (
	"fmt"
	"sort"
)

const (
	// TimezoneExtraCoverage is how many years past the requested year are
	// expanded when a timezone computes its changes.
	TimezoneExtraCoverage = 5
	// TimezoneMaxYear bounds the expansion of recurring timezone rules.
	TimezoneMaxYear = 2037
)

// tzChange is one transition of a timezone.  Its wall clock is stored in
// UTC.
type tzChange struct {
	timeFields
	utcOffset     int
	prevUtcOffset int
	isDaylight    bool
}

// Timezone resolves wall clock times to UTC offsets using the STANDARD and
// DAYLIGHT definitions of a VTIMEZONE component.
type Timezone struct {
	Tzid      string
	Location  string
	Tznames   string
	Latitude  float64
	Longitude float64
	Component *Component

	changes           []*tzChange
	expandedUntilYear int
}

// TimezoneData is the record form accepted by TimezoneFromData.  Component
// wins over ComponentText when both are set.
type TimezoneData struct {
	Tzid          string
	Location      string
	Tznames       string
	Latitude      float64
	Longitude     float64
	Component     *Component
	ComponentText string
}

var (
	utcTimezone   = &Timezone{Tzid: "UTC"}
	localTimezone = &Timezone{Tzid: "floating"}

	minimumExpansionYear = Now().Year()
)

// UTCTimezone returns the shared UTC zone.
func UTCTimezone() *Timezone { return utcTimezone }

// LocalTimezone returns the shared floating zone.  Floating times have no
// offset and are read as wall clock wherever they are observed.
func LocalTimezone() *Timezone { return localTimezone }

// NewTimezone wraps a VTIMEZONE component.  The TZID is taken from the
// component.
func NewTimezone(c *Component) (*Timezone, error) {
	return TimezoneFromData(TimezoneData{Component: c})
}

// TimezoneFromData builds a Timezone from its record form.
func TimezoneFromData(d TimezoneData) (*Timezone, error) {
	tz := &Timezone{
		Tzid:      d.Tzid,
		Location:  d.Location,
		Tznames:   d.Tznames,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Component: d.Component,
	}
	if tz.Component == nil && d.ComponentText != "" {
		c, err := ComponentFromString(d.ComponentText)
		if err != nil {
			return nil, err
		}
		tz.Component = c
	}
	if tz.Component != nil {
		if tz.Component.Name() != string(ComponentVTimezone) {
			return nil, fmt.Errorf("%w: got %q", ErrNotTimezone, tz.Component.Name())
		}
		if tz.Tzid == "" {
			if p := tz.Component.GetFirstProperty(string(PropertyTzid)); p != nil {
				tz.Tzid = p.FirstString()
			}
		}
	}
	return tz, nil
}

func (tz *Timezone) String() string {
	if tz.Tznames != "" {
		return tz.Tznames
	}
	return tz.Tzid
}

func compareChange(a, b *tzChange) int {
	return compareFields(&a.timeFields, &b.timeFields)
}

// adjustChange shifts a change record by the given deltas with the same
// carry rules as Time.Adjust.
func adjustChange(c *tzChange, days, hours, minutes, seconds int) {
	c.adjust(days, hours, minutes, seconds)
}

// ConvertTime moves tt from one zone to another in place.  Dates and
// floating times only change their zone.
func ConvertTime(tt *Time, from, to *Timezone) {
	if tt.IsDate() || from.Tzid == to.Tzid || from == localTimezone || to == localTimezone {
		tt.SetZone(to)
		return
	}
	offset := from.UtcOffset(tt)
	tt.Adjust(0, 0, 0, -offset)
	offset = to.UtcOffset(tt)
	tt.Adjust(0, 0, 0, offset)
}

// UtcOffset returns the offset in seconds in effect at the wall clock of
// tt in this zone.
func (tz *Timezone) UtcOffset(tt *Time) int {
	if tz == utcTimezone || tz == localTimezone {
		return 0
	}
	tz.ensureCoverage(tt.Year())
	if len(tz.changes) == 0 {
		return 0
	}

	ttChange := &tzChange{timeFields: timeFields{
		year: tt.Year(), month: tt.Month(), day: tt.Day(),
		hour: tt.Hour(), minute: tt.Minute(), second: tt.Second(),
	}}
	changeNum := tz.findNearbyChange(ttChange)
	changeNumToUse := -1
	step := 1

	for {
		change := *tz.changes[changeNum]
		if change.utcOffset < change.prevUtcOffset {
			adjustChange(&change, 0, 0, 0, change.utcOffset)
		} else {
			adjustChange(&change, 0, 0, 0, change.prevUtcOffset)
		}

		if compareChange(ttChange, &change) >= 0 {
			changeNumToUse = changeNum
		} else {
			step = -1
		}
		if step == -1 && changeNumToUse != -1 {
			break
		}

		changeNum += step
		if changeNum < 0 {
			return 0
		}
		if changeNum >= len(tz.changes) {
			break
		}
	}

	zoneChange := tz.changes[changeNumToUse]
	if zoneChange.utcOffset-zoneChange.prevUtcOffset < 0 && changeNumToUse > 0 {
		// inside the repeated hour after falling back, prefer standard time
		tmp := *zoneChange
		adjustChange(&tmp, 0, 0, 0, tmp.prevUtcOffset)
		if compareChange(ttChange, &tmp) < 0 {
			prev := tz.changes[changeNumToUse-1]
			if zoneChange.isDaylight && !prev.isDaylight {
				zoneChange = prev
			}
		}
	}
	return zoneChange.utcOffset
}

func (tz *Timezone) findNearbyChange(c *tzChange) int {
	idx := binsearchInsert(tz.changes, c, compareChange)
	if idx >= len(tz.changes) {
		return len(tz.changes) - 1
	}
	return idx
}

func (tz *Timezone) ensureCoverage(year int) {
	if tz.Component == nil {
		return
	}
	endYear := year
	if endYear < minimumExpansionYear {
		endYear = minimumExpansionYear
	}
	endYear += TimezoneExtraCoverage
	if endYear > TimezoneMaxYear {
		endYear = TimezoneMaxYear
	}
	if year > TimezoneMaxYear {
		year = TimezoneMaxYear
	}
	if len(tz.changes) != 0 && tz.expandedUntilYear >= year {
		return
	}
	tz.changes = tz.changes[:0]
	for _, sub := range tz.Component.GetAllSubcomponents("") {
		tz.changes = tz.expandComponent(sub, endYear, tz.changes)
	}
	sortChanges(tz.changes)
	tz.expandedUntilYear = endYear
}

func sortChanges(changes []*tzChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return compareChange(changes[i], changes[j]) < 0
	})
}

func offsetSeconds(p *Property) int {
	o, err := firstValueAs[*UtcOffset](p)
	if err != nil {
		return 0
	}
	return o.ToSeconds()
}

// expandComponent appends the transitions of one STANDARD or DAYLIGHT
// definition up to year.  A definition missing DTSTART or either offset
// contributes nothing, and a broken RRULE contributes only what it
// produced before failing.
func (tz *Timezone) expandComponent(c *Component, year int, changes []*tzChange) []*tzChange {
	dtstartProp := c.GetFirstProperty(string(PropertyDtstart))
	toProp := c.GetFirstProperty(string(PropertyTzoffsetto))
	fromProp := c.GetFirstProperty(string(PropertyTzoffsetfrom))
	if dtstartProp == nil || toProp == nil || fromProp == nil {
		return changes
	}
	dtstart, err := firstValueAs[*Time](dtstartProp)
	if err != nil {
		return changes
	}
	base := tzChange{
		isDaylight:    c.Name() == string(ComponentDaylight),
		utcOffset:     offsetSeconds(toProp),
		prevUtcOffset: offsetSeconds(fromProp),
	}
	at := func(t *Time) *tzChange {
		ch := base
		ch.timeFields = timeFields{
			year: t.Year(), month: t.Month(), day: t.Day(),
			hour: t.Hour(), minute: t.Minute(), second: t.Second(),
		}
		return &ch
	}

	if !c.HasProperty(string(PropertyRrule)) && !c.HasProperty(string(PropertyRdate)) {
		ch := at(dtstart)
		adjustChange(ch, 0, 0, 0, -ch.prevUtcOffset)
		return append(changes, ch)
	}

	for _, rdate := range c.GetAllProperties(string(PropertyRdate)) {
		values, err := rdate.Values()
		if err != nil {
			continue
		}
		for _, v := range values {
			var t *Time
			switch x := v.(type) {
			case *Time:
				t = x
			case *Period:
				t = x.Start
			default:
				continue
			}
			ch := at(t)
			if t.Zone() != utcTimezone {
				adjustChange(ch, 0, 0, 0, -ch.prevUtcOffset)
			}
			changes = append(changes, ch)
		}
	}

	rruleProp := c.GetFirstProperty(string(PropertyRrule))
	if rruleProp == nil {
		return changes
	}
	rule, err := firstValueAs[*Recur](rruleProp)
	if err != nil {
		return changes
	}
	rule = rule.Clone()
	if rule.Until != nil && rule.Until.Zone() == utcTimezone {
		rule.Until.Adjust(0, 0, 0, base.prevUtcOffset)
		rule.Until.SetZone(localTimezone)
	}
	iter, err := rule.Iterator(dtstart)
	if err != nil {
		return changes
	}
	for {
		occ, err := iter.Next()
		if err != nil || occ == nil || occ.Year() > year {
			break
		}
		ch := at(occ)
		ch.isDate = occ.IsDate()
		adjustChange(ch, 0, 0, 0, -ch.prevUtcOffset)
		changes = append(changes, ch)
	}
	return changes
}
