package ics

import (
	"fmt"
	"regexp"
	"sort"
)

// ruleCode says what a BYxxx part does for a given FREQ.
type ruleCode int

const (
	ruleUnknown ruleCode = iota
	// the part filters candidates produced by the frequency
	ruleContract
	// the part produces several candidates per frequency step
	ruleExpand
	// the part may not be combined with the frequency
	ruleIllegal
)

// expandMap is indexed by frequency, then by ByPart up to ByMonth.
var expandMap = map[Frequency][8]ruleCode{
	FrequencySecondly: {1, 1, 1, 1, 1, 1, 1, 1},
	FrequencyMinutely: {2, 1, 1, 1, 1, 1, 1, 1},
	FrequencyHourly:   {2, 2, 1, 1, 1, 1, 1, 1},
	FrequencyDaily:    {2, 2, 2, 1, 1, 1, 1, 1},
	FrequencyWeekly:   {2, 2, 2, 2, 3, 3, 1, 1},
	FrequencyMonthly:  {2, 2, 2, 2, 2, 3, 3, 1},
	FrequencyYearly:   {2, 2, 2, 2, 2, 2, 2, 2},
}

// maxIterationYear bounds searches that could otherwise run forever.
const maxIterationYear = 20000

var ruleDayPattern = regexp.MustCompile(`^([+-]?[0-9]{1,2})?(MO|TU|WE|TH|FR|SA|SU)$`)

// RecurIterator walks the occurrences of a Recur from a start time.  The
// iterator holds cursor state and is not safe for concurrent use; use
// State to pause it and RecurIteratorFromState to resume.
type RecurIterator struct {
	rule    *Recur
	dtstart *Time
	last    *Time

	occurrenceNumber int
	byData           map[ByPart][]int
	byDay            []string
	byIndices        map[ByPart]int
	days             []int
	daysIndex        int

	initialized bool
	completed   bool
}

// NewRecurIterator validates the rule against dtstart and seeds the first
// occurrence.  Illegal part combinations are returned as
// ErrIllegalRuleCombination.
func NewRecurIterator(rule *Recur, dtstart *Time) (*RecurIterator, error) {
	if rule == nil || dtstart == nil {
		return nil, ErrMissingRule
	}
	if rule.Freq.index() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, rule.Freq)
	}
	it := &RecurIterator{
		rule:      rule.Clone(),
		dtstart:   dtstart.Clone(),
		byData:    map[ByPart][]int{},
		byDay:     rule.ByDay(),
		byIndices: map[ByPart]int{},
	}
	for part, values := range rule.parts {
		it.byData[part] = append([]int(nil), values...)
	}
	if it.rule.Interval < 1 {
		it.rule.Interval = 1
	}
	if it.rule.Wkst == 0 {
		it.rule.Wkst = DefaultWeekStart
	}
	if err := it.init(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *RecurIterator) Rule() *Recur          { return it.rule.Clone() }
func (it *RecurIterator) Dtstart() *Time        { return it.dtstart.Clone() }
func (it *RecurIterator) Completed() bool       { return it.completed }
func (it *RecurIterator) OccurrenceNumber() int { return it.occurrenceNumber }

// Last returns a copy of the most recent candidate.
func (it *RecurIterator) Last() *Time {
	if it.last == nil {
		return nil
	}
	return it.last.Clone()
}

// hasByData reports whether the rule itself carries part.  Defaults seeded
// from dtstart do not count.
func (it *RecurIterator) hasByData(part ByPart) bool {
	return it.rule.HasPart(part)
}

func (it *RecurIterator) inByData(part ByPart) bool {
	if part == ByDay {
		return len(it.byDay) > 0
	}
	_, ok := it.byData[part]
	return ok
}

func (it *RecurIterator) init() error {
	it.initialized = true
	it.last = it.dtstart.Clone()
	it.last.resolve()
	r := it.rule

	if it.inByData(ByDay) {
		it.sortByDayRules()
	}

	if it.inByData(ByYearDay) && (it.inByData(ByMonth) || it.inByData(ByWeekNo) || it.inByData(ByMonthDay) || it.inByData(ByDay)) {
		return fmt.Errorf("%w: BYYEARDAY cannot be combined with BYMONTH, BYWEEKNO, BYMONTHDAY or BYDAY", ErrIllegalRuleCombination)
	}
	if it.inByData(ByWeekNo) && it.inByData(ByMonthDay) {
		return fmt.Errorf("%w: BYWEEKNO does not fit to BYMONTHDAY", ErrIllegalRuleCombination)
	}
	if r.Freq == FrequencyMonthly && (it.inByData(ByYearDay) || it.inByData(ByWeekNo)) {
		return fmt.Errorf("%w: for MONTHLY recurrences neither BYYEARDAY nor BYWEEKNO may appear", ErrIllegalRuleCombination)
	}
	if r.Freq == FrequencyWeekly && (it.inByData(ByYearDay) || it.inByData(ByMonthDay)) {
		return fmt.Errorf("%w: for WEEKLY recurrences neither BYMONTHDAY nor BYYEARDAY may appear", ErrIllegalRuleCombination)
	}
	if r.Freq != FrequencyYearly && it.inByData(ByYearDay) {
		return fmt.Errorf("%w: BYYEARDAY may only appear in YEARLY rules", ErrIllegalRuleCombination)
	}

	for _, part := range []ByPart{BySecond, ByMinute, ByHour, ByWeekNo, ByMonth} {
		if values, ok := it.byData[part]; ok {
			it.byData[part] = sortedInts(values)
		}
	}

	it.last.SetSecond(it.setupDefaults(BySecond, FrequencySecondly, it.dtstart.Second()))
	it.last.SetMinute(it.setupDefaults(ByMinute, FrequencyMinutely, it.dtstart.Minute()))
	it.last.SetHour(it.setupDefaults(ByHour, FrequencyHourly, it.dtstart.Hour()))
	it.last.SetDay(it.setupDefaults(ByMonthDay, FrequencyDaily, it.dtstart.Day()))
	it.last.SetMonth(it.setupDefaults(ByMonth, FrequencyMonthly, it.dtstart.Month()))

	if r.Freq == FrequencyWeekly {
		if it.inByData(ByDay) {
			_, dow := ruleDayOfWeek(it.byDay[0], r.Wkst)
			lastDow := it.last.DayOfWeekStarting(r.Wkst)
			wkdy := dow - lastDow
			if (lastDow < dow && wkdy >= 0) || wkdy < 0 {
				it.last.SetDay(it.last.Day() + wkdy)
			}
		} else {
			it.byDay = []string{NumericDayToIcalDay(it.dtstart.DayOfWeek(), Sunday)}
		}
	}

	if r.Freq == FrequencyYearly {
		// the first year may not match at all, e.g. Feb 29 or a fifth Monday
		untilYear := it.yearLimit()
		for it.last.Year() <= untilYear {
			it.expandYearDays(it.last.Year())
			if len(it.days) > 0 {
				break
			}
			it.incrementYear(r.Interval)
		}
		if len(it.days) == 0 {
			it.completed = true
			return nil
		}
		it.nextByYearDay()
	}

	if r.Freq == FrequencyMonthly {
		if it.hasByData(ByDay) {
			if err := it.initMonthlyByDay(); err != nil {
				return err
			}
		} else if it.hasByData(ByMonthDay) {
			// last is not normalized yet so a negative day is still visible
			d := it.byData[ByMonthDay][0]
			dim := DaysInMonth(it.last.f.month, it.last.f.year)
			if d < 0 {
				d = dim + d + 1
			}
			if d < 1 || d > dim {
				d = 1
			}
			it.last.SetDay(d)
		}
	}
	return nil
}

func (it *RecurIterator) initMonthlyByDay() error {
	var tempLast *Time
	initLast := it.last.Clone()
	daysInMonth := DaysInMonth(it.last.Month(), it.last.Year())

	for _, bydow := range it.byDay {
		it.last = initLast.Clone()
		pos, dow := ruleDayOfWeek(bydow, 0)
		dayOfMonth := it.last.NthWeekDay(dow, pos)

		if pos >= 6 || pos <= -6 {
			return fmt.Errorf("%w: malformed values in BYDAY part", ErrInvalidRecur)
		}

		// a fifth weekday missing from this month is searched in the
		// following months
		if dayOfMonth > daysInMonth || dayOfMonth <= 0 {
			if tempLast != nil && tempLast.Month() == initLast.Month() {
				continue
			}
			for dayOfMonth > daysInMonth || dayOfMonth <= 0 {
				it.incrementMonth()
				daysInMonth = DaysInMonth(it.last.Month(), it.last.Year())
				dayOfMonth = it.last.NthWeekDay(dow, pos)
			}
		}

		it.last.SetDay(dayOfMonth)
		if tempLast == nil || it.last.Compare(tempLast) < 0 {
			tempLast = it.last.Clone()
		}
	}
	it.last = tempLast.Clone()

	if it.hasByData(ByMonthDay) {
		if _, err := it.byDayAndMonthDay(true); err != nil {
			return err
		}
	}
	if d := it.last.Day(); d > daysInMonth || d == 0 {
		return fmt.Errorf("%w: malformed values in BYDAY part", ErrInvalidRecur)
	}
	return nil
}

func (it *RecurIterator) yearLimit() int {
	if it.rule.Until != nil {
		return it.rule.Until.Year()
	}
	return maxIterationYear
}

func (it *RecurIterator) setupDefaults(part ByPart, req Frequency, def int) int {
	if expandMap[it.rule.Freq][part] != ruleContract {
		if _, ok := it.byData[part]; !ok {
			it.byData[part] = []int{def}
		}
		if it.rule.Freq != req {
			return it.byData[part][0]
		}
	}
	return def
}

// firstIsValid guards the seeded first candidate of a monthly rule: a
// BYMONTHDAY day missing from the starting month, or a BYDAY day that
// BYSETPOS does not select.
func (it *RecurIterator) firstIsValid() bool {
	if it.rule.Freq != FrequencyMonthly {
		return true
	}
	if it.hasByData(ByDay) {
		if !it.hasByData(BySetPos) || it.hasByData(ByMonthDay) {
			return true
		}
		return it.setPosMatches(it.last)
	}
	if !it.hasByData(ByMonthDay) {
		return true
	}
	days := normalizeByMonthDayRules(it.last.Year(), it.last.Month(), it.byData[ByMonthDay])
	return containsInt(days, it.last.Day())
}

// setPosMatches reports whether BYSETPOS selects tt among the BYDAY days
// of its month.
func (it *RecurIterator) setPosMatches(tt *Time) bool {
	probe := tt.Clone()
	pos, total := 0, 0
	for day := 1; day <= DaysInMonth(tt.Month(), tt.Year()); day++ {
		probe.SetDay(day)
		if it.isDayInByDay(probe) {
			total++
			if day == tt.Day() {
				pos = total
			}
		}
	}
	return pos > 0 && (it.checkSetPosition(pos) || it.checkSetPosition(pos-total-1))
}

// Next returns the next occurrence, or nil once the rule is exhausted.
// The returned Time is a copy owned by the caller.
func (it *RecurIterator) Next() (*Time, error) {
	return it.next(false)
}

func (it *RecurIterator) next(again bool) (*Time, error) {
	if it.completed || it.last == nil {
		it.completed = true
		return nil, nil
	}
	before := it.last.Clone()

	if n, ok := it.rule.Count.Get(); ok && it.occurrenceNumber >= n {
		it.completed = true
	}
	if it.rule.Until != nil && it.last.Compare(it.rule.Until) > 0 {
		it.completed = true
	}
	if it.completed {
		return nil, nil
	}

	if it.occurrenceNumber == 0 && it.last.Compare(it.dtstart) >= 0 && it.firstIsValid() {
		// the seeded candidate is the first occurrence
		it.occurrenceNumber++
		return it.last.Clone(), nil
	}

	for {
		valid, err := it.step()
		if err != nil {
			return nil, err
		}
		if it.completed {
			return nil, nil
		}
		if valid && it.checkContractingRules() && it.last.Compare(it.dtstart) >= 0 {
			break
		}
		if it.last.Year() > it.yearLimit() {
			it.completed = true
			return nil, nil
		}
	}

	if it.last.Compare(before) == 0 {
		if again {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOccurrence, it.last)
		}
		return it.next(true)
	}

	if it.rule.Until != nil && it.last.Compare(it.rule.Until) > 0 {
		it.completed = true
		return nil, nil
	}
	it.occurrenceNumber++
	return it.last.Clone(), nil
}

func (it *RecurIterator) step() (bool, error) {
	switch it.rule.Freq {
	case FrequencySecondly:
		it.nextSecond()
	case FrequencyMinutely:
		it.nextMinute()
	case FrequencyHourly:
		it.nextHour()
	case FrequencyDaily:
		it.nextDay()
	case FrequencyWeekly:
		it.nextWeek()
	case FrequencyMonthly:
		return it.nextMonth()
	case FrequencyYearly:
		it.nextYear()
	default:
		it.completed = true
	}
	return true, nil
}

type timeUnit int

const (
	unitSecond timeUnit = iota
	unitMinute
	unitHour
	unitMonthday
)

func (it *RecurIterator) setUnit(u timeUnit, v int) {
	switch u {
	case unitSecond:
		it.last.SetSecond(v)
	case unitMinute:
		it.last.SetMinute(v)
	case unitHour:
		it.last.SetHour(v)
	case unitMonthday:
		it.last.SetDay(v)
	}
}

// incrementUnit adds inc to a field and lets normalization carry the
// overflow into the coarser fields.
func (it *RecurIterator) incrementUnit(u timeUnit, inc int) {
	switch u {
	case unitSecond:
		it.last.SetSecond(it.last.Second() + inc)
	case unitMinute:
		it.last.SetMinute(it.last.Minute() + inc)
	case unitHour:
		it.last.SetHour(it.last.Hour() + inc)
	case unitMonthday:
		it.last.SetDay(it.last.Day() + inc)
	}
}

// nextGeneric advances one field through its BYxxx values, or by the
// interval when the field is the rule's own frequency.  It returns 1 when
// the values wrapped around.
func (it *RecurIterator) nextGeneric(part ByPart, freq Frequency, unit timeUnit, previous func() int) int {
	values, hasByRule := it.byData[part]
	thisFreq := it.rule.Freq == freq
	endOfData := 0

	if previous != nil && previous() == 0 {
		return endOfData
	}

	if hasByRule {
		it.byIndices[part]++
		if it.byIndices[part] >= len(values) {
			it.byIndices[part] = 0
			endOfData = 1
		}
		it.setUnit(unit, values[it.byIndices[part]])
	} else if thisFreq {
		it.incrementUnit(unit, it.rule.Interval)
	}

	if hasByRule && endOfData == 1 && thisFreq {
		it.incrementUnit(unit+1, 1)
	}
	return endOfData
}

func (it *RecurIterator) nextSecond() int {
	return it.nextGeneric(BySecond, FrequencySecondly, unitSecond, nil)
}

func (it *RecurIterator) nextMinute() int {
	return it.nextGeneric(ByMinute, FrequencyMinutely, unitMinute, it.nextSecond)
}

func (it *RecurIterator) nextHour() int {
	return it.nextGeneric(ByHour, FrequencyHourly, unitHour, it.nextMinute)
}

func (it *RecurIterator) nextDay() int {
	if it.nextHour() == 0 {
		return 0
	}
	if it.rule.Freq == FrequencyDaily {
		it.incrementUnit(unitMonthday, it.rule.Interval)
	} else {
		it.incrementUnit(unitMonthday, 1)
	}
	return 0
}

func (it *RecurIterator) nextWeek() int {
	endOfData := 0
	if it.nextWeekdayByWeek() == 0 {
		return endOfData
	}

	if it.hasByData(ByWeekNo) {
		weeks := it.byData[ByWeekNo]
		it.byIndices[ByWeekNo]++
		if it.byIndices[ByWeekNo] >= len(weeks) {
			it.byIndices[ByWeekNo] = 0
			endOfData = 1
		}
		it.last.SetMonth(1)
		it.last.SetDay(1)
		it.last.SetDay(it.last.Day() + 7*weeks[it.byIndices[ByWeekNo]])
		if endOfData == 1 {
			it.incrementYear(1)
		}
	} else {
		it.incrementUnit(unitMonthday, 7*it.rule.Interval)
	}
	return endOfData
}

func (it *RecurIterator) nextWeekdayByWeek() int {
	endOfData := 0
	if it.nextHour() == 0 {
		return endOfData
	}
	if !it.hasByData(ByDay) {
		return 1
	}

	for {
		it.byIndices[ByDay]++
		if it.byIndices[ByDay] >= len(it.byDay) {
			it.byIndices[ByDay] = 0
			endOfData = 1
		}

		_, dow := ruleDayOfWeek(it.byDay[it.byIndices[ByDay]], 0)
		dow -= it.rule.Wkst
		if dow < 0 {
			dow += 7
		}

		tt := NewDate(it.last.Year(), it.last.Month(), it.last.Day())
		startOfWeek := tt.StartDoyWeek(it.rule.Wkst)
		if dow+startOfWeek < 1 && endOfData == 0 {
			// the selected day is in the previous year
			continue
		}

		next := TimeFromDayOfYear(startOfWeek+dow, it.last.Year())
		it.last.SetYear(next.Year())
		it.last.SetMonth(next.Month())
		it.last.SetDay(next.Day())
		return endOfData
	}
}

// normalizeByMonthDayRules resolves negative month days for one month and
// drops values the month does not have.
func normalizeByMonthDayRules(year, month int, rules []int) []int {
	daysInMonth := DaysInMonth(month, year)
	var r []int
	for _, rule := range rules {
		if rule > daysInMonth || -rule > daysInMonth || rule == 0 {
			continue
		}
		if rule < 0 {
			rule = daysInMonth + rule + 1
		}
		if !containsInt(r, rule) {
			r = append(r, rule)
		}
	}
	sort.Ints(r)
	return r
}

// byDayAndMonthDay finds the next day satisfying both BYDAY and BYMONTHDAY,
// scanning at most 48 months ahead.
func (it *RecurIterator) byDayAndMonthDay(isInit bool) (bool, error) {
	var byMonthDay []int
	dateIdx, dateLen, daysInMonth := 0, 0, 0
	dataIsValid := false
	lastDay := it.last.Day()

	initMonth := func() {
		daysInMonth = DaysInMonth(it.last.Month(), it.last.Year())
		byMonthDay = normalizeByMonthDayRules(it.last.Year(), it.last.Month(), it.byData[ByMonthDay])
		dateLen = len(byMonthDay)
		for dateIdx < dateLen-1 && byMonthDay[dateIdx] <= lastDay && !(isInit && byMonthDay[dateIdx] == lastDay) {
			dateIdx++
		}
	}
	nextMonth := func() {
		lastDay = 0
		it.incrementMonth()
		dateIdx = 0
		initMonth()
	}

	initMonth()
	if isInit {
		lastDay--
	}

	monthsCounter := 48
	for !dataIsValid && monthsCounter > 0 {
		monthsCounter--
		date := lastDay + 1
		if date > daysInMonth || dateIdx >= dateLen {
			nextMonth()
			continue
		}

		next := byMonthDay[dateIdx]
		dateIdx++
		if next < date {
			nextMonth()
			continue
		}
		lastDay = next

		for _, day := range it.byDay {
			pos, dow := ruleDayOfWeek(day, 0)
			it.last.SetDay(lastDay)
			if it.last.IsNthWeekDay(dow, pos) {
				dataIsValid = true
				break
			}
		}

		if !dataIsValid && dateIdx == dateLen {
			nextMonth()
		}
	}

	if !dataIsValid {
		return false, fmt.Errorf("%w: malformed values in BYDAY combined with BYMONTHDAY parts", ErrInvalidRecur)
	}
	return dataIsValid, nil
}

func (it *RecurIterator) nextMonth() (bool, error) {
	dataValid := true
	if it.nextHour() == 0 {
		return dataValid, nil
	}

	switch {
	case it.hasByData(ByDay) && it.hasByData(ByMonthDay):
		return it.byDayAndMonthDay(false)

	case it.hasByData(ByDay):
		daysInMonth := DaysInMonth(it.last.Month(), it.last.Year())
		setpos, setposTotal := 0, 0

		if it.hasByData(BySetPos) {
			lastDay := it.last.Day()
			for day := 1; day <= daysInMonth; day++ {
				it.last.SetDay(day)
				if it.isDayInByDay(it.last) {
					setposTotal++
					if day <= lastDay {
						setpos++
					}
				}
			}
			it.last.SetDay(lastDay)
		}

		dataValid = false
		day := it.last.Day() + 1
		for ; day <= daysInMonth; day++ {
			it.last.SetDay(day)
			if it.isDayInByDay(it.last) {
				setpos++
				if !it.hasByData(BySetPos) || it.checkSetPosition(setpos) || it.checkSetPosition(setpos-setposTotal-1) {
					dataValid = true
					break
				}
			}
		}

		if day > daysInMonth {
			it.last.SetDay(1)
			it.incrementMonth()
			if it.isDayInByDay(it.last) {
				if !it.hasByData(BySetPos) || it.checkSetPosition(1) {
					dataValid = true
				}
			} else {
				dataValid = false
			}
		}

	case it.hasByData(ByMonthDay):
		days := it.byData[ByMonthDay]
		it.byIndices[ByMonthDay]++
		if it.byIndices[ByMonthDay] >= len(days) {
			it.byIndices[ByMonthDay] = 0
			it.incrementMonth()
		}
		daysInMonth := DaysInMonth(it.last.Month(), it.last.Year())
		day := days[it.byIndices[ByMonthDay]]
		if day < 0 {
			day = daysInMonth + day + 1
		}
		if day > daysInMonth || day < 1 {
			it.last.SetDay(1)
			dataValid = it.isDayInByDay(it.last)
		} else {
			it.last.SetDay(day)
		}

	default:
		it.incrementMonth()
		daysInMonth := DaysInMonth(it.last.Month(), it.last.Year())
		if it.byData[ByMonthDay][0] > daysInMonth {
			dataValid = false
		} else {
			it.last.SetDay(it.byData[ByMonthDay][0])
		}
	}
	return dataValid, nil
}

func (it *RecurIterator) nextYear() int {
	if it.nextHour() == 0 {
		return 0
	}

	it.daysIndex++
	if it.daysIndex >= len(it.days) {
		it.daysIndex = 0
		for {
			it.incrementYear(it.rule.Interval)
			if it.last.Year() > it.yearLimit() {
				it.completed = true
				return 0
			}
			it.expandYearDays(it.last.Year())
			if len(it.days) > 0 {
				break
			}
		}
	}
	it.nextByYearDay()
	return 1
}

func (it *RecurIterator) nextByYearDay() {
	doy := it.days[it.daysIndex]
	year := it.last.Year()
	if doy < 1 {
		// negative days count back from the end of the year
		doy++
		year++
	}
	next := TimeFromDayOfYear(doy, year)
	it.last.SetDay(next.Day())
	it.last.SetMonth(next.Month())
}

func (it *RecurIterator) incrementYear(inc int) {
	it.last.SetYear(it.last.Year() + inc)
}

func (it *RecurIterator) incrementMonth() {
	it.last.SetDay(1)
	if it.hasByData(ByMonth) {
		months := it.byData[ByMonth]
		it.byIndices[ByMonth]++
		if it.byIndices[ByMonth] >= len(months) {
			it.byIndices[ByMonth] = 0
			it.incrementYear(1)
		}
		it.last.SetMonth(months[it.byIndices[ByMonth]])
		return
	}

	inc := 1
	if it.rule.Freq == FrequencyMonthly {
		inc = it.rule.Interval
	}
	month := it.last.Month() + inc - 1
	years := month / 12
	it.last.SetMonth(month%12 + 1)
	if years != 0 {
		it.incrementYear(years)
	}
}

// monthDayMatches reports whether tt falls on one of the BYMONTHDAY values,
// counting negative values from the end of tt's month.
func (it *RecurIterator) monthDayMatches(tt *Time) bool {
	return containsInt(normalizeByMonthDayRules(tt.Year(), tt.Month(), it.byData[ByMonthDay]), tt.Day())
}

func weeksInYear(year, wkst int) int {
	start := WeekOneStarts(year, wkst)
	end := WeekOneStarts(year+1, wkst)
	return end.SubtractDate(start).ToSeconds() / (7 * 86400)
}

func (it *RecurIterator) expandYearDays(year int) {
	it.days = nil
	parts := map[ByPart]bool{}
	for _, p := range []ByPart{ByDay, ByWeekNo, ByMonthDay, ByMonth, ByYearDay} {
		if it.hasByData(p) {
			parts[p] = true
		}
	}

	if parts[ByMonth] && parts[ByWeekNo] {
		valid := true
		validWeeks := map[int]bool{}
		t := NewDate(year, 1, 1)
		for _, month := range it.byData[ByMonth] {
			t.SetMonth(month)
			t.SetDay(1)
			firstWeek := t.WeekNumber(it.rule.Wkst)
			t.SetDay(DaysInMonth(month, year))
			lastWeek := t.WeekNumber(it.rule.Wkst)
			for w := firstWeek; w < lastWeek; w++ {
				validWeeks[w] = true
			}
		}
		for _, weekno := range it.byData[ByWeekNo] {
			if weekno >= 52 || !validWeeks[weekno] {
				valid = false
				break
			}
		}
		if valid {
			delete(parts, ByMonth)
		} else {
			delete(parts, ByWeekNo)
		}
	}

	fits := func(month, day int) bool {
		return day >= 1 && day <= DaysInMonth(month, year)
	}

	switch n := len(parts); {
	case n == 0:
		t := it.dtstart.Clone()
		t.SetYear(it.last.Year())
		if fits(it.dtstart.Month(), it.dtstart.Day()) {
			it.days = append(it.days, t.DayOfYear())
		}

	case n == 1 && parts[ByMonth]:
		for _, month := range it.byData[ByMonth] {
			if !fits(month, it.dtstart.Day()) {
				continue
			}
			t := it.dtstart.Clone()
			t.SetYear(year)
			t.SetMonth(month)
			t.SetIsDate(true)
			it.days = append(it.days, t.DayOfYear())
		}

	case n == 1 && parts[ByMonthDay]:
		month := it.dtstart.Month()
		for _, monthday := range it.byData[ByMonthDay] {
			if monthday < 0 {
				monthday += DaysInMonth(month, year) + 1
			}
			if !fits(month, monthday) {
				continue
			}
			it.days = append(it.days, NewDate(year, month, monthday).DayOfYear())
		}

	case n == 2 && parts[ByMonthDay] && parts[ByMonth]:
		for _, month := range it.byData[ByMonth] {
			daysInMonth := DaysInMonth(month, year)
			for _, monthday := range it.byData[ByMonthDay] {
				if monthday < 0 {
					monthday += daysInMonth + 1
				}
				if !fits(month, monthday) {
					continue
				}
				it.days = append(it.days, NewDate(year, month, monthday).DayOfYear())
			}
		}

	case n == 1 && parts[ByWeekNo]:
		// the weekday of dtstart in each listed week
		weeks := weeksInYear(year, it.rule.Wkst)
		week1 := WeekOneStarts(year, it.rule.Wkst)
		offset := (it.dtstart.DayOfWeek() - it.rule.Wkst + 7) % 7
		for _, weekno := range it.byData[ByWeekNo] {
			if weekno < 0 {
				weekno += weeks + 1
			}
			if weekno < 1 || weekno > weeks {
				continue
			}
			t := week1.Clone()
			t.SetDay(t.Day() + (weekno-1)*7 + offset)
			if t.Year() == year {
				it.days = append(it.days, t.DayOfYear())
			}
		}

	case n == 1 && parts[ByDay]:
		it.days = append(it.days, it.expandByDay(year)...)

	case n == 2 && parts[ByDay] && parts[ByMonth]:
		t := NewDate(year, 1, 1)
		for _, month := range it.byData[ByMonth] {
			daysInMonth := DaysInMonth(month, year)
			t.SetYear(year)
			t.SetMonth(month)
			t.SetDay(1)
			firstDow := t.DayOfWeek()
			doyOffset := t.DayOfYear() - 1
			t.SetDay(daysInMonth)
			lastDow := t.DayOfWeek()

			if it.hasByData(BySetPos) {
				var byMonthDay []int
				for day := 1; day <= daysInMonth; day++ {
					t.SetDay(day)
					if it.isDayInByDay(t) {
						byMonthDay = append(byMonthDay, day)
					}
				}
				for i, day := range byMonthDay {
					if it.checkSetPosition(i+1) || it.checkSetPosition(i-len(byMonthDay)) {
						it.days = append(it.days, doyOffset+day)
					}
				}
				continue
			}

			for _, coded := range it.byDay {
				pos, dow := ruleDayOfWeek(coded, 0)
				firstMatchingDay := (dow+7-firstDow)%7 + 1
				lastMatchingDay := daysInMonth - (lastDow+7-dow)%7
				switch {
				case pos == 0:
					for day := firstMatchingDay; day <= daysInMonth; day += 7 {
						it.days = append(it.days, doyOffset+day)
					}
				case pos > 0:
					if monthDay := firstMatchingDay + (pos-1)*7; monthDay <= daysInMonth {
						it.days = append(it.days, doyOffset+monthDay)
					}
				default:
					if monthDay := lastMatchingDay + (pos+1)*7; monthDay > 0 {
						it.days = append(it.days, doyOffset+monthDay)
					}
				}
			}
		}

	case n == 2 && parts[ByDay] && parts[ByMonthDay]:
		for _, day := range it.expandByDay(year) {
			if it.monthDayMatches(TimeFromDayOfYear(day, year)) {
				it.days = append(it.days, day)
			}
		}

	case n == 3 && parts[ByDay] && parts[ByMonthDay] && parts[ByMonth]:
		for _, day := range it.expandByDay(year) {
			tt := TimeFromDayOfYear(day, year)
			if containsInt(it.byData[ByMonth], tt.Month()) && it.monthDayMatches(tt) {
				it.days = append(it.days, day)
			}
		}

	case n == 2 && parts[ByDay] && parts[ByWeekNo]:
		weeks := weeksInYear(year, it.rule.Wkst)
		for _, day := range it.expandByDay(year) {
			weekno := TimeFromDayOfYear(day, year).WeekNumber(it.rule.Wkst)
			for _, w := range it.byData[ByWeekNo] {
				if w < 0 {
					w += weeks + 1
				}
				if w == weekno {
					it.days = append(it.days, day)
					break
				}
			}
		}

	case n == 1 && parts[ByYearDay]:
		diy := daysInYear(year)
		for _, doy := range it.byData[ByYearDay] {
			if doy > diy || -doy > diy {
				continue
			}
			it.days = append(it.days, doy)
		}
	}

	diy := daysInYear(year)
	key := func(d int) int {
		if d < 0 {
			return d + diy + 1
		}
		return d
	}
	sort.SliceStable(it.days, func(i, j int) bool {
		return key(it.days[i]) < key(it.days[j])
	})
}

// expandByDay returns the days of year matching BYDAY.
func (it *RecurIterator) expandByDay(year int) []int {
	var daysList []int
	tmp := NewDate(year, 1, 1)
	startDow := tmp.DayOfWeek()
	tmp.SetMonth(12)
	tmp.SetDay(31)
	endDow := tmp.DayOfWeek()
	endYearDay := tmp.DayOfYear()

	for _, day := range it.byDay {
		pos, dow := ruleDayOfWeek(day, 0)
		switch {
		case pos == 0:
			for doy := (dow+7-startDow)%7 + 1; doy <= endYearDay; doy += 7 {
				daysList = append(daysList, doy)
			}
		case pos > 0:
			first := dow - startDow + 8
			if dow >= startDow {
				first = dow - startDow + 1
			}
			if doy := first + (pos-1)*7; doy <= endYearDay {
				daysList = append(daysList, doy)
			}
		default:
			pos = -pos
			last := endYearDay - endDow + dow - 7
			if dow <= endDow {
				last = endYearDay - endDow + dow
			}
			if doy := last - (pos-1)*7; doy >= 1 {
				daysList = append(daysList, doy)
			}
		}
	}
	return daysList
}

func (it *RecurIterator) isDayInByDay(tt *Time) bool {
	for _, day := range it.byDay {
		pos, dow := ruleDayOfWeek(day, 0)
		if (pos == 0 && dow == tt.DayOfWeek()) || tt.NthWeekDay(dow, pos) == tt.Day() {
			return true
		}
	}
	return false
}

func (it *RecurIterator) checkSetPosition(pos int) bool {
	return it.hasByData(BySetPos) && containsInt(it.byData[BySetPos], pos)
}

// sortByDayRules orders BYDAY by weekday relative to WKST.
func (it *RecurIterator) sortByDayRules() {
	rules := it.byDay
	for i := range rules {
		for j := 0; j < i; j++ {
			_, one := ruleDayOfWeek(rules[j], it.rule.Wkst)
			_, two := ruleDayOfWeek(rules[i], it.rule.Wkst)
			if one > two {
				rules[i], rules[j] = rules[j], rules[i]
			}
		}
	}
}

// ruleDayOfWeek splits "-1MO" into its position and weekday number
// counted from weekStart.  Unparseable values give 0, 0.
func ruleDayOfWeek(s string, weekStart int) (int, int) {
	m := ruleDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0
	}
	pos := 0
	if m[1] != "" {
		pos = lenientParseInt(m[1])
	}
	return pos, IcalDayToNumericDay(m[2], weekStart)
}

func (it *RecurIterator) checkContract(part ByPart, v int) bool {
	values, ok := it.byData[part]
	if !ok || expandMap[it.rule.Freq][part] != ruleContract {
		return true
	}
	if part == ByMonthDay {
		return it.monthDayMatches(it.last)
	}
	return containsInt(values, v)
}

func (it *RecurIterator) checkContractingRules() bool {
	dow := it.last.DayOfWeek()
	weekNo := it.last.WeekNumber(it.rule.Wkst)
	doy := it.last.DayOfYear()

	dayOK := true
	if it.inByData(ByDay) && expandMap[it.rule.Freq][ByDay] == ruleContract {
		dayOK = containsString(it.byDay, NumericDayToIcalDay(dow, Sunday))
	}

	return it.checkContract(BySecond, it.last.Second()) &&
		it.checkContract(ByMinute, it.last.Minute()) &&
		it.checkContract(ByHour, it.last.Hour()) &&
		dayOK &&
		it.checkContract(ByWeekNo, weekNo) &&
		it.checkContract(ByMonthDay, it.last.Day()) &&
		it.checkContract(ByMonth, it.last.Month()) &&
		it.checkContract(ByYearDay, doy)
}

// RecurIteratorState is the resumable form of a RecurIterator.
type RecurIteratorState struct {
	Initialized      bool             `json:"initialized"`
	Rule             map[string]any   `json:"rule"`
	Dtstart          TimeData         `json:"dtstart"`
	ByData           map[string][]int `json:"by_data"`
	ByDay            []string         `json:"byday,omitempty"`
	Days             []int            `json:"days"`
	DaysIndex        int              `json:"days_index"`
	Last             TimeData         `json:"last"`
	ByIndices        map[string]int   `json:"by_indices"`
	OccurrenceNumber int              `json:"occurrence_number"`
	Completed        bool             `json:"completed"`
}

// State captures everything needed to resume iteration.
func (it *RecurIterator) State() RecurIteratorState {
	s := RecurIteratorState{
		Initialized:      it.initialized,
		Rule:             it.rule.ToData(),
		Dtstart:          it.dtstart.ToData(),
		ByData:           map[string][]int{},
		ByDay:            append([]string(nil), it.byDay...),
		Days:             append([]int(nil), it.days...),
		DaysIndex:        it.daysIndex,
		ByIndices:        map[string]int{},
		OccurrenceNumber: it.occurrenceNumber,
		Completed:        it.completed,
	}
	if it.last != nil {
		s.Last = it.last.ToData()
	}
	for part, values := range it.byData {
		s.ByData[part.String()] = append([]int(nil), values...)
	}
	for part, idx := range it.byIndices {
		s.ByIndices[part.String()] = idx
	}
	return s
}

// RecurIteratorFromState resumes an iterator without repeating init.
// Timezone names are resolved through DefaultTimezoneService.
func RecurIteratorFromState(s RecurIteratorState) (*RecurIterator, error) {
	rule, err := RecurFromData(s.Rule)
	if err != nil {
		return nil, err
	}
	it := &RecurIterator{
		rule:             rule,
		dtstart:          TimeFromData(s.Dtstart),
		last:             TimeFromData(s.Last),
		occurrenceNumber: s.OccurrenceNumber,
		byData:           map[ByPart][]int{},
		byDay:            append([]string(nil), s.ByDay...),
		byIndices:        map[ByPart]int{},
		days:             append([]int(nil), s.Days...),
		daysIndex:        s.DaysIndex,
		initialized:      s.Initialized,
		completed:        s.Completed,
	}
	if it.rule.Interval < 1 {
		it.rule.Interval = 1
	}
	if it.rule.Wkst == 0 {
		it.rule.Wkst = DefaultWeekStart
	}
	for name, values := range s.ByData {
		part, ok := ParseByPart(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown rule part %q", ErrInvalidRecur, name)
		}
		it.byData[part] = append([]int(nil), values...)
	}
	for name, idx := range s.ByIndices {
		if part, ok := ParseByPart(name); ok {
			it.byIndices[part] = idx
		}
	}
	if !it.initialized {
		if err := it.init(); err != nil {
			return nil, err
		}
	}
	return it, nil
}
