package ics

import (
	"fmt"
	"io"
	"log/slog"
)

// DefaultExpansionMaxRetries bounds how many excluded candidates Next may
// skip in a row before giving up.
const DefaultExpansionMaxRetries = 500

// ExpansionOptions tunes a RecurExpansion.  The zero value is usable.
type ExpansionOptions struct {
	// MaxRetries defaults to DefaultExpansionMaxRetries.
	MaxRetries int
	// Logger receives debug records for excluded occurrences.  Nil means
	// no logging.
	Logger *slog.Logger
}

func (o *ExpansionOptions) maxRetries() int {
	if o == nil || o.MaxRetries <= 0 {
		return DefaultExpansionMaxRetries
	}
	return o.MaxRetries
}

func (o *ExpansionOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// RecurExpansion merges the RRULE iterators and RDATE values of a
// component into one chronological stream, dropping EXDATE instants.
type RecurExpansion struct {
	dtstart       *Time
	last          *Time
	ruleIterators []*RecurIterator
	ruleDates     []*Time
	exDates       []*Time
	ruleDateInc   int
	exDateInc     int
	complete      bool

	maxRetries int
	logger     *slog.Logger
}

func compareTimes(a, b *Time) int { return a.Compare(b) }

// NewRecurExpansion prepares the expansion of c starting at dtstart.  A
// component without RDATE, RRULE or RECURRENCE-ID yields dtstart once.
func NewRecurExpansion(c *Component, dtstart *Time, opts *ExpansionOptions) (*RecurExpansion, error) {
	if dtstart == nil {
		return nil, fmt.Errorf("expansion: %w", ErrMissingRule)
	}
	e := &RecurExpansion{
		dtstart:    dtstart.Clone(),
		last:       dtstart.Clone(),
		maxRetries: opts.maxRetries(),
		logger:     opts.logger(),
	}

	if !c.HasProperty(string(PropertyRdate)) && !c.HasProperty(string(PropertyRrule)) && !c.HasProperty(string(PropertyRecurrenceId)) {
		e.ruleDates = []*Time{e.last.Clone()}
		return e, nil
	}

	if c.HasProperty(string(PropertyRdate)) {
		dates, err := extractDates(c, string(PropertyRdate))
		if err != nil {
			return nil, err
		}
		e.ruleDates = dates
		// an RDATE before DTSTART starts the stream
		if len(dates) > 0 && dates[0].Compare(e.dtstart) < 0 {
			e.ruleDateInc = 0
			e.last = dates[0].Clone()
		} else {
			e.ruleDateInc = binsearchInsert(dates, e.last, compareTimes)
		}
	}

	for _, p := range c.GetAllProperties(string(PropertyRrule)) {
		rule, err := firstValueAs[*Recur](p)
		if err != nil {
			return nil, err
		}
		iter, err := rule.Iterator(e.dtstart)
		if err != nil {
			return nil, err
		}
		// prime the iterator so last holds the first occurrence
		if _, err := iter.Next(); err != nil {
			return nil, err
		}
		e.ruleIterators = append(e.ruleIterators, iter)
	}

	if c.HasProperty(string(PropertyExdate)) {
		dates, err := extractDates(c, string(PropertyExdate))
		if err != nil {
			return nil, err
		}
		e.exDates = dates
		e.exDateInc = binsearchInsert(dates, e.last, compareTimes)
	}
	return e, nil
}

// extractDates collects the values of every property named name in
// ascending order.  Periods contribute their start.
func extractDates(c *Component, name string) ([]*Time, error) {
	var r []*Time
	for _, p := range c.GetAllProperties(name) {
		values, err := p.Values()
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			var t *Time
			switch v := v.(type) {
			case *Time:
				t = v.Clone()
			case *Period:
				t = v.Start.Clone()
			default:
				continue
			}
			r = insertSorted(r, t, compareTimes)
		}
	}
	return r, nil
}

func (e *RecurExpansion) Dtstart() *Time { return e.dtstart.Clone() }
func (e *RecurExpansion) Last() *Time    { return e.last.Clone() }

// Complete reports whether every source is exhausted.
func (e *RecurExpansion) Complete() bool { return e.complete }

func (e *RecurExpansion) ruleDate() *Time {
	if e.ruleDateInc < len(e.ruleDates) {
		return e.ruleDates[e.ruleDateInc]
	}
	return nil
}

func (e *RecurExpansion) exDate() *Time {
	if e.exDateInc < len(e.exDates) {
		return e.exDates[e.exDateInc]
	}
	return nil
}

// nextRecurrenceIter drops completed iterators and returns the one whose
// last occurrence is earliest.
func (e *RecurExpansion) nextRecurrenceIter() *RecurIterator {
	var chosen *RecurIterator
	live := e.ruleIterators[:0]
	for _, iter := range e.ruleIterators {
		if iter.completed {
			continue
		}
		live = append(live, iter)
		if chosen == nil || chosen.last.Compare(iter.last) > 0 {
			chosen = iter
		}
	}
	e.ruleIterators = live
	return chosen
}

// Next returns the next occurrence, or nil when the stream is exhausted.
func (e *RecurExpansion) Next() (*Time, error) {
	for try := 0; ; try++ {
		if try > e.maxRetries {
			return nil, fmt.Errorf("%w after %d attempts", ErrExpansionRetriesExhausted, try)
		}

		next := e.ruleDate()
		iter := e.nextRecurrenceIter()
		if next == nil && iter == nil {
			e.complete = true
			return nil, nil
		}

		if next == nil || (iter != nil && next.Compare(iter.last) > 0) {
			next = iter.last.Clone()
			if _, err := iter.Next(); err != nil {
				return nil, err
			}
		} else {
			next = next.Clone()
			e.ruleDateInc++
		}
		e.last = next

		for ex := e.exDate(); ex != nil && ex.Compare(e.last) < 0; ex = e.exDate() {
			e.exDateInc++
		}
		if ex := e.exDate(); ex != nil && ex.Compare(e.last) == 0 {
			e.exDateInc++
			e.logger.Debug("occurrence excluded", "occurrence", e.last.String())
			continue
		}
		return e.last.Clone(), nil
	}
}

// RecurExpansionState is the resumable form of a RecurExpansion.
type RecurExpansionState struct {
	Dtstart       TimeData             `json:"dtstart"`
	Last          TimeData             `json:"last"`
	RuleIterators []RecurIteratorState `json:"ruleIterators"`
	RuleDates     []TimeData           `json:"ruleDates,omitempty"`
	ExDates       []TimeData           `json:"exDates,omitempty"`
	RuleDateInc   int                  `json:"ruleDateInc"`
	ExDateInc     int                  `json:"exDateInc"`
	Complete      bool                 `json:"complete"`
}

// State captures the cursors of the expansion and its iterators.
func (e *RecurExpansion) State() RecurExpansionState {
	s := RecurExpansionState{
		Dtstart:     e.dtstart.ToData(),
		Last:        e.last.ToData(),
		RuleDateInc: e.ruleDateInc,
		ExDateInc:   e.exDateInc,
		Complete:    e.complete,
	}
	for _, iter := range e.ruleIterators {
		s.RuleIterators = append(s.RuleIterators, iter.State())
	}
	for _, t := range e.ruleDates {
		s.RuleDates = append(s.RuleDates, t.ToData())
	}
	for _, t := range e.exDates {
		s.ExDates = append(s.ExDates, t.ToData())
	}
	return s
}

// RecurExpansionFromState resumes an expansion captured with State.
func RecurExpansionFromState(s RecurExpansionState, opts *ExpansionOptions) (*RecurExpansion, error) {
	e := &RecurExpansion{
		dtstart:     TimeFromData(s.Dtstart),
		last:        TimeFromData(s.Last),
		ruleDateInc: s.RuleDateInc,
		exDateInc:   s.ExDateInc,
		complete:    s.Complete,
		maxRetries:  opts.maxRetries(),
		logger:      opts.logger(),
	}
	for _, is := range s.RuleIterators {
		iter, err := RecurIteratorFromState(is)
		if err != nil {
			return nil, fmt.Errorf("expansion: %w", err)
		}
		e.ruleIterators = append(e.ruleIterators, iter)
	}
	for _, d := range s.RuleDates {
		e.ruleDates = append(e.ruleDates, TimeFromData(d))
	}
	for _, d := range s.ExDates {
		e.exDates = append(e.exDates, TimeFromData(d))
	}
	return e, nil
}
