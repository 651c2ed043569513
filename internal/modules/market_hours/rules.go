package market_hours

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
)

// RuleKind selects how a rule generates its dates
type RuleKind string

const (
	// RuleFixedDate fires on a literal month and day
	RuleFixedDate RuleKind = "fixed_date"
	// RuleNthWeekday fires on the nth (or nth-last) weekday of a month
	RuleNthWeekday RuleKind = "nth_weekday"
	// RuleEasterOffset fires a fixed number of days from Easter Sunday
	RuleEasterOffset RuleKind = "easter_offset"
	// RuleAnnouncedSpan fires on dates announced by a DataSource each year
	RuleAnnouncedSpan RuleKind = "announced_span"
)

// Weekday shift tables used by the built-in markets
var (
	// ObserveNearestWeekday moves Saturday back to Friday and Sunday on to Monday
	ObserveNearestWeekday = map[time.Weekday]int{time.Saturday: -1, time.Sunday: 1}
	// ObserveFollowingMonday moves both weekend days on to Monday
	ObserveFollowingMonday = map[time.Weekday]int{time.Saturday: 2, time.Sunday: 1}
	// ObserveSundayOnly moves only Sunday on to Monday; Saturday is not observed
	ObserveSundayOnly = map[time.Weekday]int{time.Sunday: 1}
)

var mondayToFriday = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Rule describes a recurring abnormal day. Rules are values: the builder methods
// return modified copies and never touch the receiver.
type Rule struct {
	ID   string   `validate:"required"`
	Kind RuleKind `validate:"oneof=fixed_date nth_weekday easter_offset announced_span"`

	// Weekdays on which the generated date needs no shift. Defaults to Monday-Friday.
	Weekdays []time.Weekday `validate:"dive,min=0,max=6"`
	// Shift maps a weekday outside Weekdays to the day offset applied to the date.
	// A missing entry means no shift, unless OmitOutside is set.
	Shift       map[time.Weekday]int
	OmitOutside bool

	// ValidFrom and ValidUntil bound the rule to [ValidFrom, ValidUntil). Zero means open.
	ValidFrom  time.Time
	ValidUntil time.Time

	Template DayTemplate

	Month    time.Month   `validate:"omitempty,min=1,max=12"`
	Day      int          `validate:"omitempty,min=1,max=31"`
	Weekday  time.Weekday `validate:"min=0,max=6"`
	N        int          `validate:"min=-5,max=5"`
	Offset   int
	Calendar CalendarType
}

// FixedDate is a rule firing every year on month/day
func FixedDate(id string, month time.Month, day int, tmpl DayTemplate) Rule {
	return Rule{ID: id, Kind: RuleFixedDate, Month: month, Day: day, Template: tmpl}
}

// NthWeekday is a rule firing on the nth weekday of month; negative n counts from the end
func NthWeekday(id string, month time.Month, weekday time.Weekday, n int, tmpl DayTemplate) Rule {
	return Rule{ID: id, Kind: RuleNthWeekday, Month: month, Weekday: weekday, N: n, Template: tmpl}
}

// EasterOffset is a rule firing offset days after Easter Sunday (negative is before)
func EasterOffset(id string, offset int, calendar CalendarType, tmpl DayTemplate) Rule {
	return Rule{ID: id, Kind: RuleEasterOffset, Offset: offset, Calendar: calendar, Template: tmpl}
}

// AnnouncedSpan is a rule whose dates are looked up in the calendar's DataSource under id
func AnnouncedSpan(id string, tmpl DayTemplate) Rule {
	return Rule{ID: id, Kind: RuleAnnouncedSpan, Template: tmpl}
}

// Observed returns a copy of r that shifts dates falling outside weekdays
func (r Rule) Observed(weekdays []time.Weekday, shift map[time.Weekday]int) Rule {
	r.Weekdays = slices.Clone(weekdays)
	r.Shift = make(map[time.Weekday]int, len(shift))
	for wd, days := range shift {
		r.Shift[wd] = days
	}
	return r
}

func (r Rule) clone() Rule {
	r.Weekdays = slices.Clone(r.Weekdays)
	r.Shift = maps.Clone(r.Shift)
	r.Template = r.Template.clone()
	return r
}

// ShiftedBy returns a copy of r using the shift table with the default weekdays
func (r Rule) ShiftedBy(shift map[time.Weekday]int) Rule {
	return r.Observed(r.applicable(), shift)
}

// OnlyWhenApplicable returns a copy of r that produces nothing when its date falls
// outside the applicable weekdays and the shift table has no entry for it
func (r Rule) OnlyWhenApplicable() Rule {
	r.OmitOutside = true
	return r
}

// Plus returns a copy of r with whole days added after the nth weekday is found
func (r Rule) Plus(days int) Rule {
	r.Offset = days
	return r
}

// Between returns a copy of r restricted to [from, until). Zero values leave a side open.
func (r Rule) Between(from, until time.Time) Rule {
	if !from.IsZero() {
		from = DateOf(from)
	}
	if !until.IsZero() {
		until = DateOf(until)
	}
	r.ValidFrom, r.ValidUntil = from, until
	return r
}

// Since is Between(from, zero)
func (r Rule) Since(from time.Time) Rule {
	return r.Between(from, time.Time{})
}

// Until is Between(zero, until)
func (r Rule) Until(until time.Time) Rule {
	return r.Between(time.Time{}, until)
}

func (r Rule) applicable() []time.Weekday {
	if len(r.Weekdays) == 0 {
		return mondayToFriday
	}
	return r.Weekdays
}

func (r Rule) appliesOn(wd time.Weekday) bool {
	return slices.Contains(r.applicable(), wd)
}

// inWindow reports whether date lies in [ValidFrom, ValidUntil)
func (r Rule) inWindow(date time.Time) bool {
	if !r.ValidFrom.IsZero() && date.Before(r.ValidFrom) {
		return false
	}
	if !r.ValidUntil.IsZero() && !date.Before(r.ValidUntil) {
		return false
	}
	return true
}

// observe applies the weekday shift policy to a single generated date
func (r Rule) observe(date time.Time) (time.Time, bool) {
	wd := date.Weekday()
	if r.appliesOn(wd) {
		return date, true
	}
	days, ok := r.Shift[wd]
	if !ok && r.OmitOutside {
		return time.Time{}, false
	}
	return date.AddDate(0, 0, days), true
}

// Occurrence is one date a rule fires on in a given year
type Occurrence struct {
	Date     time.Time
	Template DayTemplate
	RuleID   string
}

// DataSource supplies dates for announced-span rules
type DataSource interface {
	Fetch(ctx context.Context, year int, ruleID string) ([]time.Time, error)
}

// RuleEngine turns rules into dates. Only announced spans touch the DataSource.
type RuleEngine struct {
	source DataSource
}

// NewRuleEngine creates a rule engine. source may be nil if no rule needs announced dates.
func NewRuleEngine(source DataSource) *RuleEngine {
	return &RuleEngine{source: source}
}

// Generate returns the ascending, de-duplicated occurrences of rule in year.
// A rule whose first date lies outside its validity window yields nothing.
// Dates may fall outside year after shifting; callers decide what to keep.
func (e *RuleEngine) Generate(ctx context.Context, rule Rule, year int) ([]Occurrence, error) {
	var dates []time.Time

	switch rule.Kind {
	case RuleFixedDate:
		date := Date(year, rule.Month, rule.Day)
		if date.Month() != rule.Month {
			// Feb 29 outside leap years
			return nil, nil
		}
		dates = rule.single(date)

	case RuleNthWeekday:
		date := nthWeekday(year, rule.Month, rule.Weekday, rule.N)
		if date.Month() != rule.Month {
			// no fifth occurrence this month
			return nil, nil
		}
		dates = rule.single(date.AddDate(0, 0, rule.Offset))

	case RuleEasterOffset:
		dates = rule.single(CalculateEaster(year, rule.Calendar).AddDate(0, 0, rule.Offset))

	case RuleAnnouncedSpan:
		var err error
		dates, err = e.announced(ctx, rule, year)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("rule %s: unknown kind %q", rule.ID, rule.Kind)
	}

	if len(dates) == 0 || !rule.inWindow(dates[0]) {
		return nil, nil
	}

	occurrences := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		occurrences = append(occurrences, Occurrence{Date: d, Template: rule.Template, RuleID: rule.ID})
	}
	return occurrences, nil
}

func (r Rule) single(date time.Time) []time.Time {
	observed, ok := r.observe(date)
	if !ok {
		return nil
	}
	return []time.Time{observed}
}

// announced fetches the literal dates of a span and widens it to the
// non-applicable days (weekends) inside it and directly before and after it
func (e *RuleEngine) announced(ctx context.Context, rule Rule, year int) ([]time.Time, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: rule %s, year %d: no data source configured", ErrDataUnavailable, rule.ID, year)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := e.source.Fetch(ctx, year, rule.ID)
	if err != nil {
		// a cancelled lookup says nothing about whether the dates exist
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: rule %s, year %d: %w", ErrDataUnavailable, rule.ID, year, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: rule %s, year %d: no dates announced", ErrDataUnavailable, rule.ID, year)
	}

	dates := make([]time.Time, 0, len(raw)+4)
	for _, d := range raw {
		dates = append(dates, DateOf(d))
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	dates = slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) })
	dates = fillGaps(rule, dates)

	var before []time.Time
	for d, i := dates[0].AddDate(0, 0, -1), 0; i < 7 && !rule.appliesOn(d.Weekday()); d, i = d.AddDate(0, 0, -1), i+1 {
		before = append(before, d)
	}
	slices.Reverse(before)

	for d, i := dates[len(dates)-1].AddDate(0, 0, 1), 0; i < 7 && !rule.appliesOn(d.Weekday()); d, i = d.AddDate(0, 0, 1), i+1 {
		dates = append(dates, d)
	}

	return append(before, dates...), nil
}

// fillGaps adds the days between two announced dates when none of them is an applicable weekday
func fillGaps(rule Rule, dates []time.Time) []time.Time {
	filled := make([]time.Time, 0, len(dates))
	for i, d := range dates {
		filled = append(filled, d)
		if i == len(dates)-1 {
			break
		}
		var gap []time.Time
		for g := d.AddDate(0, 0, 1); g.Before(dates[i+1]); g = g.AddDate(0, 0, 1) {
			if rule.appliesOn(g.Weekday()) {
				gap = nil
				break
			}
			gap = append(gap, g)
		}
		filled = append(filled, gap...)
	}
	return filled
}
