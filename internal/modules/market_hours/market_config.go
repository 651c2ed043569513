package market_hours

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LunchBreak represents a midday trading break
type LunchBreak struct {
	Start Clock
	End   Clock
}

// MarketConfig is the static description of one market. It is validated once
// when a Calendar is built and never changes afterwards.
type MarketConfig struct {
	Code     string `validate:"required,alphanum,uppercase,min=2,max=8"`
	Name     string `validate:"required"`
	Country  string `validate:"required"`
	Timezone string `validate:"required"`
	// Aliases are extra names the registry resolves to Code
	Aliases []string `validate:"dive,required"`

	// Weekdays the market normally trades on
	Weekdays   []time.Weekday `validate:"required,min=1,max=7,dive,min=0,max=6"`
	Hours      TradingHours
	LunchBreak *LunchBreak

	// Rules are applied in order; when two rules fire on the same date the later one wins
	Rules []Rule `validate:"dive"`
	// Overrides maps YYYY-MM-DD dates to one-off classifications that beat every rule
	Overrides map[string]DayTemplate

	location *time.Location
}

// Location returns the market's time zone, loaded by Validate
func (c *MarketConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// clone returns a copy of c that shares no slice, map or pointer with it
func (c MarketConfig) clone() MarketConfig {
	c.Aliases = slices.Clone(c.Aliases)
	c.Weekdays = slices.Clone(c.Weekdays)
	if c.LunchBreak != nil {
		lb := *c.LunchBreak
		c.LunchBreak = &lb
	}
	if c.Rules != nil {
		rules := make([]Rule, len(c.Rules))
		for i, r := range c.Rules {
			rules[i] = r.clone()
		}
		c.Rules = rules
	}
	if c.Overrides != nil {
		overrides := make(map[string]DayTemplate, len(c.Overrides))
		for date, tmpl := range c.Overrides {
			overrides[date] = tmpl.clone()
		}
		c.Overrides = overrides
	}
	return c
}

// IsWeekday reports whether the market normally trades on wd
func (c *MarketConfig) IsWeekday(wd time.Weekday) bool {
	return slices.Contains(c.Weekdays, wd)
}

// Validate checks the configuration. withSource says whether a DataSource is
// available for announced-span rules. Failures are *ValidationError.
func (c *MarketConfig) Validate(withSource bool) error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return c.invalid(fe.Namespace(), fmt.Sprintf("failed %q validation", fe.Tag()))
		}
		return c.invalid("", err.Error())
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return c.invalid("Timezone", err.Error())
	}

	if !c.Hours.Open.Valid() || !c.Hours.Close.Valid() {
		return c.invalid("Hours", "not a time of day")
	}
	if !c.Hours.Open.Before(c.Hours.Close) {
		return c.invalid("Hours", "market must open before it closes")
	}

	if lb := c.LunchBreak; lb != nil {
		if !lb.Start.Before(lb.End) || !c.Hours.Open.Before(lb.Start) || !lb.End.Before(c.Hours.Close) {
			return c.invalid("LunchBreak", "break must lie inside trading hours")
		}
	}

	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		field := fmt.Sprintf("Rules[%d]", i)
		if seen[r.ID] {
			return c.invalid(field, fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = true

		if reason := r.validate(withSource); reason != "" {
			return c.invalid(field, reason)
		}
		if reason := r.Template.validate(c.Hours); reason != "" {
			return c.invalid(field+".Template", reason)
		}
	}

	for key, tmpl := range c.Overrides {
		field := fmt.Sprintf("Overrides[%s]", key)
		if _, err := ParseDate(key); err != nil {
			return c.invalid(field, "key is not a YYYY-MM-DD date")
		}
		if reason := tmpl.validate(c.Hours); reason != "" {
			return c.invalid(field, reason)
		}
	}

	c.location = loc
	return nil
}

func (c *MarketConfig) invalid(field, reason string) error {
	return &ValidationError{Market: c.Code, Field: field, Reason: reason}
}

func (r Rule) validate(withSource bool) string {
	for wd := range r.Shift {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Sprintf("shift for invalid weekday %d", wd)
		}
	}
	if !r.ValidFrom.IsZero() && !r.ValidUntil.IsZero() && !r.ValidFrom.Before(r.ValidUntil) {
		return "validity window is empty"
	}

	switch r.Kind {
	case RuleFixedDate:
		if r.Month == 0 || r.Day == 0 {
			return "fixed date needs a month and a day"
		}
		if r.Day > Date(2024, r.Month+1, 0).Day() {
			return fmt.Sprintf("%s has no day %d", r.Month, r.Day)
		}
	case RuleNthWeekday:
		if r.Month == 0 || r.N == 0 {
			return "nth weekday needs a month and a non-zero n"
		}
	case RuleEasterOffset:
		if r.Calendar != Gregorian && r.Calendar != Julian {
			return fmt.Sprintf("unknown easter calendar %q", r.Calendar)
		}
	case RuleAnnouncedSpan:
		if !withSource {
			return "announced span needs a data source"
		}
	}
	return ""
}

// classify resolves one date as override > rule > weekday pattern
func (c *MarketConfig) classify(date time.Time, ruled map[string]Occurrence) Day {
	key := date.Format(DateLayout)
	if tmpl, ok := c.Overrides[key]; ok {
		return tmpl.Materialize(c.Code, date, c.Hours)
	}
	if occ, ok := ruled[key]; ok {
		return occ.Template.Materialize(c.Code, date, c.Hours)
	}
	if c.IsWeekday(date.Weekday()) {
		return NewTradingDay(c.Code, date, c.Hours)
	}
	return NewNonTradingDay(c.Code, date)
}
