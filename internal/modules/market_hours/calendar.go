package market_hours

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

// maxSearchDays bounds NextTradingDay and PreviousTradingDay
const maxSearchDays = 31

// MarketStatus represents the status of a market at an instant
type MarketStatus struct {
	Open      bool   `json:"open"`
	Exchange  string `json:"exchange"`
	Timezone  string `json:"timezone"`
	DayKind   string `json:"day_kind"`
	ClosesAt  string `json:"closes_at,omitempty"`  // Time when market closes (if open)
	OpensAt   string `json:"opens_at,omitempty"`   // Time when market opens (if closed)
	OpensDate string `json:"opens_date,omitempty"` // Date when market opens (if not today)
}

// Calendar answers classification questions for one market.
// Dates passed in are read as civil dates in their own location; instants
// passed to IsOpen and Status are converted to the market's zone first.
type Calendar struct {
	cfg   *MarketConfig
	cache *YearCache
}

// NewCalendar validates a private copy of cfg and builds its calendar on top of
// cache. Later changes to cfg do not reach the calendar.
func NewCalendar(cfg MarketConfig, cache *YearCache) (*Calendar, error) {
	cfg = cfg.clone()
	if err := cfg.Validate(cache.engine.source != nil); err != nil {
		return nil, err
	}
	return &Calendar{cfg: &cfg, cache: cache}, nil
}

// Config returns a copy of the market configuration
func (c *Calendar) Config() *MarketConfig {
	cfg := c.cfg.clone()
	return &cfg
}

// Code returns the market code
func (c *Calendar) Code() string {
	return c.cfg.Code
}

// Day returns the classification of date
func (c *Calendar) Day(ctx context.Context, date time.Time) (Day, error) {
	return c.cache.GetOrCompute(ctx, c.cfg, date)
}

func (c *Calendar) is(ctx context.Context, date time.Time, kind DayKind) (bool, error) {
	day, err := c.Day(ctx, date)
	if err != nil {
		return false, err
	}
	return day.Is(kind), nil
}

// IsTradingDay reports whether date is a full trading day
func (c *Calendar) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	return c.is(ctx, date, KindTrading)
}

// IsHoliday reports whether date is a named closure
func (c *Calendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	return c.is(ctx, date, KindHoliday)
}

// IsPartialDay reports whether date has an early close or late open
func (c *Calendar) IsPartialDay(ctx context.Context, date time.Time) (bool, error) {
	return c.is(ctx, date, KindPartial)
}

// IsNonTradingDay reports whether date is a default closed day
func (c *Calendar) IsNonTradingDay(ctx context.Context, date time.Time) (bool, error) {
	return c.is(ctx, date, KindNonTrading)
}

// IsWeekday reports whether date falls on one of the market's usual trading weekdays.
// It ignores holidays and never touches the cache.
func (c *Calendar) IsWeekday(date time.Time) bool {
	return c.cfg.IsWeekday(date.Weekday())
}

// IsWeekend is the negation of IsWeekday
func (c *Calendar) IsWeekend(date time.Time) bool {
	return !c.IsWeekday(date)
}

// All lazily yields every classified day in [start, end], ascending.
// Iteration stops at the first error, which is yielded with a zero Day.
func (c *Calendar) All(ctx context.Context, start, end time.Time) iter.Seq2[Day, error] {
	start, end = DateOf(start), DateOf(end)
	return func(yield func(Day, error) bool) {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			day, err := c.Day(ctx, d)
			if err != nil {
				yield(Day{}, err)
				return
			}
			if !yield(day, nil) {
				return
			}
		}
	}
}

func (c *Calendar) collect(ctx context.Context, start, end time.Time, keep func(Day) bool) ([]Day, error) {
	var days []Day
	for day, err := range c.All(ctx, start, end) {
		if err != nil {
			return nil, err
		}
		if keep(day) {
			days = append(days, day)
		}
	}
	return days, nil
}

func ofKind(kind DayKind) func(Day) bool {
	return func(d Day) bool { return d.Is(kind) }
}

// Days returns every day in [start, end]
func (c *Calendar) Days(ctx context.Context, start, end time.Time) ([]Day, error) {
	return c.collect(ctx, start, end, func(Day) bool { return true })
}

// HolidaysBetween returns the holidays in [start, end]
func (c *Calendar) HolidaysBetween(ctx context.Context, start, end time.Time) ([]Day, error) {
	return c.collect(ctx, start, end, ofKind(KindHoliday))
}

// TradingDaysBetween returns the full trading days in [start, end]; partial days are not included
func (c *Calendar) TradingDaysBetween(ctx context.Context, start, end time.Time) ([]Day, error) {
	return c.collect(ctx, start, end, ofKind(KindTrading))
}

// PartialDaysBetween returns the partial trading days in [start, end]
func (c *Calendar) PartialDaysBetween(ctx context.Context, start, end time.Time) ([]Day, error) {
	return c.collect(ctx, start, end, ofKind(KindPartial))
}

func yearBounds(year int) (time.Time, time.Time) {
	return Date(year, time.January, 1), Date(year, time.December, 31)
}

// HolidaysInYear returns the holidays of year
func (c *Calendar) HolidaysInYear(ctx context.Context, year int) ([]Day, error) {
	start, end := yearBounds(year)
	return c.HolidaysBetween(ctx, start, end)
}

// TradingDaysInYear returns the full trading days of year
func (c *Calendar) TradingDaysInYear(ctx context.Context, year int) ([]Day, error) {
	start, end := yearBounds(year)
	return c.TradingDaysBetween(ctx, start, end)
}

// PartialDaysInYear returns the partial trading days of year
func (c *Calendar) PartialDaysInYear(ctx context.Context, year int) ([]Day, error) {
	start, end := yearBounds(year)
	return c.PartialDaysBetween(ctx, start, end)
}

// Session returns the open and close instants of day in the market's zone.
// ok is false when the market does not trade that day.
func (c *Calendar) Session(day Day) (open, close time.Time, ok bool) {
	if !day.IsTrading() {
		return time.Time{}, time.Time{}, false
	}
	loc := c.cfg.Location()
	return day.Open.On(day.Date, loc), day.Close.On(day.Date, loc), true
}

// IsOpen reports whether the market is trading at instant t.
// The session is [open, close) and excludes any lunch break.
func (c *Calendar) IsOpen(ctx context.Context, t time.Time) (bool, error) {
	local := t.In(c.cfg.Location())
	day, err := c.Day(ctx, local)
	if err != nil {
		return false, err
	}
	return c.openAt(day, local), nil
}

func (c *Calendar) openAt(day Day, local time.Time) bool {
	open, close, ok := c.Session(day)
	if !ok || local.Before(open) || !local.Before(close) {
		return false
	}

	if lb := c.cfg.LunchBreak; lb != nil {
		loc := c.cfg.Location()
		start, end := lb.Start.On(day.Date, loc), lb.End.On(day.Date, loc)
		// only when the session actually spans the break
		if open.Before(start) && end.Before(close) && !local.Before(start) && local.Before(end) {
			return false
		}
	}
	return true
}

// NextTradingDay returns the first day after date on which the market trades, fully or partially
func (c *Calendar) NextTradingDay(ctx context.Context, date time.Time) (Day, error) {
	return c.search(ctx, date, 1)
}

// PreviousTradingDay returns the last day before date on which the market trades
func (c *Calendar) PreviousTradingDay(ctx context.Context, date time.Time) (Day, error) {
	return c.search(ctx, date, -1)
}

func (c *Calendar) search(ctx context.Context, date time.Time, step int) (Day, error) {
	d := DateOf(date)
	for i := 0; i < maxSearchDays; i++ {
		d = d.AddDate(0, 0, step)
		day, err := c.Day(ctx, d)
		if err != nil {
			return Day{}, err
		}
		if day.IsTrading() {
			return day, nil
		}
	}
	return Day{}, fmt.Errorf("%w: no trading day within %d days of %s", ErrNotFound, maxSearchDays, DateOf(date).Format(DateLayout))
}

// Status returns detailed status for the market at instant t
func (c *Calendar) Status(ctx context.Context, t time.Time) (*MarketStatus, error) {
	loc := c.cfg.Location()
	local := t.In(loc)

	today, err := c.Day(ctx, local)
	if err != nil {
		return nil, err
	}

	status := &MarketStatus{
		Open:     c.openAt(today, local),
		Exchange: c.cfg.Code,
		Timezone: loc.String(),
		DayKind:  string(today.Kind),
	}

	if status.Open {
		if lb := c.cfg.LunchBreak; lb != nil && local.Before(lb.Start.On(today.Date, loc)) && lb.Start.Before(today.Close) {
			status.ClosesAt = lb.Start.String()
		} else {
			status.ClosesAt = today.Close.String()
		}
		return status, nil
	}

	next, err := c.nextOpening(ctx, today, local)
	if errors.Is(err, ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.OpensAt = next.Format("15:04")
	if !DateOf(next).Equal(today.Date) {
		status.OpensDate = next.Format(DateLayout)
	}
	return status, nil
}

// nextOpening finds the next instant the market opens (or reopens after lunch)
func (c *Calendar) nextOpening(ctx context.Context, today Day, local time.Time) (time.Time, error) {
	loc := c.cfg.Location()
	if open, close, ok := c.Session(today); ok {
		if local.Before(open) {
			return open, nil
		}
		if lb := c.cfg.LunchBreak; lb != nil {
			end := lb.End.On(today.Date, loc)
			if local.Before(end) && end.Before(close) {
				return end, nil
			}
		}
	}

	next, err := c.NextTradingDay(ctx, today.Date)
	if err != nil {
		return time.Time{}, err
	}
	open, _, _ := c.Session(next)
	return open, nil
}

// Materialize recomputes and stores year, replacing any stored days
func (c *Calendar) Materialize(ctx context.Context, year int) error {
	return c.cache.Materialize(ctx, c.cfg, year)
}

// Clear drops every stored day of this market
func (c *Calendar) Clear(ctx context.Context) error {
	return c.cache.Clear(ctx, c.cfg.Code)
}

// Evict removes one stored day and returns it, or ErrNotFound
func (c *Calendar) Evict(ctx context.Context, date time.Time) (Day, error) {
	return c.cache.Evict(ctx, c.cfg.Code, date)
}

// Peek returns the stored day without computing it, or ErrNotFound
func (c *Calendar) Peek(ctx context.Context, date time.Time) (Day, error) {
	return c.cache.Peek(ctx, c.cfg.Code, date)
}
