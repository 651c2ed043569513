package market_hours

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendar(t *testing.T, cfg MarketConfig, store Store, source DataSource) *Calendar {
	t.Helper()
	cal, err := NewCalendar(cfg, newTestCache(store, source))
	require.NoError(t, err)
	return cal
}

func builtinCalendar(t *testing.T, code string) *Calendar {
	t.Helper()
	source, err := BuiltinSource()
	require.NoError(t, err)
	for _, cfg := range DefaultMarkets() {
		if cfg.Code == code {
			return newTestCalendar(t, cfg, NewMemoryStore(), source)
		}
	}
	t.Fatalf("no built-in market %s", code)
	return nil
}

func dates(days []Day) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, d.Date)
	}
	return out
}

func TestCalendar_Predicates(t *testing.T) {
	cal := newTestCalendar(t, testConfig(), NewMemoryStore(), nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		date       time.Time
		trading    bool
		holiday    bool
		partial    bool
		nonTrading bool
	}{
		{"regular Tuesday", Date(2024, time.March, 5), true, false, false, false},
		{"MLK Day", Date(2024, time.January, 15), false, true, false, false},
		{"day after Thanksgiving", Date(2024, time.November, 29), false, false, true, false},
		{"Sunday", Date(2024, time.March, 3), false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.IsTradingDay(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.trading, got)

			got, err = cal.IsHoliday(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.holiday, got)

			got, err = cal.IsPartialDay(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.partial, got)

			got, err = cal.IsNonTradingDay(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.nonTrading, got)
		})
	}
}

func TestCalendar_DayUsesCivilDate(t *testing.T) {
	cal := newTestCalendar(t, testConfig(), NewMemoryStore(), nil)

	// late evening on MLK Day in Los Angeles is already Tuesday in UTC
	la := time.FixedZone("PST", -8*3600)
	day, err := cal.Day(context.Background(), time.Date(2024, time.January, 15, 22, 0, 0, 0, la))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 15), day.Date)
	assert.Equal(t, KindHoliday, day.Kind)
}

func TestCalendar_HolidaysBetween(t *testing.T) {
	cal := newTestCalendar(t, testConfig(), NewMemoryStore(), nil)

	holidays, err := cal.HolidaysBetween(context.Background(), Date(2024, time.January, 1), Date(2024, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		Date(2024, time.January, 1),
		Date(2024, time.January, 15),
		Date(2024, time.July, 4),
	}, dates(holidays), "one holiday per rule, ascending")

	inYear, err := cal.HolidaysInYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, holidays, inYear)
}

func TestCalendar_RangeQueries(t *testing.T) {
	cal := newTestCalendar(t, testConfig(), NewMemoryStore(), nil)
	ctx := context.Background()

	// Mon 2024-11-25 .. Sun 2024-12-01
	start, end := Date(2024, time.November, 25), Date(2024, time.December, 1)

	all, err := cal.Days(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	trading, err := cal.TradingDaysBetween(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		Date(2024, time.November, 25),
		Date(2024, time.November, 26),
		Date(2024, time.November, 27),
		Date(2024, time.November, 28), // Thanksgiving is not a rule in the test config
	}, dates(trading))

	partial, err := cal.PartialDaysBetween(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{Date(2024, time.November, 29)}, dates(partial))

	none, err := cal.Days(ctx, end, start)
	require.NoError(t, err)
	assert.Empty(t, none, "reversed range is empty")
}

func TestCalendar_YearVariants(t *testing.T) {
	cal := newTestCalendar(t, testConfig(), NewMemoryStore(), nil)
	ctx := context.Background()

	trading, err := cal.TradingDaysInYear(ctx, 2024)
	require.NoError(t, err)
	partial, err := cal.PartialDaysInYear(ctx, 2024)
	require.NoError(t, err)
	holidays, err := cal.HolidaysInYear(ctx, 2024)
	require.NoError(t, err)

	// 2024 has 262 weekdays
	assert.Len(t, partial, 1)
	assert.Len(t, holidays, 3)
	assert.Len(t, trading, 262-1-3)
}

func TestCalendar_AllStopsEarly(t *testing.T) {
	store := NewMemoryStore()
	cal := newTestCalendar(t, testConfig(), store, nil)

	var seen []Day
	for day, err := range cal.All(context.Background(), Date(2024, time.December, 30), Date(2030, time.December, 31)) {
		require.NoError(t, err)
		seen = append(seen, day)
		if len(seen) == 2 {
			break
		}
	}

	assert.Len(t, seen, 2)
	assert.Equal(t, 366, store.Len(), "only the years actually visited are materialized")
}

func TestCalendar_AllYieldsError(t *testing.T) {
	cfg := testConfig()
	cfg.Rules = append(cfg.Rules, AnnouncedSpan("festival", HolidayTemplate("Festival")))
	cal := newTestCalendar(t, cfg, NewMemoryStore(), NewStaticSource())

	var errs []error
	for _, err := range cal.All(context.Background(), Date(2024, time.January, 1), Date(2024, time.January, 31)) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1, "iteration stops at the first error")
	assert.ErrorIs(t, errs[0], ErrDataUnavailable)

	_, err := cal.HolidaysInYear(context.Background(), 2024)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestCalendar_WeekdayPattern(t *testing.T) {
	cfg := testConfig()
	cfg.Weekdays = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	cal := newTestCalendar(t, cfg, NewMemoryStore(), nil)

	assert.True(t, cal.IsWeekday(Date(2024, time.March, 3))) // Sunday
	assert.True(t, cal.IsWeekend(Date(2024, time.March, 8))) // Friday
	assert.True(t, cal.IsWeekday(Date(2024, time.January, 15)), "pattern only, holidays are ignored")

	day, err := cal.Day(context.Background(), Date(2024, time.March, 3))
	require.NoError(t, err)
	assert.Equal(t, KindTrading, day.Kind)
}

func TestCalendar_SessionAndIsOpen(t *testing.T) {
	cal := builtinCalendar(t, "XSHG")
	ctx := context.Background()
	shanghai := cal.Config().Location()

	at := func(hour, minute int) time.Time {
		// Monday 2024-03-04, expressed in UTC
		return time.Date(2024, time.March, 4, hour, minute, 0, 0, shanghai).UTC()
	}

	tests := []struct {
		name string
		t    time.Time
		open bool
	}{
		{"before open", at(9, 29), false},
		{"at open", at(9, 30), true},
		{"morning", at(10, 15), true},
		{"lunch starts", at(11, 30), false},
		{"lunch", at(12, 0), false},
		{"afternoon", at(13, 0), true},
		{"at close", at(15, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, err := cal.IsOpen(ctx, tt.t)
			require.NoError(t, err)
			assert.Equal(t, tt.open, open)
		})
	}

	day, err := cal.Day(ctx, Date(2024, time.March, 4))
	require.NoError(t, err)
	open, close, ok := cal.Session(day)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 4, 9, 30, 0, 0, shanghai), open)
	assert.Equal(t, time.Date(2024, time.March, 4, 15, 0, 0, 0, shanghai), close)

	holiday, err := cal.Day(ctx, Date(2024, time.October, 1))
	require.NoError(t, err)
	_, _, ok = cal.Session(holiday)
	assert.False(t, ok)
}

func TestCalendar_Status(t *testing.T) {
	nyse := builtinCalendar(t, "XNYS")
	ny := nyse.Config().Location()
	ctx := context.Background()

	status, err := nyse.Status(ctx, time.Date(2024, time.November, 29, 12, 0, 0, 0, ny))
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, "13:00", status.ClosesAt, "early close")
	assert.Equal(t, "partial", status.DayKind)

	status, err = nyse.Status(ctx, time.Date(2024, time.November, 29, 14, 0, 0, 0, ny))
	require.NoError(t, err)
	assert.False(t, status.Open)
	assert.Equal(t, "09:30", status.OpensAt)
	assert.Equal(t, "2024-12-02", status.OpensDate)
	assert.Equal(t, "America/New_York", status.Timezone)

	status, err = nyse.Status(ctx, time.Date(2024, time.December, 2, 8, 0, 0, 0, ny))
	require.NoError(t, err)
	assert.False(t, status.Open)
	assert.Equal(t, "09:30", status.OpensAt)
	assert.Empty(t, status.OpensDate, "opens later today")

	sse := builtinCalendar(t, "XSHG")
	shanghai := sse.Config().Location()
	status, err = sse.Status(ctx, time.Date(2024, time.March, 4, 12, 0, 0, 0, shanghai))
	require.NoError(t, err)
	assert.False(t, status.Open)
	assert.Equal(t, "13:00", status.OpensAt)
	assert.Empty(t, status.OpensDate)

	status, err = sse.Status(ctx, time.Date(2024, time.March, 4, 10, 0, 0, 0, shanghai))
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, "11:30", status.ClosesAt, "closes for lunch")
}

func TestCalendar_NextAndPreviousTradingDay(t *testing.T) {
	nyse := builtinCalendar(t, "XNYS")
	ctx := context.Background()

	next, err := nyse.NextTradingDay(ctx, Date(2024, time.December, 24))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.December, 26), next.Date, "skips Christmas")

	prev, err := nyse.PreviousTradingDay(ctx, Date(2024, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, Date(2023, time.December, 29), prev.Date, "crosses the year and the weekend")

	next, err = nyse.NextTradingDay(ctx, Date(2024, time.November, 28))
	require.NoError(t, err)
	assert.Equal(t, KindPartial, next.Kind, "partial days count as trading")

	closed := testConfig()
	closed.Weekdays = []time.Weekday{time.Sunday}
	closed.Rules = []Rule{NthWeekday("sunday_closure", time.March, time.Sunday, 1, HolidayTemplate("x"))}
	cal := newTestCalendar(t, closed, NewMemoryStore(), nil)
	// only Sundays trade and the first Sunday of March is closed
	next, err = cal.NextTradingDay(ctx, Date(2024, time.February, 26))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.March, 10), next.Date)
}

func TestCalendar_NextTradingDayGivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = map[string]DayTemplate{}
	for d := Date(2024, time.August, 1); d.Month() == time.August; d = d.AddDate(0, 0, 1) {
		cfg.Overrides[d.Format(DateLayout)] = HolidayTemplate("Summer closure")
	}
	cfg.Overrides["2024-09-01"] = HolidayTemplate("Summer closure")
	cfg.Overrides["2024-09-02"] = HolidayTemplate("Summer closure")

	cal := newTestCalendar(t, cfg, NewMemoryStore(), nil)
	_, err := cal.NextTradingDay(context.Background(), Date(2024, time.July, 31))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCalendar_ClearAndEvict(t *testing.T) {
	store := NewMemoryStore()
	cal := newTestCalendar(t, testConfig(), store, nil)
	ctx := context.Background()

	_, err := cal.Day(ctx, Date(2024, time.July, 4))
	require.NoError(t, err)

	day, err := cal.Evict(ctx, Date(2024, time.July, 4))
	require.NoError(t, err)
	assert.Equal(t, KindHoliday, day.Kind)

	_, err = cal.Peek(ctx, Date(2024, time.July, 4))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cal.Clear(ctx))
	assert.Equal(t, 0, store.Len())

	require.NoError(t, cal.Materialize(ctx, 2025))
	assert.Equal(t, 365, store.Len())
}

func TestNewCalendar_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MarketConfig)
		source DataSource
		field  string
	}{
		{"missing code", func(c *MarketConfig) { c.Code = "" }, nil, "Code"},
		{"lowercase code", func(c *MarketConfig) { c.Code = "xnys" }, nil, "Code"},
		{"missing country", func(c *MarketConfig) { c.Country = "" }, nil, "Country"},
		{"bad timezone", func(c *MarketConfig) { c.Timezone = "Mars/Olympus" }, nil, "Timezone"},
		{"no weekdays", func(c *MarketConfig) { c.Weekdays = nil }, nil, "Weekdays"},
		{"bad weekday", func(c *MarketConfig) { c.Weekdays = []time.Weekday{9} }, nil, "Weekdays"},
		{"open after close", func(c *MarketConfig) { c.Hours = TradingHours{Open: At(16, 0), Close: At(9, 30)} }, nil, "Hours"},
		{"lunch outside hours", func(c *MarketConfig) { c.LunchBreak = &LunchBreak{Start: At(8, 0), End: At(9, 0)} }, nil, "LunchBreak"},
		{"duplicate rule id", func(c *MarketConfig) { c.Rules = append(c.Rules, c.Rules[0]) }, nil, "Rules[4]"},
		{"unknown rule kind", func(c *MarketConfig) { c.Rules[0].Kind = "lunar" }, nil, "Kind"},
		{"February 30", func(c *MarketConfig) {
			c.Rules = append(c.Rules, FixedDate("feb30", time.February, 30, HolidayTemplate("x")))
		}, nil, "Rules[4]"},
		{"nth weekday without n", func(c *MarketConfig) {
			c.Rules = append(c.Rules, NthWeekday("zero", time.May, time.Monday, 0, HolidayTemplate("x")))
		}, nil, "Rules[4]"},
		{"empty validity window", func(c *MarketConfig) {
			c.Rules[0] = c.Rules[0].Between(Date(2025, time.January, 1), Date(2024, time.January, 1))
		}, nil, "Rules[0]"},
		{"unnamed holiday", func(c *MarketConfig) { c.Rules[0].Template = HolidayTemplate("") }, nil, "Rules[0].Template"},
		{"bad override key", func(c *MarketConfig) {
			c.Overrides = map[string]DayTemplate{"2024-7-4": HolidayTemplate("x")}
		}, nil, "Overrides[2024-7-4]"},
		{"announced span without source", func(c *MarketConfig) {
			c.Rules = append(c.Rules, AnnouncedSpan("festival", HolidayTemplate("x")))
		}, nil, "Rules[4]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewCalendar(cfg, newTestCache(NewMemoryStore(), tt.source))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Field, tt.field)
			assert.Equal(t, cfg.Code, vErr.Market)
		})
	}
}

func TestNewCalendar_CopiesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Overrides = map[string]DayTemplate{
		"2024-03-15": EarlyCloseTemplate("Quarter end", At(13, 0)),
	}
	cal := newTestCalendar(t, cfg, NewMemoryStore(), nil)
	ctx := context.Background()

	// changes made by the caller after the calendar is built
	cfg.Weekdays[0] = time.Saturday
	cfg.Rules[2].Template = HolidayTemplate("Renamed")
	cfg.Rules[2].Shift[time.Saturday] = 0
	*cfg.Overrides["2024-03-15"].Session.Close = At(10, 0)
	cfg.Overrides["2024-03-18"] = HolidayTemplate("Added later")

	tests := []struct {
		date  time.Time
		kind  DayKind
		name  string
		close Clock
	}{
		{Date(2024, time.March, 4), KindTrading, "", standardHours.Close}, // Monday
		{Date(2024, time.March, 9), KindNonTrading, "", Clock{}},          // Saturday
		{Date(2024, time.March, 15), KindPartial, "Quarter end", At(13, 0)},
		{Date(2024, time.March, 18), KindTrading, "", standardHours.Close},
		// Saturday Jul 4 2026 is still observed on Friday
		{Date(2026, time.July, 3), KindHoliday, "Independence Day", Clock{}},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format(DateLayout), func(t *testing.T) {
			day, err := cal.Day(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, day.Kind)
			assert.Equal(t, tt.name, day.Name)
			if tt.kind != KindHoliday && tt.kind != KindNonTrading {
				assert.Equal(t, tt.close, day.Close)
			}
		})
	}

	got := cal.Config()
	got.Rules[0].Template = HolidayTemplate("Changed through Config")
	assert.Equal(t, "New Year's Day", cal.Config().Rules[0].Template.Name)
}

func TestNewCalendar_AnnouncedSpanWithSource(t *testing.T) {
	cfg := testConfig()
	cfg.Rules = append(cfg.Rules, AnnouncedSpan("festival", HolidayTemplate("x")))
	_, err := NewCalendar(cfg, newTestCache(NewMemoryStore(), NewStaticSource()))
	assert.NoError(t, err)
}
