package market_hours

import (
	"slices"
	"time"
	_ "time/tzdata" // built-in markets must load their zones on hosts without zoneinfo
)

var (
	mondayToThursday = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday}
	ukSubstituteDay  = map[time.Weekday]int{time.Saturday: 2, time.Sunday: 2}
)

// DefaultMarkets returns the built-in market configurations.
// Each call returns fresh values that the caller may modify.
func DefaultMarkets() []MarketConfig {
	return []MarketConfig{
		usMarket("XNYS", "New York Stock Exchange", "NYSE", "New York"),
		usMarket("XNAS", "NASDAQ", "NasdaqGS", "NasdaqCM", "NASDAQ"),
		londonStockExchange(),
		xetra(),
		shanghaiStockExchange(),
	}
}

func usMarket(code, name string, aliases ...string) MarketConfig {
	return MarketConfig{
		Code:     code,
		Name:     name,
		Country:  "US",
		Timezone: "America/New_York",
		Aliases:  aliases,
		Weekdays: slices.Clone(mondayToFriday),
		Hours:    TradingHours{Open: At(9, 30), Close: At(16, 0)},
		Rules: []Rule{
			// Early closes come first so a holiday on the same date wins
			FixedDate("independence_day_eve", time.July, 3, EarlyCloseTemplate("Independence Day Eve", At(13, 0))).
				Observed(mondayToThursday, nil).OnlyWhenApplicable(),
			NthWeekday("day_after_thanksgiving", time.November, time.Thursday, 4, EarlyCloseTemplate("Day after Thanksgiving", At(13, 0))).
				Plus(1),
			FixedDate("christmas_eve", time.December, 24, EarlyCloseTemplate("Christmas Eve", At(13, 0))).
				Observed(mondayToThursday, nil).OnlyWhenApplicable(),

			// Jan 1 on a Saturday is not observed on the Friday before
			FixedDate("new_years_day", time.January, 1, HolidayTemplate("New Year's Day")).
				ShiftedBy(ObserveSundayOnly),
			NthWeekday("martin_luther_king_jr_day", time.January, time.Monday, 3, HolidayTemplate("Martin Luther King, Jr. Day")),
			NthWeekday("washingtons_birthday", time.February, time.Monday, 3, HolidayTemplate("Washington's Birthday")),
			EasterOffset("good_friday", -2, Gregorian, HolidayTemplate("Good Friday")),
			NthWeekday("memorial_day", time.May, time.Monday, -1, HolidayTemplate("Memorial Day")),
			FixedDate("juneteenth", time.June, 19, HolidayTemplate("Juneteenth National Independence Day")).
				ShiftedBy(ObserveNearestWeekday).Since(Date(2022, time.January, 1)),
			FixedDate("independence_day", time.July, 4, HolidayTemplate("Independence Day")).
				ShiftedBy(ObserveNearestWeekday),
			NthWeekday("labor_day", time.September, time.Monday, 1, HolidayTemplate("Labor Day")),
			NthWeekday("thanksgiving_day", time.November, time.Thursday, 4, HolidayTemplate("Thanksgiving Day")),
			FixedDate("christmas_day", time.December, 25, HolidayTemplate("Christmas Day")).
				ShiftedBy(ObserveNearestWeekday),
		},
		Overrides: map[string]DayTemplate{
			"2018-12-05": HolidayTemplate("National Day of Mourning for George H.W. Bush"),
			"2025-01-09": HolidayTemplate("National Day of Mourning for Jimmy Carter"),
		},
	}
}

func londonStockExchange() MarketConfig {
	return MarketConfig{
		Code:     "XLON",
		Name:     "London Stock Exchange",
		Country:  "GB",
		Timezone: "Europe/London",
		Aliases:  []string{"LSE", "London"},
		Weekdays: slices.Clone(mondayToFriday),
		Hours:    TradingHours{Open: At(8, 0), Close: At(16, 30)},
		Rules: []Rule{
			FixedDate("christmas_eve", time.December, 24, EarlyCloseTemplate("Christmas Eve", At(12, 30))).
				OnlyWhenApplicable(),
			FixedDate("new_years_eve", time.December, 31, EarlyCloseTemplate("New Year's Eve", At(12, 30))).
				OnlyWhenApplicable(),

			FixedDate("new_years_day", time.January, 1, HolidayTemplate("New Year's Day")).
				ShiftedBy(ObserveFollowingMonday),
			EasterOffset("good_friday", -2, Gregorian, HolidayTemplate("Good Friday")),
			EasterOffset("easter_monday", 1, Gregorian, HolidayTemplate("Easter Monday")),
			NthWeekday("early_may_bank_holiday", time.May, time.Monday, 1, HolidayTemplate("Early May Bank Holiday")),
			NthWeekday("spring_bank_holiday", time.May, time.Monday, -1, HolidayTemplate("Spring Bank Holiday")),
			NthWeekday("summer_bank_holiday", time.August, time.Monday, -1, HolidayTemplate("Summer Bank Holiday")),
			FixedDate("christmas_day", time.December, 25, HolidayTemplate("Christmas Day")).
				ShiftedBy(ukSubstituteDay),
			FixedDate("boxing_day", time.December, 26, HolidayTemplate("Boxing Day")).
				ShiftedBy(ukSubstituteDay),
		},
		// Bank holidays moved or added by proclamation
		Overrides: map[string]DayTemplate{
			"2020-05-04": TradingTemplate(),
			"2020-05-08": HolidayTemplate("Early May Bank Holiday (VE Day)"),
			"2022-05-30": TradingTemplate(),
			"2022-06-02": HolidayTemplate("Spring Bank Holiday"),
			"2022-06-03": HolidayTemplate("Platinum Jubilee"),
			"2022-09-19": HolidayTemplate("State Funeral of Queen Elizabeth II"),
			"2023-05-08": HolidayTemplate("Coronation of King Charles III"),
		},
	}
}

func xetra() MarketConfig {
	// Xetra holidays falling on a weekend are not moved
	closed := func(id string, month time.Month, day int, name string) Rule {
		return FixedDate(id, month, day, HolidayTemplate(name)).OnlyWhenApplicable()
	}

	return MarketConfig{
		Code:     "XETR",
		Name:     "Xetra",
		Country:  "DE",
		Timezone: "Europe/Berlin",
		Aliases:  []string{"XETRA", "Frankfurt"},
		Weekdays: slices.Clone(mondayToFriday),
		Hours:    TradingHours{Open: At(9, 0), Close: At(17, 30)},
		Rules: []Rule{
			closed("new_years_day", time.January, 1, "Neujahr"),
			EasterOffset("good_friday", -2, Gregorian, HolidayTemplate("Karfreitag")),
			EasterOffset("easter_monday", 1, Gregorian, HolidayTemplate("Ostermontag")),
			closed("labour_day", time.May, 1, "Tag der Arbeit"),
			closed("christmas_eve", time.December, 24, "Heiligabend"),
			closed("christmas_day", time.December, 25, "1. Weihnachtstag"),
			closed("boxing_day", time.December, 26, "2. Weihnachtstag"),
			closed("new_years_eve", time.December, 31, "Silvester"),
		},
	}
}

func shanghaiStockExchange() MarketConfig {
	return MarketConfig{
		Code:       "XSHG",
		Name:       "Shanghai Stock Exchange",
		Country:    "CN",
		Timezone:   "Asia/Shanghai",
		Aliases:    []string{"SSE", "Shanghai"},
		Weekdays:   slices.Clone(mondayToFriday),
		Hours:      TradingHours{Open: At(9, 30), Close: At(15, 0)},
		LunchBreak: &LunchBreak{Start: At(11, 30), End: At(13, 0)},
		Rules: []Rule{
			FixedDate("xshg_new_years_day", time.January, 1, HolidayTemplate("New Year's Day")).
				ShiftedBy(ObserveFollowingMonday),
			// The State Council announces the remaining closures each December
			AnnouncedSpan("xshg_spring_festival", HolidayTemplate("Spring Festival")),
			AnnouncedSpan("xshg_qing_ming", HolidayTemplate("Qing Ming Festival")),
			AnnouncedSpan("xshg_labour_day", HolidayTemplate("Labour Day")),
			AnnouncedSpan("xshg_dragon_boat", HolidayTemplate("Dragon Boat Festival")),
			AnnouncedSpan("xshg_mid_autumn", HolidayTemplate("Mid-Autumn Festival")),
			AnnouncedSpan("xshg_national_day", HolidayTemplate("National Day")),
		},
		Overrides: map[string]DayTemplate{
			"2026-01-02": HolidayTemplate("New Year's Day"),
		},
	}
}
