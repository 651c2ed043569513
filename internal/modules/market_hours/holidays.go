package market_hours

import "time"

// CalendarType selects the Easter computus
type CalendarType string

const (
	// Gregorian is the Western church calendar
	Gregorian CalendarType = "gregorian"
	// Julian is the Orthodox church calendar
	Julian CalendarType = "julian"
)

// CalculateEaster calculates the date of Easter Sunday for a given year and calendar type.
// Julian dates are returned in the Gregorian calendar.
func CalculateEaster(year int, calendarType CalendarType) time.Time {
	if calendarType == Julian {
		return julianEaster(year)
	}
	return gregorianEaster(year)
}

// CalculateGoodFriday calculates Good Friday (Friday before Easter)
func CalculateGoodFriday(year int, calendarType CalendarType) time.Time {
	return CalculateEaster(year, calendarType).AddDate(0, 0, -2)
}

// gregorianEaster is the anonymous Gregorian computus (Meeus/Jones/Butcher)
func gregorianEaster(year int) time.Time {
	golden := year % 19
	century, yy := year/100, year%100
	f := (century + 8) / 25
	g := (century - f + 1) / 3
	epact := (19*golden + century - century/4 - g + 15) % 30
	l := (32 + 2*(century%4) + 2*(yy/4) - epact - yy%4) % 7
	m := (golden + 11*epact + 22*l) / 451
	n := epact + l - 7*m + 114

	return Date(year, time.Month(n/31), n%31+1)
}

// julianEaster is the Meeus Julian computus shifted by the calendar drift
func julianEaster(year int) time.Time {
	d := (19*(year%19) + 15) % 30
	e := (2*(year%4) + 4*(year%7) - d + 34) % 7
	n := d + e + 114

	// Julian and Gregorian drift apart by one day every century not divisible by 400
	drift := year/100 - year/400 - 2
	return Date(year, time.Month(n/31), n%31+1).AddDate(0, 0, drift)
}

// forwardDistance is the number of days from weekday from forward to the next weekday to (0 if equal)
func forwardDistance(from, to time.Weekday) int {
	switch {
	case from == to:
		return 0
	case to < from:
		return int(7-from) + int(to)
	default:
		return int(to - from)
	}
}

// backwardDistance is the number of days from weekday from back to the previous weekday to (0 if equal)
func backwardDistance(from, to time.Weekday) int {
	return forwardDistance(to, from)
}

// nthWeekday locates the nth weekday of a month. n in 1..5 counts from the start of the
// month, n in -1..-5 from the end. The result can spill into the next or previous month
// for a fifth occurrence that does not exist; callers validate n against that.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	if n > 0 {
		anchor := Date(year, month, 1+7*(n-1))
		return anchor.AddDate(0, 0, forwardDistance(anchor.Weekday(), weekday))
	}
	last := Date(year, month+1, 0)
	anchor := last.AddDate(0, 0, -7*(-n-1))
	return anchor.AddDate(0, 0, -backwardDistance(anchor.Weekday(), weekday))
}
