package market_hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var standardHours = TradingHours{Open: At(9, 30), Close: At(16, 0)}

func TestNewPartialDay_DefaultsUnaffectedSide(t *testing.T) {
	date := Date(2024, time.November, 29)

	early := EarlyCloseTemplate("Day after Thanksgiving", At(13, 0)).Materialize("XNYS", date, standardHours)
	assert.Equal(t, KindPartial, early.Kind)
	assert.Equal(t, At(9, 30), early.Open, "open falls back to the standard time")
	assert.Equal(t, At(13, 0), early.Close)
	assert.True(t, early.EarlyClose)
	assert.False(t, early.LateOpen, "an early close does not imply a late open")
	assert.Equal(t, "Day after Thanksgiving", early.EarlyCloseReason)
	assert.Empty(t, early.LateOpenReason)

	late := LateOpenTemplate("Systems upgrade", At(11, 0)).Materialize("XNYS", date, standardHours)
	assert.Equal(t, At(11, 0), late.Open)
	assert.Equal(t, At(16, 0), late.Close, "close falls back to the standard time")
	assert.True(t, late.LateOpen)
	assert.False(t, late.EarlyClose)
}

func TestNewPartialDay_BothSides(t *testing.T) {
	open, close := At(10, 0), At(14, 0)
	day := NewPartialDay("XLON", Date(2024, time.March, 1), "Short session", standardHours, PartialSession{
		Open:             &open,
		Close:            &close,
		EarlyClose:       true,
		LateOpen:         true,
		EarlyCloseReason: "outage",
		LateOpenReason:   "outage",
	})

	assert.Equal(t, open, day.Open)
	assert.Equal(t, close, day.Close)
	assert.True(t, day.EarlyClose)
	assert.True(t, day.LateOpen)
	assert.True(t, day.IsTrading())
}

func TestNewPartialDay_ReasonWithoutFlagIsDropped(t *testing.T) {
	close := At(13, 0)
	day := NewPartialDay("XNYS", Date(2024, time.March, 1), "x", standardHours, PartialSession{
		Close:          &close,
		EarlyClose:     true,
		LateOpenReason: "stale",
	})
	assert.Empty(t, day.LateOpenReason)
}

func TestDayConstructors(t *testing.T) {
	date := time.Date(2024, time.July, 4, 15, 45, 0, 0, time.FixedZone("EDT", -4*3600))

	tests := []struct {
		name    string
		day     Day
		kind    DayKind
		trading bool
	}{
		{"trading", NewTradingDay("XNYS", date, standardHours), KindTrading, true},
		{"holiday", NewHoliday("XNYS", date, "Independence Day"), KindHoliday, false},
		{"non trading", NewNonTradingDay("XNYS", date), KindNonTrading, false},
		{"partial", EarlyCloseTemplate("x", At(13, 0)).Materialize("XNYS", date, standardHours), KindPartial, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.day.Kind)
			assert.True(t, tt.day.Is(tt.kind))
			assert.Equal(t, tt.trading, tt.day.IsTrading())
			assert.Equal(t, Date(2024, time.July, 4), tt.day.Date, "date keeps the civil day and drops the clock")
			assert.Equal(t, DayKey{Market: "XNYS", Date: "2024-07-04"}, tt.day.Key())
		})
	}
}

func TestDay_SameKey(t *testing.T) {
	a := NewHoliday("XNYS", Date(2024, time.July, 4), "Independence Day")
	b := NewTradingDay("XNYS", Date(2024, time.July, 4), standardHours)
	c := NewHoliday("XNAS", Date(2024, time.July, 4), "Independence Day")
	d := NewHoliday("XNYS", Date(2024, time.July, 5), "Independence Day")

	assert.True(t, a.SameKey(b), "identity is market and date, not payload")
	assert.False(t, a.SameKey(c))
	assert.False(t, a.SameKey(d))
}

func TestDayTemplate_Materialize(t *testing.T) {
	date := Date(2024, time.January, 6)

	assert.Equal(t, NewTradingDay("X", date, standardHours), TradingTemplate().Materialize("X", date, standardHours))
	assert.Equal(t, NewNonTradingDay("X", date), NonTradingTemplate().Materialize("X", date, standardHours))
	assert.Equal(t, NewHoliday("X", date, "Epiphany"), HolidayTemplate("Epiphany").Materialize("X", date, standardHours))
}

func TestDayTemplate_Validate(t *testing.T) {
	tests := []struct {
		name  string
		tmpl  DayTemplate
		valid bool
	}{
		{"holiday", HolidayTemplate("x"), true},
		{"unnamed holiday", HolidayTemplate(""), false},
		{"early close", EarlyCloseTemplate("x", At(13, 0)), true},
		{"close after open only", EarlyCloseTemplate("x", At(9, 0)), false},
		{"partial without flags", DayTemplate{Kind: KindPartial, Name: "x"}, false},
		{"early close without time", DayTemplate{Kind: KindPartial, Session: PartialSession{EarlyClose: true}}, false},
		{"unknown kind", DayTemplate{Kind: "half"}, false},
		{"trading", TradingTemplate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.tmpl.validate(standardHours) == "")
		})
	}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "09:05", At(9, 5).String())
	assert.True(t, At(9, 30).Before(At(16, 0)))
	assert.False(t, At(16, 0).Before(At(16, 0)))
	assert.False(t, At(24, 0).Valid())

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	open := At(9, 30).On(Date(2024, time.July, 1), ny)
	assert.Equal(t, 13, open.UTC().Hour())
}

func TestDaysInYear(t *testing.T) {
	assert.Equal(t, 366, DaysInYear(2024))
	assert.Equal(t, 365, DaysInYear(2023))
	assert.Equal(t, 365, DaysInYear(2100))
}
