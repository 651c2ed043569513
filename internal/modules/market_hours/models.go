package market_hours

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates
const DateLayout = "2006-01-02"

// DayKind discriminates the classification of a calendar day
type DayKind string

const (
	// KindTrading is a full session at standard hours
	KindTrading DayKind = "trading"
	// KindHoliday is a named full closure
	KindHoliday DayKind = "holiday"
	// KindPartial is a session with an early close, a late open, or both
	KindPartial DayKind = "partial"
	// KindNonTrading is a default closed day such as a weekend
	KindNonTrading DayKind = "non_trading"
)

// Valid reports whether k is one of the four known kinds
func (k DayKind) Valid() bool {
	switch k {
	case KindTrading, KindHoliday, KindPartial, KindNonTrading:
		return true
	}
	return false
}

// Clock is a time of day. The zone comes from the market it belongs to.
type Clock struct {
	Hour   int `json:"hour" msgpack:"h"`
	Minute int `json:"minute" msgpack:"m"`
}

// At builds a Clock
func At(hour, minute int) Clock {
	return Clock{Hour: hour, Minute: minute}
}

// Valid reports whether the clock is a real time of day
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Before reports whether c is strictly earlier than other
func (c Clock) Before(other Clock) bool {
	return c.minutes() < other.minutes()
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant at this clock on the given calendar date in loc
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TradingHours represents regular trading hours for an exchange
type TradingHours struct {
	Open  Clock
	Close Clock
}

// PartialSession describes how an abnormal session differs from the standard one.
// EarlyClose and LateOpen are independent; a nil Open or Close keeps the standard side.
type PartialSession struct {
	Open             *Clock
	Close            *Clock
	EarlyClose       bool
	LateOpen         bool
	EarlyCloseReason string
	LateOpenReason   string
}

// Day is one classified calendar day of one market.
//
// The payload fields that matter depend on Kind:
//   - KindTrading: Open, Close
//   - KindHoliday: Name
//   - KindPartial: Open, Close, EarlyClose, LateOpen and their reasons, Name
//   - KindNonTrading: nothing
//
// Use the New* constructors; they keep the payload consistent with the kind.
type Day struct {
	Market           string
	Date             time.Time
	Kind             DayKind
	Name             string
	Open             Clock
	Close            Clock
	EarlyClose       bool
	LateOpen         bool
	EarlyCloseReason string
	LateOpenReason   string
}

// DayKey identifies a Day. Two days with the same key are the same day.
type DayKey struct {
	Market string
	Date   string
}

// NewTradingDay creates a full trading day at the given hours
func NewTradingDay(market string, date time.Time, hours TradingHours) Day {
	return Day{
		Market: market,
		Date:   DateOf(date),
		Kind:   KindTrading,
		Open:   hours.Open,
		Close:  hours.Close,
	}
}

// NewHoliday creates a named full closure
func NewHoliday(market string, date time.Time, name string) Day {
	return Day{
		Market: market,
		Date:   DateOf(date),
		Kind:   KindHoliday,
		Name:   name,
	}
}

// NewNonTradingDay creates a default closed day
func NewNonTradingDay(market string, date time.Time) Day {
	return Day{
		Market: market,
		Date:   DateOf(date),
		Kind:   KindNonTrading,
	}
}

// NewPartialDay creates an abnormal session. Whichever side the session does not
// override falls back to the standard hours, so Open and Close are always set.
func NewPartialDay(market string, date time.Time, name string, standard TradingHours, s PartialSession) Day {
	day := Day{
		Market:     market,
		Date:       DateOf(date),
		Kind:       KindPartial,
		Name:       name,
		Open:       standard.Open,
		Close:      standard.Close,
		EarlyClose: s.EarlyClose,
		LateOpen:   s.LateOpen,
	}
	if s.Open != nil {
		day.Open = *s.Open
	}
	if s.Close != nil {
		day.Close = *s.Close
	}
	if s.EarlyClose {
		day.EarlyCloseReason = s.EarlyCloseReason
	}
	if s.LateOpen {
		day.LateOpenReason = s.LateOpenReason
	}
	return day
}

// Key returns the identity of the day
func (d Day) Key() DayKey {
	return DayKey{Market: d.Market, Date: d.Date.Format(DateLayout)}
}

// SameKey reports whether d and other classify the same market date
func (d Day) SameKey(other Day) bool {
	return d.Key() == other.Key()
}

// Is reports whether the day has the given kind
func (d Day) Is(kind DayKind) bool {
	return d.Kind == kind
}

// IsTrading reports whether the market trades at all on this day, fully or partially
func (d Day) IsTrading() bool {
	return d.Kind == KindTrading || d.Kind == KindPartial
}

// String renders the day for logs
func (d Day) String() string {
	switch d.Kind {
	case KindTrading:
		return fmt.Sprintf("%s %s trading %s-%s", d.Market, d.Date.Format(DateLayout), d.Open, d.Close)
	case KindHoliday:
		return fmt.Sprintf("%s %s holiday %q", d.Market, d.Date.Format(DateLayout), d.Name)
	case KindPartial:
		return fmt.Sprintf("%s %s partial %s-%s", d.Market, d.Date.Format(DateLayout), d.Open, d.Close)
	default:
		return fmt.Sprintf("%s %s %s", d.Market, d.Date.Format(DateLayout), d.Kind)
	}
}

// DayTemplate is a classification without a market or date attached.
// Rules and overrides produce templates; materialization turns them into Days.
type DayTemplate struct {
	Kind    DayKind
	Name    string
	Session PartialSession
}

func (t DayTemplate) clone() DayTemplate {
	if t.Session.Open != nil {
		open := *t.Session.Open
		t.Session.Open = &open
	}
	if t.Session.Close != nil {
		closeAt := *t.Session.Close
		t.Session.Close = &closeAt
	}
	return t
}

// HolidayTemplate is a full closure named name
func HolidayTemplate(name string) DayTemplate {
	return DayTemplate{Kind: KindHoliday, Name: name}
}

// EarlyCloseTemplate is a session that closes at close
func EarlyCloseTemplate(name string, close Clock) DayTemplate {
	return DayTemplate{
		Kind: KindPartial,
		Name: name,
		Session: PartialSession{
			Close:            &close,
			EarlyClose:       true,
			EarlyCloseReason: name,
		},
	}
}

// LateOpenTemplate is a session that opens at open
func LateOpenTemplate(name string, open Clock) DayTemplate {
	return DayTemplate{
		Kind: KindPartial,
		Name: name,
		Session: PartialSession{
			Open:           &open,
			LateOpen:       true,
			LateOpenReason: name,
		},
	}
}

// TradingTemplate forces a standard session, e.g. a make-up trading day
func TradingTemplate() DayTemplate {
	return DayTemplate{Kind: KindTrading}
}

// NonTradingTemplate forces a closed day without a name
func NonTradingTemplate() DayTemplate {
	return DayTemplate{Kind: KindNonTrading}
}

// Materialize attaches market and date to the template
func (t DayTemplate) Materialize(market string, date time.Time, standard TradingHours) Day {
	switch t.Kind {
	case KindHoliday:
		return NewHoliday(market, date, t.Name)
	case KindPartial:
		return NewPartialDay(market, date, t.Name, standard, t.Session)
	case KindTrading:
		return NewTradingDay(market, date, standard)
	default:
		return NewNonTradingDay(market, date)
	}
}

func (t DayTemplate) validate(standard TradingHours) string {
	switch t.Kind {
	case KindHoliday:
		if t.Name == "" {
			return "holiday needs a name"
		}
	case KindPartial:
		s := t.Session
		if !s.EarlyClose && !s.LateOpen {
			return "partial session needs an early close or a late open"
		}
		if s.EarlyClose && s.Close == nil {
			return "early close needs a close time"
		}
		if s.LateOpen && s.Open == nil {
			return "late open needs an open time"
		}
		open, close := standard.Open, standard.Close
		if s.Open != nil {
			open = *s.Open
		}
		if s.Close != nil {
			close = *s.Close
		}
		if !open.Valid() || !close.Valid() || !open.Before(close) {
			return "partial session must open before it closes"
		}
	case KindTrading, KindNonTrading:
	default:
		return fmt.Sprintf("unknown kind %q", t.Kind)
	}
	return ""
}

// DateOf strips the time of day, keeping the calendar date as seen in t's own location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DaysInYear returns 365 or 366
func DaysInYear(year int) int {
	return Date(year, time.December, 31).YearDay()
}
