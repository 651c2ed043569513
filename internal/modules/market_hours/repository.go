package market_hours

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/marketcal/internal/database"
)

// dayPayload is the kind-specific part of a Day as stored in the payload column
type dayPayload struct {
	Name             string `msgpack:"name,omitempty"`
	Open             Clock  `msgpack:"open"`
	Close            Clock  `msgpack:"close"`
	EarlyClose       bool   `msgpack:"early_close,omitempty"`
	LateOpen         bool   `msgpack:"late_open,omitempty"`
	EarlyCloseReason string `msgpack:"early_close_reason,omitempty"`
	LateOpenReason   string `msgpack:"late_open_reason,omitempty"`
}

// Repository stores classified days in the calendar_days table of calendar.db
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new calendar repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const upsertDayQuery = `
	INSERT OR REPLACE INTO calendar_days (market, date, kind, payload, updated_at)
	VALUES (?, ?, ?, ?, ?)
`

// Get returns the stored day, or ErrNotFound
func (r *Repository) Get(ctx context.Context, market string, date time.Time) (Day, error) {
	var (
		kind    string
		payload []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT kind, payload FROM calendar_days WHERE market = ? AND date = ?",
		market, DateOf(date).Format(DateLayout),
	).Scan(&kind, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Day{}, ErrNotFound
	}
	if err != nil {
		return Day{}, fmt.Errorf("failed to get day %s %s: %w", market, date.Format(DateLayout), err)
	}

	return decodeDay(market, DateOf(date), DayKind(kind), payload)
}

// Upsert writes one day, replacing any existing row for the same market and date
func (r *Repository) Upsert(ctx context.Context, day Day) error {
	payload, err := encodeDay(day)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, upsertDayQuery,
		day.Market, day.Date.Format(DateLayout), string(day.Kind), payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert day %s: %w", day.Key().Date, err)
	}
	return nil
}

// UpsertBatch writes all days in one transaction
func (r *Repository) UpsertBatch(ctx context.Context, days []Day) error {
	now := time.Now().Unix()

	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertDayQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, day := range days {
			payload, err := encodeDay(day)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, day.Market, day.Date.Format(DateLayout), string(day.Kind), payload, now); err != nil {
				return fmt.Errorf("failed to upsert day %s: %w", day.Key().Date, err)
			}
		}
		return nil
	})
}

// Pop removes one day and returns what was stored, or ErrNotFound. The read and
// the delete are a single statement.
func (r *Repository) Pop(ctx context.Context, market string, date time.Time) (Day, error) {
	var (
		kind    string
		payload []byte
	)
	err := r.db.QueryRowContext(ctx,
		"DELETE FROM calendar_days WHERE market = ? AND date = ? RETURNING kind, payload",
		market, DateOf(date).Format(DateLayout),
	).Scan(&kind, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Day{}, ErrNotFound
	}
	if err != nil {
		return Day{}, fmt.Errorf("failed to delete day %s %s: %w", market, date.Format(DateLayout), err)
	}

	return decodeDay(market, DateOf(date), DayKind(kind), payload)
}

// DeleteAll removes every stored day of market
func (r *Repository) DeleteAll(ctx context.Context, market string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM calendar_days WHERE market = ?", market); err != nil {
		return fmt.Errorf("failed to clear market %s: %w", market, err)
	}
	return nil
}

// CountYear returns how many days of year are stored for market
func (r *Repository) CountYear(ctx context.Context, market string, year int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM calendar_days WHERE market = ? AND date >= ? AND date <= ?",
		market,
		Date(year, time.January, 1).Format(DateLayout),
		Date(year, time.December, 31).Format(DateLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count days: %w", err)
	}
	return count, nil
}

func encodeDay(day Day) ([]byte, error) {
	payload, err := msgpack.Marshal(dayPayload{
		Name:             day.Name,
		Open:             day.Open,
		Close:            day.Close,
		EarlyClose:       day.EarlyClose,
		LateOpen:         day.LateOpen,
		EarlyCloseReason: day.EarlyCloseReason,
		LateOpenReason:   day.LateOpenReason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode day %s: %w", day.Key().Date, err)
	}
	return payload, nil
}

// decodeDay rebuilds a Day through its constructor so stored rows obey the same invariants
func decodeDay(market string, date time.Time, kind DayKind, data []byte) (Day, error) {
	var p dayPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return Day{}, fmt.Errorf("failed to decode day %s %s: %w", market, date.Format(DateLayout), err)
	}

	switch kind {
	case KindTrading:
		return NewTradingDay(market, date, TradingHours{Open: p.Open, Close: p.Close}), nil
	case KindHoliday:
		return NewHoliday(market, date, p.Name), nil
	case KindPartial:
		return NewPartialDay(market, date, p.Name, TradingHours{Open: p.Open, Close: p.Close}, PartialSession{
			EarlyClose:       p.EarlyClose,
			LateOpen:         p.LateOpen,
			EarlyCloseReason: p.EarlyCloseReason,
			LateOpenReason:   p.LateOpenReason,
		}), nil
	case KindNonTrading:
		return NewNonTradingDay(market, date), nil
	default:
		return Day{}, fmt.Errorf("day %s %s has unknown kind %q", market, date.Format(DateLayout), kind)
	}
}
