package market_hours

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// YearCache classifies a whole year of a market at most once and serves later
// lookups straight from the store
type YearCache struct {
	store  Store
	engine *RuleEngine
	group  singleflight.Group
	log    zerolog.Logger
}

// NewYearCache creates a year cache over store
func NewYearCache(store Store, engine *RuleEngine, log zerolog.Logger) *YearCache {
	return &YearCache{
		store:  store,
		engine: engine,
		log:    log.With().Str("component", "year_cache").Logger(),
	}
}

// GetOrCompute returns the classified day, materializing its whole year first if needed
func (c *YearCache) GetOrCompute(ctx context.Context, cfg *MarketConfig, date time.Time) (Day, error) {
	date = DateOf(date)

	day, err := c.store.Get(ctx, cfg.Code, date)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Day{}, fmt.Errorf("failed to read %s %s: %w", cfg.Code, date.Format(DateLayout), err)
	}

	if err := c.Materialize(ctx, cfg, date.Year()); err != nil {
		return Day{}, err
	}

	day, err = c.store.Get(ctx, cfg.Code, date)
	if errors.Is(err, ErrNotFound) {
		return Day{}, fmt.Errorf("%w: %s %s", ErrInconsistent, cfg.Code, date.Format(DateLayout))
	}
	if err != nil {
		return Day{}, fmt.Errorf("failed to read %s %s: %w", cfg.Code, date.Format(DateLayout), err)
	}
	return day, nil
}

// Materialize classifies and stores every day of year, overwriting stored days.
// Concurrent calls for the same market and year share one computation. The
// shared computation does not inherit any caller's cancellation: a caller whose
// ctx ends gets ctx.Err() while the others keep waiting for the result.
func (c *YearCache) Materialize(ctx context.Context, cfg *MarketConfig, year int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := cfg.Code + ":" + strconv.Itoa(year)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return nil, c.materialize(context.WithoutCancel(ctx), cfg, year)
	})

	select {
	case <-ctx.Done():
		c.log.Debug().Str("market", cfg.Code).Int("year", year).Msg("Stopped waiting for materialization")
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.log.Debug().Str("market", cfg.Code).Int("year", year).Msg("Joined in-flight materialization")
		}
		return res.Err
	}
}

func (c *YearCache) materialize(ctx context.Context, cfg *MarketConfig, year int) error {
	start := time.Now()
	log := c.log.With().
		Str("run_id", uuid.NewString()).
		Str("market", cfg.Code).
		Int("year", year).
		Logger()

	log.Debug().Msg("Materializing year")

	days, err := c.classifyYear(ctx, cfg, year)
	if err != nil {
		log.Warn().Err(err).Msg("Materialization aborted before any write")
		return err
	}

	if batch, ok := c.store.(BatchStore); ok {
		if err := batch.UpsertBatch(ctx, days); err != nil {
			return fmt.Errorf("failed to store %s %d: %w", cfg.Code, year, err)
		}
	} else {
		for _, day := range days {
			if err := c.store.Upsert(ctx, day); err != nil {
				return fmt.Errorf("failed to store %s: %w", day, err)
			}
		}
	}

	log.Info().
		Int("days", len(days)).
		Dur("duration", time.Since(start)).
		Msg("Year materialized")
	return nil
}

// classifyYear resolves every date of year as override > rule > weekday pattern.
// It performs no writes, so a failing rule leaves the store untouched.
func (c *YearCache) classifyYear(ctx context.Context, cfg *MarketConfig, year int) ([]Day, error) {
	ruled := make(map[string]Occurrence)

	for _, rule := range cfg.Rules {
		// shifted dates and widened spans of neighbouring years can land in this
		// one (Jan 1 on a Saturday, a festival starting on Monday Jan 2)
		for _, y := range []int{year - 1, year, year + 1} {
			occurrences, err := c.engine.Generate(ctx, rule, y)
			if err != nil {
				if y != year && errors.Is(err, ErrDataUnavailable) {
					continue
				}
				return nil, fmt.Errorf("market %s: %w", cfg.Code, err)
			}
			for _, occ := range occurrences {
				if occ.Date.Year() == year {
					ruled[occ.Date.Format(DateLayout)] = occ
				}
			}
		}
	}

	days := make([]Day, 0, DaysInYear(year))
	for d := Date(year, time.January, 1); d.Year() == year; d = d.AddDate(0, 0, 1) {
		days = append(days, cfg.classify(d, ruled))
	}
	return days, nil
}

// Clear drops every stored day of market so the next lookup recomputes it
func (c *YearCache) Clear(ctx context.Context, market string) error {
	if err := c.store.DeleteAll(ctx, market); err != nil {
		return err
	}
	c.log.Info().Str("market", market).Msg("Calendar cache cleared")
	return nil
}

// Evict removes one stored day and returns it. It fails with ErrNotFound when the
// day is not stored; nothing is computed.
func (c *YearCache) Evict(ctx context.Context, market string, date time.Time) (Day, error) {
	remover, ok := c.store.(Remover)
	if !ok {
		return Day{}, fmt.Errorf("store %T cannot delete single days", c.store)
	}

	return remover.Pop(ctx, market, DateOf(date))
}

// Peek returns a stored day without computing anything, or ErrNotFound
func (c *YearCache) Peek(ctx context.Context, market string, date time.Time) (Day, error) {
	return c.store.Get(ctx, market, DateOf(date))
}
