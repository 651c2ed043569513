package market_hours

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MarketHoursService is the registry of configured market calendars
type MarketHoursService struct {
	calendars map[string]*Calendar
	aliases   map[string]string
	cache     *YearCache
	log       zerolog.Logger
}

// NewMarketHoursService validates every config and builds one calendar per market.
// All calendars share one year cache over store.
func NewMarketHoursService(configs []MarketConfig, store Store, source DataSource, log zerolog.Logger) (*MarketHoursService, error) {
	s := &MarketHoursService{
		calendars: make(map[string]*Calendar, len(configs)),
		aliases:   make(map[string]string),
		cache:     NewYearCache(store, NewRuleEngine(source), log),
		log:       log.With().Str("service", "market_hours").Logger(),
	}

	for _, cfg := range configs {
		if _, exists := s.calendars[cfg.Code]; exists {
			return nil, &ValidationError{Market: cfg.Code, Field: "Code", Reason: "configured twice"}
		}
		cal, err := NewCalendar(cfg, s.cache)
		if err != nil {
			return nil, err
		}
		s.calendars[cfg.Code] = cal

		for _, alias := range cfg.Aliases {
			key := strings.ToUpper(strings.TrimSpace(alias))
			if other, taken := s.aliases[key]; taken && other != cfg.Code {
				return nil, &ValidationError{Market: cfg.Code, Field: "Aliases", Reason: fmt.Sprintf("alias %q already used by %s", alias, other)}
			}
			s.aliases[key] = cfg.Code
		}
	}

	s.log.Info().Strs("markets", s.Codes()).Msg("Market calendars loaded")
	return s, nil
}

// GetExchangeCode resolves a market code or alias, case-insensitively
func (s *MarketHoursService) GetExchangeCode(name string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))

	if _, exists := s.calendars[normalized]; exists {
		return normalized, nil
	}
	if code, ok := s.aliases[normalized]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMarket, name)
}

// Calendar returns the calendar for a market code or alias
func (s *MarketHoursService) Calendar(name string) (*Calendar, error) {
	code, err := s.GetExchangeCode(name)
	if err != nil {
		return nil, err
	}
	return s.calendars[code], nil
}

// Codes lists the configured market codes, sorted
func (s *MarketHoursService) Codes() []string {
	codes := make([]string, 0, len(s.calendars))
	for code := range s.calendars {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Calendars returns the calendars ordered by code
func (s *MarketHoursService) Calendars() []*Calendar {
	cals := make([]*Calendar, 0, len(s.calendars))
	for _, code := range s.Codes() {
		cals = append(cals, s.calendars[code])
	}
	return cals
}

// IsMarketOpen checks if a market is open for trading at t
func (s *MarketHoursService) IsMarketOpen(ctx context.Context, name string, t time.Time) (bool, error) {
	cal, err := s.Calendar(name)
	if err != nil {
		return false, err
	}
	return cal.IsOpen(ctx, t)
}

// GetOpenMarkets returns the codes of markets open at t. A market that cannot be
// classified at t is left out of the list and reported as a *MarketError in the
// joined error, so callers still get the markets that answered.
func (s *MarketHoursService) GetOpenMarkets(ctx context.Context, t time.Time) ([]string, error) {
	open := make([]string, 0)
	var errs []error
	for _, cal := range s.Calendars() {
		ok, err := cal.IsOpen(ctx, t)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.log.Warn().Err(err).Str("market", cal.Code()).Msg("Leaving market out of open markets")
			errs = append(errs, &MarketError{Market: cal.Code(), Err: err})
			continue
		}
		if ok {
			open = append(open, cal.Code())
		}
	}
	return open, errors.Join(errs...)
}

// GetMarketStatus returns detailed status for a market
func (s *MarketHoursService) GetMarketStatus(ctx context.Context, name string, t time.Time) (*MarketStatus, error) {
	cal, err := s.Calendar(name)
	if err != nil {
		return nil, err
	}
	return cal.Status(ctx, t)
}

// Materialize recomputes year for one market
func (s *MarketHoursService) Materialize(ctx context.Context, name string, year int) error {
	cal, err := s.Calendar(name)
	if err != nil {
		return err
	}
	return cal.Materialize(ctx, year)
}

// MaterializeAll makes sure years are stored for every market. Markets whose
// announced dates are missing are skipped and reported in the joined error.
func (s *MarketHoursService) MaterializeAll(ctx context.Context, years ...int) error {
	var errs []error
	for _, cal := range s.Calendars() {
		for _, year := range years {
			if _, err := cal.Day(ctx, Date(year, time.January, 1)); err != nil {
				if errors.Is(err, ErrDataUnavailable) {
					s.log.Warn().Err(err).Str("market", cal.Code()).Int("year", year).Msg("Skipping year without announced dates")
				}
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ClearAll drops the stored days of every market
func (s *MarketHoursService) ClearAll(ctx context.Context) error {
	for _, cal := range s.Calendars() {
		if err := cal.Clear(ctx); err != nil {
			return fmt.Errorf("%s: %w", cal.Code(), err)
		}
	}
	return nil
}
