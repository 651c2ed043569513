// Package handlers provides HTTP handlers for market calendar operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// Handler handles market calendar HTTP requests
type Handler struct {
	service *market_hours.MarketHoursService
	log     zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a new market calendar handler
func NewHandler(
	service *market_hours.MarketHoursService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market_hours").Logger(),
		now:     time.Now,
	}
}

type marketInfo struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Country    string   `json:"country"`
	Timezone   string   `json:"timezone"`
	Aliases    []string `json:"aliases"`
	Weekdays   []string `json:"weekdays"`
	Open       string   `json:"open"`
	Close      string   `json:"close"`
	LunchStart string   `json:"lunch_start,omitempty"`
	LunchEnd   string   `json:"lunch_end,omitempty"`
	Rules      int      `json:"rules"`
}

type dayResponse struct {
	Market           string `json:"market"`
	Date             string `json:"date"`
	Kind             string `json:"kind"`
	Name             string `json:"name,omitempty"`
	Open             string `json:"open,omitempty"`
	Close            string `json:"close,omitempty"`
	EarlyClose       bool   `json:"early_close,omitempty"`
	LateOpen         bool   `json:"late_open,omitempty"`
	EarlyCloseReason string `json:"early_close_reason,omitempty"`
	LateOpenReason   string `json:"late_open_reason,omitempty"`
}

func toDayResponse(d market_hours.Day) dayResponse {
	resp := dayResponse{
		Market: d.Market,
		Date:   d.Date.Format(market_hours.DateLayout),
		Kind:   string(d.Kind),
		Name:   d.Name,
	}
	if d.IsTrading() {
		resp.Open = d.Open.String()
		resp.Close = d.Close.String()
		resp.EarlyClose = d.EarlyClose
		resp.LateOpen = d.LateOpen
		resp.EarlyCloseReason = d.EarlyCloseReason
		resp.LateOpenReason = d.LateOpenReason
	}
	return resp
}

func toDayResponses(days []market_hours.Day) []dayResponse {
	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, toDayResponse(d))
	}
	return out
}

// HandleListMarkets handles GET /api/markets
// Returns the configured markets
func (h *Handler) HandleListMarkets(w http.ResponseWriter, r *http.Request) {
	cals := h.service.Calendars()
	markets := make([]marketInfo, 0, len(cals))
	for _, cal := range cals {
		cfg := cal.Config()
		info := marketInfo{
			Code:     cfg.Code,
			Name:     cfg.Name,
			Country:  cfg.Country,
			Timezone: cfg.Timezone,
			Aliases:  cfg.Aliases,
			Open:     cfg.Hours.Open.String(),
			Close:    cfg.Hours.Close.String(),
			Rules:    len(cfg.Rules),
		}
		for _, wd := range cfg.Weekdays {
			info.Weekdays = append(info.Weekdays, wd.String())
		}
		if lb := cfg.LunchBreak; lb != nil {
			info.LunchStart = lb.Start.String()
			info.LunchEnd = lb.End.String()
		}
		markets = append(markets, info)
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"markets": markets,
		"count":   len(markets),
	})
}

// HandleGetDay handles GET /api/markets/{market}/days/{date}
// Returns the classification of one date
func (h *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendar(w, r)
	if !ok {
		return
	}

	date, err := market_hours.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	day, err := cal.Day(r.Context(), date)
	if err != nil {
		h.handleError(w, err, cal.Code())
		return
	}

	h.writeData(w, http.StatusOK, toDayResponse(day))
}

// HandleGetHolidays handles GET /api/markets/{market}/holidays
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	h.handleRange(w, r, (*market_hours.Calendar).HolidaysBetween)
}

// HandleGetTradingDays handles GET /api/markets/{market}/trading-days
// Partial days are served by the partial-days endpoint
func (h *Handler) HandleGetTradingDays(w http.ResponseWriter, r *http.Request) {
	h.handleRange(w, r, (*market_hours.Calendar).TradingDaysBetween)
}

// HandleGetPartialDays handles GET /api/markets/{market}/partial-days
func (h *Handler) HandleGetPartialDays(w http.ResponseWriter, r *http.Request) {
	h.handleRange(w, r, (*market_hours.Calendar).PartialDaysBetween)
}

type rangeQuery func(c *market_hours.Calendar, ctx context.Context, start, end time.Time) ([]market_hours.Day, error)

// handleRange serves ?start=&end= or ?year=, defaulting to the current year
func (h *Handler) handleRange(w http.ResponseWriter, r *http.Request, query rangeQuery) {
	cal, ok := h.calendar(w, r)
	if !ok {
		return
	}

	start, end, err := h.parseRange(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := query(cal, r.Context(), start, end)
	if err != nil {
		h.handleError(w, err, cal.Code())
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"market": cal.Code(),
		"start":  start.Format(market_hours.DateLayout),
		"end":    end.Format(market_hours.DateLayout),
		"days":   toDayResponses(days),
		"count":  len(days),
	})
}

// maxRangeDays caps a single range request at roughly ten years
const maxRangeDays = 3660

func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	startStr, endStr, yearStr := q.Get("start"), q.Get("end"), q.Get("year")

	if startStr != "" || endStr != "" {
		if startStr == "" || endStr == "" {
			return time.Time{}, time.Time{}, errors.New("start and end must be given together")
		}
		start, err := market_hours.ParseDate(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start must be YYYY-MM-DD")
		}
		end, err := market_hours.ParseDate(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, errors.New("end is before start")
		}
		if end.Sub(start) > maxRangeDays*24*time.Hour {
			return time.Time{}, time.Time{}, errors.New("range is too long")
		}
		return start, end, nil
	}

	year := h.now().Year()
	if yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil || parsed < 1 || parsed > 9999 {
			return time.Time{}, time.Time{}, errors.New("year must be a number between 1 and 9999")
		}
		year = parsed
	}
	return market_hours.Date(year, time.January, 1), market_hours.Date(year, time.December, 31), nil
}

// HandleGetStatus handles GET /api/markets/{market}/status
// Returns current market status for a specific exchange
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendar(w, r)
	if !ok {
		return
	}

	status, err := cal.Status(r.Context(), h.now())
	if err != nil {
		h.handleError(w, err, cal.Code())
		return
	}

	h.writeData(w, http.StatusOK, status)
}

// HandleGetOpenMarkets handles GET /api/markets/open
// Returns list of currently open exchanges
func (h *Handler) HandleGetOpenMarkets(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	openMarkets, err := h.service.GetOpenMarkets(r.Context(), now)
	unavailable := market_hours.FailedMarkets(err)
	if err != nil && len(unavailable) == 0 {
		h.handleError(w, err, "")
		return
	}

	data := map[string]interface{}{
		"timestamp":    now.Format(time.RFC3339),
		"open_markets": openMarkets,
		"count":        len(openMarkets),
	}
	// markets that could not be classified are reported next to the ones that could
	if len(unavailable) > 0 {
		data["unavailable"] = unavailable
	}
	h.writeData(w, http.StatusOK, data)
}

// HandleMaterialize handles POST /api/markets/{market}/materialize?year=
// Recomputes and stores one year
func (h *Handler) HandleMaterialize(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendar(w, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1 || year > 9999 {
		h.writeError(w, http.StatusBadRequest, "year parameter is required")
		return
	}

	if err := cal.Materialize(r.Context(), year); err != nil {
		h.handleError(w, err, cal.Code())
		return
	}

	h.log.Info().Str("market", cal.Code()).Int("year", year).Msg("Year materialized on request")
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"market": cal.Code(),
		"year":   year,
	})
}

// HandleClearCache handles DELETE /api/markets/{market}/cache
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.calendar(w, r)
	if !ok {
		return
	}

	if err := cal.Clear(r.Context()); err != nil {
		h.handleError(w, err, cal.Code())
		return
	}

	h.log.Info().Str("market", cal.Code()).Msg("Calendar cache cleared")
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"market":  cal.Code(),
		"cleared": true,
	})
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) (*market_hours.Calendar, bool) {
	name := chi.URLParam(r, "market")
	cal, err := h.service.Calendar(name)
	if err != nil {
		h.handleError(w, err, name)
		return nil, false
	}
	return cal, true
}

// handleError maps calendar errors to HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, err error, market string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, market_hours.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, market_hours.ErrUnknownMarket), errors.Is(err, market_hours.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market_hours.ErrDataUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("market", market).Msg("Calendar request failed")
	} else {
		h.log.Debug().Err(err).Str("market", market).Int("status", status).Msg("Calendar request rejected")
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
