package server

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// StatusMonitor periodically checks which markets are open and logs every transition
type StatusMonitor struct {
	service *market_hours.MarketHoursService
	log     zerolog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	lastMarkets map[string]bool
	lastCheck   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(service *market_hours.MarketHoursService, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		service:     service,
		log:         log.With().Str("component", "status_monitor").Logger(),
		now:         time.Now,
		lastMarkets: make(map[string]bool),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitor(ctx, interval)
}

// Stop ends monitoring and waits for the loop to exit
func (m *StatusMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkMarketsStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkMarketsStatus(ctx)
		}
	}
}

// checkMarketsStatus records the open state of every market and logs changes
func (m *StatusMonitor) checkMarketsStatus(ctx context.Context) {
	now := m.now()
	current := make(map[string]bool)

	for _, cal := range m.service.Calendars() {
		open, err := cal.IsOpen(ctx, now)
		if err != nil {
			m.log.Warn().Err(err).Str("market", cal.Code()).Msg("Failed to check market status")
			continue
		}
		current[cal.Code()] = open
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	first := m.lastCheck.IsZero()
	for code, open := range current {
		if prev, seen := m.lastMarkets[code]; first || !seen || prev != open {
			state := "closed"
			if open {
				state = "open"
			}
			m.log.Info().Str("market", code).Str("state", state).Msg("Market status changed")
		}
	}

	m.lastMarkets = current
	m.lastCheck = now
}

// Snapshot returns a copy of the last observed open states and when they were taken
func (m *StatusMonitor) Snapshot() (map[string]bool, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.lastMarkets), m.lastCheck
}
