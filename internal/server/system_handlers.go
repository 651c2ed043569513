package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/marketcal/internal/database"
	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// SystemHandlers serves operational endpoints
type SystemHandlers struct {
	log        zerolog.Logger
	calendarDB *database.DB
	service    *market_hours.MarketHoursService
	monitor    *StatusMonitor
	startedAt  time.Time
}

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	calendarDB *database.DB,
	service *market_hours.MarketHoursService,
	monitor *StatusMonitor,
	startedAt time.Time,
) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		calendarDB: calendarDB,
		service:    service,
		monitor:    monitor,
		startedAt:  startedAt,
	}
}

// SystemStatsResponse is the body of GET /api/system/stats
type SystemStatsResponse struct {
	CPUPercent      float64         `json:"cpu_percent"`
	RAMPercent      float64         `json:"ram_percent"`
	Goroutines      int             `json:"goroutines"`
	HeapAllocMB     float64         `json:"heap_alloc_mb"`
	UptimeSeconds   int64           `json:"uptime_seconds"`
	DatabaseSizeMB  float64         `json:"database_size_mb"`
	Markets         []string        `json:"markets"`
	MarketsOpen     map[string]bool `json:"markets_open,omitempty"`
	MonitorLastSeen string          `json:"monitor_last_check,omitempty"`
}

// HandleSystemStats handles GET /api/system/stats
// Returns host and process resource usage
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := SystemStatsResponse{
		CPUPercent:     cpuPercent,
		RAMPercent:     ramPercent,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    float64(memStats.HeapAlloc) / 1024 / 1024,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		DatabaseSizeMB: h.databaseSizeMB(),
		Markets:        h.service.Codes(),
	}

	if h.monitor != nil {
		open, checkedAt := h.monitor.Snapshot()
		if !checkedAt.IsZero() {
			stats.MarketsOpen = open
			stats.MonitorLastSeen = checkedAt.Format(time.RFC3339)
		}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": stats,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) databaseSizeMB() float64 {
	if h.calendarDB == nil {
		return 0
	}
	var total int64
	// WAL mode keeps recent writes in the side files
	for _, suffix := range []string{"", "-wal", "-shm"} {
		info, err := os.Stat(h.calendarDB.Path() + suffix)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return float64(total) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
