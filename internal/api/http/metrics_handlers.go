package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// MetricsSnapshot is the JSON view of host metrics
type MetricsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Backend   monitoring.Snapshot `json:"backend"`
	Summary   MetricsSummary      `json:"summary"`
}

// MetricsSummary provides high-level counts
type MetricsSummary struct {
	Sessions      int     `json:"sessions"`
	Windows       int     `json:"windows"`
	ReadyWindows  int     `json:"ready_windows"`
	DropRate      float64 `json:"drop_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// GetMetrics returns a JSON metrics snapshot
func (h *Handlers) GetMetrics(c *gin.Context) {
	backend := h.metrics.Snapshot()
	windows := h.windows.Windows()

	ready := 0
	for _, w := range windows {
		if w.State == types.WindowReady {
			ready++
		}
	}

	summary := MetricsSummary{
		Sessions:      h.registry.Len(),
		Windows:       len(windows),
		ReadyWindows:  ready,
		UptimeSeconds: backend.UptimeSeconds,
	}
	if backend.Messages > 0 {
		summary.DropRate = float64(backend.Dropped) / float64(backend.Messages)
	}

	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Backend:   backend,
		Summary:   summary,
	})
}
