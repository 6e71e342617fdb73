package app

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	startedAt      time.Time
	produced       atomic.Uint64
	lastProducedAt atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{startedAt: time.Now().UTC()}
}

func (h *HealthStatus) MarkProduced(ts time.Time) {
	h.produced.Add(1)
	h.lastProducedAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"started_at":      h.startedAt,
		"events_produced": h.produced.Load(),
	}
	if v := h.lastProducedAt.Load(); v > 0 {
		out["last_event_at"] = time.Unix(0, v).UTC()
	}
	return out
}
