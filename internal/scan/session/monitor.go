package session

import (
	"context"
	"fmt"
	"time"

	"ms-admission/internal/logger"
)

// Pinger is satisfied by *sql.DB and *bun.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Monitor probes the backing store and flips registered sessions between
// Online and Offline. While offline, gates refuse to validate rather than
// queue scans; the atomic claim only means anything against a reachable store.
type Monitor struct {
	Pinger   Pinger
	Registry *Registry
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logger.Logger
}

func NewMonitor(p Pinger, r *Registry, interval, timeout time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{Pinger: p, Registry: r, Interval: interval, Timeout: timeout, Logger: log}
}

// Run blocks until ctx is cancelled, probing the store every interval.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.probe(ctx)
			if now != online {
				online = now
				m.Registry.SetAllOnline(online)
				if m.Logger != nil {
					if online {
						m.Logger.Info("CONNECTIVITY", "store reachable again, gates back online")
					} else {
						m.Logger.Warn("CONNECTIVITY", "store unreachable, gates now offline")
					}
				}
			}
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	if err := m.Pinger.PingContext(probeCtx); err != nil {
		if m.Logger != nil {
			m.Logger.Debug("CONNECTIVITY", fmt.Sprintf("store ping failed: %v", err))
		}
		return false
	}
	return true
}
