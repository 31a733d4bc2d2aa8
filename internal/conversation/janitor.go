package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// DefaultSweepInterval is how often the janitor looks for idle sessions.
const DefaultSweepInterval = time.Minute

// Janitor periodically evicts idle sessions from a Manager.
type Janitor struct {
	manager  *Manager
	logger   *logging.Logger
	interval time.Duration
}

// NewJanitor creates a janitor for manager.
func NewJanitor(manager *Manager, logger *logging.Logger) *Janitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Janitor{
		manager:  manager,
		logger:   logger,
		interval: DefaultSweepInterval,
	}
}

// WithInterval sets the sweep interval.
func (j *Janitor) WithInterval(interval time.Duration) *Janitor {
	if interval > 0 {
		j.interval = interval
	}
	return j
}

// Run sweeps on every tick. Blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info("starting session janitor",
		"interval", j.interval.String(),
		"idle_timeout", j.manager.idleTimeout.String(),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session janitor shutting down")
			return nil
		case <-ticker.C:
			j.manager.EvictIdle(j.manager.now())
		}
	}
}
