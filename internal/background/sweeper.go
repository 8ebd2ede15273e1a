package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper removes expired entries from an in-memory store
type Sweeper interface {
	Sweep() int
}

// SweepManager periodically sweeps expired failed-login records
type SweepManager struct {
	target   Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(target Sweeper, logger *slog.Logger, interval time.Duration) *SweepManager {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepManager{
		target:   target,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is done
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.runSweep()
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep() {
	removed := sm.target.Sweep()
	if removed > 0 {
		sm.logger.Debug("expired login attempt records removed", slog.Int("removed", removed))
	}
}

// Stop signals the sweep manager to stop. It is safe to call more than once.
func (sm *SweepManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stopCh) })
}
