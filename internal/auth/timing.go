package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay      time.Duration // Minimum response time for padded outcomes
	RandomDelay    time.Duration // Upper bound of random jitter added to BaseDelay
	DelayOnSuccess bool          // If true, pad successful logins too
}

// TimingDelay pads login responses to a floor so that rejected attempts share
// one latency profile whatever the reason for the rejection
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandDuration returns a secure random duration in [0, max)
func cryptoRandDuration(max time.Duration) (time.Duration, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return time.Duration(randomValue % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	target := td.config.BaseDelay
	if jitter, err := cryptoRandDuration(td.config.RandomDelay); err == nil {
		target += jitter
	}
	return target
}

// WaitFrom blocks until at least base+jitter has elapsed since startTime.
// It returns early with ctx.Err() if ctx is done first.
func (td *TimingDelay) WaitFrom(ctx context.Context, startTime time.Time, success bool) error {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return nil
	}

	remaining := td.target() - time.Since(startTime)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
