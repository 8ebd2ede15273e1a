// Package metrics exposes Prometheus collectors for login handling.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Options configures the login collectors
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
	// TrackedIdentities reports how many identities the attempt tracker holds; optional
	TrackedIdentities func() int
}

// LoginMetrics holds the collectors updated on every login attempt
type LoginMetrics struct {
	Attempts *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewLoginMetrics creates the login collectors and registers them
func NewLoginMetrics(opts Options) (*LoginMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "gatekeeper"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "login",
		Name:      "attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"})
	if err := register(reg, attempts); err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "login",
		Name:      "duration_seconds",
		Help:      "Login handling latency in seconds partitioned by outcome.",
		Buckets:   buckets,
	}, []string{"outcome"})
	if err := register(reg, duration); err != nil {
		return nil, err
	}

	if opts.TrackedIdentities != nil {
		tracked := opts.TrackedIdentities
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "tracked_identities",
			Help:      "Identities currently held by the failed-attempt tracker.",
		}, func() float64 { return float64(tracked()) })
		if err := register(reg, gauge); err != nil {
			return nil, err
		}
	}

	return &LoginMetrics{Attempts: attempts, Duration: duration}, nil
}

// Observe records one login attempt. A nil receiver is a no-op.
func (m *LoginMetrics) Observe(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return fmt.Errorf("collector already registered: %w", err)
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}
