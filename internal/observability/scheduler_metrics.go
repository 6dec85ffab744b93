package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes metrics of the engine event loop.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	RunDuration   prometheus.Histogram
	TimersFired   prometheus.Counter
	TimersPending prometheus.Gauge
}

// NewSchedulerCollector registers event loop metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "p2p_engine_run_duration_seconds",
		Help:    "Wall time of event loop passes that fired at least one timer.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
	runHistogram, err := registerHistogram(reg, runHistogram, "p2p_engine_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	fired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "p2p_engine_timers_fired_total",
		Help: "Cumulative number of engine timers that fired.",
	})
	fired, err = registerCounter(reg, fired, "p2p_engine_timers_fired_total")
	if err != nil {
		return nil, err
	}

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "p2p_engine_timers_pending",
		Help: "Engine timers waiting to fire after the last event loop pass.",
	})
	pending, err = registerGauge(reg, pending, "p2p_engine_timers_pending")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:      gatherer,
		RunDuration:   runHistogram,
		TimersFired:   fired,
		TimersPending: pending,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRun satisfies sched.Observer.
func (c *SchedulerCollector) ObserveRun(fired, pending int, took time.Duration) {
	if c == nil {
		return
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(took.Seconds())
	}
	if c.TimersFired != nil && fired > 0 {
		c.TimersFired.Add(float64(fired))
	}
	if c.TimersPending != nil {
		c.TimersPending.Set(float64(pending))
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
