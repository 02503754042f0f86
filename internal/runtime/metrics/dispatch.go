// Package metrics exposes Prometheus collectors for queue dispatch.
// All methods are safe on a nil *DispatchMetrics so callers can run with
// metrics disabled.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "sqsreporter"
	subsystem = "dispatch"
)

// Failure reasons used as the "reason" label.
const (
	ReasonBackend  = "backend"
	ReasonTimeout  = "timeout"
	ReasonOversize = "oversize"
)

// DispatchMetrics tracks queue submissions.
type DispatchMetrics struct {
	mu sync.RWMutex

	submitted uint64
	succeeded uint64
	failed    uint64
	inFlight  int64

	messagesTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	inFlightGauge   prometheus.Gauge
	sendDurationVec *prometheus.HistogramVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	registered bool
}

// Snapshot is a point-in-time view of dispatch counts.
type Snapshot struct {
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	InFlight  int64  `json:"in_flight"`
}

// NewDispatchMetrics creates collectors bound to registerer, or to the
// default registry when nil.
func NewDispatchMetrics(registerer prometheus.Registerer) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &DispatchMetrics{
		registerer: registerer,
		gatherer:   gatherer,
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_total",
			Help:      "Total number of messages submitted to the queue",
		}, []string{"event"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Total number of submissions that settled with an error",
		}, []string{"event", "reason"}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Submissions whose outcome is not yet known",
		}),
		sendDurationVec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Round trip time of SendMessage calls",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"event"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *DispatchMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	if err := register(m.registerer, &m.messagesTotal); err != nil {
		return err
	}
	if err := register(m.registerer, &m.failuresTotal); err != nil {
		return err
	}
	if err := register(m.registerer, &m.inFlightGauge); err != nil {
		return err
	}
	if err := register(m.registerer, &m.sendDurationVec); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// register adds *c to r. When an identical collector is already registered,
// *c is replaced by it so updates land in what the registry exposes.
func register[C prometheus.Collector](r prometheus.Registerer, c *C) error {
	err := r.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return fmt.Errorf("metrics: existing collector has type %T: %w", are.ExistingCollector, err)
	}
	*c = existing
	return nil
}

// RecordSubmitted counts a submission entering flight.
func (m *DispatchMetrics) RecordSubmitted(event string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted++
	m.inFlight++

	m.messagesTotal.WithLabelValues(event).Inc()
	m.inFlightGauge.Inc()
}

// RecordSettled counts a submission leaving flight. An empty reason means
// success. Oversize rejections never reach the backend, so pass a zero
// duration for them.
func (m *DispatchMetrics) RecordSettled(event, reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight--
	if reason == "" {
		m.succeeded++
	} else {
		m.failed++
		m.failuresTotal.WithLabelValues(event, reason).Inc()
	}
	m.inFlightGauge.Dec()
	if took > 0 {
		m.sendDurationVec.WithLabelValues(event).Observe(took.Seconds())
	}
}

// GetSnapshot returns the current counts.
func (m *DispatchMetrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		Submitted: m.submitted,
		Succeeded: m.succeeded,
		Failed:    m.failed,
		InFlight:  m.inFlight,
	}
}

// Handler serves the gatherer paired with this collector set.
func (m *DispatchMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
