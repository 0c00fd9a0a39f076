// Package metrics exports operation counters for the engine's event bus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// Collector turns operation events into Prometheus metrics. Each collector
// owns its registry so several engines can run in one process.
type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	inFlight          prometheus.Gauge
	fallbackTotal     *prometheus.CounterVec

	bus  core.EventBus
	subs []core.SubscriptionID
}

// New creates a collector with a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsengine_operations_total",
				Help: "Total number of finished engine operations",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsengine_operation_duration_seconds",
				Help:    "Engine operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fsengine_operations_in_flight",
				Help: "Number of engine operations currently running",
			},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsengine_fallback_total",
				Help: "Total items that left the direct I/O path",
			},
			[]string{"kind"},
		),
	}
	c.registry.MustRegister(c.operationsTotal, c.operationDuration, c.inFlight, c.fallbackTotal)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Subscribe starts counting the operation events published on bus.
func (c *Collector) Subscribe(bus core.EventBus) {
	c.bus = bus
	c.subs = append(c.subs,
		bus.Subscribe(core.EventOperationStarted, core.EventHandlerFunc(c.onStarted)),
		bus.Subscribe(core.EventOperationCompleted, core.EventHandlerFunc(c.onCompleted)),
		bus.Subscribe(core.EventOperationFailed, core.EventHandlerFunc(c.onFailed)),
		bus.Subscribe(core.EventOperationFallback, core.EventHandlerFunc(c.onFallback)),
	)
}

// Unsubscribe stops counting.
func (c *Collector) Unsubscribe() {
	if c.bus == nil {
		return
	}
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

func (c *Collector) onStarted(_ context.Context, _ core.Event) error {
	c.inFlight.Inc()
	return nil
}

func (c *Collector) onCompleted(_ context.Context, event core.Event) error {
	e, ok := event.(*core.OperationCompletedEvent)
	if !ok {
		return nil
	}
	c.finish(e.Operation.OperationType, e.Code, e.Duration.Seconds())
	return nil
}

func (c *Collector) onFailed(_ context.Context, event core.Event) error {
	e, ok := event.(*core.OperationFailedEvent)
	if !ok {
		return nil
	}
	c.finish(e.Operation.OperationType, e.Code, e.Duration.Seconds())
	return nil
}

func (c *Collector) onFallback(_ context.Context, event core.Event) error {
	if e, ok := event.(*core.OperationFallbackEvent); ok {
		c.fallbackTotal.WithLabelValues(e.Kind).Inc()
	}
	return nil
}

func (c *Collector) finish(op core.OperationType, code core.ErrorCode, seconds float64) {
	c.inFlight.Dec()
	c.operationsTotal.WithLabelValues(op.String(), ResultLabel(code)).Inc()
	c.operationDuration.WithLabelValues(op.String()).Observe(seconds)
}

// ResultLabel names the outcome of a finished operation: "success",
// "partial", or the message category of a failure.
func ResultLabel(code core.ErrorCode) string {
	switch {
	case code.Succeeded() && code.Has(core.InProgress):
		return "partial"
	case code.Succeeded():
		return "success"
	default:
		return string(core.CategoryOf(code))
	}
}
