package dispatcher

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects dispatch statistics as Prometheus collectors.
type Metrics struct {
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	panics     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered by another bus are reused, so several editors can
// share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptslot",
			Name:      "commands_dispatched_total",
			Help:      "Commands dispatched, by command and whether a handler consumed them.",
		}, []string{"command", "handled"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promptslot",
			Name:      "command_dispatch_seconds",
			Help:      "Time spent running the handlers of a command.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"command"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptslot",
			Name:      "command_handler_panics_total",
			Help:      "Handler panics recovered by the bus.",
		}, []string{"command"}),
	}
	m.dispatched = register(reg, m.dispatched)
	m.duration = register(reg, m.duration)
	m.panics = register(reg, m.panics)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// RecordDispatch records one dispatch of t.
func (m *Metrics) RecordDispatch(t Type, d time.Duration, handled bool) {
	m.dispatched.WithLabelValues(t.String(), strconv.FormatBool(handled)).Inc()
	m.duration.WithLabelValues(t.String()).Observe(d.Seconds())
}

// RecordPanic records a recovered handler panic.
func (m *Metrics) RecordPanic(t Type) {
	m.panics.WithLabelValues(t.String()).Inc()
}

// Dispatched returns the counter of dispatches of t with the given outcome.
func (m *Metrics) Dispatched(t Type, handled bool) prometheus.Counter {
	return m.dispatched.WithLabelValues(t.String(), strconv.FormatBool(handled))
}

// Panics returns the panic counter of t.
func (m *Metrics) Panics(t Type) prometheus.Counter {
	return m.panics.WithLabelValues(t.String())
}
