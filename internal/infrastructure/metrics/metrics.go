// Package metrics exports engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

const namespace = "harness"

var (
	_ output.MetricsPort = (*Collector)(nil)
	_ output.MetricsPort = Nop{}
)

type Collector struct {
	registry *prometheus.Registry

	resolves         *prometheus.CounterVec
	resolveAttempts  prometheus.Histogram
	actions          *prometheus.CounterVec
	actionRestarts   prometheus.Counter
	actionLatency    *prometheus.HistogramVec
	assertions       *prometheus.CounterVec
	assertionLatency prometheus.Histogram
	dialogs          *prometheus.CounterVec
	openPages        prometheus.Gauge
}

// New registers the engine metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		registry: reg,
		resolves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "resolves_total",
			Help:      "Locator resolutions by cardinality and outcome.",
		}, []string{"cardinality", "result"}),
		resolveAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "attempts",
			Help:      "Poll attempts per locator resolution.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "performed_total",
			Help:      "Actions by kind and outcome.",
		}, []string{"kind", "result"}),
		actionRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "stale_restarts_total",
			Help:      "Actions re-resolved after their element went stale.",
		}),
		actionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "latency_seconds",
			Help:      "Time from actionability check to dispatch completion.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		assertions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assertion",
			Name:      "evaluated_total",
			Help:      "Polled assertions by outcome.",
		}, []string{"result"}),
		assertionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assertion",
			Name:      "latency_seconds",
			Help:      "Time until an assertion settled.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		dialogs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "intercepted_total",
			Help:      "Native dialogs by kind and whether a handler answered.",
		}, []string{"kind", "handled"}),
		openPages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "contexts",
			Name:      "open_pages",
			Help:      "Pages currently open across all browsing contexts.",
		}),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveResolve(card string, matches, attempts int, err error) {
	c.resolves.WithLabelValues(card, result(err)).Inc()
	c.resolveAttempts.Observe(float64(attempts))
}

func (c *Collector) ObserveAction(kind entity.ActionKind, attempts, restarts int, elapsed time.Duration, err error) {
	c.actions.WithLabelValues(string(kind), result(err)).Inc()
	if restarts > 0 {
		c.actionRestarts.Add(float64(restarts))
	}
	c.actionLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveAssertion(satisfied bool, attempts int, elapsed time.Duration) {
	r := "satisfied"
	if !satisfied {
		r = "timeout"
	}
	c.assertions.WithLabelValues(r).Inc()
	c.assertionLatency.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveDialog(kind entity.DialogKind, handled bool) {
	h := "false"
	if handled {
		h = "true"
	}
	c.dialogs.WithLabelValues(string(kind), h).Inc()
}

func (c *Collector) ObservePages(open int) {
	c.openPages.Set(float64(open))
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := entity.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "error"
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveResolve(string, int, int, error)                          {}
func (Nop) ObserveAction(entity.ActionKind, int, int, time.Duration, error) {}
func (Nop) ObserveAssertion(bool, int, time.Duration)                       {}
func (Nop) ObserveDialog(entity.DialogKind, bool)                           {}
func (Nop) ObservePages(int)                                                {}
