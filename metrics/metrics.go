// Package metrics exposes show activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/cuelist"
)

const namespace = "cueforge"

// Source is the part of the cue list the collector reads and listens to.
type Source interface {
	Subscribe(fn func(cuelist.Event)) (unsubscribe func())
	ActiveCues() []cue.Cue
	BrokenCueCount() int
	Count() int
}

// Metrics provides Prometheus metrics for a cue list.
type Metrics struct {
	registry *prometheus.Registry

	goTotal    prometheus.Counter
	panicTotal prometheus.Counter
	executions *prometheus.CounterVec
	stopped    prometheus.Counter
	saves      prometheus.Counter
}

// New creates the collectors on their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		goTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "go_total",
			Help:      "Total number of Go commands that fired a cue",
		}),
		panicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_total",
			Help:      "Total number of panic stops",
		}),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cue_executions_total",
				Help:      "Cue executions by outcome",
			},
			[]string{"result"},
		),
		stopped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_all_total",
			Help:      "Total number of times every cue was stopped",
		}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_saves_total",
			Help:      "Total number of workspace saves",
		}),
	}
	m.registry.MustRegister(m.goTotal, m.panicTotal, m.executions, m.stopped, m.saves)
	return m
}

// Attach counts the events of src and registers gauges that read it. It
// can be called once per Metrics.
func (m *Metrics) Attach(src Source) (detach func()) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_cues",
			Help:      "Cues currently in the active set",
		}, func() float64 { return float64(len(src.ActiveCues())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broken_cues",
			Help:      "Cues that failed validation",
		}, func() float64 { return float64(src.BrokenCueCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cues",
			Help:      "Top-level cues in the list",
		}, func() float64 { return float64(src.Count()) }),
	)
	return src.Subscribe(m.observe)
}

func (m *Metrics) observe(ev cuelist.Event) {
	switch ev.Kind {
	case cuelist.EventGo:
		m.goTotal.Inc()
	case cuelist.EventPanic:
		m.panicTotal.Inc()
	case cuelist.EventExecutionStarted:
		m.executions.WithLabelValues("started").Inc()
	case cuelist.EventExecutionFinished:
		m.executions.WithLabelValues("finished").Inc()
	case cuelist.EventExecutionFailed:
		m.executions.WithLabelValues("failed").Inc()
	case cuelist.EventAllCuesStopped:
		m.stopped.Inc()
	case cuelist.EventWorkspaceSaved:
		m.saves.Inc()
	}
}

// Registry is where the collectors live.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
