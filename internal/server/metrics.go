package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/observability"
)

const namespace = "flowsketch"

// Metrics holds the server's Prometheus collectors. It implements the
// observability command and layout hooks.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	LayoutRuns      *prometheus.CounterVec
	LayoutTicks     *prometheus.CounterVec
	LayoutDuration  *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	StreamClients   prometheus.Gauge
}

var (
	_ observability.CommandHooks = (*Metrics)(nil)
	_ observability.LayoutHooks  = (*Metrics)(nil)
)

func newMetrics(reg prometheus.Registerer, sessions func() int, renders *cache.Memo) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Executed command lines by keyword and diagnostic code",
			},
			[]string{"command", "code"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent executing one command line",
				Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"command"},
		),
		LayoutRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "layout_runs_total",
				Help:      "Finished layout processes by engine and result",
			},
			[]string{"engine", "result"},
		),
		LayoutTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "layout_ticks_total",
				Help:      "Position batches written back to a store",
			},
			[]string{"engine"},
		),
		LayoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "layout_duration_seconds",
				Help:      "Wall time of layout processes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern, method and status",
			},
			[]string{"route", "method", "status"},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected WebSocket stream clients",
			},
		),
	}

	reg.MustRegister(
		m.Commands,
		m.CommandDuration,
		m.LayoutRuns,
		m.LayoutTicks,
		m.LayoutDuration,
		m.HTTPRequests,
		m.StreamClients,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions",
				Help:      "Live editing sessions",
			},
			func() float64 { return float64(sessions()) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_cache_hits_total",
				Help:      "Renders served from the artifact cache",
			},
			func() float64 { hits, _ := renders.Stats(); return float64(hits) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "render_cache_misses_total",
				Help:      "Renders computed by Graphviz",
			},
			func() float64 { _, misses := renders.Stats(); return float64(misses) },
		),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OnCommand(_ context.Context, name string, d time.Duration, err error) {
	if name == "" {
		name = "unknown"
	}
	m.Commands.WithLabelValues(name, codeLabel(err)).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) OnLayoutStart(context.Context, string, string, int) {}

func (m *Metrics) OnLayoutTick(_ context.Context, engine string) {
	m.LayoutTicks.WithLabelValues(engine).Inc()
}

func (m *Metrics) OnLayoutComplete(_ context.Context, engine string, _ int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LayoutRuns.WithLabelValues(engine, result).Inc()
	m.LayoutDuration.WithLabelValues(engine).Observe(d.Seconds())
}

func codeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.GetCode(err); code != "" {
		return string(code)
	}
	return string(errors.ErrCodeInternal)
}
