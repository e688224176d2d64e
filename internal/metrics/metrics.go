package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives artifact lifecycle events.
type Recorder interface {
	IncSubmissions(result string)
	ObserveExtraction(seconds float64)
	IncServed(result string)
	IncDeletions(source, outcome string)
	SetPendingDeletions(n int)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) IncSubmissions(string)       {}
func (Noop) ObserveExtraction(float64)   {}
func (Noop) IncServed(string)            {}
func (Noop) IncDeletions(string, string) {}
func (Noop) SetPendingDeletions(int)     {}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	submissions *prometheus.CounterVec
	extraction  prometheus.Histogram
	served      *prometheus.CounterVec
	deletions   *prometheus.CounterVec
	pending     prometheus.Gauge
}

// NewProm registers the collectors with reg, or with the default registerer
// when reg is nil. Each registry accepts a namespace once.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Download submissions by result",
		}, []string{"result"}),
		extraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent in yt-dlp per submission",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_total",
			Help:      "Artifact download requests by result",
		}, []string{"result"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "Artifact deletions by source (scheduler, sweep) and outcome",
		}, []string{"source", "outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_deletions",
			Help:      "Artifacts waiting for their retention deadline",
		}),
	}
	reg.MustRegister(p.submissions, p.extraction, p.served, p.deletions, p.pending)
	return p
}

func (p *Prom) IncSubmissions(result string) {
	p.submissions.WithLabelValues(result).Inc()
}

func (p *Prom) ObserveExtraction(seconds float64) {
	p.extraction.Observe(seconds)
}

func (p *Prom) IncServed(result string) {
	p.served.WithLabelValues(result).Inc()
}

func (p *Prom) IncDeletions(source, outcome string) {
	p.deletions.WithLabelValues(source, outcome).Inc()
}

func (p *Prom) SetPendingDeletions(n int) {
	p.pending.Set(float64(n))
}

// Handler returns an HTTP handler for /metrics over the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
