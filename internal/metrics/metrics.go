// Package metrics counts what the click samplers emit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry with the sampler metrics. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	clicks    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	omitted   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		clicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicksim_clicks_total",
				Help: "Total number of simulated clicks emitted",
			},
			[]string{"method", "label"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicksim_fallbacks_total",
				Help: "Entries with no error region that received a random click",
			},
			[]string{"method"},
		),
		omitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicksim_omitted_total",
				Help: "Entries left out of the click set",
			},
			[]string{"method"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clicksim_sample_duration_seconds",
				Help:    "Time spent sampling one batch",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"method"},
		),
	}
	r.registry.MustRegister(r.clicks, r.fallbacks, r.omitted, r.duration)
	return r
}

// Registry exposes the underlying registry, e.g. for WriteToTextfile.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Click counts one emitted click.
func (r *Recorder) Click(method, label string) {
	if r == nil {
		return
	}
	r.clicks.WithLabelValues(method, label).Inc()
}

// Fallback counts one entry that fell back to a random click.
func (r *Recorder) Fallback(method string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(method).Inc()
}

// Omitted counts one entry missing from the output.
func (r *Recorder) Omitted(method string) {
	if r == nil {
		return
	}
	r.omitted.WithLabelValues(method).Inc()
}

// ObserveDuration records how long one Sample call took.
func (r *Recorder) ObserveDuration(method string, d time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(method).Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
