// Package metrics exposes Prometheus metrics describing metamodel runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/optilab/internal/optimization/metamodel"
)

const namespace = "optilab"

// Metrics owns a registry holding the optimization metrics.
type Metrics struct {
	registry *prometheus.Registry

	generations     *prometheus.CounterVec
	realEvaluations *prometheus.CounterVec
	predictions     *prometheus.CounterVec
	rounds          *prometheus.HistogramVec
	stable          *prometheus.CounterVec
	nInit           *prometheus.GaugeVec
	trainSetSize    *prometheus.GaugeVec
	trials          *prometheus.CounterVec
	trialDuration   *prometheus.HistogramVec
}

// New creates the metrics and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations processed by the metamodel, by phase.",
		}, []string{"method", "phase"}),
		realEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "real_evaluations_total",
			Help:      "Evaluations of the real objective function.",
		}, []string{"method"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surrogate_predictions_total",
			Help:      "Predictions made by the surrogate.",
		}, []string{"method"}),
		rounds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinement_rounds",
			Help:      "Refinement rounds per steady-state generation.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}, []string{"method"}),
		stable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stable_generations_total",
			Help:      "Steady-state generations whose elite stabilized.",
		}, []string{"method"}),
		nInit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "n_init",
			Help:      "Initial evaluation count of the most recent generation.",
		}, []string{"method"}),
		trainSetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_set_size",
			Help:      "Training set size after the most recent generation.",
		}, []string{"method"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Completed trials, by status.",
		}, []string{"method", "status"}),
		trialDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_duration_seconds",
			Help:      "Wall time of a trial.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.generations,
		m.realEvaluations,
		m.predictions,
		m.rounds,
		m.stable,
		m.nInit,
		m.trainSetSize,
		m.trials,
		m.trialDuration,
	)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observer returns a metamodel observer recording generations under the
// given method label. It is safe for concurrent use.
func (m *Metrics) Observer(method string) metamodel.Observer {
	return metamodel.ObserverFunc(func(s metamodel.GenerationStats) {
		phase := "steady"
		if s.Bootstrap {
			phase = "bootstrap"
		}
		m.generations.WithLabelValues(method, phase).Inc()
		m.realEvaluations.WithLabelValues(method).Add(float64(s.RealEvaluations))
		m.predictions.WithLabelValues(method).Add(float64(s.Predictions))
		m.trainSetSize.WithLabelValues(method).Set(float64(s.TrainSetSize))
		if s.Bootstrap {
			return
		}
		m.rounds.WithLabelValues(method).Observe(float64(s.Rounds))
		m.nInit.WithLabelValues(method).Set(float64(s.NInit))
		if s.Stable {
			m.stable.WithLabelValues(method).Inc()
		}
	})
}

// RecordTrial records the outcome of one trial.
func (m *Metrics) RecordTrial(method string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.trials.WithLabelValues(method, status).Inc()
	m.trialDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// WriteTextfile writes the metrics in the Prometheus text format to path,
// for collection by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
