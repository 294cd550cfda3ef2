// Package metrics counts assessments and publish outcomes with Prometheus
// collectors on a private registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/wikiclaim/internal/validate"
)

const namespace = "wikiclaim"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	assessments     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	publishAttempts *prometheus.CounterVec
	published       *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Entities assessed, by gate verdict.",
		}, []string{"verdict"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Failed notability rules.",
		}, []string{"rule"}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_attempts_total",
			Help:      "Publish API calls, by target and result.",
		}, []string{"target", "result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Items created, by target.",
		}, []string{"target"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"target"}),
	}

	m.registry.MustRegister(m.assessments, m.rejections, m.publishAttempts, m.published, m.publishDuration)
	return m
}

// Registry exposes the registry for scraping or export
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAssessment counts one gate verdict and its failed rules
func (m *Metrics) ObserveAssessment(isNotable bool, reasons []string) {
	if m == nil {
		return
	}
	verdict := "rejected"
	if isNotable {
		verdict = "notable"
	}
	m.assessments.WithLabelValues(verdict).Inc()
	for _, r := range reasons {
		m.rejections.WithLabelValues(validate.RuleOf(r)).Inc()
	}
}

// ObservePublishAttempt counts one API call. result is "success" or an error kind.
func (m *Metrics) ObservePublishAttempt(target, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(target, result).Inc()
	m.publishDuration.WithLabelValues(target).Observe(d.Seconds())
	if result == "success" {
		m.published.WithLabelValues(target).Inc()
	}
}

// WriteToTextfile writes the current values in the node exporter textfile format
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
