// Package metrics provides Prometheus metrics collection for limbo.
package metrics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/limbo/core/schema"
)

const namespace = "limbo"

// Collector holds all Prometheus metrics for limbo.
type Collector struct {
	// Validation metrics
	ValidationPasses   *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
	FieldErrors        *prometheus.CounterVec

	// Project metrics
	OptionsParsed *prometheus.CounterVec
	Artifacts     *prometheus.GaugeVec

	// Connection metrics
	ConnectionChecks        *prometheus.CounterVec
	ConnectionCheckDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer), prometheus.DefaultGatherer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	return newCollector(promauto.With(reg), reg)
}

func newCollector(factory promauto.Factory, gatherer prometheus.Gatherer) *Collector {
	return &Collector{
		ValidationPasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_passes_total",
				Help:      "Total number of project validation passes",
			},
			[]string{"result"},
		),
		ValidationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Project validation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		FieldErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_errors_total",
				Help:      "Total number of field errors by project section",
			},
			[]string{"section"},
		),

		OptionsParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "options_parsed_total",
				Help:      "Total number of column options parsed by kind and data type",
			},
			[]string{"kind", "data_type"},
		),
		Artifacts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "artifacts",
				Help:      "Number of artifacts in the last valid project",
			},
			[]string{"kind"},
		),

		ConnectionChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_checks_total",
				Help:      "Total number of connection checks",
			},
			[]string{"type", "result"},
		),
		ConnectionCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_check_duration_seconds",
				Help:      "Connection check duration in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"type"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),

		gatherer: gatherer,
	}
}

// RecordValidation records one validation pass. Field errors are counted by
// the top-level section they belong to.
func (c *Collector) RecordValidation(err error, d time.Duration) {
	c.ValidationDuration.Observe(d.Seconds())

	if err == nil {
		c.ValidationPasses.WithLabelValues("ok").Inc()
		return
	}
	c.ValidationPasses.WithLabelValues("failed").Inc()

	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for _, fe := range verr.Errors {
		c.FieldErrors.WithLabelValues(Section(fe.Field)).Inc()
	}
}

// ObserveProject records the options and artifact counts of a valid project.
func (c *Collector) ObserveProject(p *schema.Project) {
	for _, t := range p.Tables {
		for _, col := range t.Columns {
			for _, opt := range col.Options {
				dataType := string(opt.DataType())
				if opt.IsReference() {
					dataType = "none"
				}
				c.OptionsParsed.WithLabelValues(opt.Kind().String(), dataType).Inc()
			}
		}
	}

	c.Artifacts.WithLabelValues("connection").Set(float64(len(p.Connections)))
	c.Artifacts.WithLabelValues("table").Set(float64(len(p.Tables)))
	c.Artifacts.WithLabelValues("seed").Set(float64(len(p.Seeds)))
	c.Artifacts.WithLabelValues("source").Set(float64(len(p.Sources)))
}

// RecordConnectionCheck records one connection check.
func (c *Collector) RecordConnectionCheck(connType string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	c.ConnectionChecks.WithLabelValues(connType, result).Inc()
	c.ConnectionCheckDuration.WithLabelValues(connType).Observe(d.Seconds())
}

// RecordReload records a config reload attempt.
func (c *Collector) RecordReload(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// WriteTextfile writes every gathered metric to path in the text format read
// by the node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Section returns the top-level section of a field path, e.g. "tables" for
// "tables[0].columns[1].generator".
func Section(field string) string {
	end := strings.IndexAny(field, "[.")
	if end < 0 {
		return field
	}
	return field[:end]
}
