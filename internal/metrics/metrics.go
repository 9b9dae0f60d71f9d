// Package metrics exports bench activity as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

const namespace = "bench"

// Metrics implements the resource, instrument and driver observers.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	found        prometheus.Gauge
	cacheHits    prometheus.Counter

	exchanges        *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec

	captures *prometheus.CounterVec
	samples  prometheus.Counter
	clipped  prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_scans_total",
			Help:      "Resource scans by outcome.",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_scan_duration_seconds",
			Help:      "Time spent enumerating resources.",
			Buckets:   prometheus.DefBuckets,
		}),
		found: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resources_found",
			Help:      "Locators returned by the last successful scan.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_cache_hits_total",
			Help:      "List calls served from cache.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Instrument exchanges by operation and outcome.",
		}, []string{"op", "outcome"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Instrument exchange latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Waveform captures by outcome (ok, decode, timeout, cancelled, error).",
		}, []string{"outcome"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_samples_total",
			Help:      "Samples decoded from successful captures.",
		}),
		clipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_clipped_total",
			Help:      "Captures with samples at the ADC limits.",
		}),
	}
	m.registry.MustRegister(
		m.scans,
		m.scanDuration,
		m.found,
		m.cacheHits,
		m.exchanges,
		m.exchangeDuration,
		m.captures,
		m.samples,
		m.clipped,
	)
	return m
}

// Registry exposes the collectors, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func outcome(err error) string {
	var decodeErr *waveform.DecodeError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &decodeErr):
		return "decode"
	case transport.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

func (m *Metrics) ScanCompleted(d time.Duration, found int, err error) {
	m.scans.WithLabelValues(outcome(err)).Inc()
	m.scanDuration.Observe(d.Seconds())
	if err == nil {
		m.found.Set(float64(found))
	}
}

func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

func (m *Metrics) ExchangeCompleted(op string, d time.Duration, err error) {
	m.exchanges.WithLabelValues(op, outcome(err)).Inc()
	m.exchangeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) CaptureCompleted(samples int, clipped bool, err error) {
	m.captures.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	m.samples.Add(float64(samples))
	if clipped {
		m.clipped.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
