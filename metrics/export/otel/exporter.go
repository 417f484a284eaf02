package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() adminauth.MetricsSnapshot
	AuditDropped() uint64
}

type onlineCounter interface {
	OnlineCount(ctx context.Context) (int, error)
}

type observedCounter struct {
	id         adminauth.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram exports one histogram as a gauge per cumulative bucket
// plus a count gauge.
type observedHistogram struct {
	id      adminauth.MetricID
	buckets []metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Option tunes an OTelExporter.
type Option func(*OTelExporter)

// WithAttributes attaches attrs to every observation, e.g. the service
// instance name.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(e *OTelExporter) {
		e.attrs = append(e.attrs, attrs...)
	}
}

// OTelExporter publishes engine counters through an OTel Meter. Values are
// read from one snapshot per collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	attrs        []attribute.KeyValue
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	online       metric.Int64ObservableUpDownCounter
}

// NewOTelExporter registers observable instruments on meter that read from
// engine at collection time.
func NewOTelExporter(meter metric.Meter, engine *adminauth.Engine, opts ...Option) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine, opts...)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource, opts ...Option) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	for _, opt := range opts {
		opt(e)
	}

	var observables []metric.Observable
	track := func(o metric.Observable) { observables = append(observables, o) }

	for _, def := range internaldefs.Counters {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		track(ins)
	}

	for _, def := range internaldefs.Histograms {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		for _, b := range h.buckets {
			track(b)
		}
		track(h.count)
		e.histograms = append(e.histograms, h)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(
		"adminauth_audit_dropped_total",
		metric.WithDescription("Audit events dropped on a full buffer."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	track(e.auditDropped)

	if _, ok := source.(onlineCounter); ok {
		e.online, err = meter.Int64ObservableUpDownCounter(
			"adminauth_online_sessions",
			metric.WithDescription("Sessions currently in the online registry."),
		)
		if err != nil {
			return nil, fmt.Errorf("create online sessions gauge: %w", err)
		}
		track(e.online)
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.Def) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}
	for _, bucket := range internaldefs.Buckets {
		name := def.Name + "_bucket_le_" + bucket.Suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count."))
		if err != nil {
			return h, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		h.buckets = append(h.buckets, g)
	}
	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help))
	if err != nil {
		return h, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
	}
	h.count = count
	return h, nil
}

func (e *OTelExporter) observe(ctx context.Context, observer metric.Observer) error {
	opt := metric.WithAttributes(e.attrs...)
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]), opt)
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.Cumulative(snapshot.Histograms[h.id])
		for i, g := range h.buckets {
			observer.ObserveInt64(g, int64(cumulative[i]), opt)
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]), opt)
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()), opt)

	if e.online != nil {
		oc := e.source.(onlineCounter)
		cctx, cancel := context.WithTimeout(ctx, time.Second)
		n, err := oc.OnlineCount(cctx)
		cancel()
		if err == nil {
			observer.ObserveInt64(e.online, int64(n), opt)
		}
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
