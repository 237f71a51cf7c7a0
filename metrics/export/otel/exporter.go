package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() tokenauth.MetricsSnapshot
	AuditDropped() uint64
}

// observeFunc reports one instrument from a snapshot taken once per collection.
type observeFunc func(o metric.Observer, snap tokenauth.MetricsSnapshot, dropped uint64)

// OTelExporter keeps the callback registration alive until Close.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	observers    []observeFunc
}

// NewOTelExporter registers instruments on meter that read from a.
func NewOTelExporter(meter metric.Meter, a *tokenauth.Authority) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, a)
}

// NewOTelExporterFromSource registers one observable counter per Authority
// counter and, per histogram, a cumulative gauge for each bucket plus _count
// and _sum gauges.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Counters {
		id := def.ID
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		observables = append(observables, ins)
		e.observers = append(e.observers, func(o metric.Observer, snap tokenauth.MetricsSnapshot, _ uint64) {
			o.ObserveInt64(ins, int64(snap.Counters[id]))
		})
	}

	for _, def := range internaldefs.Histograms {
		obs, fn, err := histogramInstruments(meter, def)
		if err != nil {
			return nil, err
		}
		observables = append(observables, obs...)
		e.observers = append(e.observers, fn)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDropped.Name,
		metric.WithDescription(internaldefs.AuditDropped.Help))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDropped.Name, err)
	}
	observables = append(observables, dropped)
	e.observers = append(e.observers, func(o metric.Observer, _ tokenauth.MetricsSnapshot, n uint64) {
		o.ObserveInt64(dropped, int64(n))
	})

	e.registration, err = meter.RegisterCallback(e.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) collect(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	for _, fn := range e.observers {
		fn(o, snap, dropped)
	}
	return nil
}

func histogramInstruments(meter metric.Meter, def internaldefs.Def) ([]metric.Observable, observeFunc, error) {
	buckets := make([]metric.Int64ObservableGauge, len(internaldefs.Buckets))
	observables := make([]metric.Observable, 0, len(buckets)+2)

	for i, b := range internaldefs.Buckets {
		name := def.Name + "_bucket_le_" + b.Suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative bucket count: "+def.Help))
		if err != nil {
			return nil, nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		buckets[i] = g
		observables = append(observables, g)
	}

	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Sample count: "+def.Help))
	if err != nil {
		return nil, nil, fmt.Errorf("create gauge %s_count: %w", def.Name, err)
	}
	sum, err := meter.Float64ObservableGauge(def.Name+"_sum",
		metric.WithDescription("Total observed seconds: "+def.Help), metric.WithUnit("s"))
	if err != nil {
		return nil, nil, fmt.Errorf("create gauge %s_sum: %w", def.Name, err)
	}
	observables = append(observables, count, sum)

	id := def.ID
	fn := func(o metric.Observer, snap tokenauth.MetricsSnapshot, _ uint64) {
		cumulative := internaldefs.Cumulative(snap.Histograms[id])
		for i, g := range buckets {
			o.ObserveInt64(g, int64(cumulative[i]))
		}
		o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(sum, snap.HistogramSums[id].Seconds())
	}
	return observables, fn, nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
