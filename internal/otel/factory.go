package otel

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MetricFactory creates instruments from the global meter under a common
// name prefix. Instruments made before Init delegate to the provider Init
// installs, so packages can declare theirs in init().
type MetricFactory struct {
	meter  metric.Meter
	prefix string
}

func NewFactory(meterName, prefix string) *MetricFactory {
	return &MetricFactory{
		meter:  otel.Meter(meterName),
		prefix: prefix,
	}
}

func (f *MetricFactory) fullName(name string) string {
	if f.prefix == "" {
		return name
	}
	return f.prefix + "." + name
}

// must panics on instrument errors, which only come from invalid names.
func must[T any](name string, inst T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("otel: instrument %s: %v", name, err))
	}
	return inst
}

func (f *MetricFactory) Int64Counter(target *metric.Int64Counter, name string, opts ...metric.Int64CounterOption) {
	n := f.fullName(name)
	c, err := f.meter.Int64Counter(n, opts...)
	*target = must(n, c, err)
}

func (f *MetricFactory) Int64UpDownCounter(target *metric.Int64UpDownCounter, name string, opts ...metric.Int64UpDownCounterOption) {
	n := f.fullName(name)
	c, err := f.meter.Int64UpDownCounter(n, opts...)
	*target = must(n, c, err)
}

func (f *MetricFactory) Float64Histogram(target *metric.Float64Histogram, name string, opts ...metric.Float64HistogramOption) {
	n := f.fullName(name)
	h, err := f.meter.Float64Histogram(n, opts...)
	*target = must(n, h, err)
}
