package otel

import (
	"time"

	"github.com/spf13/viper"
)

// Config selects which OTLP exporters are started. With both disabled, Init
// installs providers that export nothing.
type Config struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`

	MetricsEnabled        bool          `mapstructure:"metrics_enabled"`
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval"`
	RuntimeMetricsEnabled bool          `mapstructure:"go_metrics_enabled"`

	ServiceName string        `mapstructure:"service_name"`
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Setup registers defaults; serviceName is the default service.name resource.
func Setup(v *viper.Viper, prefix, serviceName string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("tracing_enabled"), false)
	v.SetDefault(p("sampling_rate"), 1.0)
	v.SetDefault(p("metrics_enabled"), false)
	v.SetDefault(p("metrics_export_interval"), "30s")
	v.SetDefault(p("go_metrics_enabled"), false)
	v.SetDefault(p("service_name"), serviceName)
	v.SetDefault(p("endpoint"), "localhost:4317")
	v.SetDefault(p("insecure"), true)
	v.SetDefault(p("timeout"), "10s")
}
