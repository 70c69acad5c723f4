// Package observability holds the bridge's OpenTelemetry instruments, the
// Prometheus exposition for host processes and log throttling.
package observability

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module is one process's metric pipeline: an OTel MeterProvider read by a
// Prometheus exporter on a private registry.
type Module struct {
	service  string
	provider *sdkmetric.MeterProvider
	registry *prom.Registry
}

// New builds the pipeline for service and installs it as the global
// MeterProvider. The registry also carries the Go runtime and process
// collectors so a host's /metrics shows scheduler and memory pressure next
// to the bridge counters.
func New(service string) (*Module, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter for %s: %w", service, err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return &Module{service: service, provider: provider, registry: registry}, nil
}

// NewMetrics creates the bridge instruments scoped to the module's service.
func (m *Module) NewMetrics() (*Metrics, error) {
	return NewMetrics(m.provider.Meter(m.service))
}

// MetricsHandler serves the registry in the Prometheus text format.
func (m *Module) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Shutdown flushes and stops the provider.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
