package metrics

import (
	promclient "github.com/prometheus/client_golang/prometheus"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "otlp"
)

// NewOtelCollectorConfig points the OTLP gRPC reader at a collector.
func NewOtelCollectorConfig(endpoint string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: insecure,
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
	Registerer  promclient.Registerer
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)

		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName

		return config
	}
}

// WithRegisterer sends Prometheus collectors somewhere other than the
// default registry.
func WithRegisterer(reg promclient.Registerer) OptionFn {
	return func(config Config) Config {
		config.Registerer = reg

		return config
	}
}

type PromServerConfig struct {
	port     int
	gatherer promclient.Gatherer
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

func WithPort(port int) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.port = port
		return config
	}
}

func WithGatherer(g promclient.Gatherer) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.gatherer = g
		return config
	}
}
