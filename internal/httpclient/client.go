// Package httpclient provides an HTTP client instrumented with otel
// tracing and request metrics.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	metricRequestCounter = "http_client_requests_total"
	instrumentationName  = "instrumented_http_client"
)

// Client builds and executes requests.
type Client interface {
	NewRequest(opts ...RequestOption) Request
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	client         *http.Client
	roundTripper   http.RoundTripper
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	providerName   string
	baseURL        string
	headers        map[string]string
	requestTimeout time.Duration
	logResponse    bool
}

// Option configures Options.
type Option func(*Options)

// WithHTTPClient uses c instead of a fresh http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.client = c }
}

// WithRoundTripper sets the transport wrapped by the instrumentation.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) { o.roundTripper = rt }
}

// WithMeterProvider sets the meter provider, the global one by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) { o.meterProvider = mp }
}

// WithProviderName labels spans and metrics.
func WithProviderName(name string) Option {
	return func(o *Options) { o.providerName = name }
}

// WithBaseURL resolves relative request paths against url.
func WithBaseURL(url string) Option {
	return func(o *Options) { o.baseURL = url }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) { o.headers = headers }
}

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.requestTimeout = d }
}

// WithResponseLogging records response bodies as span events.
func WithResponseLogging(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.tracer = tracer
		o.logResponse = true
	}
}

// InstrumentedClient wraps http.Client with otel instrumentation.
type InstrumentedClient struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	tracer         trace.Tracer
	providerName   string
	baseURL        string
	headers        map[string]string
	logResponse    bool
}

// New creates an instrumented client.
func New(opts ...Option) (*InstrumentedClient, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := o.client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if o.requestTimeout > 0 {
		httpClient.Timeout = o.requestTimeout
	}

	transport := o.roundTripper
	if transport == nil {
		transport = httpClient.Transport
	}
	if transport == nil {
		transport = &http.Transport{
			DialContext:           (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost:       defaultMaxConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}
	httpClient.Transport = otelhttp.NewTransport(transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	if o.providerName == "" {
		o.providerName = "default"
	}
	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", o.providerName)))

	counter, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &InstrumentedClient{
		client:         httpClient,
		requestCounter: counter,
		tracer:         tracer,
		providerName:   o.providerName,
		baseURL:        o.baseURL,
		headers:        o.headers,
		logResponse:    o.logResponse,
	}, nil
}

// NewRequest starts a request carrying the client's default headers.
func (c *InstrumentedClient) NewRequest(opts ...RequestOption) Request {
	ro := &requestOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}

	return &requestBuilder{
		client:       c,
		headers:      headers,
		query:        make(map[string]string),
		errorHandler: ro.errorHandler,
		labels:       ro.labels,
	}
}

// Do executes req as is.
func (c *InstrumentedClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(ctx))
}
