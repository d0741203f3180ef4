package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is a single request being built.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	// SetResult decodes a successful JSON body into result.
	SetResult(result any) Request
}

// Response is an http.Response with its body already read.
type Response struct {
	*http.Response
	body []byte
}

// Body returns the response body.
func (r *Response) Body() []byte {
	return r.body
}

// IsError reports a status code of 400 or more.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// ResponseErrorHandler turns a response into an error, or nil to accept it.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric attribute.
type Label struct {
	Key   string
	Value string
}

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []Label
}

// RequestOption configures one request.
type RequestOption func(*requestOptions)

// WithResponseErrorHandler sets the handler deciding which responses fail.
func WithResponseErrorHandler(h ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = h }
}

// WithLabels adds metric attributes to the request.
func WithLabels(labels ...Label) RequestOption {
	return func(o *requestOptions) { o.labels = append(o.labels, labels...) }
}

// StatusError fails every response with a status of 400 or more.
func StatusError(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("unexpected status %d: %s", statusCode, strings.TrimSpace(snippet))
}

type requestBuilder struct {
	client       *InstrumentedClient
	headers      map[string]string
	query        map[string]string
	body         any
	result       any
	errorHandler ResponseErrorHandler
	labels       []Label
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, path)
}

func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	r.query[key] = value
	return r
}

func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) execute(ctx context.Context, method, path string) (*Response, error) {
	c := r.client
	fullURL, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "http.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", fullURL),
		attribute.String("provider", c.providerName),
	))
	defer span.End()

	body, err := r.encodeBody()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode body")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if c.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(data))))
	}
	out := &Response{Response: resp, body: data}

	if r.errorHandler != nil {
		if herr := r.errorHandler(resp.StatusCode, data); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			r.recordMetrics(ctx, false)
			return out, herr
		}
	}

	if r.result != nil && !out.IsError() && len(data) > 0 {
		if err := json.Unmarshal(data, r.result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode body")
			r.recordMetrics(ctx, false)
			return out, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	r.recordMetrics(ctx, !out.IsError())
	return out, nil
}

func (r *requestBuilder) resolve(path string) (string, error) {
	full := path
	if base := r.client.baseURL; base != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return full, nil
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", full, err)
	}
	q := u.Query()
	for k, v := range r.query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *requestBuilder) encodeBody() (io.Reader, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
		return bytes.NewReader(data), nil
	}
}

func (r *requestBuilder) recordError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
	span.SetStatus(codes.Error, err.Error())
	r.recordMetrics(ctx, false)
}

func (r *requestBuilder) recordMetrics(ctx context.Context, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.client.providerName),
		attribute.Bool("success", success),
	}
	for _, l := range r.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	r.client.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
