// Package pricefeed streams rate updates over WebSocket into a rate sink,
// usually the static price table.
package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/wsconn"
)

const meterName = "pricefeed"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RateSink accepts base-unit rates keyed by "BASE_QUOTE".
type RateSink interface {
	SetRate(pair string, baseUnitRate decimal.Decimal) error
}

// RateUpdate is one inbound frame.
type RateUpdate struct {
	Pair string          `json:"pair"`
	Rate decimal.Decimal `json:"rate"`
}

// subscribeRequest is sent after every (re)connect.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Config configures the feed.
type Config struct {
	URL   string
	Pairs []string
	// InitialBackoff overrides the reconnect delay when set.
	InitialBackoff time.Duration
}

type feedMetrics struct {
	messages    metric.Int64Counter
	updates     metric.Int64Counter
	parseErrors metric.Int64Counter
}

// Feed owns one WebSocket connection.
type Feed struct {
	cfg    Config
	sink   RateSink
	logger logger.LoggerInterface

	connMu sync.RWMutex
	conn   *wsconn.Client

	requestID atomic.Int64
	metrics   *feedMetrics
}

// New creates a feed writing into sink.
func New(cfg Config, sink RateSink, log logger.LoggerInterface) (*Feed, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("field", "quote.feed_url"))
	}

	f := &Feed{cfg: cfg, sink: sink, logger: log}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.messages, err = meter.Int64Counter(
		"pricefeed_messages_total",
		metric.WithDescription("Total feed messages received"),
	)
	if err != nil {
		return err
	}

	f.metrics.updates, err = meter.Int64Counter(
		"pricefeed_rate_updates_total",
		metric.WithDescription("Total rates applied to the table"),
	)
	if err != nil {
		return err
	}

	f.metrics.parseErrors, err = meter.Int64Counter(
		"pricefeed_parse_errors_total",
		metric.WithDescription("Total malformed feed messages"),
	)
	return err
}

// Start connects, retrying with backoff, and subscribes to the configured
// pairs. Reconnects resubscribe.
func (f *Feed) Start(ctx context.Context) error {
	wsCfg := wsconn.DefaultConfig(f.cfg.URL, "pricefeed")
	if f.cfg.InitialBackoff > 0 {
		wsCfg.InitialBackoff = f.cfg.InitialBackoff
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return err
	}
	conn.OnMessage(f.handleMessage)
	conn.OnStateChange(func(state wsconn.State, err error) {
		f.onState(conn, state, err)
	})

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeWebSocketConnection,
			apperror.WithCause(err),
			apperror.WithContext("url", f.cfg.URL))
	}

	f.logger.Info(ctx, "price feed connected", "url", f.cfg.URL, "pairs", f.cfg.Pairs)
	return nil
}

// Stop closes the connection.
func (f *Feed) Stop() error {
	f.connMu.RLock()
	conn := f.conn
	f.connMu.RUnlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Connected reports the connection state, for health checks.
func (f *Feed) Connected() bool {
	f.connMu.RLock()
	defer f.connMu.RUnlock()
	return f.conn != nil && f.conn.IsConnected()
}

func (f *Feed) onState(conn *wsconn.Client, state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateConnected:
		if len(f.cfg.Pairs) == 0 {
			return
		}
		req := subscribeRequest{
			Method: "SUBSCRIBE",
			Params: f.cfg.Pairs,
			ID:     f.requestID.Add(1),
		}
		if err := conn.SendJSON(ctx, req); err != nil {
			f.logger.Warn(ctx, "price feed subscribe failed", "error", err)
		}
	case wsconn.StateDisconnected:
		if err != nil {
			f.logger.Warn(ctx, "price feed disconnected", "error", err)
		}
	case wsconn.StateReconnecting:
		f.logger.Info(ctx, "price feed reconnecting")
	}
}

func (f *Feed) handleMessage(ctx context.Context, data []byte) {
	f.metrics.messages.Add(ctx, 1)

	var upd RateUpdate
	if err := json.Unmarshal(data, &upd); err != nil || upd.Pair == "" {
		// Subscription acks and unknown frames land here.
		f.metrics.parseErrors.Add(ctx, 1)
		f.logger.Debug(ctx, "ignoring feed message", "data", string(data[:min(len(data), 200)]))
		return
	}

	pair := strings.ToUpper(upd.Pair)
	if err := f.sink.SetRate(pair, upd.Rate); err != nil {
		f.logger.Warn(ctx, "rejected rate update", "pair", pair, "rate", upd.Rate.String(), "error", err)
		return
	}

	f.metrics.updates.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
	f.logger.Debug(ctx, "rate updated", "pair", pair, "rate", upd.Rate.String())
}
