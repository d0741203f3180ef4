package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
)

const (
	tracerName = "wallet"
	meterName  = "wallet"
)

var _ Adapter = (*Service)(nil)

type serviceMetrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
}

// Service decorates an Adapter with tracing, logging and error
// classification, and notifies listeners when the connection changes.
type Service struct {
	adapter Adapter
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *serviceMetrics

	mu        sync.RWMutex
	listeners []func(connected bool)
}

// NewService wraps adapter.
func NewService(adapter Adapter, log logger.LoggerInterface) (*Service, error) {
	s := &Service{
		adapter: adapter,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Service) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.calls, err = meter.Int64Counter(
		"wallet_calls_total",
		metric.WithDescription("Total wallet adapter calls"),
	)
	if err != nil {
		return err
	}

	s.metrics.failures, err = meter.Int64Counter(
		"wallet_failures_total",
		metric.WithDescription("Total failed wallet adapter calls"),
	)
	return err
}

// OnConnectionChange registers fn for connect and disconnect events.
func (s *Service) OnConnectionChange(fn func(connected bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) notify(connected bool) {
	s.mu.RLock()
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(connected)
	}
}

func (s *Service) Name() string {
	return s.adapter.Name()
}

func (s *Service) Connect(ctx context.Context) error {
	err := s.observe(ctx, "connect", func(ctx context.Context) error {
		return s.adapter.Connect(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "wallet connected", "adapter", s.adapter.Name(), "address", s.adapter.Address())
	s.notify(true)
	return nil
}

func (s *Service) Disconnect(ctx context.Context) error {
	err := s.observe(ctx, "disconnect", func(ctx context.Context) error {
		return s.adapter.Disconnect(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "wallet disconnected", "adapter", s.adapter.Name())
	s.notify(false)
	return nil
}

func (s *Service) Connected() bool {
	return s.adapter.Connected()
}

func (s *Service) Address() string {
	return s.adapter.Address()
}

func (s *Service) GetBalance(ctx context.Context, token *asset.Asset) (asset.Amount, error) {
	var out asset.Amount
	err := s.observe(ctx, "get_balance", func(ctx context.Context) error {
		var err error
		out, err = s.adapter.GetBalance(ctx, token)
		return err
	}, attribute.String("token", token.Symbol()))
	return out, err
}

func (s *Service) GetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	var out bool
	err := s.observe(ctx, "get_permission", func(ctx context.Context) error {
		var err error
		out, err = s.adapter.GetTokenUsePermission(ctx, token)
		return err
	}, attribute.String("token", token.Symbol()))
	return out, err
}

func (s *Service) SetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	var out bool
	err := s.observe(ctx, "set_permission", func(ctx context.Context) error {
		var err error
		out, err = s.adapter.SetTokenUsePermission(ctx, token)
		return err
	}, attribute.String("token", token.Symbol()))
	if err == nil {
		s.logger.Info(ctx, "token permission granted", "token", token.Symbol(), "granted", out)
	}
	return out, err
}

func (s *Service) Swap(ctx context.Context, order domain.SwapOrder) (domain.Status, error) {
	return s.submit(ctx, "swap", func(ctx context.Context) (domain.Status, error) {
		return s.adapter.Swap(ctx, order)
	}, attribute.String("from", order.From.String()), attribute.String("to", order.To.String()))
}

func (s *Service) AddLiquidity(ctx context.Context, order domain.LiquidityOrder) (domain.Status, error) {
	return s.submit(ctx, "add_liquidity", func(ctx context.Context) (domain.Status, error) {
		return s.adapter.AddLiquidity(ctx, order)
	}, attribute.String("amount0", order.Amount0.String()), attribute.String("amount1", order.Amount1.String()))
}

func (s *Service) RemoveLiquidity(ctx context.Context, order domain.RemoveOrder) (domain.Status, error) {
	return s.submit(ctx, "remove_liquidity", func(ctx context.Context) (domain.Status, error) {
		return s.adapter.RemoveLiquidity(ctx, order)
	}, attribute.String("liquidity", order.Liquidity.String()))
}

func (s *Service) GetPool(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error) {
	var out domain.PoolSnapshot
	err := s.observe(ctx, "get_pool", func(ctx context.Context) error {
		var err error
		out, err = s.adapter.GetPool(ctx, a, b)
		return err
	}, attribute.String("pair", a.Symbol()+"/"+b.Symbol()))
	return out, err
}

func (s *Service) ApproveRemovePool(ctx context.Context, input domain.PoolInput) (domain.Status, error) {
	return s.submit(ctx, "approve_remove_pool", func(ctx context.Context) (domain.Status, error) {
		return s.adapter.ApproveRemovePool(ctx, input)
	}, attribute.String("liquidity", input.Liquidity.String()))
}

func (s *Service) submit(ctx context.Context, op string, fn func(context.Context) (domain.Status, error), attrs ...attribute.KeyValue) (domain.Status, error) {
	var status domain.Status
	err := s.observe(ctx, op, func(ctx context.Context) error {
		var err error
		status, err = fn(ctx)
		return err
	}, attrs...)
	if err != nil {
		return domain.Status{}, err
	}
	s.logger.Info(ctx, "wallet transaction", "op", op, "hash", status.Hash, "state", status.State.String())
	return status, nil
}

func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	attrs = append(attrs, attribute.String("op", op), attribute.String("adapter", s.adapter.Name()))
	ctx, span := s.tracer.Start(ctx, "wallet."+op, trace.WithAttributes(attrs...))
	defer span.End()

	s.metrics.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))

	err := fn(ctx)
	if err == nil {
		span.SetStatus(codes.Ok, op)
		return nil
	}

	err = classify(err, op)
	s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	if !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "wallet call failed", "op", op, "error", err)
	}
	return err
}

// classify turns adapter errors into app errors the controller can render.
func classify(err error, op string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, domain.ErrNotConnected):
		return apperror.Transport(apperror.CodeWalletDisconnected, op, err)
	case errors.Is(err, domain.ErrPoolNotFound):
		return apperror.New(apperror.CodePoolNotFound, apperror.WithContext("op", op), apperror.WithCause(err))
	case errors.Is(err, domain.ErrExpired):
		return apperror.Transport(apperror.CodeWalletRejected, op, err)
	default:
		return apperror.Wrap(err, apperror.CodeWalletTransport, op)
	}
}
