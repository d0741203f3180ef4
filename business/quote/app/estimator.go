package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
)

const instrumentationName = "quote"

type estimatorMetrics struct {
	estimates  metric.Int64Counter
	shortfalls metric.Int64Counter
	failures   metric.Int64Counter
	latency    metric.Float64Histogram
}

// Estimator turns a request into a fully derived Result. It does not fail
// for pairs that cannot be filled: those come back with
// InsufficientLiquidity set. Only source transport faults are errors.
type Estimator struct {
	source QuoteSource
	logger logger.LoggerInterface
	now    func() time.Time

	tracer  trace.Tracer
	metrics *estimatorMetrics
}

// NewEstimator creates an estimator over source.
func NewEstimator(source QuoteSource, log logger.LoggerInterface) (*Estimator, error) {
	e := &Estimator{
		source: source,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(instrumentationName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Estimator) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error

	e.metrics = &estimatorMetrics{}

	e.metrics.estimates, err = meter.Int64Counter(
		"quote_estimates_total",
		metric.WithDescription("Estimates computed, by trigger and operation"),
	)
	if err != nil {
		return err
	}

	e.metrics.shortfalls, err = meter.Int64Counter(
		"quote_insufficient_liquidity_total",
		metric.WithDescription("Estimates that reported insufficient liquidity"),
	)
	if err != nil {
		return err
	}

	e.metrics.failures, err = meter.Int64Counter(
		"quote_transport_failures_total",
		metric.WithDescription("Estimates that failed at the quote source"),
	)
	if err != nil {
		return err
	}

	e.metrics.latency, err = meter.Float64Histogram(
		"quote_estimate_latency_ms",
		metric.WithDescription("Estimate latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// SourceName names the quote source in use.
func (e *Estimator) SourceName() string {
	return e.source.Name()
}

// Estimate prices req.
func (e *Estimator) Estimate(ctx context.Context, req domain.Request) (domain.Result, error) {
	if err := validate(req); err != nil {
		return domain.Result{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", req.Operation.String()),
		attribute.String("tx_type", req.TxType.String()),
		attribute.String("trigger", req.Trigger.String()),
		attribute.String("pair", req.From().Symbol()+"/"+req.To().Symbol()),
	}
	ctx, span := e.tracer.Start(ctx, "quote.estimate", trace.WithAttributes(attrs...))
	defer span.End()

	start := e.now()
	defer func() {
		e.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	}()
	e.metrics.estimates.Add(ctx, 1, metric.WithAttributes(attrs...))

	var (
		leg domain.Leg
		err error
	)
	if req.TxType == domain.ExactIn {
		leg, err = e.source.QuoteExactIn(ctx, req.From(), req.To(), req.Input)
	} else {
		leg, err = e.source.QuoteExactOut(ctx, req.From(), req.To(), req.Input)
	}

	if err != nil {
		if domain.IsLiquidityShortfall(err) {
			e.metrics.shortfalls.Add(ctx, 1, metric.WithAttributes(attrs...))
			span.SetAttributes(attribute.Bool("insufficient_liquidity", true))
			e.logger.Debug(ctx, "estimate: insufficient liquidity", "pair", req.From().Symbol()+"/"+req.To().Symbol(), "reason", err.Error())
			return e.shortfall(req), nil
		}

		e.metrics.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote source failed")
		return domain.Result{}, apperror.Wrap(err, apperror.CodeQuoteTransport, e.source.Name())
	}

	result := e.derive(req, leg)
	span.SetAttributes(
		attribute.String("amount", result.Amount.Decimal().String()),
		attribute.String("quote", result.Quote.Decimal().String()),
	)
	span.SetStatus(codes.Ok, "estimated")
	return result, nil
}

// derive fills the contract fields from a source leg. The user-entered
// side is copied from the request, never from the leg, so it round-trips
// unchanged. The computed side is cut to whole base units: a quoted output
// rounds down and a required input rounds up.
func (e *Estimator) derive(req domain.Request, leg domain.Leg) domain.Result {
	amount, quote := leg.AmountIn, leg.AmountOut
	if req.TxType == domain.ExactIn {
		amount = req.Input
		quote = quote.RoundDown()
	} else {
		quote = req.Input
		amount = amount.RoundUp()
	}

	feeRate := decimal.Zero
	if req.Operation.ChargesFee() {
		feeRate = leg.FeeRate
	}

	return domain.Result{
		Operation: req.Operation,
		TxType:    req.TxType,
		Trigger:   req.Trigger,
		Amount:    amount,
		Quote:     quote,
		Fee: domain.Fee{
			Rate:   feeRate,
			Amount: amount.Mul(feeRate),
		},
		PriceImpact: leg.PriceImpact,
		Bound:       domain.NewSlippageBound(req.TxType, amount, quote, req.Slippage),
		Rate:        rate(amount, quote, e.now()),
		Source:      leg.Source,
	}
}

func (e *Estimator) shortfall(req domain.Request) domain.Result {
	amount, quote := asset.Zero(req.From()), asset.Zero(req.To())
	if req.TxType == domain.ExactIn {
		amount = req.Input
	} else {
		quote = req.Input
	}

	return domain.Result{
		Operation:             req.Operation,
		TxType:                req.TxType,
		Trigger:               req.Trigger,
		Amount:                amount,
		Quote:                 quote,
		Fee:                   domain.Fee{Rate: decimal.Zero, Amount: asset.Zero(req.From())},
		PriceImpact:           decimal.Zero,
		InsufficientLiquidity: true,
		Rate:                  asset.NewPrice(req.From(), req.To(), decimal.Zero, e.now()),
		Source:                e.source.Name(),
	}
}

// rate is the effective execution price, quote per unit of amount.
func rate(amount, quote asset.Amount, at time.Time) asset.Price {
	if amount.IsZero() {
		return asset.NewPrice(amount.Asset(), quote.Asset(), decimal.Zero, at)
	}
	return asset.NewPrice(amount.Asset(), quote.Asset(),
		quote.Decimal().DivRound(amount.Decimal(), asset.DivisionPrecision), at)
}

func validate(req domain.Request) error {
	if req.Input.Asset() == nil || req.CounterToken == nil {
		return apperror.New(apperror.CodeInvalidToken, apperror.WithMessage("both tokens must be selected"))
	}
	if req.Input.Asset().Equals(req.CounterToken) {
		return apperror.New(apperror.CodeSameToken, apperror.WithContext("token", req.CounterToken.Symbol()))
	}
	if !req.Input.IsPositive() {
		return apperror.New(apperror.CodeInvalidAmount, apperror.WithMessage("amount must be positive"))
	}
	if !req.Slippage.IsPositive() || req.Slippage.GreaterThan(decimal.NewFromInt(50)) {
		return apperror.New(apperror.CodeInvalidSlippage, apperror.WithContext("slippage", req.Slippage.String()))
	}
	return nil
}
