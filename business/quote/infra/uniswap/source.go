// Package uniswap implements a QuoteSource on the Uniswap V3 QuoterV2
// contract. Quotes come from on-chain pool state, so fee and price impact
// are whatever the pool applies.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexswap/business/quote/app"
	"github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/circuitbreaker"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/ratelimit"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"

	methodExactIn  = "quoteExactInputSingle"
	methodExactOut = "quoteExactOutputSingle"
)

var _ app.QuoteSource = (*Source)(nil)

// ContractCaller is the slice of ethclient the source needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config configures the source.
type Config struct {
	Quoter   common.Address
	FeeTiers []int
	// WrappedNative replaces native coins, which pools do not hold.
	WrappedNative     common.Address
	RequestsPerMinute int
}

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Source quotes single-pool swaps across the configured fee tiers and
// keeps the best one.
type Source struct {
	client    ContractCaller
	quoter    common.Address
	quoterABI abi.ABI
	feeTiers  []int
	wrapped   common.Address

	logger  logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	limiter *ratelimit.Limiter

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource creates a QuoterV2-backed source.
func NewSource(client ContractCaller, cfg Config, log logger.LoggerInterface) (*Source, error) {
	parsedABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}

	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = []int{FeeTier005, FeeTier030, FeeTier100}
	}

	s := &Source{
		client:    client,
		quoter:    cfg.Quoter,
		quoterABI: parsedABI,
		feeTiers:  tiers,
		wrapped:   cfg.WrappedNative,
		logger:    log,
		limiter:   ratelimit.New("uniswap-quoter", cfg.RequestsPerMinute),
		tracer:    otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("uniswap-quoter")
	// A reverted quote is an answer about the pool, not an RPC failure.
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }
	s.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Source) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sourceMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter(
		"uniswap_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	return err
}

// Name identifies the source.
func (s *Source) Name() string {
	return "uniswap-v3"
}

// QuoteExactIn picks the fee tier with the largest output.
func (s *Source) QuoteExactIn(ctx context.Context, from, to *asset.Asset, amountIn asset.Amount) (domain.Leg, error) {
	best, err := s.quote(ctx, methodExactIn, from, to, amountIn, func(candidate, current *big.Int) bool {
		return candidate.Cmp(current) > 0
	})
	if err != nil {
		return domain.Leg{}, err
	}
	return s.leg(amountIn, asset.FromBaseUnits(to, best.Amount), best.FeeTier), nil
}

// QuoteExactOut picks the fee tier with the smallest required input.
func (s *Source) QuoteExactOut(ctx context.Context, from, to *asset.Asset, amountOut asset.Amount) (domain.Leg, error) {
	best, err := s.quote(ctx, methodExactOut, from, to, amountOut, func(candidate, current *big.Int) bool {
		return candidate.Cmp(current) < 0
	})
	if err != nil {
		return domain.Leg{}, err
	}
	return s.leg(asset.FromBaseUnits(from, best.Amount), amountOut, best.FeeTier), nil
}

func (s *Source) leg(in, out asset.Amount, feeTier int) domain.Leg {
	return domain.Leg{
		AmountIn:  in,
		AmountOut: out,
		// Fee tiers are in hundredths of a bip: 3000 -> 0.003.
		FeeRate:     decimal.New(int64(feeTier), -6),
		PriceImpact: decimal.Zero,
		Source:      s.Name(),
	}
}

func (s *Source) quote(ctx context.Context, method string, from, to *asset.Asset, amount asset.Amount, better func(candidate, current *big.Int) bool) (*quoterOutput, error) {
	tokenIn, tokenOut := s.address(from), s.address(to)

	ctx, span := s.tracer.Start(ctx, "uniswap."+method,
		trace.WithAttributes(
			attribute.String("token_in", tokenIn.Hex()),
			attribute.String("token_out", tokenOut.Hex()),
			attribute.String("amount", amount.BaseUnits().String()),
		),
	)
	defer span.End()

	start := time.Now()
	s.metrics.quotesTotal.Add(ctx, 1)
	defer func() {
		s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	var (
		best    *quoterOutput
		lastErr error
	)
	for _, tier := range s.feeTiers {
		out, err := s.call(ctx, method, tokenIn, tokenOut, amount.BaseUnits(), tier)
		if err != nil {
			span.AddEvent("fee_tier_failed", trace.WithAttributes(
				attribute.Int("fee_tier", tier),
				attribute.String("error", err.Error()),
			))
			if !errors.Is(err, domain.ErrNoLiquidity) {
				lastErr = err
			}
			continue
		}
		if best == nil || better(out.Amount, best.Amount) {
			best = out
		}
	}

	if best != nil {
		span.SetAttributes(attribute.Int("fee_tier", best.FeeTier), attribute.String("result", best.Amount.String()))
		span.SetStatus(codes.Ok, "quote received")
		s.logger.Debug(ctx, "uniswap quote",
			"method", method,
			"token_in", tokenIn.Hex(),
			"token_out", tokenOut.Hex(),
			"amount", amount.BaseUnits().String(),
			"result", best.Amount.String(),
			"fee_tier", best.FeeTier,
		)
		return best, nil
	}

	s.metrics.quoteErrors.Add(ctx, 1)
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, "quoter unavailable")
		return nil, lastErr
	}
	span.SetStatus(codes.Error, "no pool")
	return nil, fmt.Errorf("%w: no pool for %s/%s", domain.ErrNoLiquidity, from.Symbol(), to.Symbol())
}

// call runs one quoter method for one fee tier.
func (s *Source) call(ctx context.Context, method string, tokenIn, tokenOut common.Address, amount *big.Int, feeTier int) (*quoterOutput, error) {
	var params any
	if method == methodExactIn {
		params = QuoteExactInputSingleParams{
			TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount,
			Fee: big.NewInt(int64(feeTier)), SqrtPriceLimitX96: big.NewInt(0),
		}
	} else {
		params = QuoteExactOutputSingleParams{
			TokenIn: tokenIn, TokenOut: tokenOut, Amount: amount,
			Fee: big.NewInt(int64(feeTier)), SqrtPriceLimitX96: big.NewInt(0),
		}
	}

	callData, err := s.quoterABI.Pack(method, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := s.cb.Execute(func() ([]byte, error) {
		return s.client.CallContract(ctx, ethereum.CallMsg{To: &s.quoter, Data: callData}, nil)
	})
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: fee tier %d reverted", domain.ErrNoLiquidity, feeTier)
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("fee_tier", feeTier),
		)
	}

	outputs, err := s.quoterABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if len(outputs) < 4 {
		return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
	}

	amountOut, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	gas, _ := outputs[3].(*big.Int)

	return &quoterOutput{Amount: amountOut, GasEstimate: gas, FeeTier: feeTier}, nil
}

func (s *Source) address(a *asset.Asset) common.Address {
	if a.IsNative() {
		return s.wrapped
	}
	return common.HexToAddress(a.Address())
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
