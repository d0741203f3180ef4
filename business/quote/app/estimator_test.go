package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/quote/app"
	"github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/business/quote/infra/pricetable"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
)

func newEstimator(t *testing.T, depth map[string]string) *app.Estimator {
	t.Helper()
	table, err := pricetable.New(pricetable.Config{
		Rates:   map[string]string{"TON_USDT": "3763139"},
		Depth:   depth,
		FeeRate: decimal.RequireFromString("0.003"),
	})
	require.NoError(t, err)

	est, err := app.NewEstimator(table, logger.NewNop())
	require.NoError(t, err)
	return est
}

func ton(s string) asset.Amount  { return asset.NewAmount(asset.TON, decimal.RequireFromString(s)) }
func usdt(s string) asset.Amount { return asset.NewAmount(asset.USDTTON, decimal.RequireFromString(s)) }

func swapRequest(input asset.Amount, counter *asset.Asset, txType domain.TxType) domain.Request {
	return domain.Request{
		Operation:    domain.OperationSwap,
		Input:        input,
		CounterToken: counter,
		TxType:       txType,
		Trigger:      domain.UserTriggered,
		Slippage:     decimal.RequireFromString("0.5"),
	}
}

func TestEstimate_TONToUSDT(t *testing.T) {
	est := newEstimator(t, nil)
	req := swapRequest(ton("1.0"), asset.USDTTON, domain.ExactIn)

	first, err := est.Estimate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.Quote.Decimal().Equal(decimal.RequireFromString("3.763139")), "quote %s", first.Quote)
	assert.True(t, first.Quote.Asset().Equals(asset.USDTTON))
	assert.True(t, first.Fee.Rate.Equal(decimal.RequireFromString("0.003")))
	assert.True(t, first.Fee.Amount.Decimal().Equal(decimal.RequireFromString("0.003")))
	assert.True(t, first.Fee.Amount.Asset().Equals(asset.TON))
	assert.True(t, first.Rate.Rate().Equal(decimal.RequireFromString("3.763139")))
	assert.False(t, first.InsufficientLiquidity)

	for i := 0; i < 10; i++ {
		again, err := est.Estimate(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, again.Quote.Equals(first.Quote))
		assert.True(t, again.Amount.Equals(first.Amount))
	}
}

func TestEstimate_RoleAssignment(t *testing.T) {
	est := newEstimator(t, nil)

	exactIn, err := est.Estimate(context.Background(), swapRequest(ton("2.5"), asset.USDTTON, domain.ExactIn))
	require.NoError(t, err)
	assert.True(t, exactIn.Amount.Equals(ton("2.5")), "EXACT_IN amount must echo the input")
	assert.True(t, exactIn.Driving().Equals(exactIn.Amount))

	exactOut, err := est.Estimate(context.Background(), swapRequest(usdt("7.526278"), asset.TON, domain.ExactOut))
	require.NoError(t, err)
	assert.True(t, exactOut.Quote.Equals(usdt("7.526278")), "EXACT_OUT quote must echo the input")
	assert.True(t, exactOut.Amount.Equals(ton("2")), "amount %s", exactOut.Amount)
	assert.True(t, exactOut.Counter().Equals(exactOut.Amount))
}

func TestEstimate_CounterSideFitsTokenDecimals(t *testing.T) {
	est := newEstimator(t, nil)

	in, err := est.Estimate(context.Background(), swapRequest(usdt("1"), asset.TON, domain.ExactIn))
	require.NoError(t, err)
	assert.True(t, in.Quote.Decimal().Equal(decimal.RequireFromString("0.265735599")), "quote %s", in.Quote)
	_, err = asset.ParseDecimal(asset.TON, in.Quote.Decimal())
	assert.NoError(t, err)

	out, err := est.Estimate(context.Background(), swapRequest(usdt("1"), asset.TON, domain.ExactOut))
	require.NoError(t, err)
	assert.True(t, out.Amount.Decimal().Equal(decimal.RequireFromString("0.2657356")), "amount %s", out.Amount)
	_, err = asset.ParseDecimal(asset.TON, out.Amount.Decimal())
	assert.NoError(t, err)
	assert.True(t, out.Amount.Asset().Equals(asset.TON))
}

func TestEstimate_BoundsMatchTxType(t *testing.T) {
	est := newEstimator(t, nil)

	in, err := est.Estimate(context.Background(), swapRequest(ton("1"), asset.USDTTON, domain.ExactIn))
	require.NoError(t, err)
	minimum, ok := in.MinimumReceived()
	require.True(t, ok)
	_, hasMax := in.MaximumSent()
	assert.False(t, hasMax)
	assert.True(t, minimum.Decimal().Equal(decimal.RequireFromString("3.744323305")), "got %s", minimum)

	out, err := est.Estimate(context.Background(), swapRequest(usdt("3.763139"), asset.TON, domain.ExactOut))
	require.NoError(t, err)
	maximum, ok := out.MaximumSent()
	require.True(t, ok)
	_, hasMin := out.MinimumReceived()
	assert.False(t, hasMin)
	assert.True(t, maximum.Decimal().Equal(decimal.RequireFromString("1.005")), "got %s", maximum)
}

func TestEstimate_SlippageHalfAtFifty(t *testing.T) {
	est := newEstimator(t, nil)
	req := swapRequest(ton("1"), asset.USDTTON, domain.ExactIn)
	req.Slippage = decimal.NewFromInt(50)

	res, err := est.Estimate(context.Background(), req)
	require.NoError(t, err)

	minimum, _ := res.MinimumReceived()
	assert.True(t, minimum.Decimal().Mul(decimal.NewFromInt(2)).Equal(res.Quote.Decimal()))
}

func TestEstimate_InsufficientLiquidityIsNotAnError(t *testing.T) {
	est := newEstimator(t, map[string]string{"TON_USDT": "5"})

	res, err := est.Estimate(context.Background(), swapRequest(ton("10"), asset.USDTTON, domain.ExactIn))
	require.NoError(t, err)
	assert.True(t, res.InsufficientLiquidity)
	assert.Nil(t, res.Bound)
	assert.True(t, res.Amount.Equals(ton("10")))

	res, err = est.Estimate(context.Background(), swapRequest(asset.NewAmount(asset.ETH, decimal.NewFromInt(1)), asset.USDC, domain.ExactIn))
	require.NoError(t, err)
	assert.True(t, res.InsufficientLiquidity)
}

func TestEstimate_LiquidityOperationsChargeNoFee(t *testing.T) {
	est := newEstimator(t, nil)
	req := swapRequest(ton("1"), asset.USDTTON, domain.ExactIn)
	req.Operation = domain.OperationAddLiquidity

	res, err := est.Estimate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Fee.Rate.IsZero())
	assert.True(t, res.Fee.Amount.IsZero())
}

type failingSource struct{ err error }

func (f failingSource) QuoteExactIn(context.Context, *asset.Asset, *asset.Asset, asset.Amount) (domain.Leg, error) {
	return domain.Leg{}, f.err
}

func (f failingSource) QuoteExactOut(context.Context, *asset.Asset, *asset.Asset, asset.Amount) (domain.Leg, error) {
	return domain.Leg{}, f.err
}

func (failingSource) Name() string { return "failing" }

func TestEstimate_TransportFailure(t *testing.T) {
	cause := errors.New("connection reset")
	est, err := app.NewEstimator(failingSource{err: cause}, logger.NewNop())
	require.NoError(t, err)

	_, err = est.Estimate(context.Background(), swapRequest(ton("1"), asset.USDTTON, domain.ExactIn))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
}

func TestEstimate_RejectsMalformedRequests(t *testing.T) {
	est := newEstimator(t, nil)

	tests := []struct {
		name string
		req  domain.Request
		code apperror.Code
	}{
		{"missing counter token", swapRequest(ton("1"), nil, domain.ExactIn), apperror.CodeInvalidToken},
		{"same token", swapRequest(ton("1"), asset.TON, domain.ExactIn), apperror.CodeSameToken},
		{"zero amount", swapRequest(ton("0"), asset.USDTTON, domain.ExactIn), apperror.CodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.Estimate(context.Background(), tt.req)
			assert.Equal(t, tt.code, apperror.GetCode(err))
		})
	}
}
