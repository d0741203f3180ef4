package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quoteDomain "github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/business/trade/app"
	"github.com/fd1az/dexswap/business/trade/domain"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/business/wallet/infra/stub"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/settings"
)

var two = decimal.NewFromInt(2)

// fakeEstimator prices every pair at 2 counter tokens per source token.
// It sleeps per input value and ignores ctx, like a call that cannot be
// aborted once sent.
type fakeEstimator struct {
	mu        sync.Mutex
	delays    map[string]time.Duration
	err       error
	shortfall bool
	calls     int
}

func (f *fakeEstimator) setDelay(input string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delays == nil {
		f.delays = make(map[string]time.Duration)
	}
	f.delays[input] = d
}

func (f *fakeEstimator) Estimate(ctx context.Context, req quoteDomain.Request) (quoteDomain.Result, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delays[req.Input.Decimal().String()]
	err, shortfall := f.err, f.shortfall
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return quoteDomain.Result{}, err
	}

	from, to := req.From(), req.To()
	amount, quote := req.Input, req.Input
	if req.TxType == quoteDomain.ExactIn {
		quote = asset.NewAmount(to, req.Input.Decimal().Mul(two).Truncate(int32(to.Decimals())))
	} else {
		amount = asset.NewAmount(from, req.Input.Decimal().Div(two).Truncate(int32(from.Decimals())))
	}

	r := quoteDomain.Result{
		Operation: req.Operation,
		TxType:    req.TxType,
		Trigger:   req.Trigger,
		Amount:    amount,
		Quote:     quote,
		Bound:     quoteDomain.NewSlippageBound(req.TxType, amount, quote, req.Slippage),
		Rate:      asset.NewPrice(from, to, two, time.Now()),
		Source:    "fake",
	}
	if shortfall {
		r.InsufficientLiquidity = true
		r.Bound = nil
		if req.TxType == quoteDomain.ExactIn {
			r.Quote = asset.Zero(to)
		} else {
			r.Amount = asset.Zero(from)
		}
	}
	return r, nil
}

type recorder struct {
	mu     sync.Mutex
	states []domain.State
}

func (r *recorder) OnStateChange(s domain.State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.State(nil), r.states...)
}

func newWallet(t *testing.T, balances, pools map[string]string) *stub.Wallet {
	t.Helper()
	w, err := stub.New(stub.Config{
		Balances:  balances,
		Pools:     pools,
		Registry:  asset.DefaultRegistry(asset.ChainIDTON),
		Connected: true,
	})
	require.NoError(t, err)
	return w
}

func newController(t *testing.T, ch domain.Channel, est app.Estimator, w *stub.Wallet) *app.Controller {
	t.Helper()
	store, err := settings.NewStore("0.5", "30")
	require.NoError(t, err)

	c, err := app.NewController(ch, est, w, store, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func selectPair(t *testing.T, c *app.Controller, a, b *asset.Asset) {
	t.Helper()
	require.NoError(t, c.SelectToken(domain.Side0, a))
	require.NoError(t, c.SelectToken(domain.Side1, b))
}

func decimalString(a *asset.Amount) string {
	if a == nil {
		return "<nil>"
	}
	return a.Decimal().String()
}

func TestController_LatestRequestWins(t *testing.T) {
	est := &fakeEstimator{}
	est.setDelay("1", 100*time.Millisecond)
	est.setDelay("2", 10*time.Millisecond)

	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))
	rec := &recorder{}
	c.Subscribe(rec)

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	require.NoError(t, c.SetAmount(domain.Side0, "2"))
	c.Wait()

	st := c.State()
	require.NotNil(t, st.Result)
	assert.Equal(t, "2", st.Result.Amount.Decimal().String())
	assert.Equal(t, "4", decimalString(st.Input1.Amount))
	assert.False(t, st.Loading)
	assert.Equal(t, domain.PhaseSettled, st.Phase)

	var last uint64
	for _, s := range rec.snapshot() {
		assert.Greater(t, s.Version, last, "observers must see increasing versions")
		last = s.Version
		if s.Result != nil {
			assert.Equal(t, "2", s.Result.Amount.Decimal().String(), "slow result leaked into state")
		}
	}
}

func TestController_ResetDropsPendingEstimate(t *testing.T) {
	est := &fakeEstimator{}
	est.setDelay("1", 50*time.Millisecond)

	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	require.True(t, c.State().Loading)

	c.Reset()
	st := c.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Input0.Token)

	c.Wait()
	st = c.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Result)
	assert.Nil(t, st.Input0.Token)
	assert.Nil(t, st.Input1.Amount)
	assert.Equal(t, domain.PhaseIdle, st.Phase)
}

func TestController_RefreshIsSilent(t *testing.T) {
	est := &fakeEstimator{}
	w := newWallet(t, nil, nil)
	c := newController(t, domain.ChannelSwap, est, w)

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	est.setDelay("1", 30*time.Millisecond)
	require.True(t, c.Refresh())

	st := c.State()
	assert.False(t, st.Loading)
	assert.Equal(t, domain.PhaseAwaitingAuto, st.Phase)

	c.Wait()
	st = c.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Result)
	assert.Equal(t, quoteDomain.BackgroundRefresh, st.Result.Trigger)
	assert.Equal(t, domain.PhaseSettled, st.Phase)
}

func TestController_RefreshSkipped(t *testing.T) {
	est := &fakeEstimator{}
	w := newWallet(t, nil, nil)
	c := newController(t, domain.ChannelSwap, est, w)

	assert.False(t, c.Refresh(), "incomplete form")

	selectPair(t, c, asset.TON, asset.USDTTON)
	est.setDelay("3", 50*time.Millisecond)
	require.NoError(t, c.SetAmount(domain.Side0, "3"))
	assert.False(t, c.Refresh(), "manual request pending")
	assert.True(t, c.State().Loading)

	c.Wait()
	assert.False(t, c.State().Loading)

	require.NoError(t, w.Disconnect(context.Background()))
	assert.False(t, c.Refresh(), "wallet disconnected")
}

func TestController_EditSupersedesRefresh(t *testing.T) {
	est := &fakeEstimator{}
	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	est.setDelay("1", 50*time.Millisecond)
	require.True(t, c.Refresh())
	require.NoError(t, c.SetAmount(domain.Side0, "2"))
	c.Wait()

	st := c.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Result)
	assert.Equal(t, quoteDomain.UserTriggered, st.Result.Trigger)
	assert.Equal(t, "4", decimalString(st.Input1.Amount))
}

func TestController_FlipIsAtomic(t *testing.T) {
	est := &fakeEstimator{}
	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	est.setDelay("1", 20*time.Millisecond)
	rec := &recorder{}
	c.Subscribe(rec)
	c.Flip()

	states := rec.snapshot()
	require.NotEmpty(t, states)
	first := states[0]
	assert.True(t, first.Input0.Token.Equals(asset.USDTTON))
	assert.Equal(t, "2", decimalString(first.Input0.Amount))
	assert.True(t, first.Input1.Token.Equals(asset.TON))
	assert.Equal(t, "1", decimalString(first.Input1.Amount))
	assert.Equal(t, quoteDomain.ExactOut, first.TxType)
	assert.True(t, first.Loading)

	c.Wait()
	st := c.State()
	assert.Equal(t, quoteDomain.ExactOut, st.TxType)
	assert.Equal(t, "1", decimalString(st.Input1.Amount))
	assert.Equal(t, "0.5", decimalString(st.Input0.Amount))
	require.NotNil(t, st.Result)
	assert.Equal(t, "1", st.Result.Quote.Decimal().String())
}

func TestController_SelectingOtherSideTokenSwapsSides(t *testing.T) {
	c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)

	require.NoError(t, c.SelectToken(domain.Side0, asset.USDTTON))
	st := c.State()
	assert.True(t, st.Input0.Token.Equals(asset.USDTTON))
	assert.True(t, st.Input1.Token.Equals(asset.TON))
}

func TestController_EditSide1IsExactOut(t *testing.T) {
	c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)

	require.NoError(t, c.SetAmount(domain.Side1, "3"))
	c.Wait()

	st := c.State()
	assert.Equal(t, quoteDomain.ExactOut, st.TxType)
	assert.Equal(t, "1.5", decimalString(st.Input0.Amount))
	require.NotNil(t, st.Result)
	_, ok := st.Result.MaximumSent()
	assert.True(t, ok)
}

func TestController_ClearingDrivingSide(t *testing.T) {
	c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	require.NoError(t, c.SetAmount(domain.Side0, ""))
	st := c.State()
	assert.Nil(t, st.Input0.Amount)
	assert.Nil(t, st.Input1.Amount)
	assert.Nil(t, st.Result)
	assert.False(t, st.Loading)
	assert.Equal(t, domain.PhaseIdle, st.Phase)
}

func TestController_ZeroAmountStaysIdle(t *testing.T) {
	est := &fakeEstimator{}
	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()
	require.NotNil(t, c.State().Input1.Amount)

	est.mu.Lock()
	calls := est.calls
	est.mu.Unlock()

	require.NoError(t, c.SetAmount(domain.Side0, "0"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "0", decimalString(st.Input0.Amount))
	assert.Nil(t, st.Input1.Amount)
	assert.Nil(t, st.Result)
	assert.NoError(t, st.Err)
	assert.False(t, st.Loading)
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.False(t, c.Refresh(), "nothing to refresh for a zero amount")

	est.mu.Lock()
	defer est.mu.Unlock()
	assert.Equal(t, calls, est.calls, "zero amount must not reach the estimator")
}

func TestController_InputValidation(t *testing.T) {
	c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, nil, nil))

	err := c.SetAmount(domain.Side0, "1")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidToken))

	require.NoError(t, c.SelectToken(domain.Side0, asset.USDTTON))
	err = c.SetAmount(domain.Side0, "abc")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	err = c.SetAmount(domain.Side0, "1.1234567")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))
}

func TestController_EstimateErrorIsVisible(t *testing.T) {
	est := &fakeEstimator{err: apperror.Transport(apperror.CodeQuoteTransport, "fake", errors.New("connection reset"))}
	c := newController(t, domain.ChannelSwap, est, newWallet(t, nil, nil))

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	st := c.State()
	require.Error(t, st.Err)
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(st.Err))
	assert.False(t, st.Loading)
	assert.Nil(t, st.Result)
	assert.Equal(t, domain.PhaseSettled, st.Phase)
}

func TestController_SwapSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("no estimate", func(t *testing.T) {
		c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, nil, nil))
		_, err := c.Submit(ctx)
		assert.True(t, apperror.HasCode(err, apperror.CodeEstimateMissing))
	})

	t.Run("insufficient liquidity", func(t *testing.T) {
		est := &fakeEstimator{shortfall: true}
		c := newController(t, domain.ChannelSwap, est, newWallet(t, map[string]string{"TON": "100"}, nil))
		selectPair(t, c, asset.TON, asset.USDTTON)
		require.NoError(t, c.SetAmount(domain.Side0, "1"))
		c.Wait()

		st := c.State()
		require.NotNil(t, st.Result)
		assert.True(t, st.Result.InsufficientLiquidity)
		assert.Nil(t, st.Err)

		_, err := c.Submit(ctx)
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientLiquidity))
		assert.Equal(t, domain.PhaseSettled, c.State().Phase)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		c := newController(t, domain.ChannelSwap, &fakeEstimator{}, newWallet(t, map[string]string{"TON": "100"}, nil))
		selectPair(t, c, asset.TON, asset.USDTTON)
		require.NoError(t, c.SetAmount(domain.Side0, "500"))
		c.Wait()

		_, err := c.Submit(ctx)
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance))
		assert.Equal(t, apperror.KindGate, apperror.KindOf(err))
	})

	t.Run("permission then success", func(t *testing.T) {
		w := newWallet(t, map[string]string{"TON": "100", "USDT": "250"}, nil)
		c := newController(t, domain.ChannelSwap, &fakeEstimator{}, w)
		selectPair(t, c, asset.USDTTON, asset.TON)
		require.NoError(t, c.SetAmount(domain.Side0, "10"))
		c.Wait()

		_, err := c.Submit(ctx)
		require.True(t, apperror.HasCode(err, apperror.CodePermissionRequired), "got %v", err)

		require.NoError(t, c.Approve(ctx))
		status, err := c.Submit(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, status.Hash)

		st := c.State()
		assert.Equal(t, domain.PhaseSubmitted, st.Phase)
		require.NotNil(t, st.LastStatus)
		assert.Equal(t, status.Hash, st.LastStatus.Hash)
		assert.Nil(t, st.Input0.Amount)
		assert.Nil(t, st.Result)

		bal, err := w.GetBalance(ctx, asset.USDTTON)
		require.NoError(t, err)
		assert.Equal(t, "240", bal.Decimal().String())
		bal, err = w.GetBalance(ctx, asset.TON)
		require.NoError(t, err)
		assert.Equal(t, "120", bal.Decimal().String())
	})

	t.Run("wallet disconnected", func(t *testing.T) {
		w := newWallet(t, map[string]string{"TON": "100"}, nil)
		c := newController(t, domain.ChannelSwap, &fakeEstimator{}, w)
		selectPair(t, c, asset.TON, asset.USDTTON)
		require.NoError(t, c.SetAmount(domain.Side0, "1"))
		c.Wait()

		require.NoError(t, w.Disconnect(ctx))
		_, err := c.Submit(ctx)
		assert.True(t, apperror.HasCode(err, apperror.CodeWalletDisconnected))
	})
}

func TestController_AddLiquidity(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t,
		map[string]string{"TON": "1000", "USDT": "1000"},
		map[string]string{"TON_USDT": "100:200:100"})
	c := newController(t, domain.ChannelAddLiquidity, &fakeEstimator{}, w)

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "100"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "200", decimalString(st.Input1.Amount))
	assert.True(t, st.PoolShare.Equal(decimal.RequireFromString("0.5")), "share %s", st.PoolShare)

	_, err := c.Submit(ctx)
	require.True(t, apperror.HasCode(err, apperror.CodePermissionRequired))

	require.NoError(t, c.Approve(ctx))
	_, err = c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, c.State().Phase)

	pool, err := w.GetPool(ctx, asset.TON, asset.USDTTON)
	require.NoError(t, err)
	assert.Equal(t, "200", pool.Reserve0.Decimal().String())
	assert.Equal(t, "100", pool.UserLP.Decimal().String())
}

func TestController_AddLiquidityNewPool(t *testing.T) {
	w := newWallet(t, map[string]string{"TON": "10"}, nil)
	c := newController(t, domain.ChannelAddLiquidity, &fakeEstimator{}, w)

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	assert.True(t, c.State().PoolShare.Equal(decimal.NewFromInt(1)))
}

func TestController_RemoveLiquidity(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t,
		map[string]string{"TON": "1000", "USDT": "1000"},
		map[string]string{"TON_USDT": "100:200:100"})

	_, err := w.SetTokenUsePermission(ctx, asset.USDTTON)
	require.NoError(t, err)
	_, err = w.AddLiquidity(ctx, walletDomain.LiquidityOrder{
		Amount0: asset.NewAmount(asset.TON, decimal.NewFromInt(100)),
		Amount1: asset.NewAmount(asset.USDTTON, decimal.NewFromInt(200)),
	})
	require.NoError(t, err)

	c := newController(t, domain.ChannelRemoveLiquidity, &fakeEstimator{}, w)
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "50"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "100", decimalString(st.Input1.Amount))
	assert.Equal(t, "50", decimalString(st.Input0.RemoveAmount))

	_, err = c.Submit(ctx)
	require.True(t, apperror.HasCode(err, apperror.CodePermissionRequired), "got %v", err)

	require.NoError(t, c.Approve(ctx))
	assert.Equal(t, "50", decimalString(c.State().Approved))

	_, err = c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, c.State().Phase)
	assert.Nil(t, c.State().Approved)

	pool, err := w.GetPool(ctx, asset.TON, asset.USDTTON)
	require.NoError(t, err)
	assert.Equal(t, "50", pool.UserLP.Decimal().String())

	bal, err := w.GetBalance(ctx, asset.TON)
	require.NoError(t, err)
	assert.Equal(t, "950", bal.Decimal().String())
}

func TestController_SetRemoveAmount(t *testing.T) {
	w := newWallet(t, nil, map[string]string{"TON_USDT": "200:400:200"})
	c := newController(t, domain.ChannelRemoveLiquidity, &fakeEstimator{}, w)

	err := c.SetRemoveAmount("10")
	assert.True(t, apperror.HasCode(err, apperror.CodePoolNotFound))

	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	require.NoError(t, c.SetRemoveAmount("20"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "20", decimalString(st.Input0.Amount))
	assert.Equal(t, "20", decimalString(st.Input0.RemoveAmount))
	assert.Equal(t, "40", decimalString(st.Input1.Amount))
}

func TestController_TypedPoolShareIsKept(t *testing.T) {
	w := newWallet(t, nil, map[string]string{"TON_USDT": "3:6:7"})
	c := newController(t, domain.ChannelRemoveLiquidity, &fakeEstimator{}, w)
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "0.1"))
	c.Wait()

	require.NoError(t, c.SetRemoveAmount("1"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "0.428571428", decimalString(st.Input0.Amount))
	assert.Equal(t, "1", decimalString(st.Input0.RemoveAmount), "burned share must match the typed value")

	require.True(t, c.Refresh())
	c.Wait()
	assert.Equal(t, "1", decimalString(c.State().Input0.RemoveAmount))

	// Typing a token amount again derives the share from the pool.
	require.NoError(t, c.SetAmount(domain.Side0, "0.428571428"))
	c.Wait()
	assert.Equal(t, "0.999999998", decimalString(c.State().Input0.RemoveAmount))
}

func TestController_RemoveWithoutPool(t *testing.T) {
	c := newController(t, domain.ChannelRemoveLiquidity, &fakeEstimator{}, newWallet(t, nil, nil))
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	st := c.State()
	assert.True(t, apperror.HasCode(st.Err, apperror.CodePoolNotFound))
	assert.False(t, st.Loading)
}

func TestController_Balances(t *testing.T) {
	w := newWallet(t, map[string]string{"TON": "7"}, nil)
	c := newController(t, domain.ChannelSwap, &fakeEstimator{}, w)
	require.NoError(t, c.SelectToken(domain.Side0, asset.TON))

	b, err := c.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", decimalString(b.Side0))
	assert.Nil(t, b.Side1)
}
