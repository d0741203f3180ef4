package stub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
)

func newWallet(t *testing.T, connected bool) *Wallet {
	t.Helper()
	w, err := New(Config{
		Balances:  map[string]string{"TON": "100", "USDT": "250"},
		Pools:     map[string]string{"TON_USDT": "10000:37631.39:1000"},
		Registry:  asset.DefaultRegistry(asset.ChainIDTON),
		Connected: connected,
	})
	require.NoError(t, err)
	return w
}

func amount(t *testing.T, a *asset.Asset, v string) asset.Amount {
	t.Helper()
	out, err := asset.ParseAmount(a, v)
	require.NoError(t, err)
	return out
}

func TestWallet_RequiresConnection(t *testing.T) {
	w := newWallet(t, false)
	ctx := context.Background()

	_, err := w.GetBalance(ctx, asset.TON)
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	require.NoError(t, w.Connect(ctx))
	assert.True(t, w.Connected())

	bal, err := w.GetBalance(ctx, asset.TON)
	require.NoError(t, err)
	assert.Equal(t, "100", bal.Decimal().String())

	require.NoError(t, w.Disconnect(ctx))
	assert.False(t, w.Connected())
}

func TestWallet_Permissions(t *testing.T) {
	w := newWallet(t, true)
	ctx := context.Background()

	ok, err := w.GetTokenUsePermission(ctx, asset.TON)
	require.NoError(t, err)
	assert.True(t, ok, "native coin needs no permission")

	ok, err = w.GetTokenUsePermission(ctx, asset.USDTTON)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = w.SetTokenUsePermission(ctx, asset.USDTTON)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = w.GetTokenUsePermission(ctx, asset.USDTTON)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWallet_Swap(t *testing.T) {
	ctx := context.Background()

	t.Run("exact in moves balances", func(t *testing.T) {
		w := newWallet(t, true)
		status, err := w.Swap(ctx, domain.SwapOrder{
			From:  amount(t, asset.TON, "1"),
			To:    amount(t, asset.USDTTON, "3.763139"),
			Limit: amount(t, asset.USDTTON, "3.744323"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TxConfirmed, status.State)
		assert.Len(t, status.Hash, 66)

		ton, _ := w.GetBalance(ctx, asset.TON)
		usdt, _ := w.GetBalance(ctx, asset.USDTTON)
		assert.Equal(t, "99", ton.Decimal().String())
		assert.Equal(t, "253.763139", usdt.Decimal().String())
	})

	t.Run("below minimum received", func(t *testing.T) {
		w := newWallet(t, true)
		_, err := w.Swap(ctx, domain.SwapOrder{
			From:  amount(t, asset.TON, "1"),
			To:    amount(t, asset.USDTTON, "3"),
			Limit: amount(t, asset.USDTTON, "3.5"),
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeWalletRejected))
	})

	t.Run("above maximum sent", func(t *testing.T) {
		w := newWallet(t, true)
		_, err := w.Swap(ctx, domain.SwapOrder{
			From:     amount(t, asset.TON, "2"),
			To:       amount(t, asset.USDTTON, "3.763139"),
			ExactOut: true,
			Limit:    amount(t, asset.TON, "1.005"),
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeWalletRejected))
	})

	t.Run("token without permission", func(t *testing.T) {
		w := newWallet(t, true)
		_, err := w.Swap(ctx, domain.SwapOrder{
			From: amount(t, asset.USDTTON, "10"),
			To:   amount(t, asset.TON, "2"),
		})
		assert.True(t, apperror.HasCode(err, apperror.CodePermissionRequired))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		w := newWallet(t, true)
		_, err := w.Swap(ctx, domain.SwapOrder{
			From: amount(t, asset.TON, "1000"),
			To:   amount(t, asset.USDTTON, "3763.139"),
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance))
	})

	t.Run("expired deadline", func(t *testing.T) {
		w := newWallet(t, true)
		_, err := w.Swap(ctx, domain.SwapOrder{
			From:     amount(t, asset.TON, "1"),
			To:       amount(t, asset.USDTTON, "3.763139"),
			Deadline: time.Now().Add(-time.Minute),
		})
		assert.ErrorIs(t, err, domain.ErrExpired)
	})
}

func TestWallet_LatencyHonorsContext(t *testing.T) {
	w := newWallet(t, true)
	w.cfg.Latency = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.GetBalance(ctx, asset.TON)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWallet_LiquidityLifecycle(t *testing.T) {
	w := newWallet(t, true)
	ctx := context.Background()

	_, err := w.GetPool(ctx, asset.TON, asset.DAI)
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)

	pool, err := w.GetPool(ctx, asset.USDTTON, asset.TON)
	require.NoError(t, err)
	assert.True(t, pool.Token0.Equals(asset.USDTTON), "snapshot follows the requested order")
	assert.Equal(t, "37631.39", pool.Reserve0.Decimal().String())
	assert.True(t, pool.UserLP.IsZero())

	_, err = w.SetTokenUsePermission(ctx, asset.USDTTON)
	require.NoError(t, err)

	_, err = w.AddLiquidity(ctx, domain.LiquidityOrder{
		Amount0: amount(t, asset.TON, "10"),
		Amount1: amount(t, asset.USDTTON, "37.63139"),
	})
	require.NoError(t, err)

	pool, err = w.GetPool(ctx, asset.TON, asset.USDTTON)
	require.NoError(t, err)
	assert.Equal(t, "10010", pool.Reserve0.Decimal().String())
	assert.Equal(t, "1001", pool.LPSupply.Decimal().String())
	assert.Equal(t, "1", pool.UserLP.Decimal().String())

	order := domain.RemoveOrder{Pool: pool, Liquidity: pool.UserLP}

	_, err = w.RemoveLiquidity(ctx, order)
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionRequired), "removal needs approval")

	_, err = w.ApproveRemovePool(ctx, domain.PoolInput{Pool: pool, Liquidity: pool.UserLP})
	require.NoError(t, err)

	_, err = w.RemoveLiquidity(ctx, order)
	require.NoError(t, err)

	ton, _ := w.GetBalance(ctx, asset.TON)
	assert.True(t, ton.Decimal().Equal(decimal.NewFromInt(100)), "got %s", ton.Decimal())

	pool, err = w.GetPool(ctx, asset.TON, asset.USDTTON)
	require.NoError(t, err)
	assert.True(t, pool.UserLP.IsZero())
	assert.Equal(t, "1000", pool.LPSupply.Decimal().String())
}
