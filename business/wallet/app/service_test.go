package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/wallet/app"
	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/business/wallet/infra/stub"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
)

func newService(t *testing.T) *app.Service {
	t.Helper()
	w, err := stub.New(stub.Config{
		Balances: map[string]string{"TON": "5"},
		Registry: asset.DefaultRegistry(asset.ChainIDTON),
	})
	require.NoError(t, err)

	svc, err := app.NewService(w, logger.NewNop())
	require.NoError(t, err)
	return svc
}

func TestService_ConnectionListeners(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	var events []bool
	svc.OnConnectionChange(func(connected bool) { events = append(events, connected) })

	require.NoError(t, svc.Connect(ctx))
	require.NoError(t, svc.Disconnect(ctx))

	assert.Equal(t, []bool{true, false}, events)
}

func TestService_ClassifiesErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.GetBalance(ctx, asset.TON)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeWalletDisconnected))
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	require.NoError(t, svc.Connect(ctx))

	_, err = svc.GetPool(ctx, asset.TON, asset.USDTTON)
	assert.True(t, apperror.HasCode(err, apperror.CodePoolNotFound))

	_, err = svc.Swap(ctx, domain.SwapOrder{
		From: asset.Zero(asset.TON),
		To:   asset.Zero(asset.USDTTON),
	})
	require.NoError(t, err, "a zero swap is accepted by the stub")

	tooMuch, _ := asset.ParseAmount(asset.TON, "50")
	_, err = svc.Swap(ctx, domain.SwapOrder{From: tooMuch, To: asset.Zero(asset.USDTTON)})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance), "existing app errors keep their code")
	assert.Equal(t, apperror.KindGate, apperror.KindOf(err))
}
