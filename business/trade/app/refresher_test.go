package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/trade/app"
	"github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/settings"
)

func TestRefresher_Tick(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, nil, nil)
	swap := newController(t, domain.ChannelSwap, &fakeEstimator{}, w)
	add := newController(t, domain.ChannelAddLiquidity, &fakeEstimator{}, w)

	r := app.NewRefresher(time.Second, w, logger.NewNop(), swap, add)
	assert.Equal(t, 0, r.Tick(ctx))

	selectPair(t, swap, asset.TON, asset.USDTTON)
	require.NoError(t, swap.SetAmount(domain.Side0, "1"))
	swap.Wait()

	assert.Equal(t, 1, r.Tick(ctx))
	swap.Wait()

	require.NoError(t, w.Disconnect(ctx))
	assert.Equal(t, 0, r.Tick(ctx))
}

func TestRefresher_Run(t *testing.T) {
	w := newWallet(t, nil, nil)
	est := &fakeEstimator{}
	c := newController(t, domain.ChannelSwap, est, w)
	selectPair(t, c, asset.TON, asset.USDTTON)
	require.NoError(t, c.SetAmount(domain.Side0, "1"))
	c.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.NewRefresher(10*time.Millisecond, w, logger.NewNop(), c).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		st := c.State()
		return st.Result != nil && st.Result.Trigger.String() == "auto"
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRefresher_RejectsZeroInterval(t *testing.T) {
	err := app.NewRefresher(0, newWallet(t, nil, nil), logger.NewNop()).Run(context.Background())
	assert.Error(t, err)
}

func TestControllers_OnePerChannel(t *testing.T) {
	store, err := settings.NewStore("0.5", "30")
	require.NoError(t, err)

	cs, err := app.NewControllers(&fakeEstimator{}, newWallet(t, nil, nil), store, logger.NewNop())
	require.NoError(t, err)
	defer cs.Close()

	all := cs.All()
	require.Len(t, all, len(domain.Channels))
	for i, ch := range domain.Channels {
		assert.Equal(t, ch, all[i].Channel())
		assert.Same(t, all[i], cs.Get(ch))
	}
}
