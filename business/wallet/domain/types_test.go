package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/internal/asset"
)

func testPool(t *testing.T) PoolSnapshot {
	t.Helper()
	lp := asset.NewToken(asset.ChainIDTON, "EQpool", "TON-USDT-LP", 9)
	return PoolSnapshot{
		Token0:   asset.TON,
		Token1:   asset.USDTTON,
		LPToken:  lp,
		Reserve0: asset.NewAmount(asset.TON, decimal.NewFromInt(10000)),
		Reserve1: asset.NewAmount(asset.USDTTON, decimal.RequireFromString("37631.39")),
		LPSupply: asset.NewAmount(lp, decimal.NewFromInt(1000)),
		UserLP:   asset.NewAmount(lp, decimal.NewFromInt(10)),
	}
}

func TestPoolSnapshot_ShareOf(t *testing.T) {
	pool := testPool(t)

	tests := []struct {
		name    string
		amount0 string
		want    string
	}{
		{"zero deposit", "0", "0"},
		{"equal to reserve", "10000", "0.5"},
		{"small deposit", "100", "0.009900990099009901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pool.ShareOf(asset.NewAmount(asset.TON, decimal.RequireFromString(tt.amount0)))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ShareOf(%s) = %s, want %s", tt.amount0, got, tt.want)
			}
		})
	}
}

func TestPoolSnapshot_LiquidityFor(t *testing.T) {
	pool := testPool(t)

	got := pool.LiquidityFor(asset.NewAmount(asset.TON, decimal.NewFromInt(100)))
	if got.Decimal().String() != "10" {
		t.Errorf("LiquidityFor(100 TON) = %s, want 10", got.Decimal())
	}
	if !got.Asset().Equals(pool.LPToken) {
		t.Errorf("LiquidityFor returned %s, want LP token", got.Asset())
	}
}

func TestPoolSnapshot_Reversed(t *testing.T) {
	pool := testPool(t)
	rev := pool.Reversed()

	if !rev.Token0.Equals(asset.USDTTON) || !rev.Reserve0.Asset().Equals(asset.USDTTON) {
		t.Error("Reversed did not swap token0")
	}
	if !rev.LPSupply.Equals(pool.LPSupply) {
		t.Error("Reversed changed LP supply")
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if Expired(time.Time{}, now) {
		t.Error("zero deadline should never expire")
	}
	if Expired(now.Add(time.Minute), now) {
		t.Error("future deadline reported expired")
	}
	if !Expired(now.Add(-time.Second), now) {
		t.Error("past deadline not reported expired")
	}
}
