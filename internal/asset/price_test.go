package asset_test

import (
	"testing"
	"time"

	"github.com/fd1az/dexswap/internal/asset"
	"github.com/shopspring/decimal"
)

func TestPrice_FromBaseUnits(t *testing.T) {
	p := asset.NewPriceFromBaseUnits(asset.TON, asset.USDTTON, decimal.NewFromInt(3763139), time.Time{})

	if !p.Rate().Equal(decimal.RequireFromString("3.763139")) {
		t.Fatalf("expected rate 3.763139, got %s", p.Rate())
	}

	out, err := p.Convert(asset.NewAmount(asset.TON, decimal.RequireFromString("2")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Decimal().Equal(decimal.RequireFromString("7.526278")) {
		t.Errorf("expected 7.526278 USDT, got %s", out)
	}
}

func TestPrice_ConvertInverse(t *testing.T) {
	p := asset.NewPrice(asset.ETH, asset.USDC, decimal.NewFromInt(2000), time.Time{})

	in, err := p.ConvertInverse(asset.NewAmount(asset.USDC, decimal.NewFromInt(500)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.Decimal().Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("expected 0.25 ETH, got %s", in)
	}

	if _, err := p.Convert(asset.NewAmount(asset.USDC, decimal.NewFromInt(1))); err == nil {
		t.Error("expected mismatch error converting the quote asset forward")
	}
}

func TestPrice_Invert(t *testing.T) {
	p := asset.NewPrice(asset.ETH, asset.USDC, decimal.NewFromInt(4), time.Time{})
	inv := p.Invert()

	if inv.Base() != asset.USDC || inv.Quote() != asset.ETH {
		t.Fatalf("expected USDC/ETH, got %s", inv.Pair())
	}
	if !inv.Rate().Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("expected 0.25, got %s", inv.Rate())
	}
}
