package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Price is an exchange rate between two assets: how many natural units of
// quote one natural unit of base buys.
type Price struct {
	rate      decimal.Decimal
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice creates a price from a natural-unit rate.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate, base: base, quote: quote, timestamp: timestamp}
}

// NewPriceFromBaseUnits creates a price from a base-unit rate: the number
// of quote base units paid for one whole base token. TON_USDT = 3763139
// reads as 1 TON = 3.763139 USDT.
func NewPriceFromBaseUnits(base, quote *Asset, baseUnitRate decimal.Decimal, timestamp time.Time) Price {
	if quote == nil {
		panic("asset: nil base or quote in price")
	}
	return NewPrice(base, quote, ToHumanUnits(baseUnitRate, quote.Decimals()), timestamp)
}

// Rate returns the natural-unit rate.
func (p Price) Rate() decimal.Decimal {
	return p.rate
}

// Base returns the base asset.
func (p Price) Base() *Asset {
	return p.base
}

// Quote returns the quote asset.
func (p Price) Quote() *Asset {
	return p.quote
}

// Timestamp returns when this price was observed.
func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// Pair returns the pair symbol (e.g., "TON/USDT").
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

// IsZero returns true if the price is zero.
func (p Price) IsZero() bool {
	return p.rate.IsZero()
}

// Invert returns the inverse price (TON/USDT -> USDT/TON).
func (p Price) Invert() Price {
	inverted := decimal.Zero
	if !p.IsZero() {
		inverted = decimal.NewFromInt(1).DivRound(p.rate, DivisionPrecision)
	}
	return Price{rate: inverted, base: p.quote, quote: p.base, timestamp: p.timestamp}
}

// Convert converts an amount of base into quote.
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().Equals(p.base) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s", ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}
	return NewAmount(p.quote, amount.Decimal().Mul(p.rate)), nil
}

// ConvertInverse converts an amount of quote back into base.
func (p Price) ConvertInverse(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().Equals(p.quote) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s", ErrAssetMismatch, p.quote.Symbol(), amount.Asset().Symbol())
	}
	if p.IsZero() {
		return Zero(p.base), nil
	}
	return NewAmount(p.base, amount.Decimal().DivRound(p.rate, DivisionPrecision)), nil
}

func (p Price) String() string {
	return fmt.Sprintf("1 %s = %s %s", p.base, p.rate.String(), p.quote)
}
