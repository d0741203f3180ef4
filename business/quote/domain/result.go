package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/internal/asset"
)

var hundred = decimal.NewFromInt(100)

// SlippageBound is the slippage-protected limit of a trade. It is either
// MinimumReceived (ExactIn) or MaximumSent (ExactOut), never both.
type SlippageBound interface {
	Limit() asset.Amount
	sealed()
}

// MinimumReceived is the least destination amount accepted for ExactIn.
type MinimumReceived struct {
	Amount asset.Amount
}

func (b MinimumReceived) Limit() asset.Amount { return b.Amount }
func (MinimumReceived) sealed()               {}

// MaximumSent is the most source amount spent for ExactOut.
type MaximumSent struct {
	Amount asset.Amount
}

func (b MaximumSent) Limit() asset.Amount { return b.Amount }
func (MaximumSent) sealed()               {}

// NewSlippageBound derives the bound for txType:
//
//	ExactIn:  minimumReceived = quote  * (100 - slippage) / 100
//	ExactOut: maximumSent     = amount * (100 + slippage) / 100
func NewSlippageBound(txType TxType, amount, quote asset.Amount, slippage decimal.Decimal) SlippageBound {
	if txType == ExactOut {
		return MaximumSent{Amount: scalePercent(amount, hundred.Add(slippage))}
	}
	return MinimumReceived{Amount: scalePercent(quote, hundred.Sub(slippage))}
}

// scalePercent returns a * pct / 100. Dividing by 100 is a decimal shift,
// so the result is exact.
func scalePercent(a asset.Amount, pct decimal.Decimal) asset.Amount {
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	return asset.NewAmount(a.Asset(), a.Decimal().Mul(pct).Shift(-2))
}

// Result is an applied estimate. Amount is always the source side and
// Quote always the destination side, so exactly one of them equals the
// user-entered value: Amount for ExactIn, Quote for ExactOut.
type Result struct {
	Operation             Operation
	TxType                TxType
	Trigger               Trigger
	Amount                asset.Amount
	Quote                 asset.Amount
	Fee                   Fee
	PriceImpact           decimal.Decimal
	InsufficientLiquidity bool
	// Bound is nil when liquidity is insufficient.
	Bound  SlippageBound
	Rate   asset.Price
	Source string
}

// MinimumReceived returns the ExactIn bound, if that is what Bound holds.
func (r Result) MinimumReceived() (asset.Amount, bool) {
	b, ok := r.Bound.(MinimumReceived)
	return b.Amount, ok
}

// MaximumSent returns the ExactOut bound, if that is what Bound holds.
func (r Result) MaximumSent() (asset.Amount, bool) {
	b, ok := r.Bound.(MaximumSent)
	return b.Amount, ok
}

// Driving returns the side that echoes the user input.
func (r Result) Driving() asset.Amount {
	if r.TxType == ExactOut {
		return r.Quote
	}
	return r.Amount
}

// Counter returns the estimated side.
func (r Result) Counter() asset.Amount {
	if r.TxType == ExactOut {
		return r.Amount
	}
	return r.Quote
}
