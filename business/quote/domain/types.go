// Package domain contains the core domain types for the quote context.
package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/internal/asset"
)

// TxType says which side of a trade the user fixed.
type TxType int

const (
	// ExactIn fixes the source amount; the destination is estimated.
	ExactIn TxType = iota
	// ExactOut fixes the destination amount; the source is estimated.
	ExactOut
)

func (t TxType) String() string {
	switch t {
	case ExactIn:
		return "EXACT_IN"
	case ExactOut:
		return "EXACT_OUT"
	default:
		return "UNKNOWN"
	}
}

// Flip returns the opposite direction.
func (t TxType) Flip() TxType {
	if t == ExactIn {
		return ExactOut
	}
	return ExactIn
}

// Trigger tells who asked for an estimate.
type Trigger int

const (
	// UserTriggered estimates follow an input edit and show a loading state.
	UserTriggered Trigger = iota
	// BackgroundRefresh estimates come from the refresh timer and are silent.
	BackgroundRefresh
)

func (t Trigger) String() string {
	switch t {
	case UserTriggered:
		return "manual"
	case BackgroundRefresh:
		return "auto"
	default:
		return "unknown"
	}
}

// Operation is the kind of trade being priced.
type Operation int

const (
	OperationSwap Operation = iota
	OperationAddLiquidity
	OperationRemoveLiquidity
)

func (o Operation) String() string {
	switch o {
	case OperationSwap:
		return "swap"
	case OperationAddLiquidity:
		return "add_liquidity"
	case OperationRemoveLiquidity:
		return "remove_liquidity"
	default:
		return "unknown"
	}
}

// ChargesFee reports whether the operation pays the swap fee.
func (o Operation) ChargesFee() bool {
	return o == OperationSwap
}

// Request asks for the counter-amount of a user-entered amount.
//
// Input is the driving side: the source token for ExactIn, the
// destination token for ExactOut. CounterToken is the other side.
type Request struct {
	Operation    Operation
	Input        asset.Amount
	CounterToken *asset.Asset
	TxType       TxType
	Trigger      Trigger
	// Slippage is a percentage in (0, 50], validated upstream.
	Slippage decimal.Decimal
}

// From returns the source token.
func (r Request) From() *asset.Asset {
	if r.TxType == ExactIn {
		return r.Input.Asset()
	}
	return r.CounterToken
}

// To returns the destination token.
func (r Request) To() *asset.Asset {
	if r.TxType == ExactIn {
		return r.CounterToken
	}
	return r.Input.Asset()
}

// Leg is a raw answer from a quote source: what goes in and what comes out.
type Leg struct {
	AmountIn    asset.Amount
	AmountOut   asset.Amount
	FeeRate     decimal.Decimal
	PriceImpact decimal.Decimal
	Source      string
}

// Fee is the fee charged on the source side.
type Fee struct {
	// Rate is a fraction, 0.003 for 0.3%.
	Rate   decimal.Decimal
	Amount asset.Amount
}
