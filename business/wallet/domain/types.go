// Package domain contains the core domain types for the wallet context.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/internal/asset"
)

var (
	ErrNotConnected = errors.New("wallet: not connected")
	ErrPoolNotFound = errors.New("wallet: pool not found")
	ErrExpired      = errors.New("wallet: deadline passed")
)

// TxState is the outcome of a submitted transaction.
type TxState int

const (
	TxPending TxState = iota
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status reports a wallet operation.
type Status struct {
	Hash  string
	State TxState
	At    time.Time
}

// SwapOrder is a swap ready for signing. When ExactOut is false, From is
// exact and Limit is the minimum received in To's asset. When ExactOut is
// true, To is exact and Limit is the maximum sent in From's asset.
type SwapOrder struct {
	From     asset.Amount
	To       asset.Amount
	ExactOut bool
	Limit    asset.Amount
	Deadline time.Time
}

// LiquidityOrder deposits both sides of a pool.
type LiquidityOrder struct {
	Amount0  asset.Amount
	Amount1  asset.Amount
	Min0     asset.Amount
	Min1     asset.Amount
	Deadline time.Time
}

// RemoveOrder burns pool shares for both underlying tokens.
type RemoveOrder struct {
	Pool      PoolSnapshot
	Liquidity asset.Amount
	Min0      asset.Amount
	Min1      asset.Amount
	Deadline  time.Time
}

// PoolInput names the share amount to approve before removal.
type PoolInput struct {
	Pool      PoolSnapshot
	Liquidity asset.Amount
}

// PoolSnapshot is a pool's state as seen by the connected account.
// Token0 is the token the caller asked for first.
type PoolSnapshot struct {
	Address  string
	Token0   *asset.Asset
	Token1   *asset.Asset
	LPToken  *asset.Asset
	Reserve0 asset.Amount
	Reserve1 asset.Amount
	LPSupply asset.Amount
	UserLP   asset.Amount
}

// ShareOf returns the pool share that depositing amount0 of Token0 would
// own afterwards, as a fraction.
func (p PoolSnapshot) ShareOf(amount0 asset.Amount) decimal.Decimal {
	total := p.Reserve0.Decimal().Add(amount0.Decimal())
	if total.IsZero() {
		return decimal.Zero
	}
	return amount0.Decimal().DivRound(total, asset.DivisionPrecision)
}

// LiquidityFor returns the LP amount that withdraws amount0 of Token0.
func (p PoolSnapshot) LiquidityFor(amount0 asset.Amount) asset.Amount {
	if p.LPToken == nil {
		return asset.Amount{}
	}
	if p.Reserve0.IsZero() {
		return asset.Zero(p.LPToken)
	}
	lp := amount0.Decimal().
		Mul(p.LPSupply.Decimal()).
		DivRound(p.Reserve0.Decimal(), asset.DivisionPrecision)
	return asset.NewAmount(p.LPToken, lp.Truncate(int32(p.LPToken.Decimals())))
}

// Reversed returns the snapshot seen from Token1.
func (p PoolSnapshot) Reversed() PoolSnapshot {
	p.Token0, p.Token1 = p.Token1, p.Token0
	p.Reserve0, p.Reserve1 = p.Reserve1, p.Reserve0
	return p
}

// Expired reports whether deadline is set and already passed.
func Expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && now.After(deadline)
}
