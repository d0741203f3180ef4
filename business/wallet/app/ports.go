// Package app contains application services and port definitions for the wallet context.
package app

import (
	"context"

	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

// Adapter is a wallet variant. Every call may be slow and must honor ctx.
type Adapter interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool
	Address() string

	// GetBalance returns the connected account's balance of token.
	GetBalance(ctx context.Context, token *asset.Asset) (asset.Amount, error)

	// GetTokenUsePermission reports whether the router may spend token.
	GetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error)

	// SetTokenUsePermission grants the router permission to spend token.
	SetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error)

	Swap(ctx context.Context, order domain.SwapOrder) (domain.Status, error)
	AddLiquidity(ctx context.Context, order domain.LiquidityOrder) (domain.Status, error)
	RemoveLiquidity(ctx context.Context, order domain.RemoveOrder) (domain.Status, error)

	// GetPool returns the pool for a and b, oriented so Token0 is a.
	GetPool(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error)

	// ApproveRemovePool lets the router burn the given pool shares.
	ApproveRemovePool(ctx context.Context, input domain.PoolInput) (domain.Status, error)
}
