// Package app contains the estimation service and the ports it depends on.
package app

import (
	"context"

	"github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

// QuoteSource prices a single hop between two tokens. Implementations
// return domain.ErrNoRoute or domain.ErrNoLiquidity when the pair cannot be
// filled; any other error is treated as a transport failure.
type QuoteSource interface {
	// QuoteExactIn returns the output for a fixed input of from.
	QuoteExactIn(ctx context.Context, from, to *asset.Asset, amountIn asset.Amount) (domain.Leg, error)
	// QuoteExactOut returns the input of from needed for a fixed output.
	QuoteExactOut(ctx context.Context, from, to *asset.Asset, amountOut asset.Amount) (domain.Leg, error)
	// Name identifies the source in logs and results.
	Name() string
}
