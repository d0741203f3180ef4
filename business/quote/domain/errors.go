package domain

import "errors"

var (
	// ErrNoRoute means the source does not know the pair.
	ErrNoRoute = errors.New("quote: no route for pair")
	// ErrNoLiquidity means the pair exists but cannot fill the amount.
	ErrNoLiquidity = errors.New("quote: not enough liquidity")
)

// IsLiquidityShortfall reports whether err describes a pair that cannot be
// filled, which estimation turns into a result flag.
func IsLiquidityShortfall(err error) bool {
	return errors.Is(err, ErrNoRoute) || errors.Is(err, ErrNoLiquidity)
}
