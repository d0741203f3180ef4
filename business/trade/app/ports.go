// Package app contains the trade controllers and the refresh loop.
package app

import (
	"context"

	quoteDomain "github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/internal/settings"
)

// Estimator prices a request. *quote/app.Estimator satisfies it.
type Estimator interface {
	Estimate(ctx context.Context, req quoteDomain.Request) (quoteDomain.Result, error)
}

// SettingsSource yields the current slippage and deadline.
type SettingsSource interface {
	Get() settings.Settings
}

// Connectivity reports whether a wallet is attached.
type Connectivity interface {
	Connected() bool
}
