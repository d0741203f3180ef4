// Package di contains dependency injection tokens for the trade context.
package di

import (
	"github.com/fd1az/dexswap/business/trade/app"
	"github.com/fd1az/dexswap/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Controllers = di.NewToken[*app.Controllers]("trade.Controllers")
)

// Private dependency tokens - internal to trade module
var (
	Refresher = di.NewToken[*app.Refresher]("trade:refresher")
)

// Helper functions for type-safe access
func GetControllers(c di.ServiceRegistry) *app.Controllers {
	return di.GetToken(c, Controllers)
}

func GetRefresher(c di.ServiceRegistry) *app.Refresher {
	return di.GetToken(c, Refresher)
}
