// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/dexswap/business/wallet/app"
	"github.com/fd1az/dexswap/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("wallet.Service")
)

// Private dependency tokens - internal to wallet module
var (
	Adapter = di.NewToken[app.Adapter]("wallet:adapter")
)

// Helper functions for type-safe access
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetAdapter(c di.ServiceRegistry) app.Adapter {
	return di.GetToken(c, Adapter)
}
