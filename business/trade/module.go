// Package trade implements the trade bounded context: one state
// controller per swap or liquidity form, kept fresh by a background
// refresher.
package trade

import (
	"context"

	quoteDI "github.com/fd1az/dexswap/business/quote/di"
	"github.com/fd1az/dexswap/business/trade/app"
	tradeDI "github.com/fd1az/dexswap/business/trade/di"
	walletDI "github.com/fd1az/dexswap/business/wallet/di"
	"github.com/fd1az/dexswap/internal/config"
	"github.com/fd1az/dexswap/internal/di"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/monolith"
	"github.com/fd1az/dexswap/internal/settings"
)

// Module implements the trade bounded context.
type Module struct{}

// RegisterServices registers all trade services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, tradeDI.Controllers, func(sr di.ServiceRegistry) *app.Controllers {
		log := sr.Get("logger").(logger.LoggerInterface)
		store := sr.Get("settings").(*settings.Store)

		controllers, err := app.NewControllers(
			quoteDI.GetEstimator(sr),
			walletDI.GetService(sr),
			store,
			log,
		)
		if err != nil {
			panic("failed to create trade controllers: " + err.Error())
		}
		return controllers
	})

	di.RegisterToken(c, tradeDI.Refresher, func(sr di.ServiceRegistry) *app.Refresher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewRefresher(
			cfg.Trade.RefreshInterval,
			walletDI.GetService(sr),
			log,
			tradeDI.GetControllers(sr).All()...,
		)
	})

	return nil
}

// Startup runs the refresher until ctx ends and refreshes immediately
// whenever the wallet connects.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	controllers := tradeDI.GetControllers(mono.Services())
	refresher := tradeDI.GetRefresher(mono.Services())

	walletDI.GetService(mono.Services()).OnConnectionChange(func(connected bool) {
		if connected {
			refresher.Tick(ctx)
		}
	})

	go func() {
		if err := refresher.Run(ctx); err != nil {
			log.Error(ctx, "refresher stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		controllers.Close()
	}()

	log.Info(ctx, "trade module started", "channels", len(controllers.All()))
	return nil
}
