// Package wallet implements the wallet bounded context: balances,
// permissions and transaction submission behind one Adapter port.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexswap/business/wallet/app"
	walletDI "github.com/fd1az/dexswap/business/wallet/di"
	"github.com/fd1az/dexswap/business/wallet/infra/ethereum"
	"github.com/fd1az/dexswap/business/wallet/infra/stub"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/config"
	"github.com/fd1az/dexswap/internal/di"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/monolith"
)

const connectTimeout = 10 * time.Second

// Module implements the wallet bounded context.
type Module struct{}

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, walletDI.Adapter, func(sr di.ServiceRegistry) app.Adapter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		adapter, err := newAdapter(sr, cfg, registry, log)
		if err != nil {
			panic("failed to create wallet adapter: " + err.Error())
		}
		return adapter
	})

	di.RegisterToken(c, walletDI.Service, func(sr di.ServiceRegistry) *app.Service {
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewService(walletDI.GetAdapter(sr), log)
		if err != nil {
			panic("failed to create wallet service: " + err.Error())
		}
		return svc
	})

	return nil
}

func newAdapter(sr di.ServiceRegistry, cfg *config.Config, registry *asset.Registry, log logger.LoggerInterface) (app.Adapter, error) {
	switch cfg.Wallet.Adapter {
	case config.WalletEthereum:
		client := sr.Get("ethClient").(*ethclient.Client)
		return ethereum.New(client, ethereum.Config{
			Router:            cfg.Uniswap.RouterAddressHex(),
			Factory:           cfg.Uniswap.FactoryAddressHex(),
			ChainID:           cfg.Ethereum.ChainID,
			PrivateKey:        cfg.Ethereum.PrivateKey,
			RequestsPerMinute: cfg.Ethereum.RequestsPerMinute,
			ReceiptTimeout:    cfg.Ethereum.ReceiptTimeout,
		}, log)
	case config.WalletStub, "":
		return stub.New(stub.Config{
			Latency:  cfg.Wallet.Latency,
			Balances: cfg.Wallet.BalanceTable(),
			Pools:    cfg.Wallet.PoolTable(),
			Registry: registry,
		})
	default:
		return nil, fmt.Errorf("unknown wallet adapter %q", cfg.Wallet.Adapter)
	}
}

// Startup connects the wallet. A failed connection is logged, not fatal:
// estimation works without a wallet and the user can reconnect.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := walletDI.GetService(mono.Services())

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := svc.Connect(connectCtx); err != nil {
		log.Warn(ctx, "wallet connection failed", "adapter", svc.Name(), "error", err)
		return nil
	}

	log.Info(ctx, "wallet module started", "adapter", svc.Name(), "address", svc.Address())
	return nil
}
