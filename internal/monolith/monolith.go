// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/config"
	"github.com/fd1az/dexswap/internal/di"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/settings"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Settings() *settings.Store
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App implements the Monolith interface.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	settings      *settings.Store
	container     di.Container
	ethClient     atomic.Pointer[ethclient.Client]
}

// New creates a new Monolith instance. The Ethereum client is dialed on
// first use, so the in-memory configuration never needs an RPC endpoint.
func New(cfg *config.Config, log logger.LoggerInterface, registry *asset.Registry) (*App, error) {
	store, err := settings.NewStore(cfg.Settings.Slippage, cfg.Settings.Deadline)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:        cfg,
		logger:        log,
		assetRegistry: registry,
		settings:      store,
		container:     di.NewContainer(),
	}

	// Register global services
	a.container.Register("config", cfg)
	a.container.Register("logger", log)
	a.container.Register("assetRegistry", registry)
	a.container.Register("settings", store)
	a.container.RegisterFactory("ethClient", func(di.ServiceRegistry) any {
		client, err := ethclient.Dial(cfg.Ethereum.HTTPURL)
		if err != nil {
			panic("failed to dial ethereum: " + err.Error())
		}
		a.ethClient.Store(client)
		return client
	})

	return a, nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *App) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *App) Settings() *settings.Store {
	return a.settings
}

func (a *App) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *App) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *App) Close() error {
	if client := a.ethClient.Load(); client != nil {
		client.Close()
	}
	return nil
}
