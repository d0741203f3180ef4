// Package quote implements the estimation bounded context: it turns a
// trade request into a quote with fee, price impact and slippage bound.
package quote

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexswap/business/quote/app"
	quoteDI "github.com/fd1az/dexswap/business/quote/di"
	"github.com/fd1az/dexswap/business/quote/infra/pricefeed"
	"github.com/fd1az/dexswap/business/quote/infra/pricetable"
	"github.com/fd1az/dexswap/business/quote/infra/uniswap"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/config"
	"github.com/fd1az/dexswap/internal/di"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/monolith"
)

// Module implements the quote bounded context.
type Module struct{}

// RegisterServices registers all quote services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, quoteDI.QuoteSource, func(sr di.ServiceRegistry) app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		source, err := newSource(sr, cfg, log)
		if err != nil {
			panic("failed to create quote source: " + err.Error())
		}
		return source
	})

	di.RegisterToken(c, quoteDI.PriceFeed, func(sr di.ServiceRegistry) *pricefeed.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		table, ok := quoteDI.GetQuoteSource(sr).(*pricetable.Table)
		if !ok || cfg.Quote.FeedURL == "" {
			return nil
		}

		feed, err := pricefeed.New(pricefeed.Config{
			URL:   cfg.Quote.FeedURL,
			Pairs: pairs(cfg.Quote.PriceTable()),
		}, table, log)
		if err != nil {
			panic("failed to create price feed: " + err.Error())
		}
		return feed
	})

	di.RegisterToken(c, quoteDI.Estimator, func(sr di.ServiceRegistry) *app.Estimator {
		log := sr.Get("logger").(logger.LoggerInterface)

		estimator, err := app.NewEstimator(quoteDI.GetQuoteSource(sr), log)
		if err != nil {
			panic("failed to create estimator: " + err.Error())
		}
		return estimator
	})

	return nil
}

func newSource(sr di.ServiceRegistry, cfg *config.Config, log logger.LoggerInterface) (app.QuoteSource, error) {
	switch cfg.Quote.Source {
	case config.QuoteSourceUniswap:
		client := sr.Get("ethClient").(*ethclient.Client)
		return uniswap.NewSource(client, uniswap.Config{
			Quoter:            cfg.Uniswap.QuoterAddressHex(),
			FeeTiers:          feeTiers(cfg.Uniswap.FeeTier),
			WrappedNative:     common.HexToAddress(asset.AddrWETHEthereum),
			RequestsPerMinute: cfg.Ethereum.RequestsPerMinute,
		}, log)
	case config.QuoteSourceStatic, "":
		return pricetable.New(pricetable.Config{
			Rates:       cfg.Quote.PriceTable(),
			Depth:       cfg.Quote.DepthTable(),
			FeeRate:     cfg.Quote.FeeRateDecimal(),
			PriceImpact: cfg.Quote.PriceImpactDecimal(),
			Latency:     cfg.Quote.Latency,
		})
	default:
		return nil, fmt.Errorf("unknown quote source %q", cfg.Quote.Source)
	}
}

// feeTiers puts the configured tier first so ties resolve to it.
func feeTiers(preferred int) []int {
	tiers := []int{uniswap.FeeTier005, uniswap.FeeTier030, uniswap.FeeTier100}
	if preferred <= 0 {
		return tiers
	}
	out := []int{preferred}
	for _, t := range tiers {
		if t != preferred {
			out = append(out, t)
		}
	}
	return out
}

func pairs(table map[string]string) []string {
	out := make([]string, 0, len(table))
	for pair := range table {
		out = append(out, pair)
	}
	return out
}

// Startup resolves the estimator and starts the price feed when one is
// configured. A feed that cannot connect keeps retrying in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	estimator := quoteDI.GetEstimator(mono.Services())
	log.Info(ctx, "quote module started", "source", estimator.SourceName())

	feed := quoteDI.GetPriceFeed(mono.Services())
	if feed == nil {
		return nil
	}

	go func() {
		if err := feed.Start(ctx); err != nil {
			log.Warn(ctx, "price feed stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = feed.Stop()
	}()

	return nil
}
