// Package di contains dependency injection tokens for the quote context.
package di

import (
	"github.com/fd1az/dexswap/business/quote/app"
	"github.com/fd1az/dexswap/business/quote/infra/pricefeed"
	"github.com/fd1az/dexswap/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Estimator = di.NewToken[*app.Estimator]("quote.Estimator")
)

// Private dependency tokens - internal to quote module
var (
	QuoteSource = di.NewToken[app.QuoteSource]("quote:source")
	PriceFeed   = di.NewToken[*pricefeed.Feed]("quote:priceFeed")
)

// Helper functions for type-safe access
func GetEstimator(c di.ServiceRegistry) *app.Estimator {
	return di.GetToken(c, Estimator)
}

func GetQuoteSource(c di.ServiceRegistry) app.QuoteSource {
	return di.GetToken(c, QuoteSource)
}

func GetPriceFeed(c di.ServiceRegistry) *pricefeed.Feed {
	return di.GetToken(c, PriceFeed)
}
