// Package pricetable is a deterministic QuoteSource backed by a static
// table of base-unit rates. It stands in for an on-chain pricing source and
// can be updated live by the price feed.
package pricetable

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/business/quote/app"
	"github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

var _ app.QuoteSource = (*Table)(nil)

// Config holds the table contents.
type Config struct {
	// Rates maps "BASE_QUOTE" to quote base units per whole base token.
	Rates map[string]string
	// Depth maps "FROM_TO" to the largest output, in natural units of TO,
	// the pair can fill.
	Depth map[string]string
	// FeeRate is reported on every leg, 0.003 for 0.3%.
	FeeRate decimal.Decimal
	// PriceImpact is a constant percentage reported on every leg.
	PriceImpact decimal.Decimal
	// Latency simulates a network round trip.
	Latency time.Duration
}

// Table is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	rates  map[string]decimal.Decimal
	depth  map[string]decimal.Decimal
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
	update func(pair string)
}

// New builds a table from cfg.
func New(cfg Config) (*Table, error) {
	t := &Table{
		rates: make(map[string]decimal.Decimal, len(cfg.Rates)),
		depth: make(map[string]decimal.Decimal, len(cfg.Depth)),
		cfg:   cfg,
		sleep: sleepCtx,
	}

	for pair, raw := range cfg.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("pricetable: rate %s: %w", pair, err)
		}
		if err := t.SetRate(pair, rate); err != nil {
			return nil, err
		}
	}
	for pair, raw := range cfg.Depth {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("pricetable: depth %s: %w", pair, err)
		}
		t.depth[normalizePair(pair)] = d
	}

	return t, nil
}

// Name identifies the source.
func (t *Table) Name() string {
	return "static"
}

// OnUpdate registers a callback fired after SetRate.
func (t *Table) OnUpdate(fn func(pair string)) {
	t.mu.Lock()
	t.update = fn
	t.mu.Unlock()
}

// SetRate stores a base-unit rate for "BASE_QUOTE".
func (t *Table) SetRate(pair string, baseUnitRate decimal.Decimal) error {
	key := normalizePair(pair)
	if _, _, ok := splitPair(key); !ok {
		return fmt.Errorf("pricetable: malformed pair %q", pair)
	}
	if !baseUnitRate.IsPositive() {
		return fmt.Errorf("pricetable: rate for %s must be positive", pair)
	}

	t.mu.Lock()
	t.rates[key] = baseUnitRate
	notify := t.update
	t.mu.Unlock()

	if notify != nil {
		notify(key)
	}
	return nil
}

// Rate returns the natural-unit price of from in to.
func (t *Table) Rate(from, to *asset.Asset) (asset.Price, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[pairKey(from, to)]; ok {
		return asset.NewPriceFromBaseUnits(from, to, rate, time.Time{}), nil
	}
	if rate, ok := t.rates[pairKey(to, from)]; ok {
		return asset.NewPriceFromBaseUnits(to, from, rate, time.Time{}).Invert(), nil
	}
	return asset.Price{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, pairKey(from, to))
}

// QuoteExactIn converts a fixed input through the table rate.
func (t *Table) QuoteExactIn(ctx context.Context, from, to *asset.Asset, amountIn asset.Amount) (domain.Leg, error) {
	if err := t.sleep(ctx, t.cfg.Latency); err != nil {
		return domain.Leg{}, err
	}

	out, err := t.convert(from, to, amountIn)
	if err != nil {
		return domain.Leg{}, err
	}
	if err := t.checkDepth(from, to, out); err != nil {
		return domain.Leg{}, err
	}
	return t.leg(amountIn, out), nil
}

// QuoteExactOut computes the input needed for a fixed output.
func (t *Table) QuoteExactOut(ctx context.Context, from, to *asset.Asset, amountOut asset.Amount) (domain.Leg, error) {
	if err := t.sleep(ctx, t.cfg.Latency); err != nil {
		return domain.Leg{}, err
	}
	if err := t.checkDepth(from, to, amountOut); err != nil {
		return domain.Leg{}, err
	}

	in, err := t.convertBack(from, to, amountOut)
	if err != nil {
		return domain.Leg{}, err
	}
	return t.leg(in, amountOut), nil
}

func (t *Table) leg(in, out asset.Amount) domain.Leg {
	return domain.Leg{
		AmountIn:    in,
		AmountOut:   out,
		FeeRate:     t.cfg.FeeRate,
		PriceImpact: t.cfg.PriceImpact,
		Source:      t.Name(),
	}
}

// convert prices amountIn of from in units of to. The direct pair
// multiplies; the reverse pair divides, so a configured rate is never
// inverted and re-multiplied.
func (t *Table) convert(from, to *asset.Asset, amountIn asset.Amount) (asset.Amount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[pairKey(from, to)]; ok {
		return asset.NewPriceFromBaseUnits(from, to, rate, time.Time{}).Convert(amountIn)
	}
	if rate, ok := t.rates[pairKey(to, from)]; ok {
		return asset.NewPriceFromBaseUnits(to, from, rate, time.Time{}).ConvertInverse(amountIn)
	}
	return asset.Amount{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, pairKey(from, to))
}

func (t *Table) convertBack(from, to *asset.Asset, amountOut asset.Amount) (asset.Amount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[pairKey(from, to)]; ok {
		return asset.NewPriceFromBaseUnits(from, to, rate, time.Time{}).ConvertInverse(amountOut)
	}
	if rate, ok := t.rates[pairKey(to, from)]; ok {
		return asset.NewPriceFromBaseUnits(to, from, rate, time.Time{}).Convert(amountOut)
	}
	return asset.Amount{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, pairKey(from, to))
}

func (t *Table) checkDepth(from, to *asset.Asset, out asset.Amount) error {
	t.mu.RLock()
	limit, ok := t.depth[pairKey(from, to)]
	t.mu.RUnlock()

	if ok && out.Decimal().GreaterThan(limit) {
		return fmt.Errorf("%w: %s output %s exceeds depth %s", domain.ErrNoLiquidity, pairKey(from, to), out.Decimal(), limit)
	}
	return nil
}

func pairKey(base, quote *asset.Asset) string {
	return normalizePair(base.Symbol() + "_" + quote.Symbol())
}

func normalizePair(pair string) string {
	return strings.ToUpper(strings.TrimSpace(pair))
}

func splitPair(pair string) (string, string, bool) {
	base, quote, ok := strings.Cut(pair, "_")
	return base, quote, ok && base != "" && quote != ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
