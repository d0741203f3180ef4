package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/dexswap/business/trade/domain"
	walletApp "github.com/fd1az/dexswap/business/wallet/app"
	"github.com/fd1az/dexswap/internal/logger"
)

// Controllers is the set of per-channel controllers of one session.
type Controllers struct {
	byChannel map[domain.Channel]*Controller
}

// NewControllers creates one controller for every channel.
func NewControllers(est Estimator, wallet walletApp.Adapter, set SettingsSource, log logger.LoggerInterface) (*Controllers, error) {
	cs := &Controllers{byChannel: make(map[domain.Channel]*Controller, len(domain.Channels))}
	for _, ch := range domain.Channels {
		c, err := NewController(ch, est, wallet, set, log)
		if err != nil {
			cs.Close()
			return nil, fmt.Errorf("channel %s: %w", ch, err)
		}
		cs.byChannel[ch] = c
	}
	return cs, nil
}

// Get returns the controller of ch.
func (cs *Controllers) Get(ch domain.Channel) *Controller {
	return cs.byChannel[ch]
}

// All returns the controllers in channel order.
func (cs *Controllers) All() []*Controller {
	out := make([]*Controller, 0, len(cs.byChannel))
	for _, ch := range domain.Channels {
		if c, ok := cs.byChannel[ch]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Requote re-estimates every channel, used after a settings change.
func (cs *Controllers) Requote() {
	for _, c := range cs.All() {
		c.Requote()
	}
}

// Close closes every controller.
func (cs *Controllers) Close() {
	for _, c := range cs.byChannel {
		c.Close()
	}
}

// Refresher re-estimates every channel on a fixed interval while a wallet
// is connected.
type Refresher struct {
	interval time.Duration
	wallet   Connectivity
	targets  []*Controller
	logger   logger.LoggerInterface
}

// NewRefresher creates a refresher over targets.
func NewRefresher(interval time.Duration, wallet Connectivity, log logger.LoggerInterface, targets ...*Controller) *Refresher {
	return &Refresher{
		interval: interval,
		wallet:   wallet,
		targets:  targets,
		logger:   log,
	}
}

// Run ticks until ctx ends.
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", r.interval)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info(ctx, "refresher started", "interval", r.interval.String(), "channels", len(r.targets))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "refresher stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick refreshes every channel once and returns how many estimates were
// issued.
func (r *Refresher) Tick(ctx context.Context) int {
	if !r.wallet.Connected() {
		return 0
	}

	issued := 0
	for _, c := range r.targets {
		if c.Refresh() {
			issued++
		}
	}
	if issued > 0 {
		r.logger.Debug(ctx, "background refresh", "issued", issued)
	}
	return issued
}
