package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	quoteDomain "github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/business/trade/domain"
	walletApp "github.com/fd1az/dexswap/business/wallet/app"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/cancelable"
	"github.com/fd1az/dexswap/internal/logger"
)

const instrumentationName = "trade"

var one = decimal.NewFromInt(1)

// estimate is what one cancelable task produces.
type estimate struct {
	result quoteDomain.Result
	pool   *walletDomain.PoolSnapshot
	share  decimal.Decimal
	remove *asset.Amount
}

type controllerMetrics struct {
	started     metric.Int64Counter
	discarded   metric.Int64Counter
	failed      metric.Int64Counter
	submissions metric.Int64Counter
}

// Controller owns the state of one channel. Every handler runs its state
// transition inside one critical section, so replacing the live estimate
// and publishing the new state can never interleave with another handler.
type Controller struct {
	channel   domain.Channel
	estimator Estimator
	wallet    walletApp.Adapter
	settings  SettingsSource
	logger    logger.LoggerInterface
	now       func() time.Time

	tracer  trace.Tracer
	metrics *controllerMetrics
	attrs   metric.MeasurementOption

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         domain.State
	slot          cancelable.Slot[estimate]
	manualPending bool
	pool          *walletDomain.PoolSnapshot
	// lp is the pool share typed on the remove channel, nil when the
	// token 0 amount drives the estimate.
	lp     *asset.Amount
	closed bool

	notifyMu  sync.Mutex
	published uint64
	nextObs   int
	observers map[int]domain.Observer
}

// NewController creates the controller of channel.
func NewController(channel domain.Channel, est Estimator, wallet walletApp.Adapter, set SettingsSource, log logger.LoggerInterface) (*Controller, error) {
	if est == nil || wallet == nil || set == nil {
		return nil, fmt.Errorf("trade: estimator, wallet and settings are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		channel:   channel,
		estimator: est,
		wallet:    wallet,
		settings:  set,
		logger:    log,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		attrs:     metric.WithAttributes(attribute.String("channel", channel.String())),
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.Initial(channel),
		observers: make(map[int]domain.Observer),
	}
	if err := c.initMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Controller) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error

	c.metrics = &controllerMetrics{}

	c.metrics.started, err = meter.Int64Counter(
		"trade_estimates_started_total",
		metric.WithDescription("Estimates issued by trade controllers"),
	)
	if err != nil {
		return err
	}

	c.metrics.discarded, err = meter.Int64Counter(
		"trade_estimates_discarded_total",
		metric.WithDescription("Estimates superseded before they could be applied"),
	)
	if err != nil {
		return err
	}

	c.metrics.failed, err = meter.Int64Counter(
		"trade_estimates_failed_total",
		metric.WithDescription("Estimates that ended in a transport error"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissions, err = meter.Int64Counter(
		"trade_submissions_total",
		metric.WithDescription("Wallet submissions by outcome"),
	)
	return err
}

// Channel returns the channel this controller drives.
func (c *Controller) Channel() domain.Channel {
	return c.channel
}

// State returns the current snapshot.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers obs and returns a function that removes it.
// Observers are called one at a time and never see an older version after
// a newer one.
func (c *Controller) Subscribe(obs domain.Observer) func() {
	c.notifyMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = obs
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.observers, id)
		c.notifyMu.Unlock()
	}
}

// SelectToken sets the token of side. Picking the token already on the
// other side swaps the two sides.
func (c *Controller) SelectToken(side domain.Side, token *asset.Asset) error {
	if token == nil {
		return apperror.New(apperror.CodeInvalidToken, apperror.WithMessage("token is required"))
	}

	c.mu.Lock()
	if other := c.state.Input(side.Other()); other.Token != nil && other.Token.Equals(token) {
		c.state = c.state.Flipped()
	} else {
		in := c.state.Input(side)
		if in.Token == nil || !in.Token.Equals(token) {
			in.Token = token
			in.RemoveAmount = nil
			if in.Amount != nil {
				rescaled := asset.NewAmount(token, in.Amount.Decimal().Truncate(int32(token.Decimals())))
				in.Amount = &rescaled
			}
		}
		c.state.SetInput(side, in)
	}
	c.pool = nil
	c.lp = nil
	c.state.Approved = nil
	snap := c.dispatchLocked(quoteDomain.UserTriggered)
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// SetAmount sets the amount typed on side. Editing side 0 makes the trade
// EXACT_IN, editing side 1 makes it EXACT_OUT. An empty value clears the
// field and the estimate.
func (c *Controller) SetAmount(side domain.Side, raw string) error {
	raw = strings.TrimSpace(raw)

	c.mu.Lock()
	in := c.state.Input(side)
	if raw == "" {
		in.Amount = nil
	} else {
		if in.Token == nil {
			c.mu.Unlock()
			return apperror.New(apperror.CodeInvalidToken,
				apperror.WithMessage("select a token first"),
				apperror.WithContext("side", side.String()))
		}
		amount, err := asset.ParseAmount(in.Token, raw)
		if err != nil {
			c.mu.Unlock()
			return apperror.Validation(apperror.CodeInvalidAmount, "amount", err)
		}
		in.Amount = &amount
	}
	in.RemoveAmount = nil
	c.lp = nil
	c.state.SetInput(side, in)
	if side == domain.Side0 {
		c.state.TxType = quoteDomain.ExactIn
	} else {
		c.state.TxType = quoteDomain.ExactOut
	}
	snap := c.dispatchLocked(quoteDomain.UserTriggered)
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// SetRemoveAmount sets the pool share to burn on the remove channel. The
// token 0 amount it withdraws becomes the driving input.
func (c *Controller) SetRemoveAmount(raw string) error {
	if c.channel != domain.ChannelRemoveLiquidity {
		return apperror.New(apperror.CodeUnsupportedOperation,
			apperror.WithMessage("pool shares are only set when removing liquidity"))
	}

	c.mu.Lock()
	pool := c.pool
	if pool == nil || pool.LPToken == nil || pool.LPSupply.IsZero() {
		c.mu.Unlock()
		return apperror.New(apperror.CodePoolNotFound, apperror.WithMessage("no pool loaded for the selected tokens"))
	}
	lp, err := asset.ParseAmount(pool.LPToken, raw)
	if err != nil {
		c.mu.Unlock()
		return apperror.Validation(apperror.CodeInvalidAmount, "liquidity", err)
	}

	amount0 := lp.Decimal().
		Mul(pool.Reserve0.Decimal()).
		DivRound(pool.LPSupply.Decimal(), asset.DivisionPrecision).
		Truncate(int32(pool.Token0.Decimals()))
	driving := asset.NewAmount(pool.Token0, amount0)

	c.state.Input0.Amount = &driving
	c.state.Input0.RemoveAmount = &lp
	c.lp = &lp
	c.state.TxType = quoteDomain.ExactIn
	snap := c.dispatchLocked(quoteDomain.UserTriggered)
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Flip exchanges both sides and the trade direction in one transition.
func (c *Controller) Flip() {
	c.mu.Lock()
	c.state = c.state.Flipped()
	c.pool = nil
	c.lp = nil
	c.state.Approved = nil
	snap := c.dispatchLocked(quoteDomain.UserTriggered)
	c.mu.Unlock()

	c.publish(snap)
}

// Requote re-estimates the current input as a user request, for example
// after the slippage setting changed.
func (c *Controller) Requote() {
	c.mu.Lock()
	if !c.state.Ready() {
		c.mu.Unlock()
		return
	}
	snap := c.dispatchLocked(quoteDomain.UserTriggered)
	c.mu.Unlock()

	c.publish(snap)
}

// Reset returns the channel to its defaults and drops any pending estimate.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.slot.Cancel()
	c.manualPending = false
	c.pool = nil
	c.lp = nil
	version := c.state.Version
	c.state = domain.Initial(c.channel)
	c.state.Version = version
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Refresh starts a silent estimate of the current input. It does nothing
// while the wallet is disconnected, the form is incomplete, a user request
// is still pending or a submission is in progress. It reports whether an
// estimate was issued.
func (c *Controller) Refresh() bool {
	if !c.wallet.Connected() {
		return false
	}

	c.mu.Lock()
	if c.closed || c.manualPending || !c.state.Ready() || c.state.Phase == domain.PhaseSubmitting {
		c.mu.Unlock()
		return false
	}
	snap := c.dispatchLocked(quoteDomain.BackgroundRefresh)
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// dispatchLocked issues the estimate for the current input, or clears the
// estimate when the input is incomplete. c.mu must be held.
func (c *Controller) dispatchLocked(trigger quoteDomain.Trigger) domain.State {
	st := &c.state

	if c.closed || !st.Ready() {
		c.slot.Cancel()
		c.manualPending = false

		counter := domain.DrivingSide(st.TxType).Other()
		in := st.Input(counter)
		in.Amount = nil
		st.SetInput(counter, in)
		st.Input0.RemoveAmount = nil
		st.Input1.RemoveAmount = nil
		c.lp = nil
		st.Result = nil
		st.Err = nil
		st.Loading = false
		st.PoolShare = decimal.Zero
		if st.Phase != domain.PhaseSubmitting {
			st.Phase = domain.PhaseIdle
		}
		return c.commitLocked()
	}

	driving := domain.DrivingSide(st.TxType)
	req := quoteDomain.Request{
		Operation:    c.channel.Operation(),
		Input:        *st.Input(driving).Amount,
		CounterToken: st.Input(driving.Other()).Token,
		TxType:       st.TxType,
		Trigger:      trigger,
		Slippage:     c.settings.Get().Slippage,
	}

	typed := c.lp
	task := cancelable.Start(c.ctx, func(ctx context.Context) (estimate, error) {
		return c.estimate(ctx, req, typed)
	})
	c.slot.Replace(task)

	if trigger == quoteDomain.UserTriggered {
		c.manualPending = true
		st.Loading = true
		st.Err = nil
		if st.Phase != domain.PhaseSubmitting {
			st.Phase = domain.PhaseAwaitingManual
		}
	} else if st.Phase != domain.PhaseSubmitting {
		st.Phase = domain.PhaseAwaitingAuto
	}

	c.metrics.started.Add(c.ctx, 1, c.attrs, metric.WithAttributes(attribute.String("trigger", trigger.String())))

	c.wg.Add(1)
	go c.await(task, trigger)

	return c.commitLocked()
}

// await applies the outcome of task unless a newer handler replaced it.
func (c *Controller) await(task *cancelable.Task[estimate], trigger quoteDomain.Trigger) {
	defer c.wg.Done()

	est, err := task.Wait(c.ctx)

	c.mu.Lock()
	if !c.slot.IsLive(task) || cancelable.IsCanceled(err) {
		c.mu.Unlock()
		c.metrics.discarded.Add(context.Background(), 1, c.attrs)
		return
	}
	c.slot.Release(task)

	st := &c.state
	if trigger == quoteDomain.UserTriggered {
		st.Loading = false
		c.manualPending = false
	}
	if st.Phase != domain.PhaseSubmitting {
		st.Phase = domain.PhaseSettled
	}

	if err != nil {
		st.Err = err
		st.Result = nil
		c.metrics.failed.Add(context.Background(), 1, c.attrs)
		c.logger.Warn(context.Background(), "estimate failed",
			"channel", c.channel.String(), "trigger", trigger.String(), "error", err)
	} else {
		c.applyLocked(est)
	}

	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Controller) applyLocked(est estimate) {
	st := &c.state
	r := est.result

	st.Result = &r
	st.Err = nil

	counter := domain.DrivingSide(r.TxType).Other()
	in := st.Input(counter)
	if r.InsufficientLiquidity {
		in.Amount = nil
	} else {
		amount := r.Counter()
		in.Amount = &amount
	}
	st.SetInput(counter, in)

	c.pool = est.pool
	st.PoolShare = est.share
	st.Input0.RemoveAmount = est.remove
	st.Input1.RemoveAmount = nil
}

// estimate runs inside the cancelable task. Liquidity channels also read
// the pool so share and LP amounts belong to the same answer as the quote.
// A pool share the user typed is kept as the amount to burn.
func (c *Controller) estimate(ctx context.Context, req quoteDomain.Request, typed *asset.Amount) (estimate, error) {
	ctx, span := c.tracer.Start(ctx, "trade.estimate", trace.WithAttributes(
		attribute.String("channel", c.channel.String()),
		attribute.String("trigger", req.Trigger.String()),
	))
	defer span.End()

	r, err := c.estimator.Estimate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return estimate{}, err
	}

	out := estimate{result: r, share: decimal.Zero}
	if !c.channel.IsLiquidity() || r.InsufficientLiquidity {
		return out, nil
	}

	pool, err := c.wallet.GetPool(ctx, r.Amount.Asset(), r.Quote.Asset())
	switch {
	case isPoolMissing(err):
		if c.channel == domain.ChannelRemoveLiquidity {
			return estimate{}, apperror.New(apperror.CodePoolNotFound,
				apperror.WithContext("pair", r.Amount.Asset().Symbol()+"/"+r.Quote.Asset().Symbol()),
				apperror.WithCause(err))
		}
		// The first deposit owns the whole pool.
		out.share = one
		return out, nil
	case isDisconnected(err):
		return out, nil
	case err != nil:
		span.RecordError(err)
		return estimate{}, err
	}

	out.pool = &pool
	switch c.channel {
	case domain.ChannelAddLiquidity:
		out.share = pool.ShareOf(r.Amount)
	case domain.ChannelRemoveLiquidity:
		if typed != nil && pool.LPToken != nil && typed.Asset().Equals(pool.LPToken) {
			out.remove = typed
		} else if lp := pool.LiquidityFor(r.Amount); lp.Asset() != nil {
			out.remove = &lp
		}
	}
	span.SetStatus(codes.Ok, "estimated")
	return out, nil
}

// Submit checks the submission gates and sends the current estimate to the
// wallet. A wallet failure moves the channel to PhaseRejected; a failed
// gate leaves the state untouched.
func (c *Controller) Submit(ctx context.Context) (walletDomain.Status, error) {
	c.mu.Lock()
	st := c.state
	pool := c.pool
	c.mu.Unlock()

	if st.Phase == domain.PhaseSubmitting {
		return walletDomain.Status{}, apperror.New(apperror.CodeInvalidState, apperror.WithMessage("a submission is already in progress"))
	}
	if st.Result == nil || st.Loading {
		return walletDomain.Status{}, apperror.New(apperror.CodeEstimateMissing, apperror.WithContext("channel", c.channel.String()))
	}

	ctx, span := c.tracer.Start(ctx, "trade.submit", trace.WithAttributes(attribute.String("channel", c.channel.String())))
	defer span.End()

	if err := c.checkGates(ctx, st, pool); err != nil {
		span.SetAttributes(attribute.String("gate", string(apperror.GetCode(err))))
		return walletDomain.Status{}, err
	}

	c.mu.Lock()
	c.state.Phase = domain.PhaseSubmitting
	c.state.Err = nil
	snap := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	status, err := c.send(ctx, st, pool)

	c.mu.Lock()
	outcome := "submitted"
	if err != nil {
		outcome = "rejected"
		c.state.Phase = domain.PhaseRejected
		c.state.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission rejected")
	} else {
		c.state.Phase = domain.PhaseSubmitted
		c.state.LastStatus = &status
		if c.state.Result == st.Result {
			c.clearAmountsLocked()
		}
		if c.channel == domain.ChannelRemoveLiquidity {
			c.state.Approved = nil
		}
		span.SetStatus(codes.Ok, "submitted")
	}
	snap = c.commitLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.metrics.submissions.Add(ctx, 1, c.attrs, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		c.logger.Warn(ctx, "submission rejected", "channel", c.channel.String(), "error", err)
		return walletDomain.Status{}, err
	}
	c.logger.Info(ctx, "submission sent", "channel", c.channel.String(), "hash", status.Hash, "state", status.State.String())
	return status, nil
}

func (c *Controller) clearAmountsLocked() {
	c.slot.Cancel()
	c.manualPending = false
	c.pool = nil
	c.state.Input0.Amount, c.state.Input1.Amount = nil, nil
	c.state.Input0.RemoveAmount, c.state.Input1.RemoveAmount = nil, nil
	c.state.Result = nil
	c.state.Loading = false
	c.state.PoolShare = decimal.Zero
}

func (c *Controller) checkGates(ctx context.Context, st domain.State, pool *walletDomain.PoolSnapshot) error {
	r := st.Result
	if r.InsufficientLiquidity {
		return apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext("pair", r.Amount.Asset().Symbol()+"/"+r.Quote.Asset().Symbol()))
	}
	if !c.wallet.Connected() {
		return apperror.Transport(apperror.CodeWalletDisconnected, "submit", walletDomain.ErrNotConnected)
	}

	switch c.channel {
	case domain.ChannelSwap:
		if err := c.checkBalance(ctx, r.Amount); err != nil {
			return err
		}
		return c.checkPermission(ctx, r.Amount.Asset())

	case domain.ChannelAddLiquidity:
		for _, a := range []asset.Amount{r.Amount, r.Quote} {
			if err := c.checkBalance(ctx, a); err != nil {
				return err
			}
		}
		for _, a := range []asset.Amount{r.Amount, r.Quote} {
			if err := c.checkPermission(ctx, a.Asset()); err != nil {
				return err
			}
		}
		return nil

	case domain.ChannelRemoveLiquidity:
		lp := st.Input0.RemoveAmount
		if pool == nil || lp == nil {
			return apperror.New(apperror.CodePoolNotFound, apperror.WithContext("channel", c.channel.String()))
		}
		if asset.CompareWithBalance(lp, pool.UserLP) > 0 {
			return apperror.New(apperror.CodeInsufficientBalance,
				apperror.WithContext("token", pool.LPToken.Symbol()),
				apperror.WithContext("required", lp.Decimal().String()),
				apperror.WithContext("available", pool.UserLP.Decimal().String()))
		}
		if st.Approved == nil || asset.CompareWithBalance(lp, *st.Approved) > 0 {
			return apperror.New(apperror.CodePermissionRequired, apperror.WithContext("token", pool.LPToken.Symbol()))
		}
		return nil
	}
	return nil
}

func (c *Controller) checkBalance(ctx context.Context, need asset.Amount) error {
	balance, err := c.wallet.GetBalance(ctx, need.Asset())
	if err != nil {
		return err
	}
	if asset.CompareWithBalance(&need, balance) > 0 {
		return apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext("token", need.Asset().Symbol()),
			apperror.WithContext("required", need.Decimal().String()),
			apperror.WithContext("available", balance.Decimal().String()))
	}
	return nil
}

func (c *Controller) checkPermission(ctx context.Context, token *asset.Asset) error {
	ok, err := c.wallet.GetTokenUsePermission(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.New(apperror.CodePermissionRequired, apperror.WithContext("token", token.Symbol()))
	}
	return nil
}

func (c *Controller) send(ctx context.Context, st domain.State, pool *walletDomain.PoolSnapshot) (walletDomain.Status, error) {
	r := st.Result
	set := c.settings.Get()
	deadline := set.DeadlineAt(c.now())

	switch c.channel {
	case domain.ChannelAddLiquidity:
		return c.wallet.AddLiquidity(ctx, walletDomain.LiquidityOrder{
			Amount0:  r.Amount,
			Amount1:  r.Quote,
			Min0:     afterSlippage(r.Amount, set.Slippage),
			Min1:     afterSlippage(r.Quote, set.Slippage),
			Deadline: deadline,
		})

	case domain.ChannelRemoveLiquidity:
		return c.wallet.RemoveLiquidity(ctx, walletDomain.RemoveOrder{
			Pool:      *pool,
			Liquidity: *st.Input0.RemoveAmount,
			Min0:      afterSlippage(r.Amount, set.Slippage),
			Min1:      afterSlippage(r.Quote, set.Slippage),
			Deadline:  deadline,
		})

	default:
		return c.wallet.Swap(ctx, walletDomain.SwapOrder{
			From:     r.Amount,
			To:       r.Quote,
			ExactOut: r.TxType == quoteDomain.ExactOut,
			Limit:    r.Bound.Limit(),
			Deadline: deadline,
		})
	}
}

// afterSlippage is the least amount accepted for a once slippage applies.
func afterSlippage(a asset.Amount, slippage decimal.Decimal) asset.Amount {
	return quoteDomain.NewSlippageBound(quoteDomain.ExactIn, a, a, slippage).Limit()
}

// Approve grants what the next submission needs: spending permission for
// the source tokens, or a burn approval for the pool share being removed.
func (c *Controller) Approve(ctx context.Context) error {
	c.mu.Lock()
	st := c.state
	pool := c.pool
	c.mu.Unlock()

	switch c.channel {
	case domain.ChannelRemoveLiquidity:
		lp := st.Input0.RemoveAmount
		if pool == nil || lp == nil {
			return apperror.New(apperror.CodePoolNotFound, apperror.WithContext("channel", c.channel.String()))
		}
		status, err := c.wallet.ApproveRemovePool(ctx, walletDomain.PoolInput{Pool: *pool, Liquidity: *lp})
		if err != nil {
			return err
		}

		c.mu.Lock()
		approved := *lp
		c.state.Approved = &approved
		c.state.LastStatus = &status
		snap := c.commitLocked()
		c.mu.Unlock()
		c.publish(snap)
		return nil

	case domain.ChannelAddLiquidity:
		if st.Input0.Token == nil || st.Input1.Token == nil {
			return apperror.New(apperror.CodeInvalidToken, apperror.WithMessage("both tokens must be selected"))
		}
		for _, token := range []*asset.Asset{st.Input0.Token, st.Input1.Token} {
			if err := c.grant(ctx, token); err != nil {
				return err
			}
		}
		return nil

	default:
		if st.Input0.Token == nil {
			return apperror.New(apperror.CodeInvalidToken, apperror.WithMessage("select the token to sell"))
		}
		return c.grant(ctx, st.Input0.Token)
	}
}

func (c *Controller) grant(ctx context.Context, token *asset.Asset) error {
	ok, err := c.wallet.GetTokenUsePermission(ctx, token)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	granted, err := c.wallet.SetTokenUsePermission(ctx, token)
	if err != nil {
		return err
	}
	if !granted {
		return apperror.New(apperror.CodeWalletRejected, apperror.WithContext("token", token.Symbol()))
	}
	return nil
}

// Balances returns the wallet balances of both selected tokens. A side
// without a token yields nil.
func (c *Controller) Balances(ctx context.Context) (domain.Balances, error) {
	st := c.State()

	var out domain.Balances
	for _, side := range []domain.Side{domain.Side0, domain.Side1} {
		token := st.Input(side).Token
		if token == nil {
			continue
		}
		bal, err := c.wallet.GetBalance(ctx, token)
		if err != nil {
			return domain.Balances{}, err
		}
		out.Set(side, bal)
	}
	return out, nil
}

// Wait blocks until every issued estimate has been applied or discarded.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close drops the live estimate and stops accepting new ones.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.slot.Cancel()
	c.manualPending = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) commitLocked() domain.State {
	c.state.Version++
	return c.state
}

func (c *Controller) publish(s domain.State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if s.Version <= c.published {
		return
	}
	c.published = s.Version
	for _, obs := range c.observers {
		obs.OnStateChange(s)
	}
}

func isPoolMissing(err error) bool {
	return err != nil && (errors.Is(err, walletDomain.ErrPoolNotFound) || apperror.HasCode(err, apperror.CodePoolNotFound))
}

func isDisconnected(err error) bool {
	return err != nil && (errors.Is(err, walletDomain.ErrNotConnected) || apperror.HasCode(err, apperror.CodeWalletDisconnected))
}
