// Package stub is an in-memory wallet with simulated latency. Balances,
// permissions and pools live in memory so every flow runs without a chain.
package stub

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/business/wallet/app"
	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
)

var _ app.Adapter = (*Wallet)(nil)

// DefaultAddress is used when Config.Address is empty.
const DefaultAddress = "EQstubWallet000000000000000000000000000000000000"

// Config seeds the wallet.
type Config struct {
	Address string
	Latency time.Duration
	// Balances maps token symbols to natural-unit amounts.
	Balances map[string]string
	// Pools maps "A_B" to "reserveA:reserveB:lpSupply". The account owns
	// no shares until it adds liquidity.
	Pools    map[string]string
	Registry *asset.Registry
	// Connected starts the wallet connected.
	Connected bool
}

type pool struct {
	address  string
	token0   *asset.Asset
	token1   *asset.Asset
	lp       *asset.Asset
	reserve0 decimal.Decimal
	reserve1 decimal.Decimal
	supply   decimal.Decimal
}

// Wallet is safe for concurrent use.
type Wallet struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu          sync.Mutex
	connected   bool
	balances    map[asset.AssetID]decimal.Decimal
	permissions map[asset.AssetID]bool
	pools       map[string]*pool
	nonce       uint64
}

// New builds a wallet from cfg, resolving symbols through the registry.
func New(cfg Config) (*Wallet, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("stub: registry is required")
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	w := &Wallet{
		cfg:         cfg,
		sleep:       sleepCtx,
		now:         time.Now,
		connected:   cfg.Connected,
		balances:    make(map[asset.AssetID]decimal.Decimal),
		permissions: make(map[asset.AssetID]bool),
		pools:       make(map[string]*pool),
	}

	for symbol, raw := range cfg.Balances {
		token, err := cfg.Registry.Lookup(symbol)
		if err != nil {
			return nil, fmt.Errorf("stub: balance %s: %w", symbol, err)
		}
		amount, err := asset.ParseAmount(token, raw)
		if err != nil {
			return nil, fmt.Errorf("stub: balance %s: %w", symbol, err)
		}
		w.balances[token.ID()] = amount.Decimal()
	}

	for pair, raw := range cfg.Pools {
		p, err := parsePool(cfg.Registry, pair, raw)
		if err != nil {
			return nil, err
		}
		w.pools[poolKey(p.token0, p.token1)] = p
	}

	return w, nil
}

func parsePool(reg *asset.Registry, pair, raw string) (*pool, error) {
	symbols := strings.SplitN(strings.ToUpper(pair), "_", 2)
	parts := strings.Split(raw, ":")
	if len(symbols) != 2 || len(parts) != 3 {
		return nil, fmt.Errorf("stub: malformed pool %s=%q", pair, raw)
	}

	t0, err := reg.Lookup(symbols[0])
	if err != nil {
		return nil, fmt.Errorf("stub: pool %s: %w", pair, err)
	}
	t1, err := reg.Lookup(symbols[1])
	if err != nil {
		return nil, fmt.Errorf("stub: pool %s: %w", pair, err)
	}

	values := make([]decimal.Decimal, 3)
	for i, part := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil || d.IsNegative() {
			return nil, fmt.Errorf("stub: pool %s: bad value %q", pair, part)
		}
		values[i] = d
	}

	address := "pool:" + t0.Symbol() + "_" + t1.Symbol()
	return &pool{
		address:  address,
		token0:   t0,
		token1:   t1,
		lp:       asset.NewToken(t0.ChainID(), address, t0.Symbol()+"-"+t1.Symbol()+"-LP", 9),
		reserve0: values[0],
		reserve1: values[1],
		supply:   values[2],
	}, nil
}

func (w *Wallet) Name() string {
	return "stub"
}

func (w *Wallet) Connect(ctx context.Context) error {
	if err := w.sleep(ctx, w.cfg.Latency); err != nil {
		return err
	}
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
	return nil
}

func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()
	return nil
}

func (w *Wallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Wallet) Address() string {
	return w.cfg.Address
}

func (w *Wallet) GetBalance(ctx context.Context, token *asset.Asset) (asset.Amount, error) {
	if err := w.begin(ctx); err != nil {
		return asset.Amount{}, err
	}
	defer w.mu.Unlock()

	return asset.NewAmount(token, w.balances[token.ID()]), nil
}

func (w *Wallet) GetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	if err := w.begin(ctx); err != nil {
		return false, err
	}
	defer w.mu.Unlock()

	return token.IsNative() || w.permissions[token.ID()], nil
}

func (w *Wallet) SetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	if err := w.begin(ctx); err != nil {
		return false, err
	}
	defer w.mu.Unlock()

	w.permissions[token.ID()] = true
	return true, nil
}

func (w *Wallet) Swap(ctx context.Context, order domain.SwapOrder) (domain.Status, error) {
	if err := w.begin(ctx); err != nil {
		return domain.Status{}, err
	}
	defer w.mu.Unlock()

	if err := w.checkOrder(order.Deadline, order.From.Asset()); err != nil {
		return domain.Status{}, err
	}
	if order.ExactOut && aboveMax(order.From, order.Limit) {
		return domain.Status{}, rejected("swap", "input above maximum sent")
	}
	if !order.ExactOut && belowMin(order.To, order.Limit) {
		return domain.Status{}, rejected("swap", "output below minimum received")
	}
	if err := w.debit(order.From); err != nil {
		return domain.Status{}, err
	}
	w.credit(order.To)

	if p, ok := w.pools[poolKey(order.From.Asset(), order.To.Asset())]; ok {
		if p.token0.Equals(order.From.Asset()) {
			p.reserve0 = p.reserve0.Add(order.From.Decimal())
			p.reserve1 = decimal.Max(decimal.Zero, p.reserve1.Sub(order.To.Decimal()))
		} else {
			p.reserve1 = p.reserve1.Add(order.From.Decimal())
			p.reserve0 = decimal.Max(decimal.Zero, p.reserve0.Sub(order.To.Decimal()))
		}
	}

	return w.status("swap", order.From.String(), order.To.String()), nil
}

func (w *Wallet) AddLiquidity(ctx context.Context, order domain.LiquidityOrder) (domain.Status, error) {
	if err := w.begin(ctx); err != nil {
		return domain.Status{}, err
	}
	defer w.mu.Unlock()

	t0, t1 := order.Amount0.Asset(), order.Amount1.Asset()
	if err := w.checkOrder(order.Deadline, t0); err != nil {
		return domain.Status{}, err
	}
	if err := w.checkPermission(t1); err != nil {
		return domain.Status{}, err
	}
	if err := w.ensureFunds(order.Amount0); err != nil {
		return domain.Status{}, err
	}
	if err := w.ensureFunds(order.Amount1); err != nil {
		return domain.Status{}, err
	}

	p, ok := w.pools[poolKey(t0, t1)]
	if !ok {
		p = &pool{token0: t0, token1: t1}
		p.address = "pool:" + t0.Symbol() + "_" + t1.Symbol()
		p.lp = asset.NewToken(t0.ChainID(), p.address, t0.Symbol()+"-"+t1.Symbol()+"-LP", 9)
		w.pools[poolKey(t0, t1)] = p
	}
	a0, a1 := order.Amount0.Decimal(), order.Amount1.Decimal()
	if !p.token0.Equals(t0) {
		a0, a1 = a1, a0
	}

	minted := a0
	if p.reserve0.IsPositive() {
		minted = a0.Mul(p.supply).DivRound(p.reserve0, asset.DivisionPrecision)
	}
	minted = minted.Truncate(int32(p.lp.Decimals()))

	_ = w.debit(order.Amount0)
	_ = w.debit(order.Amount1)
	p.reserve0 = p.reserve0.Add(a0)
	p.reserve1 = p.reserve1.Add(a1)
	p.supply = p.supply.Add(minted)
	w.balances[p.lp.ID()] = w.balances[p.lp.ID()].Add(minted)

	return w.status("add", order.Amount0.String(), order.Amount1.String()), nil
}

func (w *Wallet) RemoveLiquidity(ctx context.Context, order domain.RemoveOrder) (domain.Status, error) {
	if err := w.begin(ctx); err != nil {
		return domain.Status{}, err
	}
	defer w.mu.Unlock()

	if order.Pool.Token0 == nil || order.Pool.Token1 == nil {
		return domain.Status{}, domain.ErrPoolNotFound
	}
	p, ok := w.pools[poolKey(order.Pool.Token0, order.Pool.Token1)]
	if !ok {
		return domain.Status{}, domain.ErrPoolNotFound
	}
	if err := w.checkOrder(order.Deadline, p.lp); err != nil {
		return domain.Status{}, err
	}
	if err := w.ensureFunds(order.Liquidity); err != nil {
		return domain.Status{}, err
	}
	if !p.supply.IsPositive() {
		return domain.Status{}, rejected("remove", "pool has no supply")
	}

	liq := order.Liquidity.Decimal()
	out0 := p.reserve0.Mul(liq).DivRound(p.supply, asset.DivisionPrecision).Truncate(int32(p.token0.Decimals()))
	out1 := p.reserve1.Mul(liq).DivRound(p.supply, asset.DivisionPrecision).Truncate(int32(p.token1.Decimals()))

	amount0 := asset.NewAmount(p.token0, out0)
	amount1 := asset.NewAmount(p.token1, out1)
	if !p.token0.Equals(order.Pool.Token0) {
		amount0, amount1 = amount1, amount0
	}
	if belowMin(amount0, order.Min0) || belowMin(amount1, order.Min1) {
		return domain.Status{}, rejected("remove", "output below minimum")
	}

	_ = w.debit(order.Liquidity)
	// The approval is consumed by the burn.
	delete(w.permissions, p.lp.ID())
	p.reserve0 = p.reserve0.Sub(out0)
	p.reserve1 = p.reserve1.Sub(out1)
	p.supply = p.supply.Sub(order.Liquidity.Decimal())
	w.credit(amount0)
	w.credit(amount1)

	return w.status("remove", order.Liquidity.String(), amount0.String()+"+"+amount1.String()), nil
}

func (w *Wallet) GetPool(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error) {
	if err := w.begin(ctx); err != nil {
		return domain.PoolSnapshot{}, err
	}
	defer w.mu.Unlock()

	p, ok := w.pools[poolKey(a, b)]
	if !ok {
		return domain.PoolSnapshot{}, domain.ErrPoolNotFound
	}

	snap := domain.PoolSnapshot{
		Address:  p.address,
		Token0:   p.token0,
		Token1:   p.token1,
		LPToken:  p.lp,
		Reserve0: asset.NewAmount(p.token0, p.reserve0),
		Reserve1: asset.NewAmount(p.token1, p.reserve1),
		LPSupply: asset.NewAmount(p.lp, p.supply),
		UserLP:   asset.NewAmount(p.lp, w.balances[p.lp.ID()]),
	}
	if !p.token0.Equals(a) {
		snap = snap.Reversed()
	}
	return snap, nil
}

func (w *Wallet) ApproveRemovePool(ctx context.Context, input domain.PoolInput) (domain.Status, error) {
	if err := w.begin(ctx); err != nil {
		return domain.Status{}, err
	}
	defer w.mu.Unlock()

	if input.Pool.LPToken == nil {
		return domain.Status{}, domain.ErrPoolNotFound
	}
	w.permissions[input.Pool.LPToken.ID()] = true
	return w.status("approve", input.Pool.LPToken.Symbol(), input.Liquidity.String()), nil
}

// begin waits the simulated latency and returns holding the lock.
func (w *Wallet) begin(ctx context.Context) error {
	if err := w.sleep(ctx, w.cfg.Latency); err != nil {
		return err
	}
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return domain.ErrNotConnected
	}
	return nil
}

func (w *Wallet) checkOrder(deadline time.Time, spent *asset.Asset) error {
	if domain.Expired(deadline, w.now()) {
		return domain.ErrExpired
	}
	return w.checkPermission(spent)
}

func (w *Wallet) checkPermission(token *asset.Asset) error {
	if token.IsNative() || w.permissions[token.ID()] {
		return nil
	}
	return apperror.New(apperror.CodePermissionRequired, apperror.WithContext("token", token.Symbol()))
}

func (w *Wallet) ensureFunds(a asset.Amount) error {
	if w.balances[a.Asset().ID()].LessThan(a.Decimal()) {
		return apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext("token", a.Asset().Symbol()),
			apperror.WithContext("required", a.Decimal().String()))
	}
	return nil
}

func (w *Wallet) debit(a asset.Amount) error {
	if err := w.ensureFunds(a); err != nil {
		return err
	}
	id := a.Asset().ID()
	w.balances[id] = w.balances[id].Sub(a.Decimal())
	return nil
}

func (w *Wallet) credit(a asset.Amount) {
	id := a.Asset().ID()
	w.balances[id] = w.balances[id].Add(a.Decimal())
}

// status fabricates a confirmed transaction with a deterministic hash.
func (w *Wallet) status(op string, parts ...string) domain.Status {
	w.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], w.nonce)
	hash := crypto.Keccak256Hash(n[:], []byte(op), []byte(strings.Join(parts, "|")))
	return domain.Status{Hash: hash.Hex(), State: domain.TxConfirmed, At: w.now()}
}

func rejected(op, reason string) error {
	return apperror.New(apperror.CodeWalletRejected,
		apperror.WithMessage(reason),
		apperror.WithContext("op", op))
}

func belowMin(got, min asset.Amount) bool {
	if min.Asset() == nil {
		return false
	}
	c, err := got.Cmp(min)
	return err != nil || c < 0
}

func aboveMax(got, max asset.Amount) bool {
	if max.Asset() == nil {
		return false
	}
	c, err := got.Cmp(max)
	return err != nil || c > 0
}

func poolKey(a, b *asset.Asset) string {
	x, y := a.ID().String(), b.ID().String()
	if x > y {
		x, y = y, x
	}
	return x + "|" + y
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
