// Package ethereum is a wallet adapter that signs with a configured key and
// trades through the Uniswap V2 router over JSON-RPC.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexswap/business/wallet/app"
	"github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/circuitbreaker"
	"github.com/fd1az/dexswap/internal/logger"
	"github.com/fd1az/dexswap/internal/ratelimit"
)

const tracerName = "wallet-ethereum"

// defaultDeadline applies when an order carries none.
const defaultDeadline = 20 * time.Minute

var _ app.Adapter = (*Wallet)(nil)

// ChainClient is the slice of ethclient the adapter needs.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config configures the adapter.
type Config struct {
	Router            common.Address
	Factory           common.Address
	ChainID           uint64
	PrivateKey        string // hex, with or without 0x
	RequestsPerMinute int
	ReceiptTimeout    time.Duration
	PollInterval      time.Duration
}

// Wallet is safe for concurrent use. Transactions from one process are
// serialized by the pending nonce the node reports.
type Wallet struct {
	cfg    Config
	client ChainClient
	key    *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer

	erc20   abi.ABI
	router  abi.ABI
	factory abi.ABI
	pair    abi.ABI

	readCB  *circuitbreaker.CircuitBreaker[[]byte]
	sendCB  *circuitbreaker.CircuitBreaker[common.Hash]
	limiter *ratelimit.Limiter

	connected atomic.Bool
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates the adapter. The key is parsed up front; no RPC happens
// until Connect.
func New(client ChainClient, cfg Config, log logger.LoggerInterface) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("field", "ethereum.private_key"),
			apperror.WithCause(err))
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}

	w := &Wallet{
		cfg:     cfg,
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(cfg.ChainID)),
		readCB:  circuitbreaker.New[[]byte](readBreakerConfig()),
		sendCB:  circuitbreaker.New[common.Hash](circuitbreaker.DefaultConfig("wallet-ethereum-send")),
		limiter: ratelimit.New("wallet-ethereum", cfg.RequestsPerMinute),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}

	for _, item := range []struct {
		dst *abi.ABI
		src string
	}{
		{&w.erc20, ERC20ABI},
		{&w.router, RouterV2ABI},
		{&w.factory, FactoryV2ABI},
		{&w.pair, PairV2ABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(item.src))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI: %w", err)
		}
		*item.dst = parsed
	}

	return w, nil
}

func readBreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("wallet-ethereum-read")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || strings.Contains(err.Error(), "execution reverted")
	}
	return cfg
}

func (w *Wallet) Name() string {
	return "ethereum"
}

// Connect checks that the node answers for the account.
func (w *Wallet) Connect(ctx context.Context) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := w.client.PendingNonceAt(ctx, w.from); err != nil {
		return apperror.Transport(apperror.CodeWalletTransport, "connect", err)
	}
	w.connected.Store(true)
	return nil
}

func (w *Wallet) Disconnect(context.Context) error {
	w.connected.Store(false)
	return nil
}

func (w *Wallet) Connected() bool {
	return w.connected.Load()
}

func (w *Wallet) Address() string {
	return w.from.Hex()
}

func (w *Wallet) GetBalance(ctx context.Context, token *asset.Asset) (asset.Amount, error) {
	if err := w.ready(ctx); err != nil {
		return asset.Amount{}, err
	}

	if token.IsNative() {
		raw, err := w.client.BalanceAt(ctx, w.from, nil)
		if err != nil {
			return asset.Amount{}, apperror.Transport(apperror.CodeWalletTransport, "balance", err)
		}
		return asset.FromBaseUnits(token, raw), nil
	}

	raw, err := w.callUint(ctx, w.erc20, common.HexToAddress(token.Address()), "balanceOf", w.from)
	if err != nil {
		return asset.Amount{}, err
	}
	return asset.FromBaseUnits(token, raw), nil
}

// unlimited is the allowance threshold treated as a standing permission.
var unlimited = new(big.Int).Rsh(math.MaxBig256, 1)

func (w *Wallet) GetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	if token.IsNative() {
		return true, nil
	}
	if err := w.ready(ctx); err != nil {
		return false, err
	}

	allowance, err := w.callUint(ctx, w.erc20, common.HexToAddress(token.Address()), "allowance", w.from, w.cfg.Router)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(unlimited) >= 0, nil
}

func (w *Wallet) SetTokenUsePermission(ctx context.Context, token *asset.Asset) (bool, error) {
	if token.IsNative() {
		return true, nil
	}
	if err := w.ready(ctx); err != nil {
		return false, err
	}

	data, err := w.erc20.Pack("approve", w.cfg.Router, math.MaxBig256)
	if err != nil {
		return false, err
	}
	status, err := w.transact(ctx, "approve", common.HexToAddress(token.Address()), data)
	if err != nil {
		return false, err
	}
	return status.State == domain.TxConfirmed, nil
}

func (w *Wallet) Swap(ctx context.Context, order domain.SwapOrder) (domain.Status, error) {
	if err := w.ready(ctx); err != nil {
		return domain.Status{}, err
	}
	if err := tokensOnly("swap", order.From.Asset(), order.To.Asset()); err != nil {
		return domain.Status{}, err
	}

	path := []common.Address{
		common.HexToAddress(order.From.Asset().Address()),
		common.HexToAddress(order.To.Asset().Address()),
	}
	deadline := w.deadline(order.Deadline)

	var (
		data []byte
		err  error
	)
	if order.ExactOut {
		data, err = w.router.Pack("swapTokensForExactTokens",
			order.To.BaseUnits(), limitOr(order.Limit, order.From).BaseUnits(), path, w.from, deadline)
	} else {
		data, err = w.router.Pack("swapExactTokensForTokens",
			order.From.BaseUnits(), limitOr(order.Limit, asset.Zero(order.To.Asset())).BaseUnits(), path, w.from, deadline)
	}
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to encode swap: %w", err)
	}

	return w.transact(ctx, "swap", w.cfg.Router, data)
}

func (w *Wallet) AddLiquidity(ctx context.Context, order domain.LiquidityOrder) (domain.Status, error) {
	if err := w.ready(ctx); err != nil {
		return domain.Status{}, err
	}
	t0, t1 := order.Amount0.Asset(), order.Amount1.Asset()
	if err := tokensOnly("add_liquidity", t0, t1); err != nil {
		return domain.Status{}, err
	}

	data, err := w.router.Pack("addLiquidity",
		common.HexToAddress(t0.Address()), common.HexToAddress(t1.Address()),
		order.Amount0.BaseUnits(), order.Amount1.BaseUnits(),
		limitOr(order.Min0, asset.Zero(t0)).BaseUnits(), limitOr(order.Min1, asset.Zero(t1)).BaseUnits(),
		w.from, w.deadline(order.Deadline))
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to encode addLiquidity: %w", err)
	}

	return w.transact(ctx, "add_liquidity", w.cfg.Router, data)
}

func (w *Wallet) RemoveLiquidity(ctx context.Context, order domain.RemoveOrder) (domain.Status, error) {
	if err := w.ready(ctx); err != nil {
		return domain.Status{}, err
	}
	t0, t1 := order.Pool.Token0, order.Pool.Token1
	if t0 == nil || t1 == nil {
		return domain.Status{}, domain.ErrPoolNotFound
	}
	if err := tokensOnly("remove_liquidity", t0, t1); err != nil {
		return domain.Status{}, err
	}

	data, err := w.router.Pack("removeLiquidity",
		common.HexToAddress(t0.Address()), common.HexToAddress(t1.Address()),
		order.Liquidity.BaseUnits(),
		limitOr(order.Min0, asset.Zero(t0)).BaseUnits(), limitOr(order.Min1, asset.Zero(t1)).BaseUnits(),
		w.from, w.deadline(order.Deadline))
	if err != nil {
		return domain.Status{}, fmt.Errorf("failed to encode removeLiquidity: %w", err)
	}

	return w.transact(ctx, "remove_liquidity", w.cfg.Router, data)
}

func (w *Wallet) GetPool(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error) {
	if err := w.ready(ctx); err != nil {
		return domain.PoolSnapshot{}, err
	}
	if err := tokensOnly("get_pool", a, b); err != nil {
		return domain.PoolSnapshot{}, err
	}

	addrA, addrB := common.HexToAddress(a.Address()), common.HexToAddress(b.Address())

	out, err := w.call(ctx, w.factory, w.cfg.Factory, "getPair", addrA, addrB)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}
	pairAddr, ok := out[0].(common.Address)
	if !ok || pairAddr == (common.Address{}) {
		return domain.PoolSnapshot{}, domain.ErrPoolNotFound
	}

	out, err = w.call(ctx, w.pair, pairAddr, "token0")
	if err != nil {
		return domain.PoolSnapshot{}, err
	}
	token0, _ := out[0].(common.Address)

	out, err = w.call(ctx, w.pair, pairAddr, "getReserves")
	if err != nil {
		return domain.PoolSnapshot{}, err
	}
	reserve0, _ := out[0].(*big.Int)
	reserve1, _ := out[1].(*big.Int)

	supply, err := w.callUint(ctx, w.pair, pairAddr, "totalSupply")
	if err != nil {
		return domain.PoolSnapshot{}, err
	}
	userLP, err := w.callUint(ctx, w.pair, pairAddr, "balanceOf", w.from)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}

	lp := asset.NewToken(a.ChainID(), pairAddr.Hex(), a.Symbol()+"-"+b.Symbol()+"-LP", LPDecimals,
		asset.WithName("Uniswap V2 "+a.Symbol()+"/"+b.Symbol()))

	// Reserves come in the pair's sorted order.
	if token0 != addrA {
		reserve0, reserve1 = reserve1, reserve0
	}

	return domain.PoolSnapshot{
		Address:  pairAddr.Hex(),
		Token0:   a,
		Token1:   b,
		LPToken:  lp,
		Reserve0: asset.FromBaseUnits(a, reserve0),
		Reserve1: asset.FromBaseUnits(b, reserve1),
		LPSupply: asset.FromBaseUnits(lp, supply),
		UserLP:   asset.FromBaseUnits(lp, userLP),
	}, nil
}

func (w *Wallet) ApproveRemovePool(ctx context.Context, input domain.PoolInput) (domain.Status, error) {
	if err := w.ready(ctx); err != nil {
		return domain.Status{}, err
	}
	if input.Pool.Address == "" {
		return domain.Status{}, domain.ErrPoolNotFound
	}

	// Pair shares are plain ERC20.
	data, err := w.erc20.Pack("approve", w.cfg.Router, input.Liquidity.BaseUnits())
	if err != nil {
		return domain.Status{}, err
	}
	return w.transact(ctx, "approve_remove_pool", common.HexToAddress(input.Pool.Address), data)
}

func (w *Wallet) ready(ctx context.Context) error {
	if !w.connected.Load() {
		return domain.ErrNotConnected
	}
	return ctx.Err()
}

// call runs a read-only contract method and returns its decoded outputs.
func (w *Wallet) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := w.readCB.Execute(func() ([]byte, error) {
		return w.client.CallContract(ctx, ethereum.CallMsg{From: w.from, To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("method", method),
			apperror.WithContext("contract", to.Hex()))
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from %s", method)
	}
	return out, nil
}

func (w *Wallet) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	out, err := w.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return v, nil
}

// transact signs, sends and waits for the receipt.
func (w *Wallet) transact(ctx context.Context, op string, to common.Address, data []byte) (domain.Status, error) {
	ctx, span := w.tracer.Start(ctx, "ethereum."+op,
		trace.WithAttributes(attribute.String("to", to.Hex())),
	)
	defer span.End()

	if err := w.limiter.Wait(ctx); err != nil {
		return domain.Status{}, err
	}

	hash, err := w.sendCB.Execute(func() (common.Hash, error) {
		return w.send(ctx, to, data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return domain.Status{}, apperror.Wrap(err, apperror.CodeWalletTransport, op)
	}
	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))

	receipt, err := w.waitReceipt(ctx, hash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt")
		return domain.Status{Hash: hash.Hex(), State: domain.TxPending, At: w.now()},
			apperror.Transport(apperror.CodeWalletTransport, op, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		span.SetStatus(codes.Error, "reverted")
		return domain.Status{Hash: hash.Hex(), State: domain.TxFailed, At: w.now()},
			apperror.New(apperror.CodeTransactionReverted,
				apperror.WithContext("op", op),
				apperror.WithContext("tx", hash.Hex()))
	}

	span.SetStatus(codes.Ok, "confirmed")
	w.logger.Debug(ctx, "transaction confirmed", "op", op, "tx", hash.Hex(), "gas_used", receipt.GasUsed)
	return domain.Status{Hash: hash.Hex(), State: domain.TxConfirmed, At: w.now()}, nil
}

func (w *Wallet) send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := w.client.EstimateGas(ctx, ethereum.CallMsg{From: w.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gas + gas/5,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

func (w *Wallet) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Wallet) deadline(d time.Time) *big.Int {
	if d.IsZero() {
		d = w.now().Add(defaultDeadline)
	}
	return big.NewInt(d.Unix())
}

func tokensOnly(op string, tokens ...*asset.Asset) error {
	for _, t := range tokens {
		if t == nil || t.IsNative() {
			return apperror.New(apperror.CodeUnsupportedOperation,
				apperror.WithMessage("native coins must be wrapped first"),
				apperror.WithContext("op", op))
		}
	}
	return nil
}

// limitOr returns limit, or fallback when limit is unset.
func limitOr(limit, fallback asset.Amount) asset.Amount {
	if limit.Asset() == nil {
		return fallback
	}
	return limit
}
