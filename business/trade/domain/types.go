// Package domain contains the core domain types for the trade context.
package domain

import (
	"github.com/shopspring/decimal"

	quoteDomain "github.com/fd1az/dexswap/business/quote/domain"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

// Channel is one independent trade form. Each channel owns its own state
// and its own live estimate.
type Channel int

const (
	ChannelSwap Channel = iota
	ChannelAddLiquidity
	ChannelRemoveLiquidity
)

// Channels lists every channel in display order.
var Channels = []Channel{ChannelSwap, ChannelAddLiquidity, ChannelRemoveLiquidity}

func (c Channel) String() string {
	switch c {
	case ChannelSwap:
		return "swap"
	case ChannelAddLiquidity:
		return "add"
	case ChannelRemoveLiquidity:
		return "remove"
	default:
		return "unknown"
	}
}

// Operation returns the quote operation priced by the channel.
func (c Channel) Operation() quoteDomain.Operation {
	switch c {
	case ChannelAddLiquidity:
		return quoteDomain.OperationAddLiquidity
	case ChannelRemoveLiquidity:
		return quoteDomain.OperationRemoveLiquidity
	default:
		return quoteDomain.OperationSwap
	}
}

// IsLiquidity reports whether the channel works on a pool.
func (c Channel) IsLiquidity() bool {
	return c == ChannelAddLiquidity || c == ChannelRemoveLiquidity
}

// ParseChannel accepts the String form plus a few aliases.
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "swap":
		return ChannelSwap, true
	case "add", "add_liquidity", "add-liquidity":
		return ChannelAddLiquidity, true
	case "remove", "remove_liquidity", "remove-liquidity":
		return ChannelRemoveLiquidity, true
	default:
		return 0, false
	}
}

// Side selects one of the two inputs of a form.
type Side int

const (
	Side0 Side = iota
	Side1
)

func (s Side) String() string {
	if s == Side1 {
		return "1"
	}
	return "0"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Side0 {
		return Side1
	}
	return Side0
}

// DrivingSide is the side the user typed into for txType.
func DrivingSide(txType quoteDomain.TxType) Side {
	if txType == quoteDomain.ExactOut {
		return Side1
	}
	return Side0
}

// TradeInput is one side of a form. Amount is nil while the field is empty.
type TradeInput struct {
	Token  *asset.Asset
	Amount *asset.Amount
	// RemoveAmount is the pool share burned for Amount, remove channel only.
	RemoveAmount *asset.Amount
}

// Empty reports whether the amount field is blank or zero. Either way
// there is nothing to estimate.
func (t TradeInput) Empty() bool {
	return t.Amount == nil || t.Amount.Asset() == nil || t.Amount.IsZero()
}

// Phase is where a channel stands between input and settlement.
type Phase int

const (
	PhaseIdle Phase = iota
	// PhaseAwaitingManual shows the loading indicator.
	PhaseAwaitingManual
	// PhaseAwaitingAuto refreshes silently.
	PhaseAwaitingAuto
	PhaseSettled
	PhaseSubmitting
	PhaseSubmitted
	// PhaseRejected is terminal per submission attempt.
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingManual:
		return "awaiting_manual"
	case PhaseAwaitingAuto:
		return "awaiting_auto"
	case PhaseSettled:
		return "settled"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of one channel. Version increases with
// every transition so observers can drop snapshots delivered out of order.
type State struct {
	Channel Channel
	Version uint64

	Input0 TradeInput
	Input1 TradeInput
	TxType quoteDomain.TxType

	// PoolShare is the fraction of the pool owned after an add.
	PoolShare decimal.Decimal
	// Approved is the pool share the router may burn, remove channel only.
	Approved *asset.Amount

	Loading bool
	Result  *quoteDomain.Result
	Err     error
	Phase   Phase

	LastStatus *walletDomain.Status
}

// Initial returns the defaults of channel.
func Initial(channel Channel) State {
	return State{
		Channel:   channel,
		TxType:    quoteDomain.ExactIn,
		PoolShare: decimal.Zero,
		Phase:     PhaseIdle,
	}
}

// Input returns the input on side.
func (s State) Input(side Side) TradeInput {
	if side == Side1 {
		return s.Input1
	}
	return s.Input0
}

// SetInput replaces the input on side.
func (s *State) SetInput(side Side, in TradeInput) {
	if side == Side1 {
		s.Input1 = in
		return
	}
	s.Input0 = in
}

// Driving returns the input the user typed into.
func (s State) Driving() TradeInput {
	return s.Input(DrivingSide(s.TxType))
}

// Ready reports whether both tokens are selected and the driving side has
// an amount.
func (s State) Ready() bool {
	return s.Input0.Token != nil && s.Input1.Token != nil && !s.Driving().Empty()
}

// Flipped exchanges both sides and the direction in one step.
func (s State) Flipped() State {
	s.Input0, s.Input1 = s.Input1, s.Input0
	s.Input0.RemoveAmount, s.Input1.RemoveAmount = nil, nil
	s.TxType = s.TxType.Flip()
	return s
}

// Observer receives every state transition of a channel.
type Observer interface {
	OnStateChange(State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State)

func (f ObserverFunc) OnStateChange(s State) { f(s) }

// Balances holds the wallet balance of each selected token.
type Balances struct {
	Side0 *asset.Amount
	Side1 *asset.Amount
}

// Set stores the balance of side.
func (b *Balances) Set(side Side, a asset.Amount) {
	if side == Side1 {
		b.Side1 = &a
		return
	}
	b.Side0 = &a
}
