// Package ui provides the Bubble Tea swap panel.
package ui

import (
	"time"

	"github.com/fd1az/dexswap/business/trade/domain"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
)

// StateMsg carries a channel snapshot from its controller.
type StateMsg struct {
	State domain.State
}

// BalancesMsg carries the wallet balances of a channel's tokens.
type BalancesMsg struct {
	Channel  domain.Channel
	Balances domain.Balances
	Err      error
}

// ActionMsg reports the outcome of an approve or submit.
type ActionMsg struct {
	Channel domain.Channel
	Action  string
	Status  *walletDomain.Status
	Err     error
}

// ConnectionStatusMsg is sent when a backend connects or drops.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs outside a channel.
type ErrorMsg struct {
	Error error
}
