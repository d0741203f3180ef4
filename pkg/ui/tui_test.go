package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/trade/domain"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

type fakeTrader struct {
	state   domain.State
	amounts []string
	tokens  []string
	flips   int
	submit  error
}

func newFakeTrader(ch domain.Channel) *fakeTrader {
	return &fakeTrader{state: domain.Initial(ch)}
}

func (f *fakeTrader) Channel() domain.Channel { return f.state.Channel }
func (f *fakeTrader) State() domain.State     { return f.state }

func (f *fakeTrader) SelectToken(side domain.Side, token *asset.Asset) error {
	f.tokens = append(f.tokens, token.Symbol())
	in := f.state.Input(side)
	in.Token = token
	f.state.SetInput(side, in)
	f.state.Version++
	return nil
}

func (f *fakeTrader) SetAmount(side domain.Side, raw string) error {
	f.amounts = append(f.amounts, raw)
	in := f.state.Input(side)
	if in.Token == nil {
		return errors.New("select a token first")
	}
	a, err := asset.ParseAmount(in.Token, raw)
	if err != nil {
		return err
	}
	in.Amount = &a
	f.state.SetInput(side, in)
	f.state.Version++
	return nil
}

func (f *fakeTrader) SetRemoveAmount(string) error { return nil }

func (f *fakeTrader) Flip() {
	f.flips++
	f.state = f.state.Flipped()
	f.state.Version++
}

func (f *fakeTrader) Reset() {
	v := f.state.Version + 1
	f.state = domain.Initial(f.state.Channel)
	f.state.Version = v
}

func (f *fakeTrader) Approve(context.Context) error { return nil }

func (f *fakeTrader) Submit(context.Context) (walletDomain.Status, error) {
	if f.submit != nil {
		return walletDomain.Status{}, f.submit
	}
	return walletDomain.Status{Hash: "0xabc", State: walletDomain.TxConfirmed}, nil
}

func (f *fakeTrader) Balances(context.Context) (domain.Balances, error) {
	return domain.Balances{}, nil
}

type lookup map[string]*asset.Asset

func (l lookup) Lookup(ref string) (*asset.Asset, error) {
	if a, ok := l[strings.ToUpper(ref)]; ok {
		return a, nil
	}
	return nil, errors.New("unknown token " + ref)
}

var tokens = lookup{"TON": asset.TON, "USDT": asset.USDTTON}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestSelectTokenAndType(t *testing.T) {
	swap := newFakeTrader(domain.ChannelSwap)
	m := New(context.Background(), tokens, swap)

	m = typeText(t, m, "ton")
	m, _ = press(m, tea.KeyEnter)
	require.Equal(t, []string{"TON"}, swap.tokens)
	assert.Equal(t, fieldAmount0, m.focus)
	assert.Empty(t, m.errMsg)

	m = typeText(t, m, "1.5")
	assert.Equal(t, []string{"1", "1.", "1.5"}, swap.amounts)
	assert.Equal(t, "1.5", m.inputs[fieldAmount0].Value())
	assert.Equal(t, swap.state.Version, m.state().Version)
}

func TestUnknownTokenShowsError(t *testing.T) {
	swap := newFakeTrader(domain.ChannelSwap)
	m := New(context.Background(), tokens, swap)

	m = typeText(t, m, "doge")
	m, _ = press(m, tea.KeyEnter)
	assert.Empty(t, swap.tokens)
	assert.Contains(t, m.errMsg, "unknown token")
	assert.Contains(t, m.View(), "unknown token")
}

func TestStaleStateIgnored(t *testing.T) {
	swap := newFakeTrader(domain.ChannelSwap)
	m := New(context.Background(), tokens, swap)

	newer := domain.Initial(domain.ChannelSwap)
	newer.Version = 5
	newer.Loading = true
	next, _ := m.Update(StateMsg{State: newer})
	m = next.(Model)

	older := domain.Initial(domain.ChannelSwap)
	older.Version = 4
	next, _ = m.Update(StateMsg{State: older})
	m = next.(Model)

	assert.Equal(t, uint64(5), m.state().Version)
	assert.True(t, m.state().Loading)
	assert.Contains(t, m.View(), "estimating")
}

func TestFlipAndChannelSwitch(t *testing.T) {
	swap := newFakeTrader(domain.ChannelSwap)
	remove := newFakeTrader(domain.ChannelRemoveLiquidity)
	m := New(context.Background(), tokens, swap, remove)

	m, _ = press(m, tea.KeyCtrlF)
	assert.Equal(t, 1, swap.flips)

	m, _ = press(m, tea.KeyCtrlN)
	assert.Equal(t, domain.ChannelRemoveLiquidity, m.state().Channel)
	assert.Contains(t, m.View(), "Pool share")

	// The pool share field is only reachable on the remove channel.
	for range 4 {
		m, _ = press(m, tea.KeyTab)
	}
	assert.Equal(t, fieldLiquidity, m.focus)

	m, _ = press(m, tea.KeyCtrlN)
	assert.Equal(t, domain.ChannelSwap, m.state().Channel)
	assert.Equal(t, fieldToken0, m.focus)
}

func TestSubmitCommand(t *testing.T) {
	swap := newFakeTrader(domain.ChannelSwap)
	m := New(context.Background(), tokens, swap)

	m, cmd := press(m, tea.KeyCtrlS)
	require.NotNil(t, cmd)
	_, again := press(m, tea.KeyCtrlS)
	assert.Nil(t, again, "second submit while the first is running")

	msg := cmd().(ActionMsg)
	require.NoError(t, msg.Err)
	next, _ := m.Update(msg)
	m = next.(Model)
	assert.Contains(t, m.notice, "0xabc")

	swap.submit = errors.New("balance too low")
	m, cmd = press(m, tea.KeyCtrlS)
	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Contains(t, m.View(), "submit failed: balance too low")
}

func TestConnectionStatus(t *testing.T) {
	m := New(context.Background(), tokens, newFakeTrader(domain.ChannelSwap))
	next, _ := m.Update(ConnectionStatusMsg{Name: "wallet", Connected: false})
	m = next.(Model)
	assert.Contains(t, m.View(), "wallet disconnected")
}
