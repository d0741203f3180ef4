package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/business/trade/infra/console"
	walletDomain "github.com/fd1az/dexswap/business/wallet/domain"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/pkg/ui/components"
)

// highImpact is the price impact, in percent, shown as a warning.
var highImpact = decimal.NewFromInt(5)

// Trader is the channel controller the panel drives.
type Trader interface {
	Channel() domain.Channel
	State() domain.State
	SelectToken(side domain.Side, token *asset.Asset) error
	SetAmount(side domain.Side, raw string) error
	SetRemoveAmount(raw string) error
	Flip()
	Reset()
	Approve(ctx context.Context) error
	Submit(ctx context.Context) (walletDomain.Status, error)
	Balances(ctx context.Context) (domain.Balances, error)
}

// TokenLookup resolves a symbol or address typed by the user.
type TokenLookup interface {
	Lookup(ref string) (*asset.Asset, error)
}

type field int

const (
	fieldToken0 field = iota
	fieldAmount0
	fieldToken1
	fieldAmount1
	fieldLiquidity
	fieldCount
)

// Model is the swap panel. Controller calls that only touch memory run
// inside Update; wallet round trips run as commands.
type Model struct {
	ctx     context.Context
	traders []Trader
	tokens  TokenLookup
	active  int

	states   map[domain.Channel]domain.State
	balances map[domain.Channel]domain.Balances
	busy     map[domain.Channel]string

	inputs  []textinput.Model
	focus   field
	status  *components.StatusComponent
	spinner spinner.Model
	help    help.Model
	keys    KeyMap

	notice   string
	errMsg   string
	width    int
	quitting bool
}

// New creates the panel over one controller per channel. ctx bounds the
// wallet calls it issues.
func New(ctx context.Context, tokens TokenLookup, traders ...Trader) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		switch field(i) {
		case fieldToken0, fieldToken1:
			in.Placeholder = "token"
			in.Width = 10
		default:
			in.Placeholder = "0.0"
			in.Width = 24
		}
		inputs[i] = in
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	m := Model{
		ctx:      ctx,
		traders:  traders,
		tokens:   tokens,
		states:   make(map[domain.Channel]domain.State, len(traders)),
		balances: make(map[domain.Channel]domain.Balances, len(traders)),
		busy:     make(map[domain.Channel]string),
		inputs:   inputs,
		status:   components.NewStatusComponent(),
		spinner:  sp,
		help:     help.New(),
		keys:     DefaultKeyMap(),
	}
	for _, t := range traders {
		m.states[t.Channel()] = t.State()
	}
	m.setFocus(fieldToken0)
	m.syncInputs()
	return m
}

// Init starts the spinner and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		prev, seen := m.states[msg.State.Channel]
		if seen && msg.State.Version <= prev.Version {
			return m, nil
		}
		m.states[msg.State.Channel] = msg.State
		if t := m.trader(); t != nil && t.Channel() == msg.State.Channel {
			m.syncInputs()
		}
		return m, nil

	case BalancesMsg:
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
			return m, nil
		}
		m.balances[msg.Channel] = msg.Balances
		return m, nil

	case ActionMsg:
		delete(m.busy, msg.Channel)
		if msg.Err != nil {
			m.errMsg = fmt.Sprintf("%s failed: %s", msg.Action, msg.Err)
			return m, nil
		}
		m.errMsg = ""
		m.notice = msg.Action + " done"
		if msg.Status != nil {
			m.notice = fmt.Sprintf("%s: %s (%s)", msg.Action, msg.Status.Hash, msg.Status.State)
		}
		return m, m.balancesCmd()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:      msg.Name,
			Connected: msg.Connected,
			Latency:   msg.Latency,
		})
		return m, nil

	case ErrorMsg:
		if msg.Error != nil {
			m.errMsg = msg.Error.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.trader()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case t == nil:
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.keys.Channel):
		m.active = (m.active + 1) % len(m.traders)
		m.errMsg, m.notice = "", ""
		if !m.visible(m.focus) {
			m.setFocus(fieldToken0)
		}
		m.syncInputs()
		return m, m.balancesCmd()

	case key.Matches(msg, m.keys.Flip):
		t.Flip()
		m.refresh(nil)
		return m, m.balancesCmd()

	case key.Matches(msg, m.keys.Reset):
		t.Reset()
		m.notice = ""
		m.refresh(nil)
		for i := range m.inputs {
			m.inputs[i].SetValue("")
		}
		return m, nil

	case key.Matches(msg, m.keys.Balances):
		return m, m.balancesCmd()

	case key.Matches(msg, m.keys.Approve):
		return m, m.actionCmd("approve")

	case key.Matches(msg, m.keys.Submit):
		return m, m.actionCmd("submit")

	case key.Matches(msg, m.keys.Confirm):
		if m.focus != fieldToken0 && m.focus != fieldToken1 {
			return m, nil
		}
		ref := strings.TrimSpace(m.inputs[m.focus].Value())
		token, err := m.tokens.Lookup(ref)
		if err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		side := domain.Side0
		if m.focus == fieldToken1 {
			side = domain.Side1
		}
		m.refresh(t.SelectToken(side, token))
		m.moveFocus(1)
		return m, m.balancesCmd()
	}

	before := m.inputs[m.focus].Value()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	after := m.inputs[m.focus].Value()
	if after == before {
		return m, cmd
	}

	switch m.focus {
	case fieldAmount0:
		m.refresh(t.SetAmount(domain.Side0, after))
	case fieldAmount1:
		m.refresh(t.SetAmount(domain.Side1, after))
	case fieldLiquidity:
		if strings.TrimSpace(after) != "" {
			m.refresh(t.SetRemoveAmount(after))
		}
	}
	return m, cmd
}

// refresh records err and pulls the controller state so the view does not
// wait for the observer round trip.
func (m *Model) refresh(err error) {
	if err != nil {
		m.errMsg = err.Error()
	} else {
		m.errMsg = ""
	}
	t := m.trader()
	if t == nil {
		return
	}
	s := t.State()
	if prev, ok := m.states[s.Channel]; !ok || s.Version > prev.Version {
		m.states[s.Channel] = s
	}
	m.syncInputs()
}

func (m Model) balancesCmd() tea.Cmd {
	t := m.trader()
	if t == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		b, err := t.Balances(ctx)
		return BalancesMsg{Channel: t.Channel(), Balances: b, Err: err}
	}
}

func (m Model) actionCmd(action string) tea.Cmd {
	t := m.trader()
	if t == nil {
		return nil
	}
	ch := t.Channel()
	if _, running := m.busy[ch]; running {
		return nil
	}
	m.busy[ch] = action
	ctx := m.ctx

	return func() tea.Msg {
		if action == "approve" {
			return ActionMsg{Channel: ch, Action: action, Err: t.Approve(ctx)}
		}
		st, err := t.Submit(ctx)
		if err != nil {
			return ActionMsg{Channel: ch, Action: action, Err: err}
		}
		return ActionMsg{Channel: ch, Action: action, Status: &st}
	}
}

func (m Model) trader() Trader {
	if len(m.traders) == 0 {
		return nil
	}
	return m.traders[m.active]
}

func (m Model) state() domain.State {
	t := m.trader()
	if t == nil {
		return domain.State{}
	}
	return m.states[t.Channel()]
}

func (m Model) visible(f field) bool {
	if f == fieldLiquidity {
		return m.state().Channel == domain.ChannelRemoveLiquidity
	}
	return true
}

func (m *Model) setFocus(f field) {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = f
	m.inputs[f].Focus()
}

func (m *Model) moveFocus(step int) {
	f := m.focus
	for range fieldCount {
		f = (f + field(step) + fieldCount) % fieldCount
		if m.visible(f) {
			break
		}
	}
	m.setFocus(f)
	m.syncInputs()
}

// syncInputs copies the state into every field the user is not editing.
func (m *Model) syncInputs() {
	s := m.state()
	editing := func(f field) bool {
		if f != m.focus {
			return false
		}
		switch f {
		case fieldAmount0:
			return domain.DrivingSide(s.TxType) == domain.Side0
		case fieldAmount1:
			return domain.DrivingSide(s.TxType) == domain.Side1
		}
		return true
	}

	set := func(f field, v string) {
		if !editing(f) {
			m.inputs[f].SetValue(v)
		}
	}
	set(fieldToken0, tokenText(s.Input0.Token))
	set(fieldToken1, tokenText(s.Input1.Token))
	set(fieldAmount0, amountText(s.Input0.Amount))
	set(fieldAmount1, amountText(s.Input1.Amount))
	set(fieldLiquidity, amountText(s.Input0.RemoveAmount))
}

func tokenText(a *asset.Asset) string {
	if a == nil {
		return ""
	}
	return a.Symbol()
}

func amountText(a *asset.Amount) string {
	if a == nil {
		return ""
	}
	return a.Decimal().String()
}

// View renders the panel.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.traders) == 0 {
		return "no trade channels\n"
	}

	s := m.state()
	var b strings.Builder

	b.WriteString(TitleStyle.Render("dexswap") + "  " + m.renderTabs() + "\n\n")

	labels := sideLabels(s.Channel)
	bal := m.balances[s.Channel]
	form := []string{
		m.renderRow(labels[0], fieldToken0, fieldAmount0, bal.Side0),
		m.renderRow(labels[1], fieldToken1, fieldAmount1, bal.Side1),
	}
	if s.Channel == domain.ChannelRemoveLiquidity {
		line := LabelStyle.Render("Pool share") + m.inputs[fieldLiquidity].View()
		if s.Approved != nil {
			line += "  " + MutedValue.Render("approved "+console.Amount(*s.Approved))
		}
		form = append(form, line)
	}
	b.WriteString(BoxStyle.Render(strings.Join(form, "\n")) + "\n")

	b.WriteString(m.renderEstimate(s) + "\n")
	b.WriteString(m.renderFooter(s))

	if v := m.status.View(); v != "" {
		b.WriteString("\n" + v)
	}
	b.WriteString("\n" + HelpStyle.Render(m.help.View(m.keys)) + "\n")

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.traders))
	for i, t := range m.traders {
		name := t.Channel().String()
		if i == m.active {
			tabs = append(tabs, TabActive.Render(name))
		} else {
			tabs = append(tabs, TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func sideLabels(ch domain.Channel) [2]string {
	switch ch {
	case domain.ChannelAddLiquidity:
		return [2]string{"Deposit", "Deposit"}
	case domain.ChannelRemoveLiquidity:
		return [2]string{"Withdraw", "Withdraw"}
	default:
		return [2]string{"From", "To"}
	}
}

func (m Model) renderRow(label string, token, amount field, balance *asset.Amount) string {
	line := LabelStyle.Render(label) + m.inputs[token].View() + "  " + m.inputs[amount].View()
	if balance != nil {
		line += "  " + MutedValue.Render("balance "+console.Amount(*balance))
	}
	return line
}

func (m Model) renderEstimate(s domain.State) string {
	var lines []string

	switch {
	case s.Loading:
		lines = append(lines, m.spinner.View()+" estimating...")
	case s.Result == nil:
		lines = append(lines, MutedValue.Render("enter an amount to get an estimate"))
	case s.Result.InsufficientLiquidity:
		lines = append(lines, NegativeValue.Render("insufficient liquidity for this amount"))
	default:
		r := s.Result
		lines = append(lines, fmt.Sprintf("%s 1 %s = %s %s",
			LabelStyle.Render("Rate"), r.Rate.Base().Symbol(),
			asset.RoundToPrecision(r.Rate.Rate(), 8), r.Rate.Quote().Symbol()))
		if r.Fee.Amount.Asset() != nil && r.Fee.Rate.IsPositive() {
			lines = append(lines, LabelStyle.Render("Fee")+console.Amount(r.Fee.Amount))
		}
		impact := r.PriceImpact.String() + "%"
		if r.PriceImpact.GreaterThan(highImpact) {
			impact = WarningValue.Render(impact)
		}
		lines = append(lines, LabelStyle.Render("Impact")+impact)
		if a, ok := r.MinimumReceived(); ok {
			lines = append(lines, LabelStyle.Render("Min received")+console.Amount(a))
		}
		if a, ok := r.MaximumSent(); ok {
			lines = append(lines, LabelStyle.Render("Max sent")+console.Amount(a))
		}
		if s.Channel == domain.ChannelAddLiquidity {
			lines = append(lines, LabelStyle.Render("Pool share")+
				asset.RoundToPrecision(s.PoolShare.Shift(2), 4).String()+"%")
		}
		lines = append(lines, MutedValue.Render(fmt.Sprintf("via %s (%s)", r.Source, r.Trigger)))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderFooter(s domain.State) string {
	var parts []string

	if action, ok := m.busy[s.Channel]; ok {
		parts = append(parts, m.spinner.View()+" "+action+"...")
	}
	switch {
	case s.Err != nil:
		parts = append(parts, NegativeValue.Render(s.Err.Error()))
	case m.errMsg != "":
		parts = append(parts, NegativeValue.Render(m.errMsg))
	case m.notice != "":
		parts = append(parts, PositiveValue.Render(m.notice))
	case s.LastStatus != nil:
		parts = append(parts, MutedValue.Render(fmt.Sprintf("last tx %s (%s)", s.LastStatus.Hash, s.LastStatus.State)))
	}

	if len(parts) == 0 {
		return ""
	}
	return "\n" + strings.Join(parts, "\n")
}
