// Package console renders trade state as plain text for the line-oriented
// CLI.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	quoteDomain "github.com/fd1az/dexswap/business/quote/domain"
	"github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/internal/asset"
)

// significantDigits is how precisely amounts are shown.
const significantDigits = 8

// Reporter prints one line per visible change of a channel. Silent
// refreshes are only printed when they move the quote.
type Reporter struct {
	out io.Writer
	now func() time.Time

	mu   sync.Mutex
	last map[domain.Channel]string
}

// NewReporter creates a reporter writing to out, or stdout when nil.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		out:  out,
		now:  time.Now,
		last: make(map[domain.Channel]string),
	}
}

// OnStateChange implements domain.Observer.
func (r *Reporter) OnStateChange(s domain.State) {
	if s.Phase == domain.PhaseAwaitingAuto {
		return
	}
	line := Summary(s)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last[s.Channel] == line {
		return
	}
	r.last[s.Channel] = line
	fmt.Fprintf(r.out, "[%s] %s\n", r.now().Format("15:04:05"), line)
}

// Summary is a one-line description of s.
func Summary(s domain.State) string {
	head := s.Channel.String()

	switch {
	case s.Phase == domain.PhaseSubmitting:
		return head + ": submitting..."
	case s.Phase == domain.PhaseSubmitted && s.LastStatus != nil:
		return fmt.Sprintf("%s: submitted %s (%s)", head, s.LastStatus.Hash, s.LastStatus.State)
	case s.Phase == domain.PhaseRejected:
		return fmt.Sprintf("%s: rejected: %s", head, describeError(s.Err))
	case s.Err != nil:
		return fmt.Sprintf("%s: error: %s", head, describeError(s.Err))
	case s.Loading:
		return fmt.Sprintf("%s: estimating %s...", head, pair(s))
	case s.Result != nil:
		return head + ": " + describeResult(s)
	default:
		return fmt.Sprintf("%s: %s", head, pair(s))
	}
}

// Render is the full multi-line view of s.
func Render(s domain.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "channel:   %s (%s)\n", s.Channel, s.Phase)
	fmt.Fprintf(&b, "direction: %s\n", s.TxType)
	fmt.Fprintf(&b, "side 0:    %s\n", describeInput(s.Input0))
	fmt.Fprintf(&b, "side 1:    %s\n", describeInput(s.Input1))

	if s.Input0.RemoveAmount != nil {
		fmt.Fprintf(&b, "burn:      %s\n", Amount(*s.Input0.RemoveAmount))
	}
	if s.Approved != nil {
		fmt.Fprintf(&b, "approved:  %s\n", Amount(*s.Approved))
	}
	if s.Channel == domain.ChannelAddLiquidity && s.Result != nil {
		fmt.Fprintf(&b, "share:     %s%%\n", asset.RoundToPrecision(s.PoolShare.Shift(2), 4))
	}

	if r := s.Result; r != nil {
		if r.InsufficientLiquidity {
			b.WriteString("liquidity: insufficient\n")
		} else {
			fmt.Fprintf(&b, "rate:      1 %s = %s %s\n", r.Rate.Base().Symbol(), asset.RoundToPrecision(r.Rate.Rate(), significantDigits), r.Rate.Quote().Symbol())
			if r.Fee.Amount.Asset() != nil && r.Fee.Rate.IsPositive() {
				fmt.Fprintf(&b, "fee:       %s (%s%%)\n", Amount(r.Fee.Amount), r.Fee.Rate.Shift(2))
			}
			fmt.Fprintf(&b, "impact:    %s%%\n", r.PriceImpact)
			fmt.Fprintf(&b, "%s\n", describeBound(*r))
		}
		fmt.Fprintf(&b, "source:    %s (%s)\n", r.Source, r.Trigger)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "error:     %s\n", describeError(s.Err))
	}
	if s.LastStatus != nil {
		fmt.Fprintf(&b, "last tx:   %s %s\n", s.LastStatus.Hash, s.LastStatus.State)
	}
	return b.String()
}

// Amount formats a with a bounded number of significant digits.
func Amount(a asset.Amount) string {
	if a.Asset() == nil {
		return "-"
	}
	return asset.RoundToPrecision(a.Decimal(), significantDigits).String() + " " + a.Asset().Symbol()
}

func describeInput(in domain.TradeInput) string {
	if in.Token == nil {
		return "(no token)"
	}
	if in.Amount == nil {
		return "- " + in.Token.Symbol()
	}
	return Amount(*in.Amount)
}

func describeResult(s domain.State) string {
	r := s.Result
	if r.InsufficientLiquidity {
		return fmt.Sprintf("%s: insufficient liquidity", pair(s))
	}
	line := fmt.Sprintf("%s -> %s, %s", Amount(r.Amount), Amount(r.Quote), describeBound(*r))
	if s.Channel == domain.ChannelAddLiquidity {
		line += fmt.Sprintf(", share %s%%", asset.RoundToPrecision(s.PoolShare.Shift(2), 4))
	}
	if s.Input0.RemoveAmount != nil {
		line += ", burns " + Amount(*s.Input0.RemoveAmount)
	}
	return line
}

func describeBound(r quoteDomain.Result) string {
	if a, ok := r.MinimumReceived(); ok {
		return "min received " + Amount(a)
	}
	if a, ok := r.MaximumSent(); ok {
		return "max sent " + Amount(a)
	}
	return "no bound"
}

func describeError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func pair(s domain.State) string {
	return symbol(s.Input0.Token) + "/" + symbol(s.Input1.Token)
}

func symbol(a *asset.Asset) string {
	if a == nil {
		return "?"
	}
	return a.Symbol()
}
