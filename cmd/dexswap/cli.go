package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tradeApp "github.com/fd1az/dexswap/business/trade/app"
	tradeDomain "github.com/fd1az/dexswap/business/trade/domain"
	"github.com/fd1az/dexswap/business/trade/infra/console"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/settings"
)

const cliHelp = `commands:
  channel <swap|add|remove>   switch form
  token <0|1> <symbol>        select a token
  amount <0|1> <value>        type an amount (side 1 makes the trade exact-out)
  remove <shares>             pool shares to burn (remove form)
  flip | reset                swap sides | clear the form
  slippage <pct>              set slippage tolerance
  deadline <minutes>          set transaction deadline
  approve | submit            grant permission | send the transaction
  state | balances | tokens   inspect
  quit`

var errUsage = errors.New("usage")

// session is the line-oriented front end over the trade controllers.
type session struct {
	controllers *tradeApp.Controllers
	tokens      *asset.Registry
	settings    *settings.Store
	out         io.Writer
	channel     tradeDomain.Channel
}

func (s *session) current() *tradeApp.Controller {
	return s.controllers.Get(s.channel)
}

// exec runs one command line and reports whether the session should end.
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	c := s.current()

	switch cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(s.out, cliHelp)

	case "channel":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: channel <swap|add|remove>", errUsage)
		}
		ch, ok := tradeDomain.ParseChannel(args[0])
		if !ok {
			return false, fmt.Errorf("unknown channel %q", args[0])
		}
		s.channel = ch
		fmt.Fprintf(s.out, "channel: %s\n", ch)

	case "token":
		side, rest, err := sideArg(args)
		if err != nil {
			return false, fmt.Errorf("%w: token <0|1> <symbol>", err)
		}
		token, err := s.tokens.Lookup(rest)
		if err != nil {
			return false, err
		}
		return false, c.SelectToken(side, token)

	case "amount":
		side, rest, err := sideArg(args)
		if err != nil {
			return false, fmt.Errorf("%w: amount <0|1> <value>", err)
		}
		return false, c.SetAmount(side, rest)

	case "remove":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: remove <shares>", errUsage)
		}
		return false, c.SetRemoveAmount(args[0])

	case "flip":
		c.Flip()

	case "reset":
		c.Reset()

	case "slippage", "deadline":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: %s <value>", errUsage, cmd)
		}
		set := s.settings.SetSlippage
		if cmd == "deadline" {
			set = s.settings.SetDeadline
		}
		if err := set(args[0]); err != nil {
			return false, err
		}
		cur := s.settings.Get()
		fmt.Fprintf(s.out, "slippage %s%%, deadline %s min\n", cur.Slippage, cur.DeadlineMinutes)
		s.controllers.Requote()

	case "approve":
		if err := c.Approve(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "approved")

	case "submit":
		st, err := c.Submit(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "submitted %s (%s)\n", st.Hash, st.State)

	case "state":
		fmt.Fprint(s.out, console.Render(c.State()))

	case "balances":
		b, err := c.Balances(ctx)
		if err != nil {
			return false, err
		}
		for _, a := range []*asset.Amount{b.Side0, b.Side1} {
			if a != nil {
				fmt.Fprintln(s.out, console.Amount(*a))
			}
		}

	case "tokens":
		fmt.Fprintln(s.out, strings.Join(s.tokens.Symbols(), " "))

	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func sideArg(args []string) (tradeDomain.Side, string, error) {
	if len(args) != 2 {
		return 0, "", errUsage
	}
	switch args[0] {
	case "0":
		return tradeDomain.Side0, args[1], nil
	case "1":
		return tradeDomain.Side1, args[1], nil
	}
	return 0, "", errUsage
}

// runCLI reads commands from in until quit, EOF or ctx ends.
func runCLI(ctx context.Context, cancel context.CancelFunc, in io.Reader, s *session) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(s.out, "dexswap %s, type help for commands\n", version)
	for {
		fmt.Fprintf(s.out, "%s> ", s.channel)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				cancel()
				return nil
			}
			quit, err := s.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if quit {
				cancel()
				return nil
			}
		}
	}
}
