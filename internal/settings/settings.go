// Package settings holds the user-tunable trade settings. Values are
// validated here, at the input boundary, so the estimation core only ever
// sees well-formed percentages and deadlines.
package settings

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexswap/internal/apperror"
)

const (
	DefaultSlippage = "0.5"
	DefaultDeadline = "30"
)

var (
	maxSlippage = decimal.NewFromInt(50)
	maxDeadline = decimal.NewFromInt(180)

	errOutOfRange = errors.New("out of range")
)

// Settings is an immutable snapshot.
type Settings struct {
	// Slippage is a percentage in (0, 50].
	Slippage decimal.Decimal
	// DeadlineMinutes is in (0, 180].
	DeadlineMinutes decimal.Decimal
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Slippage:        decimal.RequireFromString(DefaultSlippage),
		DeadlineMinutes: decimal.RequireFromString(DefaultDeadline),
	}
}

// Deadline returns the deadline as a duration, truncated to milliseconds.
func (s Settings) Deadline() time.Duration {
	return time.Duration(s.DeadlineMinutes.Mul(decimal.NewFromInt(int64(time.Minute/time.Millisecond))).IntPart()) * time.Millisecond
}

// DeadlineAt returns the unix deadline for a transaction sent at now.
func (s Settings) DeadlineAt(now time.Time) time.Time {
	return now.Add(s.Deadline())
}

// ParseSlippage validates a slippage percentage string.
func ParseSlippage(s string) (decimal.Decimal, error) {
	return parseRange(s, maxSlippage, apperror.CodeInvalidSlippage, "slippage")
}

// ParseDeadline validates a deadline in minutes.
func ParseDeadline(s string) (decimal.Decimal, error) {
	return parseRange(s, maxDeadline, apperror.CodeInvalidDeadline, "deadline")
}

// parseRange accepts values in (0, max].
func parseRange(s string, max decimal.Decimal, code apperror.Code, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, apperror.Validation(code, field, err)
	}
	if !d.IsPositive() || d.GreaterThan(max) {
		return decimal.Zero, apperror.Validation(code, field, errOutOfRange)
	}
	return d, nil
}

// Store is the process-wide, concurrency-safe settings holder.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store from raw strings, typically the configured
// defaults.
func NewStore(slippage, deadline string) (*Store, error) {
	st := &Store{current: Defaults()}
	if slippage != "" {
		if err := st.SetSlippage(slippage); err != nil {
			return nil, err
		}
	}
	if deadline != "" {
		if err := st.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Get returns the current snapshot.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// SetSlippage validates and stores a new slippage. Invalid input leaves
// the previous value in place.
func (st *Store) SetSlippage(s string) error {
	d, err := ParseSlippage(s)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.current.Slippage = d
	st.mu.Unlock()
	return nil
}

// SetDeadline validates and stores a new deadline.
func (st *Store) SetDeadline(s string) error {
	d, err := ParseDeadline(s)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.current.DeadlineMinutes = d
	st.mu.Unlock()
	return nil
}
