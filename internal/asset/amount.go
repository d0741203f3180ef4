package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrAssetMismatch   = errors.New("asset: cannot operate on different assets")
	ErrNegativeResult  = errors.New("asset: operation would result in negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
	ErrInvalidNumber   = errors.New("asset: invalid number")
)

// Amount is an immutable quantity of a token in the token's natural unit
// (1.5 TON, not 1500000000 nanoton). It is replaced, never mutated.
type Amount struct {
	value decimal.Decimal
	asset *Asset
}

// NewAmount creates an Amount from a natural-unit decimal.
func NewAmount(asset *Asset, value decimal.Decimal) Amount {
	if asset == nil {
		panic(ErrNilAsset)
	}
	if value.IsNegative() {
		panic(ErrNegativeAmount)
	}
	return Amount{value: value, asset: asset}
}

// Zero creates a zero Amount for the given asset.
func Zero(asset *Asset) Amount {
	return NewAmount(asset, decimal.Zero)
}

// FromBaseUnits creates an Amount from an on-chain base-unit integer.
func FromBaseUnits(asset *Asset, raw *big.Int) Amount {
	if asset == nil {
		panic(ErrNilAsset)
	}
	if raw == nil {
		return Zero(asset)
	}
	return NewAmount(asset, ToHumanUnits(decimal.NewFromBigInt(raw, 0), asset.Decimals()))
}

// ParseAmount parses user input in natural units. The input may not carry
// more fractional digits than the token supports.
func ParseAmount(asset *Asset, s string) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return ParseDecimal(asset, d)
}

// ParseDecimal validates d as an amount of asset.
func ParseDecimal(asset *Asset, d decimal.Decimal) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	scaled := ToBaseUnits(d, asset.Decimals())
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}
	return NewAmount(asset, d), nil
}

// Decimal returns the natural-unit value.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// Asset returns the asset this amount is denominated in.
func (a Amount) Asset() *Asset {
	return a.asset
}

// BaseUnits returns the on-chain integer amount, truncating any
// sub-base-unit fraction left by division.
func (a Amount) BaseUnits() *big.Int {
	if a.asset == nil {
		return big.NewInt(0)
	}
	return ToBaseUnits(a.value, a.asset.Decimals()).Truncate(0).BigInt()
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// Add adds two amounts of the same asset.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	return NewAmount(a.asset, a.value.Add(b.value)), nil
}

// Sub subtracts b from a (same asset only).
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkSameAsset(b); err != nil {
		return Amount{}, err
	}
	if a.value.LessThan(b.value) {
		return Amount{}, ErrNegativeResult
	}
	return NewAmount(a.asset, a.value.Sub(b.value)), nil
}

// Mul scales the amount by a non-negative factor.
func (a Amount) Mul(factor decimal.Decimal) Amount {
	if factor.IsNegative() {
		panic(ErrNegativeAmount)
	}
	return NewAmount(a.asset, a.value.Mul(factor))
}

// RoundDown drops any fraction below the asset's smallest base unit.
func (a Amount) RoundDown() Amount {
	if a.asset == nil {
		return a
	}
	return NewAmount(a.asset, a.value.RoundFloor(int32(a.asset.Decimals())))
}

// RoundUp raises any fraction below the asset's smallest base unit to one
// whole base unit.
func (a Amount) RoundUp() Amount {
	if a.asset == nil {
		return a
	}
	return NewAmount(a.asset, a.value.RoundCeil(int32(a.asset.Decimals())))
}

// Cmp compares two amounts of the same asset.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameAsset(b); err != nil {
		return 0, err
	}
	return a.value.Cmp(b.value), nil
}

// Equals returns true if both amounts have the same asset and value.
func (a Amount) Equals(b Amount) bool {
	if a.asset == nil || b.asset == nil {
		return a.asset == b.asset && a.value.Equal(b.value)
	}
	return a.asset.Equals(b.asset) && a.value.Equal(b.value)
}

func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.value.String(), a.asset.Symbol())
}

// StringFixed returns a string with fixed decimal places.
func (a Amount) StringFixed(places int32) string {
	if a.asset == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.value.StringFixed(places), a.asset.Symbol())
}

// CompareWithBalance compares a possibly absent amount with a balance.
// A nil amount counts as zero.
func CompareWithBalance(amount *Amount, balance Amount) int {
	if amount == nil || amount.asset == nil {
		return decimal.Zero.Cmp(balance.value)
	}
	return amount.value.Cmp(balance.value)
}

func (a Amount) checkSameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return ErrNilAsset
	}
	if !a.asset.Equals(b.asset) {
		return fmt.Errorf("%w: %s vs %s", ErrAssetMismatch, a.asset.Symbol(), b.asset.Symbol())
	}
	return nil
}
