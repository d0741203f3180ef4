package asset

import (
	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by divisions
// whose result does not terminate.
const DivisionPrecision = 18

// ToBaseUnits scales a natural-unit value to base units (× 10^decimals).
func ToBaseUnits(human decimal.Decimal, decimals uint8) decimal.Decimal {
	return ShiftByDecimals(human, int32(decimals))
}

// ToHumanUnits scales a base-unit value to natural units (÷ 10^decimals).
func ToHumanUnits(base decimal.Decimal, decimals uint8) decimal.Decimal {
	return ShiftByDecimals(base, -int32(decimals))
}

// ShiftByDecimals multiplies v by 10^delta. A zero delta returns v as is.
func ShiftByDecimals(v decimal.Decimal, delta int32) decimal.Decimal {
	if delta == 0 {
		return v
	}
	return v.Shift(delta)
}

// Display is a rounded value meant for rendering. It deliberately has no
// arithmetic and cannot be turned back into an Amount.
type Display struct {
	value decimal.Decimal
}

func (d Display) String() string {
	return d.value.String()
}

// RoundToPrecision rounds v half-away-from-zero to the given number of
// significant digits.
func RoundToPrecision(v decimal.Decimal, significantDigits int) Display {
	if v.IsZero() || significantDigits <= 0 {
		return Display{value: v}
	}
	return Display{value: v.Round(int32(significantDigits - magnitude(v)))}
}

// magnitude returns the position of the most significant digit relative to
// the decimal point: 1 for 3.7, 3 for 123, -2 for 0.00123.
func magnitude(v decimal.Decimal) int {
	coef := v.Coefficient()
	coef.Abs(coef)
	return len(coef.String()) + int(v.Exponent())
}
