package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are kept in minor units with two decimal places.
const minorUnitExp = 2

func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnitExp)
}

// DecimalToCents drops anything below the smallest currency unit.
func DecimalToCents(d decimal.Decimal) int64 {
	return d.Shift(minorUnitExp).Truncate(0).IntPart()
}

func FormatCents(cents int64) string {
	return CentsToDecimal(cents).StringFixed(minorUnitExp)
}

// ParseAmount reads a non-negative decimal string into minor units. Values
// with more precision than a cent are rejected rather than rounded.
func ParseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidInput, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount", ErrInvalidInput)
	}
	if !d.Equal(d.Truncate(minorUnitExp)) {
		return 0, fmt.Errorf("%w: amount %q has sub-cent precision", ErrInvalidInput, raw)
	}
	return DecimalToCents(d), nil
}

// ApplyRate returns cents × rate rounded toward zero.
func ApplyRate(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Truncate(0).IntPart()
}
