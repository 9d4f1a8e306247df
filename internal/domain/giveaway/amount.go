package giveaway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a decimal amount into integer minor units at the given
// scale. Amounts with more fractional digits than scale are rejected.
func ToMinorUnits(amount decimal.Decimal, scale int32) (int64, error) {
	shifted := amount.Shift(scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", amount.String(), scale)
	}
	if shifted.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return shifted.IntPart(), nil
}

// FormatMinorUnits renders minor units as a fixed-point decimal string.
func FormatMinorUnits(minor int64, scale int32) string {
	return decimal.New(minor, -scale).StringFixed(scale)
}

// SplitEvenly divides total into n shares that sum exactly to total. The
// first total%n shares receive one extra minor unit.
func SplitEvenly(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := total / int64(n)
	remainder := total % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}
