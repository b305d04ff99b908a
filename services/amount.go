package services

import (
	"github.com/shopspring/decimal"
	"github.com/stellar/go/support/errors"
)

// TinybarsPerHbar is the fixed conversion between the display unit and the smallest unit
const TinybarsPerHbar = 100_000_000

const hbarDecimals = 8

var errAmountNotPositive = errors.New("invalid amount: must be a positive number")

// ParseHbar parses a display-unit hbar amount such as "1.5"
func ParseHbar(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errAmountNotPositive
	}
	if !d.IsPositive() {
		return decimal.Zero, errAmountNotPositive
	}
	return d, nil
}

// ToTinybars converts an hbar amount to tinybars without rounding
func ToTinybars(hbar decimal.Decimal) (int64, error) {
	if !hbar.IsPositive() {
		return 0, errAmountNotPositive
	}
	tiny := hbar.Shift(hbarDecimals)
	if !tiny.Equal(tiny.Truncate(0)) {
		return 0, errors.Errorf("invalid amount: at most %d decimal places", hbarDecimals)
	}
	if !tiny.BigInt().IsInt64() {
		return 0, errors.New("invalid amount: too large")
	}
	return tiny.IntPart(), nil
}

// FormatHbar renders tinybars in the display unit
func FormatHbar(tinybars int64) string {
	return decimal.New(tinybars, -hbarDecimals).StringFixed(2)
}
