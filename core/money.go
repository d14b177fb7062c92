package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
	hundred         = decimal.NewFromInt(100)
)

// ClampCommissionRate bounds a commission rate to [0, 100] percent.
func ClampCommissionRate(rate int64) int64 {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// CommissionSplit divides a winning amount between the seller and the
// commission pool. The commission is ceil(amount*rate/100) so the pool never
// loses a fraction of a minor unit to rounding; the remainder goes to the
// seller, making seller+commission == amount exactly.
func CommissionSplit(amount, rate int64) (seller, commission int64, err error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive winning amount %d", ErrArithmeticFault, amount)
	}
	if rate < 0 || rate > 100 {
		return 0, 0, fmt.Errorf("%w: commission rate %d out of range", ErrArithmeticFault, rate)
	}

	amountDecimal := decimal.NewFromInt(amount)
	rateDecimal := decimal.NewFromInt(rate)

	commissionDecimal := amountDecimal.Mul(rateDecimal).Div(hundred).Ceil()

	commission, err = DecimalToAmount(commissionDecimal)
	if err != nil {
		return 0, 0, err
	}
	return amount - commission, commission, nil
}

// DecimalToAmount converts a decimal price to the ledger's native int64
// amount, truncating any fractional minor units. Values outside the int64
// range are a hard failure, never wrapped or clamped.
func DecimalToAmount(d decimal.Decimal) (int64, error) {
	d = d.Floor()
	if d.GreaterThan(maxInt64Decimal) || d.LessThan(minInt64Decimal) {
		return 0, fmt.Errorf("%w: %s exceeds ledger amount range", ErrArithmeticFault, d)
	}
	return d.IntPart(), nil
}

// CheckedAdd adds two ledger times or amounts, failing on int64 overflow.
func CheckedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticFault, a, b)
	}
	return sum, nil
}
