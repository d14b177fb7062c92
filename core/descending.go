package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Significant digits carried through the compound discount exponent.
// Quotes are whole minor units, so anything beyond double precision only
// wastes cycles.
const compoundPrecision = 16

// The discount rate is a whole percentage, so the decay factor is at most
// 0.99 and this many periods push any int64 start price below one minor
// unit. Larger exponents cannot change the floored quote.
const maxCompoundPeriods = 4400

// DescendingPrice implements the Dutch auction: the quote decays from the
// start price over elapsed intervals and the first bid meeting it wins
// immediately. Descending auctions never accumulate competing bids.
type DescendingPrice struct{}

// Quote returns the discounted price at the given ledger time, floored at
// the reserve price and never negative.
func (DescendingPrice) Quote(a *Auction, now int64) (int64, error) {
	p := a.Pricing
	if p.DiscountRate <= 0 || p.DiscountFrequency <= 0 {
		return 0, fmt.Errorf("%w: descending auction without discount parameters", ErrPreconditionFailed)
	}

	elapsed := now - a.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	periods := elapsed / p.DiscountFrequency

	startDecimal := decimal.NewFromInt(p.StartPrice)
	rateDecimal := decimal.NewFromInt(p.DiscountRate)

	var priceDecimal decimal.Decimal
	if p.Compounded {
		// start * ((100-rate)/100)^periods, at bounded precision so the
		// working value stays small even after millions of periods.
		if periods > maxCompoundPeriods {
			periods = maxCompoundPeriods
		}
		factor := hundred.Sub(rateDecimal).Div(hundred)
		pow, err := factor.PowWithPrecision(decimal.NewFromInt(periods), compoundPrecision)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrArithmeticFault, err)
		}
		priceDecimal = startDecimal.Mul(pow)
	} else {
		// start * (100 - rate*periods) / 100
		remaining := hundred.Sub(rateDecimal.Mul(decimal.NewFromInt(periods)))
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		priceDecimal = startDecimal.Mul(remaining).Div(hundred)
	}

	price, err := DecimalToAmount(priceDecimal)
	if err != nil {
		return 0, err
	}
	if price < p.ReservePrice {
		price = p.ReservePrice
	}
	if price < 0 {
		price = 0
	}
	return price, nil
}

func (s DescendingPrice) Accepts(a *Auction, amount, now int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive bid amount %d", ErrPreconditionFailed, amount)
	}
	quote, err := s.Quote(a, now)
	if err != nil {
		return err
	}
	if amount < quote {
		return fmt.Errorf("%w: bid %d below current discounted price %d", ErrPreconditionFailed, amount, quote)
	}
	if amount < a.Pricing.ReservePrice {
		return fmt.Errorf("%w: bid %d below reserve price %d", ErrPreconditionFailed, amount, a.Pricing.ReservePrice)
	}
	return nil
}

// ResolvesImmediately is always true for an accepted descending bid: the
// first bid meeting the discounted price wins.
func (DescendingPrice) ResolvesImmediately(a *Auction, amount, now int64) bool {
	return true
}
