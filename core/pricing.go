package core

import "fmt"

// Strategy is the pricing-behavior contract shared by the closed set of
// auction mechanisms. A strategy computes the current required price and
// decides which bids are acceptable; the state machine performs the actual
// transitions. Strategy selection is fixed at auction creation.
type Strategy interface {
	// Quote returns the price a new bid must meet at the given ledger time.
	Quote(a *Auction, now int64) (int64, error)

	// Accepts reports whether a bid of the given amount is acceptable at
	// the given ledger time. A nil return means the bid may be recorded.
	Accepts(a *Auction, amount, now int64) error

	// ResolvesImmediately reports whether recording an accepted bid of the
	// given amount should settle the auction right away, bypassing the
	// ended phase (buy-now, or any accepted descending bid).
	ResolvesImmediately(a *Auction, amount, now int64) bool
}

// StrategyFor selects the pricing behavior for an auction's parameters:
// descending when both discount rate and frequency are set, ascending
// otherwise.
func StrategyFor(p PricingParams) Strategy {
	if p.DiscountRate > 0 && p.DiscountFrequency > 0 {
		return DescendingPrice{}
	}
	return AscendingPrice{}
}

// Validate checks pricing parameters at creation time. Parameters are
// immutable once the auction starts, so nothing here is re-checked per bid.
func (p PricingParams) Validate(sealed bool) error {
	if p.StartPrice < 0 || p.ReservePrice < 0 || p.AskPrice < 0 {
		return fmt.Errorf("%w: negative price parameter", ErrPreconditionFailed)
	}
	descending := p.DiscountRate != 0 || p.DiscountFrequency != 0
	if descending {
		if p.DiscountRate <= 0 || p.DiscountRate >= 100 {
			return fmt.Errorf("%w: discount rate %d must be in (0, 100)", ErrPreconditionFailed, p.DiscountRate)
		}
		if p.DiscountFrequency <= 0 {
			return fmt.Errorf("%w: discount frequency %d must be positive", ErrPreconditionFailed, p.DiscountFrequency)
		}
		if p.StartPrice <= 0 {
			return fmt.Errorf("%w: descending auction requires a start price", ErrPreconditionFailed)
		}
		if p.ReservePrice > p.StartPrice {
			return fmt.Errorf("%w: reserve price %d above start price %d", ErrPreconditionFailed, p.ReservePrice, p.StartPrice)
		}
		if sealed {
			return fmt.Errorf("%w: sealed bids are only supported for ascending auctions", ErrPreconditionFailed)
		}
		if p.AskPrice != 0 {
			return fmt.Errorf("%w: ask price is an ascending-only parameter", ErrPreconditionFailed)
		}
		return nil
	}
	if p.AskPrice > 0 && p.ReservePrice > p.AskPrice {
		return fmt.Errorf("%w: reserve price %d above ask price %d", ErrPreconditionFailed, p.ReservePrice, p.AskPrice)
	}
	return nil
}
