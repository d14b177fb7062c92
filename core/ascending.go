package core

import "fmt"

// AscendingPrice implements the English auction: bids must strictly outbid
// the current leader, and meeting the ask price wins instantly.
type AscendingPrice struct{}

// Quote returns the highest priced bid, or the starting price (never below
// the reserve) when no priced bid exists yet.
func (AscendingPrice) Quote(a *Auction, now int64) (int64, error) {
	if highest := a.HighestBid(); highest != nil {
		return highest.Amount, nil
	}
	quote := a.Pricing.StartPrice
	if a.Pricing.ReservePrice > quote {
		quote = a.Pricing.ReservePrice
	}
	return quote, nil
}

func (s AscendingPrice) Accepts(a *Auction, amount, now int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive bid amount %d", ErrPreconditionFailed, amount)
	}
	if amount < a.Pricing.ReservePrice {
		return fmt.Errorf("%w: bid %d below reserve price %d", ErrPreconditionFailed, amount, a.Pricing.ReservePrice)
	}
	quote, err := s.Quote(a, now)
	if err != nil {
		return err
	}
	if highest := a.HighestBid(); highest != nil {
		// Must strictly outbid the current leader.
		if amount <= quote {
			return fmt.Errorf("%w: bid %d does not outbid current highest %d", ErrPreconditionFailed, amount, quote)
		}
		return nil
	}
	if amount < quote {
		return fmt.Errorf("%w: bid %d below starting price %d", ErrPreconditionFailed, amount, quote)
	}
	return nil
}

// ResolvesImmediately reports a buy-now: the ask price is set and met.
func (AscendingPrice) ResolvesImmediately(a *Auction, amount, now int64) bool {
	return a.Pricing.AskPrice > 0 && amount >= a.Pricing.AskPrice
}
