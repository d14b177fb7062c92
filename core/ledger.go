package core

import "fmt"

// Bid ledger operations. The auction record exclusively owns its bid set;
// all mutation goes through these methods so the per-bidder invariants hold.

// CompetingBid returns the bidder's active or revealed bid, if any.
func (a *Auction) CompetingBid(bidder string) *Bid {
	for i := range a.Bids {
		if a.Bids[i].Bidder == bidder && a.Bids[i].Competing() {
			return &a.Bids[i]
		}
	}
	return nil
}

// HighestBid returns the leading priced bid: strictly greater amount wins,
// equal amounts break by earliest placement time, never by bidder identity.
func (a *Auction) HighestBid() *Bid {
	var highest *Bid
	for i := range a.Bids {
		b := &a.Bids[i]
		if !b.Priced() {
			continue
		}
		if highest == nil || b.Amount > highest.Amount ||
			(b.Amount == highest.Amount && b.PlacedAt < highest.PlacedAt) {
			highest = b
		}
	}
	return highest
}

// AppendBid records a new bid, enforcing at most one active or revealed bid
// per bidder. The bidder must cancel an existing bid first.
func (a *Auction) AppendBid(b Bid) error {
	if existing := a.CompetingBid(b.Bidder); existing != nil {
		return fmt.Errorf("%w: bidder %s already has an active bid", ErrPreconditionFailed, b.Bidder)
	}
	a.Bids = append(a.Bids, b)
	return nil
}

// CancelBid withdraws the bidder's active bid. Sniper bids cannot be
// cancelled, which keeps a late bidder from dodging the already-armed
// anti-snipe extension.
func (a *Auction) CancelBid(bidder string) (*Bid, error) {
	b := a.CompetingBid(bidder)
	if b == nil {
		return nil, fmt.Errorf("%w: no active bid to cancel for bidder %s", ErrPreconditionFailed, bidder)
	}
	if b.Sniper {
		return nil, fmt.Errorf("%w: bids placed inside the anti-snipe window cannot be cancelled", ErrPreconditionFailed)
	}
	b.Status = BidStatusCancelled
	return b, nil
}

// ForceCancelBid withdraws the bidder's active bid regardless of the sniper
// lock. Reserved for administrative intervention.
func (a *Auction) ForceCancelBid(bidder string) (*Bid, error) {
	b := a.CompetingBid(bidder)
	if b == nil {
		return nil, fmt.Errorf("%w: no active bid to cancel for bidder %s", ErrPreconditionFailed, bidder)
	}
	b.Status = BidStatusCancelled
	return b, nil
}

// MarkRevealed records a successful sealed-bid reveal, assigning the
// disclosed amount.
func (b *Bid) MarkRevealed(amount, now int64) {
	b.Amount = amount
	b.Status = BidStatusRevealed
	b.RevealedAt = now
}

// RejectUnrevealed marks every still-sealed bid rejected. Called at
// resolution once the reveal deadline has passed; rejected bids forfeit
// their deposits and never compete.
func (a *Auction) RejectUnrevealed() []Bid {
	var rejected []Bid
	for i := range a.Bids {
		b := &a.Bids[i]
		if b.Sealed && b.Status == BidStatusActive {
			b.Status = BidStatusRejected
			rejected = append(rejected, *b)
		}
	}
	return rejected
}
