package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	ds "github.com/ipfs/go-datastore"

	"github.com/litemart-io/auctioncore/core"
)

// PlaceBid records an open bid. The pricing strategy decides acceptance; an
// accepted buy-now or descending bid settles the auction in the same atomic
// step, bypassing the ended phase.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidder string, amount, now int64) (*core.Bid, error) {
	if err := e.checkPaused(); err != nil {
		return nil, err
	}
	if bidder == "" {
		return nil, fmt.Errorf("%w: bidder is required", core.ErrPreconditionFailed)
	}
	txn, err := e.newTxn(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.Discard(ctx)

	a, err := getAuction(ctx, txn, auctionID)
	if err != nil {
		return nil, err
	}
	if p := a.EffectivePhase(now); p != core.PhaseActive {
		return nil, fmt.Errorf("%w: cannot bid while %s", core.ErrPhaseViolation, p)
	}
	if a.SealedBid {
		return nil, fmt.Errorf("%w: auction %s accepts sealed bids only", core.ErrPreconditionFailed, auctionID)
	}
	if bidder == a.Seller {
		return nil, fmt.Errorf("%w: seller cannot bid on own auction", core.ErrNotAuthorized)
	}
	if existing := a.CompetingBid(bidder); existing != nil {
		return nil, fmt.Errorf("%w: bidder %s already has an active bid", core.ErrPreconditionFailed, bidder)
	}

	strategy := core.StrategyFor(a.Pricing)
	if err := strategy.Accepts(a, amount, now); err != nil {
		return nil, err
	}

	a.Phase = core.PhaseActive
	bid := core.Bid{
		ID:       uuid.NewString(),
		Bidder:   bidder,
		Status:   core.BidStatusActive,
		Amount:   amount,
		PlacedAt: now,
	}
	e.armAntiSnipe(a, &bid, now)
	if err := a.AppendBid(bid); err != nil {
		return nil, err
	}

	if strategy.ResolvesImmediately(a, amount, now) {
		placed := &a.Bids[len(a.Bids)-1]
		if err := e.finalize(ctx, txn, a, placed, now); err != nil {
			return nil, err
		}
	} else if err := saveAuction(ctx, txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("bid %s on auction %s: bidder=%s amount=%d sniper=%v",
		bid.ID, auctionID, bidder, amount, bid.Sniper)
	return &bid, nil
}

// PlaceSealedBid stores a commitment digest in the vault and records a
// hidden bid. The amount stays unknown to everyone, the engine included,
// until revealed.
func (e *Engine) PlaceSealedBid(ctx context.Context, auctionID, bidder string, digest []byte, now int64) (*core.Bid, error) {
	if err := e.checkPaused(); err != nil {
		return nil, err
	}
	if bidder == "" {
		return nil, fmt.Errorf("%w: bidder is required", core.ErrPreconditionFailed)
	}
	if len(digest) != core.DigestSize {
		return nil, fmt.Errorf("%w: digest must be %d bytes", core.ErrPreconditionFailed, core.DigestSize)
	}
	txn, err := e.newTxn(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.Discard(ctx)

	a, err := getAuction(ctx, txn, auctionID)
	if err != nil {
		return nil, err
	}
	if p := a.EffectivePhase(now); p != core.PhaseActive {
		return nil, fmt.Errorf("%w: cannot bid while %s", core.ErrPhaseViolation, p)
	}
	if !a.SealedBid {
		return nil, fmt.Errorf("%w: auction %s does not accept sealed bids", core.ErrPreconditionFailed, auctionID)
	}
	if bidder == a.Seller {
		return nil, fmt.Errorf("%w: seller cannot bid on own auction", core.ErrNotAuthorized)
	}

	// No silent overwrite: a bidder replaces a commitment by cancelling,
	// which clears the vault entry, and submitting again.
	key := commitmentKey(auctionID, bidder)
	exists, err := txn.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checking commitment: %v", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: commitment already exists for bidder %s", core.ErrPreconditionFailed, bidder)
	}

	a.Phase = core.PhaseActive
	bid := core.Bid{
		ID:       uuid.NewString(),
		Bidder:   bidder,
		Status:   core.BidStatusActive,
		Sealed:   true,
		PlacedAt: now,
	}
	e.armAntiSnipe(a, &bid, now)
	if err := a.AppendBid(bid); err != nil {
		return nil, err
	}
	if err := txn.Put(ctx, key, digest); err != nil {
		return nil, fmt.Errorf("putting commitment: %v", err)
	}
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("sealed bid %s on auction %s: bidder=%s sniper=%v", bid.ID, auctionID, bidder, bid.Sniper)
	return &bid, nil
}

// RevealBid discloses a sealed bid after the auction ends. The revealed
// material must hash to the stored commitment exactly; on success the
// commitment is consumed and the bid competes under normal price ordering.
// A mismatch rejects the reveal with no state change, so the bidder may
// retry with correct material until the deadline.
func (e *Engine) RevealBid(ctx context.Context, auctionID, bidder string, amount int64, secret []byte, now int64) (*core.Bid, error) {
	if err := e.checkPaused(); err != nil {
		return nil, err
	}
	txn, err := e.newTxn(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.Discard(ctx)

	a, err := getAuction(ctx, txn, auctionID)
	if err != nil {
		return nil, err
	}
	if !a.SealedBid {
		return nil, fmt.Errorf("%w: auction %s has no sealed bids", core.ErrPreconditionFailed, auctionID)
	}
	if p := a.EffectivePhase(now); p != core.PhaseEnded {
		return nil, fmt.Errorf("%w: reveals are accepted only after bidding ends (now %s)", core.ErrPhaseViolation, p)
	}
	if now > a.RevealDeadline() {
		return nil, fmt.Errorf("%w: reveal deadline %d passed", core.ErrPhaseViolation, a.RevealDeadline())
	}

	bid := a.CompetingBid(bidder)
	if bid == nil || !bid.Sealed {
		return nil, fmt.Errorf("%w: no sealed bid for bidder %s", core.ErrPreconditionFailed, bidder)
	}
	if bid.Status == core.BidStatusRevealed {
		return nil, fmt.Errorf("%w: bid already revealed", core.ErrPreconditionFailed)
	}

	key := commitmentKey(auctionID, bidder)
	stored, err := txn.Get(ctx, key)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("%w: no commitment for bidder %s", core.ErrPreconditionFailed, bidder)
	} else if err != nil {
		return nil, fmt.Errorf("getting commitment: %v", err)
	}

	ok, err := core.VerifyCommitment(stored, auctionID, bidder, amount, secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: revealed material does not match commitment", core.ErrPreconditionFailed)
	}

	// Consume: a verified commitment can never be replayed.
	if err := txn.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("deleting commitment: %v", err)
	}
	a.Phase = core.PhaseEnded
	bid.MarkRevealed(amount, now)
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("revealed bid %s on auction %s: bidder=%s amount=%d", bid.ID, auctionID, bidder, amount)
	return bid, nil
}

// CancelBid withdraws a bid while the auction is running. Owner only; the
// admin may cancel on a bidder's behalf, including under circuit break. A
// cancellation inside the anti-snipe window still re-arms the window, so a
// sniper cannot cancel to dodge the extension.
func (e *Engine) CancelBid(ctx context.Context, auctionID, bidder, caller string, now int64) error {
	admin := e.isAdmin(caller)
	if !admin {
		if err := e.checkPaused(); err != nil {
			return err
		}
		if caller != bidder {
			return fmt.Errorf("%w: only the bid owner can cancel", core.ErrNotAuthorized)
		}
	}
	txn, err := e.newTxn(ctx)
	if err != nil {
		return err
	}
	defer txn.Discard(ctx)

	a, err := getAuction(ctx, txn, auctionID)
	if err != nil {
		return err
	}
	if p := a.EffectivePhase(now); p != core.PhaseActive {
		return fmt.Errorf("%w: cannot cancel a bid while %s", core.ErrPhaseViolation, p)
	}

	var bid *core.Bid
	if admin {
		bid, err = a.ForceCancelBid(bidder)
	} else {
		bid, err = a.CancelBid(bidder)
	}
	if err != nil {
		return err
	}

	a.Phase = core.PhaseActive
	if !admin {
		e.armAntiSnipe(a, nil, now)
	}
	if bid.Sealed {
		if err := txn.Delete(ctx, commitmentKey(auctionID, bidder)); err != nil {
			return fmt.Errorf("deleting commitment: %v", err)
		}
	}
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return err
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("cancelled bid %s on auction %s (caller=%s)", bid.ID, auctionID, caller)
	return nil
}

// armAntiSnipe applies the anti-snipe rule for a qualifying action. The bid,
// when present, is marked as a sniper bid so it cannot later be cancelled.
func (e *Engine) armAntiSnipe(a *core.Auction, bid *core.Bid, now int64) {
	if !a.Extendable {
		return
	}
	newEnd, extended := core.MaybeExtend(now, a.EndTime, a.AntiSnipeWindow)
	if !extended {
		return
	}
	a.EndTime = newEnd
	a.Extended = true
	if bid != nil {
		bid.Sniper = true
	}
}
