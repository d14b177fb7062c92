package engine

import (
	"context"
	"fmt"

	ds "github.com/ipfs/go-datastore"

	"github.com/litemart-io/auctioncore/core"
)

// CreateParams describe a new auction.
type CreateParams struct {
	Seller      string
	Asset       core.Asset
	MarketToken string

	// StartTime defaults to the current ledger time.
	StartTime int64
	Duration  int64

	Pricing core.PricingParams

	// SealedBid enables the commitment/reveal protocol; requires a deposit
	// and a reveal window.
	SealedBid     bool
	SealedDeposit int64
	RevealWindow  int64
}

func (p CreateParams) validate(now int64) error {
	if now < 0 {
		return fmt.Errorf("%w: negative ledger time", core.ErrPreconditionFailed)
	}
	if p.Seller == "" {
		return fmt.Errorf("%w: seller is required", core.ErrPreconditionFailed)
	}
	if p.Asset.Token == "" || p.Asset.Amount <= 0 {
		return fmt.Errorf("%w: invalid asset", core.ErrPreconditionFailed)
	}
	if p.MarketToken == "" {
		return fmt.Errorf("%w: market token is required", core.ErrPreconditionFailed)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", core.ErrPreconditionFailed)
	}
	if p.StartTime < 0 {
		return fmt.Errorf("%w: negative start time", core.ErrPreconditionFailed)
	}
	if p.SealedBid {
		if p.SealedDeposit <= 0 {
			return fmt.Errorf("%w: sealed-bid auction requires a deposit", core.ErrPreconditionFailed)
		}
		if p.RevealWindow <= 0 {
			return fmt.Errorf("%w: sealed-bid auction requires a reveal window", core.ErrPreconditionFailed)
		}
	}
	return p.Pricing.Validate(p.SealedBid)
}

// Create records a new auction in the created phase, snapshotting the admin
// settings so later configuration changes cannot alter its terms.
func (e *Engine) Create(ctx context.Context, p CreateParams, now int64) (*core.Auction, error) {
	if err := e.checkPaused(); err != nil {
		return nil, err
	}
	if err := p.validate(now); err != nil {
		return nil, err
	}

	start := p.StartTime
	if start == 0 {
		start = now
	}
	end, err := core.CheckedAdd(start, p.Duration)
	if err != nil {
		return nil, err
	}

	id, err := newAuctionID(now)
	if err != nil {
		return nil, err
	}

	a := &core.Auction{
		ID:              id,
		Seller:          p.Seller,
		Asset:           p.Asset,
		MarketToken:     p.MarketToken,
		Phase:           core.PhaseCreated,
		StartTime:       start,
		EndTime:         end,
		Pricing:         p.Pricing,
		SealedBid:       p.SealedBid,
		SealedDeposit:   p.SealedDeposit,
		RevealWindow:    p.RevealWindow,
		CommissionRate:  core.ClampCommissionRate(e.cfg.CommissionRate()),
		AntiSnipeWindow: e.cfg.AntiSnipeWindow(),
		Extendable:      e.cfg.ExtendableAuctions(),
		CreatedAt:       now,
	}

	txn, err := e.newTxn(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.Discard(ctx)

	exists, err := txn.Has(ctx, auctionKey(a.ID))
	if err != nil {
		return nil, fmt.Errorf("checking key: %v", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: auction id collision", core.ErrPreconditionFailed)
	}
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("created auction %s (seller=%s, end=%d)", a.ID, a.Seller, a.EndTime)
	return a, nil
}

// Activate explicitly starts a created auction ahead of its start time.
// Seller only. Reaching the start time activates implicitly without this.
func (e *Engine) Activate(ctx context.Context, auctionID, caller string, now int64) error {
	if err := e.checkPaused(); err != nil {
		return err
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
	if caller != a.Seller {
		return fmt.Errorf("%w: only the seller can activate", core.ErrNotAuthorized)
	}
	if a.EffectivePhase(now) != core.PhaseCreated {
		return fmt.Errorf("%w: auction %s is not awaiting activation", core.ErrPhaseViolation, auctionID)
	}

	a.Phase = core.PhaseActive
	// Early activation moves the clock origin so descending discounting
	// starts from the moment bidding opens.
	if now < a.StartTime {
		shift := a.StartTime - now
		a.StartTime = now
		a.EndTime -= shift
	}
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return err
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("activated auction %s at %d", auctionID, now)
	return nil
}

// Extend lengthens a running auction by delta. Seller only, and only when
// the marketplace allows extendable auctions (snapshotted at creation).
func (e *Engine) Extend(ctx context.Context, auctionID, caller string, delta, now int64) error {
	if err := e.checkPaused(); err != nil {
		return err
	}
	if delta <= 0 {
		return fmt.Errorf("%w: extension must be positive", core.ErrPreconditionFailed)
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
	if caller != a.Seller {
		return fmt.Errorf("%w: only the seller can extend", core.ErrNotAuthorized)
	}
	if !a.Extendable {
		return fmt.Errorf("%w: auction %s is not extendable", core.ErrPreconditionFailed, auctionID)
	}
	if p := a.EffectivePhase(now); p != core.PhaseActive {
		return fmt.Errorf("%w: cannot extend while %s", core.ErrPhaseViolation, p)
	}

	end, err := core.CheckedAdd(a.EndTime, delta)
	if err != nil {
		return err
	}
	a.Phase = core.PhaseActive
	a.EndTime = end
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return err
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("extended auction %s to %d", auctionID, end)
	return nil
}

// CancelAuction aborts an auction with no winner, releasing every held bid
// amount and deposit and returning the asset to the seller. The seller may
// cancel only before any qualifying bid exists; the admin may cancel any
// unresolved auction, including while the circuit breaker is engaged.
func (e *Engine) CancelAuction(ctx context.Context, auctionID, caller string, now int64) error {
	admin := e.isAdmin(caller)
	if !admin {
		if err := e.checkPaused(); err != nil {
			return err
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
	if !admin && caller != a.Seller {
		return fmt.Errorf("%w: only the seller or admin can cancel", core.ErrNotAuthorized)
	}
	switch p := a.EffectivePhase(now); p {
	case core.PhaseCreated, core.PhaseActive:
	default:
		return fmt.Errorf("%w: cannot cancel while %s", core.ErrPhaseViolation, p)
	}
	if !admin {
		// Seller cancellation requires that no qualifying bid exists.
		for i := range a.Bids {
			if a.Bids[i].Competing() {
				return fmt.Errorf("%w: auction has active bids", core.ErrPreconditionFailed)
			}
		}
	}

	s := Settlement{AuctionID: a.ID}
	s.Transfers = append(s.Transfers, assetReturn(a))
	s.Transfers = append(s.Transfers, releaseHolds(a, "")...)
	// Everyone gets their sealed deposit back on cancellation, revealed or not.
	if a.SealedBid && a.SealedDeposit > 0 {
		for i := range a.Bids {
			b := &a.Bids[i]
			if b.Sealed && b.Status != core.BidStatusCancelled {
				s.Transfers = append(s.Transfers, Transfer{
					From: b.Bidder, To: b.Bidder, Token: a.MarketToken, Amount: a.SealedDeposit,
				})
			}
		}
	}
	if err := e.settler.Settle(ctx, s); err != nil {
		return fmt.Errorf("%w: %v", core.ErrSettlementFailed, err)
	}

	a.Phase = core.PhaseCancelled
	if err := saveAuction(ctx, txn, a, now); err != nil {
		return err
	}
	// Clear any outstanding commitments; cancelled auctions accept no reveals.
	for i := range a.Bids {
		b := &a.Bids[i]
		if b.Sealed {
			if err := txn.Delete(ctx, commitmentKey(a.ID, b.Bidder)); err != nil {
				return fmt.Errorf("deleting commitment: %v", err)
			}
		}
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("committing txn: %v", err)
	}
	log.Infof("cancelled auction %s (caller=%s)", auctionID, caller)
	return nil
}

// Resolve determines the winner of an ended auction and settles funds. With
// no qualifying bid the auction still resolves, as a no-sale with the asset
// returned to the seller. A settlement failure leaves the auction ended so
// resolution can be retried.
func (e *Engine) Resolve(ctx context.Context, auctionID string, now int64) (*core.Auction, error) {
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
	if p := a.EffectivePhase(now); p != core.PhaseEnded {
		return nil, fmt.Errorf("%w: cannot resolve while %s", core.ErrPhaseViolation, p)
	}
	if a.SealedBid && now < a.RevealDeadline() {
		return nil, fmt.Errorf("%w: reveal window open until %d", core.ErrPhaseViolation, a.RevealDeadline())
	}
	a.Phase = core.PhaseEnded
	a.RejectUnrevealed()

	winner := a.HighestBid()
	if winner != nil && winner.Amount < a.Pricing.ReservePrice {
		winner = nil
	}
	if err := e.finalize(ctx, txn, a, winner, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing txn: %v", err)
	}
	if winner != nil {
		log.Infof("resolved auction %s: winner=%s amount=%d", a.ID, winner.Bidder, winner.Amount)
	} else {
		log.Infof("resolved auction %s: no sale", a.ID)
	}
	return a, nil
}

// finalize builds the settlement for the given winner (nil for no sale),
// invokes the settler, and on success moves the auction to resolved. Called
// with the enclosing transaction still open so a settlement failure discards
// every effect of the attempted resolution.
func (e *Engine) finalize(ctx context.Context, txn ds.Write, a *core.Auction, winner *core.Bid, now int64) error {
	s := Settlement{AuctionID: a.ID}

	if winner != nil {
		sellerShare, commission, err := core.CommissionSplit(winner.Amount, a.CommissionRate)
		if err != nil {
			return err
		}
		s.Winner = winner.Bidder
		s.WinningAmount = winner.Amount
		s.SellerShare = sellerShare
		s.Commission = commission

		s.Transfers = append(s.Transfers,
			Transfer{From: a.Seller, To: winner.Bidder, Token: a.Asset.Token, Amount: a.Asset.Amount},
			Transfer{From: winner.Bidder, To: a.Seller, Token: a.MarketToken, Amount: sellerShare},
		)
		if commission > 0 {
			s.Transfers = append(s.Transfers,
				Transfer{From: winner.Bidder, To: e.cfg.Admin(), Token: a.MarketToken, Amount: commission})
		}
		s.Transfers = append(s.Transfers, releaseHolds(a, winner.Bidder)...)
	} else {
		s.Transfers = append(s.Transfers, assetReturn(a))
		s.Transfers = append(s.Transfers, releaseHolds(a, "")...)
	}
	s.Transfers = append(s.Transfers, settleDeposits(e.cfg.Admin(), a)...)

	if err := e.settler.Settle(ctx, s); err != nil {
		return fmt.Errorf("%w: %v", core.ErrSettlementFailed, err)
	}

	a.Phase = core.PhaseResolved
	// Consumed and abandoned commitments alike are erased at resolution.
	for i := range a.Bids {
		b := &a.Bids[i]
		if b.Sealed {
			if err := txn.Delete(ctx, commitmentKey(a.ID, b.Bidder)); err != nil {
				return fmt.Errorf("deleting commitment: %v", err)
			}
		}
	}
	return saveAuction(ctx, txn, a, now)
}

// assetReturn releases the escrowed asset back to the seller.
func assetReturn(a *core.Auction) Transfer {
	return Transfer{From: a.Seller, To: a.Seller, Token: a.Asset.Token, Amount: a.Asset.Amount}
}

// releaseHolds returns refund instructions for every competing priced bid
// except the winner's.
func releaseHolds(a *core.Auction, winner string) []Transfer {
	var transfers []Transfer
	for i := range a.Bids {
		b := &a.Bids[i]
		if !b.Priced() || b.Bidder == winner || b.Amount <= 0 {
			continue
		}
		transfers = append(transfers, Transfer{
			From: b.Bidder, To: b.Bidder, Token: a.MarketToken, Amount: b.Amount,
		})
	}
	return transfers
}

// settleDeposits refunds sealed-bid deposits for revealed bids and forfeits
// the deposits of bids that never revealed to the marketplace admin.
func settleDeposits(admin string, a *core.Auction) []Transfer {
	if !a.SealedBid || a.SealedDeposit <= 0 {
		return nil
	}
	var transfers []Transfer
	for i := range a.Bids {
		b := &a.Bids[i]
		if !b.Sealed {
			continue
		}
		switch b.Status {
		case core.BidStatusRevealed:
			transfers = append(transfers, Transfer{
				From: b.Bidder, To: b.Bidder, Token: a.MarketToken, Amount: a.SealedDeposit,
			})
		case core.BidStatusRejected:
			transfers = append(transfers, Transfer{
				From: b.Bidder, To: admin, Token: a.MarketToken, Amount: a.SealedDeposit,
			})
		}
	}
	return transfers
}
