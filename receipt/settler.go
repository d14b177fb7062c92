package receipt

import (
	"context"
	"errors"
	"fmt"

	ds "github.com/ipfs/go-datastore"

	"github.com/litemart-io/auctioncore/engine"
)

// dsReceiptPrefix is the prefix for stored receipts.
// Structure: /receipts/<auction_id> -> COSE_Sign1 bytes.
var dsReceiptPrefix = ds.NewKey("/receipts")

// ErrReceiptNotFound indicates no receipt exists for the auction.
var ErrReceiptNotFound = errors.New("receipt not found")

// Settler decorates another settler, storing a signed receipt for every
// settlement it accepts.
type Settler struct {
	inner  engine.Settler
	issuer *Issuer
	store  ds.Datastore
}

// NewSettler returns a receipt-issuing settler wrapping inner.
func NewSettler(inner engine.Settler, issuer *Issuer, store ds.Datastore) *Settler {
	return &Settler{inner: inner, issuer: issuer, store: store}
}

// Settle delegates to the inner settler and, on success, stores a signed
// receipt for the settlement.
//
// The receipt is written before the engine commits the resolution, so a
// failed commit can leave a receipt for an auction still in the ended
// phase. Retrying the resolution re-journals the identical settlement and
// overwrites the receipt with an equivalent one, so the states reconverge.
func (s *Settler) Settle(ctx context.Context, set engine.Settlement) error {
	if err := s.inner.Settle(ctx, set); err != nil {
		return err
	}
	env, err := s.issuer.Issue(set)
	if err != nil {
		return fmt.Errorf("issuing receipt: %w", err)
	}
	if err := s.store.Put(ctx, receiptKey(set.AuctionID), env); err != nil {
		return fmt.Errorf("storing receipt: %w", err)
	}
	return nil
}

// Receipt returns the stored COSE_Sign1 receipt for an auction.
func (s *Settler) Receipt(ctx context.Context, auctionID string) ([]byte, error) {
	env, err := s.store.Get(ctx, receiptKey(auctionID))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrReceiptNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return env, nil
}

func receiptKey(auctionID string) ds.Key {
	return dsReceiptPrefix.ChildString(auctionID)
}
