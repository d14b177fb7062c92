package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	ds "github.com/ipfs/go-datastore"
)

// dsSettlementPrefix is the prefix for journaled settlements.
// Structure: /settlements/<auction_id> -> Settlement.
var dsSettlementPrefix = ds.NewKey("/settlements")

// ErrSettlementNotFound indicates no journaled settlement for the auction.
var ErrSettlementNotFound = errors.New("settlement not found")

// JournalSettler records settlements durably instead of moving funds,
// for deployments where transfers execute out of band against the journal.
// Each auction settles at most once, so a conflicting journal entry for the
// same auction is refused.
type JournalSettler struct {
	store ds.Datastore
}

// NewJournalSettler returns a JournalSettler backed by store.
func NewJournalSettler(store ds.Datastore) *JournalSettler {
	return &JournalSettler{store: store}
}

func settlementKey(auctionID string) ds.Key {
	return dsSettlementPrefix.ChildString(auctionID)
}

// Settle journals the settlement. A retried resolution re-journals the
// identical settlement, which is accepted; a conflicting one is refused.
func (j *JournalSettler) Settle(ctx context.Context, s Settlement) error {
	key := settlementKey(s.AuctionID)
	val, err := recordEnc.Marshal(&s)
	if err != nil {
		return fmt.Errorf("encoding settlement: %v", err)
	}
	existing, err := j.store.Get(ctx, key)
	if err != nil && !errors.Is(err, ds.ErrNotFound) {
		return fmt.Errorf("getting key: %v", err)
	}
	if existing != nil && !bytes.Equal(existing, val) {
		return fmt.Errorf("conflicting settlement already journaled for auction %s", s.AuctionID)
	}
	if err := j.store.Put(ctx, key, val); err != nil {
		return fmt.Errorf("putting value: %v", err)
	}
	log.Infof("journaled settlement for auction %s (%d transfers)", s.AuctionID, len(s.Transfers))
	return nil
}

// Settlement returns the journaled settlement for an auction.
func (j *JournalSettler) Settlement(ctx context.Context, auctionID string) (*Settlement, error) {
	val, err := j.store.Get(ctx, settlementKey(auctionID))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrSettlementNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting key: %v", err)
	}
	s := &Settlement{}
	if err := cbor.Unmarshal(val, s); err != nil {
		return nil, fmt.Errorf("decoding value: %v", err)
	}
	return s, nil
}
