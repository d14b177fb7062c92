package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	ds "github.com/ipfs/go-datastore"

	"github.com/litemart-io/auctioncore/core"
)

var (
	// dsAuctionPrefix is the prefix for auction records.
	// Structure: /auctions/<auction_id> -> Auction.
	dsAuctionPrefix = ds.NewKey("/auctions")

	// dsCommitmentPrefix is the prefix for sealed-bid commitments.
	// Structure: /commitments/<auction_id>/<bidder> -> digest.
	dsCommitmentPrefix = ds.NewKey("/commitments")
)

// recordEnc encodes records deterministically so a record re-encoded from
// the same state is byte-identical, as the shared ledger expects.
var recordEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	recordEnc = em
}

func auctionKey(id string) ds.Key {
	return dsAuctionPrefix.ChildString(id)
}

func commitmentKey(auctionID, bidder string) ds.Key {
	return dsCommitmentPrefix.ChildString(auctionID).ChildString(bidder)
}

func encodeAuction(a *core.Auction) ([]byte, error) {
	return recordEnc.Marshal(a)
}

func decodeAuction(v []byte) (*core.Auction, error) {
	a := &core.Auction{}
	if err := cbor.Unmarshal(v, a); err != nil {
		return nil, err
	}
	return a, nil
}

func getAuction(ctx context.Context, reader ds.Read, id string) (*core.Auction, error) {
	val, err := reader.Get(ctx, auctionKey(id))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrAuctionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("getting key: %v", err)
	}
	a, err := decodeAuction(val)
	if err != nil {
		return nil, fmt.Errorf("decoding value: %v", err)
	}
	return a, nil
}

// saveAuction persists the record, stamping the update time.
func saveAuction(ctx context.Context, writer ds.Write, a *core.Auction, now int64) error {
	a.UpdatedAt = now
	val, err := encodeAuction(a)
	if err != nil {
		return fmt.Errorf("encoding value: %v", err)
	}
	if err := writer.Put(ctx, auctionKey(a.ID), val); err != nil {
		return fmt.Errorf("putting value: %v", err)
	}
	return nil
}
