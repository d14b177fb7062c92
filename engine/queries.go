package engine

import (
	"context"
	"fmt"
	"sort"

	dsq "github.com/ipfs/go-datastore/query"

	"github.com/litemart-io/auctioncore/core"
)

// GetAuction returns a snapshot of an auction. The returned record carries
// the phase in effect at now; reads never persist a transition.
func (e *Engine) GetAuction(ctx context.Context, id string, now int64) (*core.Auction, error) {
	a, err := getAuction(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	a.Phase = a.EffectivePhase(now)
	return a, nil
}

// ListAuctions returns every auction ordered by creation time, each stamped
// with its phase in effect at now.
func (e *Engine) ListAuctions(ctx context.Context, now int64) ([]*core.Auction, error) {
	results, err := e.store.Query(ctx, dsq.Query{Prefix: dsAuctionPrefix.String()})
	if err != nil {
		return nil, fmt.Errorf("querying datastore: %v", err)
	}
	defer results.Close()

	var auctions []*core.Auction
	for res := range results.Next() {
		if res.Error != nil {
			return nil, fmt.Errorf("getting next result: %v", res.Error)
		}
		a, err := decodeAuction(res.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding value: %v", err)
		}
		a.Phase = a.EffectivePhase(now)
		auctions = append(auctions, a)
	}
	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].CreatedAt == auctions[j].CreatedAt {
			return auctions[i].ID < auctions[j].ID
		}
		return auctions[i].CreatedAt < auctions[j].CreatedAt
	})
	return auctions, nil
}
