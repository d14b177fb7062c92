package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	badger "github.com/ipfs/go-ds-badger"
	"github.com/stretchr/testify/require"

	"github.com/litemart-io/auctioncore/core"
)

const (
	testAdmin  = "admin"
	testSeller = "seller"
	testToken  = "XLM"
	testAsset  = "COLLECTIBLE"
)

type recordingSettler struct {
	mu          sync.Mutex
	settlements []Settlement
	failures    int
}

func (r *recordingSettler) Settle(_ context.Context, s Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("transfer backend unavailable")
	}
	r.settlements = append(r.settlements, s)
	return nil
}

func (r *recordingSettler) last(t *testing.T) Settlement {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.settlements)
	return r.settlements[len(r.settlements)-1]
}

func newTestEngine(t *testing.T, cfg StaticConfig) (*Engine, *recordingSettler, *Breaker) {
	t.Helper()
	store, err := badger.NewDatastore(t.TempDir(), &badger.DefaultOptions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	settler := &recordingSettler{}
	breaker := &Breaker{}
	e, err := New(store, settler, breaker, cfg)
	require.NoError(t, err)
	return e, settler, breaker
}

func defaultConfig() StaticConfig {
	return StaticConfig{
		AdminAccount: testAdmin,
		AntiSnipe:    60,
		Commission:   5,
		Reveal:       100,
		Extendable:   true,
	}
}

func ascendingParams() CreateParams {
	return CreateParams{
		Seller:      testSeller,
		Asset:       core.Asset{Token: testAsset, Amount: 1},
		MarketToken: testToken,
		StartTime:   100,
		Duration:    900,
		Pricing:     core.PricingParams{StartPrice: 100},
	}
}

func TestCreateAndGet(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, core.PhaseCreated, a.Phase)
	require.Equal(t, int64(1000), a.EndTime)
	require.Equal(t, int64(5), a.CommissionRate)
	require.Equal(t, int64(60), a.AntiSnipeWindow)
	require.True(t, a.Extendable)

	got, err := e.GetAuction(ctx, a.ID, 50)
	require.NoError(t, err)
	require.Equal(t, core.PhaseCreated, got.Phase)

	// Reads report the effective phase without persisting it.
	got, err = e.GetAuction(ctx, a.ID, 100)
	require.NoError(t, err)
	require.Equal(t, core.PhaseActive, got.Phase)

	got, err = e.GetAuction(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, core.PhaseEnded, got.Phase)

	_, err = e.GetAuction(ctx, "missing", 100)
	require.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestCreateValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	p := ascendingParams()
	p.Seller = ""
	_, err := e.Create(ctx, p, 50)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	p = ascendingParams()
	p.Duration = 0
	_, err = e.Create(ctx, p, 50)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	p = ascendingParams()
	p.SealedBid = true
	_, err = e.Create(ctx, p, 50)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Sealed mode is incompatible with a discount schedule.
	p = ascendingParams()
	p.SealedBid = true
	p.SealedDeposit = 10
	p.RevealWindow = 100
	p.Pricing.DiscountRate = 10
	p.Pricing.DiscountFrequency = 60
	_, err = e.Create(ctx, p, 50)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)
}

func TestCreateRejectsOutOfRangeLedgerTime(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	_, err := e.Create(ctx, ascendingParams(), -1)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Past the maximum id timestamp the time is rejected, not wrapped.
	_, err = e.Create(ctx, ascendingParams(), math.MaxInt64)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)
}

func TestActivateEarly(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	require.ErrorIs(t, e.Activate(ctx, a.ID, "stranger", 60), core.ErrNotAuthorized)
	require.NoError(t, e.Activate(ctx, a.ID, testSeller, 60))

	got, err := e.GetAuction(ctx, a.ID, 60)
	require.NoError(t, err)
	require.Equal(t, core.PhaseActive, got.Phase)
	require.Equal(t, int64(60), got.StartTime)
	require.Equal(t, int64(960), got.EndTime)

	// Already active.
	require.ErrorIs(t, e.Activate(ctx, a.ID, testSeller, 70), core.ErrPhaseViolation)
}

func TestAscendingBidding(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	// Before start.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 50)
	require.ErrorIs(t, err, core.ErrPhaseViolation)

	// First bid may equal the starting price.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.NoError(t, err)

	// Outbid must be strictly greater.
	_, err = e.PlaceBid(ctx, a.ID, "bob", 100, 210)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)
	_, err = e.PlaceBid(ctx, a.ID, "bob", 150, 210)
	require.NoError(t, err)

	// One active bid per bidder.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 200, 220)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Seller cannot bid.
	_, err = e.PlaceBid(ctx, a.ID, testSeller, 500, 220)
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	// Too early to resolve.
	_, err = e.Resolve(ctx, a.ID, 500)
	require.ErrorIs(t, err, core.ErrPhaseViolation)

	got, err := e.Resolve(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)

	s := settler.last(t)
	require.Equal(t, "bob", s.Winner)
	require.Equal(t, int64(150), s.WinningAmount)
	require.Equal(t, int64(143), s.SellerShare)
	require.Equal(t, int64(7), s.Commission)

	// Alice's losing hold is released.
	var refunded bool
	for _, tr := range s.Transfers {
		if tr.From == "alice" && tr.To == "alice" && tr.Amount == 100 {
			refunded = true
		}
	}
	require.True(t, refunded)

	// Resolution is final.
	_, err = e.Resolve(ctx, a.ID, 2000)
	require.ErrorIs(t, err, core.ErrPhaseViolation)
	_, err = e.PlaceBid(ctx, a.ID, "carol", 500, 2000)
	require.ErrorIs(t, err, core.ErrPhaseViolation)
}

func TestCommissionExactSplit(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 1000, 200)
	require.NoError(t, err)
	_, err = e.Resolve(ctx, a.ID, 1000)
	require.NoError(t, err)

	s := settler.last(t)
	require.Equal(t, int64(950), s.SellerShare)
	require.Equal(t, int64(50), s.Commission)
	require.Equal(t, s.WinningAmount, s.SellerShare+s.Commission)
}

func TestResolveNoSale(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	p := ascendingParams()
	p.Pricing.ReservePrice = 500
	a, err := e.Create(ctx, p, 50)
	require.NoError(t, err)

	// Below reserve.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	got, err := e.Resolve(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)

	s := settler.last(t)
	require.Empty(t, s.Winner)
	require.Equal(t, []Transfer{{From: testSeller, To: testSeller, Token: testAsset, Amount: 1}}, s.Transfers)
}

func TestBuyNowResolvesImmediately(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	p := ascendingParams()
	p.Pricing.AskPrice = 500
	a, err := e.Create(ctx, p, 50)
	require.NoError(t, err)

	_, err = e.PlaceBid(ctx, a.ID, "alice", 500, 200)
	require.NoError(t, err)

	got, err := e.GetAuction(ctx, a.ID, 201)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)
	require.Equal(t, "alice", settler.last(t).Winner)
}

func TestDescendingFirstBidWins(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	p := ascendingParams()
	p.Pricing = core.PricingParams{
		StartPrice:        1000,
		DiscountRate:      10,
		DiscountFrequency: 100,
	}
	a, err := e.Create(ctx, p, 50)
	require.NoError(t, err)

	// Two periods elapsed: quote is 800; an offer below it is rejected.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 799, 300)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	_, err = e.PlaceBid(ctx, a.ID, "alice", 800, 300)
	require.NoError(t, err)

	got, err := e.GetAuction(ctx, a.ID, 301)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)

	s := settler.last(t)
	require.Equal(t, "alice", s.Winner)
	require.Equal(t, int64(800), s.WinningAmount)
}

func TestAntiSnipeExtension(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	// Outside the window: no extension.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 900)
	require.NoError(t, err)
	got, err := e.GetAuction(ctx, a.ID, 900)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.EndTime)
	require.False(t, got.Extended)

	// Inside the window: end moves to now + window.
	bid, err := e.PlaceBid(ctx, a.ID, "bob", 150, 950)
	require.NoError(t, err)
	require.True(t, bid.Sniper)
	got, err = e.GetAuction(ctx, a.ID, 950)
	require.NoError(t, err)
	require.Equal(t, int64(1010), got.EndTime)
	require.True(t, got.Extended)

	// A sniper bid cannot be cancelled by its owner.
	err = e.CancelBid(ctx, a.ID, "bob", "bob", 960)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// The admin can force it out; the window does not re-arm for the admin.
	require.NoError(t, e.CancelBid(ctx, a.ID, "bob", testAdmin, 960))
	got, err = e.GetAuction(ctx, a.ID, 960)
	require.NoError(t, err)
	require.Equal(t, int64(1010), got.EndTime)
}

func TestAntiSnipeDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Extendable = false
	e, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	bid, err := e.PlaceBid(ctx, a.ID, "alice", 100, 950)
	require.NoError(t, err)
	require.False(t, bid.Sniper)
	got, err := e.GetAuction(ctx, a.ID, 950)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.EndTime)
}

func TestCancelBidAndRebid(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.NoError(t, err)

	err = e.CancelBid(ctx, a.ID, "alice", "bob", 210)
	require.ErrorIs(t, err, core.ErrNotAuthorized)

	require.NoError(t, e.CancelBid(ctx, a.ID, "alice", "alice", 210))

	// Nothing left to cancel.
	err = e.CancelBid(ctx, a.ID, "alice", "alice", 220)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// A cancelled bid no longer blocks a fresh one, and the cancelled
	// amount no longer sets the floor.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 230)
	require.NoError(t, err)
}

func TestCancelBidReArmsAntiSnipe(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.NoError(t, err)

	// Cancelling inside the window extends the auction all the same.
	require.NoError(t, e.CancelBid(ctx, a.ID, "alice", "alice", 970))
	got, err := e.GetAuction(ctx, a.ID, 970)
	require.NoError(t, err)
	require.Equal(t, int64(1030), got.EndTime)
	require.True(t, got.Extended)
}

func TestExtend(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)

	require.ErrorIs(t, e.Extend(ctx, a.ID, "stranger", 100, 200), core.ErrNotAuthorized)
	require.ErrorIs(t, e.Extend(ctx, a.ID, testSeller, 0, 200), core.ErrPreconditionFailed)
	require.NoError(t, e.Extend(ctx, a.ID, testSeller, 100, 200))

	got, err := e.GetAuction(ctx, a.ID, 200)
	require.NoError(t, err)
	require.Equal(t, int64(1100), got.EndTime)

	require.ErrorIs(t, e.Extend(ctx, a.ID, testSeller, 100, 2000), core.ErrPhaseViolation)
}

func TestExtendDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Extendable = false
	e, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	require.ErrorIs(t, e.Extend(ctx, a.ID, testSeller, 100, 200), core.ErrPreconditionFailed)
}

func TestCancelAuction(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.NoError(t, err)

	// Seller cannot cancel once a qualifying bid exists.
	err = e.CancelAuction(ctx, a.ID, testSeller, 210)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Admin can; all holds release, asset returns to seller.
	require.NoError(t, e.CancelAuction(ctx, a.ID, testAdmin, 210))
	got, err := e.GetAuction(ctx, a.ID, 210)
	require.NoError(t, err)
	require.Equal(t, core.PhaseCancelled, got.Phase)

	s := settler.last(t)
	require.Empty(t, s.Winner)
	require.Contains(t, s.Transfers, Transfer{From: testSeller, To: testSeller, Token: testAsset, Amount: 1})
	require.Contains(t, s.Transfers, Transfer{From: "alice", To: "alice", Token: testToken, Amount: 100})

	// Terminal: no further mutation.
	_, err = e.Resolve(ctx, a.ID, 2000)
	require.ErrorIs(t, err, core.ErrPhaseViolation)
	_, err = e.PlaceBid(ctx, a.ID, "bob", 500, 300)
	require.ErrorIs(t, err, core.ErrPhaseViolation)
}

func sealedParams() CreateParams {
	p := ascendingParams()
	p.SealedBid = true
	p.SealedDeposit = 25
	p.RevealWindow = 100
	return p
}

func TestSealedBidLifecycle(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, sealedParams(), 50)
	require.NoError(t, err)

	// Open bids are rejected on a sealed auction, and vice versa.
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	secret := []byte("alice-nonce")
	digest, err := core.ComputeCommitment(a.ID, "alice", 400, secret)
	require.NoError(t, err)

	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", digest[:10], 200)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", digest, 200)
	require.NoError(t, err)

	// A second commitment for the same bidder is refused.
	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", digest, 210)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	bobSecret := []byte("bob-nonce")
	bobDigest, err := core.ComputeCommitment(a.ID, "bob", 300, bobSecret)
	require.NoError(t, err)
	_, err = e.PlaceSealedBid(ctx, a.ID, "bob", bobDigest, 220)
	require.NoError(t, err)

	// No reveals while bidding runs.
	_, err = e.RevealBid(ctx, a.ID, "alice", 400, secret, 500)
	require.ErrorIs(t, err, core.ErrPhaseViolation)

	// Resolution waits for the reveal deadline.
	_, err = e.Resolve(ctx, a.ID, 1050)
	require.ErrorIs(t, err, core.ErrPhaseViolation)

	// Wrong amount: rejected, nothing consumed.
	_, err = e.RevealBid(ctx, a.ID, "alice", 401, secret, 1010)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Correct material verifies and consumes the commitment.
	bid, err := e.RevealBid(ctx, a.ID, "alice", 400, secret, 1020)
	require.NoError(t, err)
	require.Equal(t, core.BidStatusRevealed, bid.Status)
	require.Equal(t, int64(400), bid.Amount)

	// Consume-once: even the correct material cannot verify again.
	_, err = e.RevealBid(ctx, a.ID, "alice", 400, secret, 1030)
	require.ErrorIs(t, err, core.ErrPreconditionFailed)

	// Bob never reveals. Past the deadline the auction resolves: alice
	// wins, her deposit refunds, bob's forfeits to the admin.
	_, err = e.RevealBid(ctx, a.ID, "bob", 300, bobSecret, 1101)
	require.ErrorIs(t, err, core.ErrPhaseViolation)

	got, err := e.Resolve(ctx, a.ID, 1101)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)

	s := settler.last(t)
	require.Equal(t, "alice", s.Winner)
	require.Equal(t, int64(400), s.WinningAmount)
	require.Contains(t, s.Transfers, Transfer{From: "alice", To: "alice", Token: testToken, Amount: 25})
	require.Contains(t, s.Transfers, Transfer{From: "bob", To: testAdmin, Token: testToken, Amount: 25})

	rejected := 0
	for _, b := range got.Bids {
		if b.Status == core.BidStatusRejected {
			rejected++
		}
	}
	require.Equal(t, 1, rejected)
}

func TestSealedBidCancelClearsCommitment(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, sealedParams(), 50)
	require.NoError(t, err)

	digest, err := core.ComputeCommitment(a.ID, "alice", 400, []byte("n1"))
	require.NoError(t, err)
	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", digest, 200)
	require.NoError(t, err)

	// Cancel clears the vault entry, so a replacement commitment lands.
	require.NoError(t, e.CancelBid(ctx, a.ID, "alice", "alice", 210))
	digest2, err := core.ComputeCommitment(a.ID, "alice", 450, []byte("n2"))
	require.NoError(t, err)
	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", digest2, 220)
	require.NoError(t, err)
}

func TestSettlementFailureLeavesAuctionEnded(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 1000, 200)
	require.NoError(t, err)

	settler.failures = 1
	_, err = e.Resolve(ctx, a.ID, 1000)
	require.ErrorIs(t, err, core.ErrSettlementFailed)

	// Nothing committed: still ended, retry succeeds.
	got, err := e.GetAuction(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.Equal(t, core.PhaseEnded, got.Phase)

	got, err = e.Resolve(ctx, a.ID, 1001)
	require.NoError(t, err)
	require.Equal(t, core.PhaseResolved, got.Phase)
	require.Equal(t, "alice", settler.last(t).Winner)
}

func TestCircuitBreaker(t *testing.T) {
	e, _, breaker := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 100, 200)
	require.NoError(t, err)

	breaker.SetPaused(true)

	_, err = e.Create(ctx, ascendingParams(), 210)
	require.ErrorIs(t, err, core.ErrPaused)
	_, err = e.PlaceBid(ctx, a.ID, "bob", 150, 210)
	require.ErrorIs(t, err, core.ErrPaused)
	_, err = e.Resolve(ctx, a.ID, 1000)
	require.ErrorIs(t, err, core.ErrPaused)
	require.ErrorIs(t, e.CancelBid(ctx, a.ID, "alice", "alice", 210), core.ErrPaused)

	// Reads still work, and the admin retains emergency cancellation.
	_, err = e.GetAuction(ctx, a.ID, 210)
	require.NoError(t, err)
	require.NoError(t, e.CancelAuction(ctx, a.ID, testAdmin, 210))

	breaker.SetPaused(false)
	_, err = e.Create(ctx, ascendingParams(), 220)
	require.NoError(t, err)
}

func TestListAuctions(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	first, err := e.Create(ctx, ascendingParams(), 10)
	require.NoError(t, err)
	second, err := e.Create(ctx, ascendingParams(), 20)
	require.NoError(t, err)

	list, err := e.ListAuctions(ctx, 150)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)
	require.Equal(t, core.PhaseActive, list[0].Phase)
}

func TestJournalSettler(t *testing.T) {
	store, err := badger.NewDatastore(t.TempDir(), &badger.DefaultOptions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	settler := NewJournalSettler(store)
	e, err := New(store, settler, nil, defaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	a, err := e.Create(ctx, ascendingParams(), 50)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, a.ID, "alice", 1000, 200)
	require.NoError(t, err)

	_, err = settler.Settlement(ctx, a.ID)
	require.ErrorIs(t, err, ErrSettlementNotFound)

	_, err = e.Resolve(ctx, a.ID, 1000)
	require.NoError(t, err)

	s, err := settler.Settlement(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", s.Winner)
	require.Equal(t, int64(950), s.SellerShare)
	require.Equal(t, int64(50), s.Commission)

	// Re-journaling the same settlement is idempotent; a different one
	// for the same auction is refused.
	require.NoError(t, settler.Settle(ctx, *s))
	conflict := *s
	conflict.Commission++
	require.Error(t, settler.Settle(ctx, conflict))
}

func TestTieBreakEarliestWins(t *testing.T) {
	e, settler, _ := newTestEngine(t, defaultConfig())
	ctx := context.Background()

	// Sealed auctions are where equal amounts can coexist, since open
	// ascending bids must strictly exceed the leader.
	a, err := e.Create(ctx, sealedParams(), 50)
	require.NoError(t, err)

	d1, err := core.ComputeCommitment(a.ID, "alice", 300, []byte("n1"))
	require.NoError(t, err)
	d2, err := core.ComputeCommitment(a.ID, "bob", 300, []byte("n2"))
	require.NoError(t, err)
	_, err = e.PlaceSealedBid(ctx, a.ID, "alice", d1, 200)
	require.NoError(t, err)
	_, err = e.PlaceSealedBid(ctx, a.ID, "bob", d2, 300)
	require.NoError(t, err)

	_, err = e.RevealBid(ctx, a.ID, "bob", 300, []byte("n2"), 1010)
	require.NoError(t, err)
	_, err = e.RevealBid(ctx, a.ID, "alice", 300, []byte("n1"), 1020)
	require.NoError(t, err)

	_, err = e.Resolve(ctx, a.ID, 1101)
	require.NoError(t, err)

	// Alice placed first; reveal order does not matter.
	require.Equal(t, "alice", settler.last(t).Winner)
}
