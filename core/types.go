package core

// Phase is the lifecycle phase of an auction. Transitions are monotonic:
// a phase is never revisited once left.
type Phase int

const (
	// PhaseCreated indicates the auction exists but has not started accepting bids.
	PhaseCreated Phase = iota
	// PhaseActive indicates the auction is accepting bids.
	PhaseActive
	// PhaseEnded indicates bidding time has elapsed and the auction awaits resolution.
	PhaseEnded
	// PhaseResolved indicates a winner (or no sale) was determined and funds settled.
	PhaseResolved
	// PhaseCancelled indicates the auction was aborted with no winner.
	PhaseCancelled
)

var phaseStrings = map[Phase]string{
	PhaseCreated:   "created",
	PhaseActive:    "active",
	PhaseEnded:     "ended",
	PhaseResolved:  "resolved",
	PhaseCancelled: "cancelled",
}

var phaseByString map[string]Phase

func init() {
	phaseByString = make(map[string]Phase)
	for p, s := range phaseStrings {
		phaseByString[s] = p
	}
}

// String returns a string-encoded phase.
func (p Phase) String() string {
	if s, exists := phaseStrings[p]; exists {
		return s
	}
	return "invalid"
}

// PhaseByString finds a phase by its string representation.
func PhaseByString(s string) (Phase, bool) {
	p, exists := phaseByString[s]
	return p, exists
}

// BidStatus is the status of a Bid.
type BidStatus int

const (
	// BidStatusActive indicates the bid is competing. Sealed bids stay
	// active (with a zero amount) until revealed.
	BidStatusActive BidStatus = iota
	// BidStatusCancelled indicates the bidder withdrew the bid. A cancelled
	// bid never transitions back to active.
	BidStatusCancelled
	// BidStatusRevealed indicates a sealed bid whose amount was disclosed
	// and verified against its commitment.
	BidStatusRevealed
	// BidStatusRejected indicates a sealed bid that was never revealed
	// before the resolution deadline.
	BidStatusRejected
)

var bidStatusStrings = map[BidStatus]string{
	BidStatusActive:    "active",
	BidStatusCancelled: "cancelled",
	BidStatusRevealed:  "revealed",
	BidStatusRejected:  "rejected",
}

// String returns a string-encoded bid status.
func (s BidStatus) String() string {
	if str, exists := bidStatusStrings[s]; exists {
		return str
	}
	return "invalid"
}

// Bid is one bidder's offer on one auction.
type Bid struct {
	ID     string    `cbor:"id" json:"id"`
	Bidder string    `cbor:"bidder" json:"bidder"`
	Status BidStatus `cbor:"status" json:"status"`

	// Amount is in the ledger's native minor units. Zero while a sealed
	// bid is unrevealed.
	Amount int64 `cbor:"amount" json:"amount"`

	// Sealed marks a commitment-backed bid; the amount is hidden in the
	// vault until revealed.
	Sealed bool `cbor:"sealed,omitempty" json:"sealed,omitempty"`

	// Sniper marks a bid placed inside the anti-snipe window. Sniper bids
	// cannot be cancelled by their owner.
	Sniper bool `cbor:"sniper,omitempty" json:"sniper,omitempty"`

	PlacedAt   int64 `cbor:"placed_at" json:"placed_at"`
	RevealedAt int64 `cbor:"revealed_at,omitempty" json:"revealed_at,omitempty"`
}

// Competing reports whether the bid counts toward the per-bidder
// at-most-one-active-bid invariant and toward winner selection.
func (b *Bid) Competing() bool {
	return b.Status == BidStatusActive || b.Status == BidStatusRevealed
}

// Priced reports whether the bid has a usable amount for price comparison.
// Sealed bids only gain an amount once revealed.
func (b *Bid) Priced() bool {
	if !b.Competing() {
		return false
	}
	return !b.Sealed || b.Status == BidStatusRevealed
}

// Asset identifies what is being sold: an amount of a token.
type Asset struct {
	Token  string `cbor:"token" json:"token"`
	Amount int64  `cbor:"amount" json:"amount"`
}

// PricingParams are the immutable pricing-behavior parameters of one auction.
// Set at creation, frozen once the auction starts.
type PricingParams struct {
	// StartPrice is the quote before any bid (ascending) or the price the
	// discount curve decays from (descending).
	StartPrice int64 `cbor:"start_price" json:"start_price"`

	// ReservePrice is the minimum winning amount; zero means no reserve.
	ReservePrice int64 `cbor:"reserve_price" json:"reserve_price"`

	// AskPrice is the buy-now price for ascending auctions; zero disables.
	AskPrice int64 `cbor:"ask_price" json:"ask_price"`

	// DiscountRate is the percent deducted per interval. Non-zero rate and
	// frequency together select the descending behavior.
	DiscountRate      int64 `cbor:"discount_rate" json:"discount_rate"`
	DiscountFrequency int64 `cbor:"discount_frequency" json:"discount_frequency"`

	// Compounded applies the discount multiplicatively per interval instead
	// of linearly.
	Compounded bool `cbor:"compounded" json:"compounded"`
}

// Auction is one item offered for timed sale. The record exclusively owns
// its bid set and pricing parameters.
type Auction struct {
	ID     string `cbor:"id" json:"id"`
	Seller string `cbor:"seller" json:"seller"`
	Asset  Asset  `cbor:"asset" json:"asset"`

	// MarketToken is the currency bids are denominated in.
	MarketToken string `cbor:"market_token" json:"market_token"`

	Phase Phase `cbor:"phase" json:"phase"`

	// Extended is set when the anti-snipe guard pushed EndTime forward; the
	// externally visible phase stays active.
	Extended bool `cbor:"extended,omitempty" json:"extended,omitempty"`

	StartTime int64 `cbor:"start_time" json:"start_time"`
	EndTime   int64 `cbor:"end_time" json:"end_time"`

	Pricing PricingParams `cbor:"pricing" json:"pricing"`

	// SealedBid enables the commitment/reveal protocol. Ascending only.
	SealedBid bool `cbor:"sealed_bid,omitempty" json:"sealed_bid,omitempty"`
	// SealedDeposit is the amount held per sealed bid, refunded on reveal.
	SealedDeposit int64 `cbor:"sealed_deposit,omitempty" json:"sealed_deposit,omitempty"`
	// RevealWindow is how long past EndTime reveals are accepted.
	RevealWindow int64 `cbor:"reveal_window,omitempty" json:"reveal_window,omitempty"`

	// Admin settings snapshotted at creation so retroactive config changes
	// never affect an in-flight auction.
	CommissionRate  int64 `cbor:"commission_rate" json:"commission_rate"`
	AntiSnipeWindow int64 `cbor:"anti_snipe_window" json:"anti_snipe_window"`
	Extendable      bool  `cbor:"extendable" json:"extendable"`

	Bids []Bid `cbor:"bids" json:"bids"`

	CreatedAt int64 `cbor:"created_at" json:"created_at"`
	UpdatedAt int64 `cbor:"updated_at" json:"updated_at"`
}

// EffectivePhase computes the phase as observed at the given ledger time.
// Time-driven transitions are evaluated lazily: an auction with no activity
// past its end time remains stored as active until the next touching
// operation, but every observer sees the effective phase.
func (a *Auction) EffectivePhase(now int64) Phase {
	p := a.Phase
	if p == PhaseCreated && now >= a.StartTime {
		p = PhaseActive
	}
	if p == PhaseActive && now >= a.EndTime {
		p = PhaseEnded
	}
	return p
}

// RevealDeadline is the ledger time after which sealed bids can no longer be
// revealed and the auction may be resolved.
func (a *Auction) RevealDeadline() int64 {
	if !a.SealedBid {
		return a.EndTime
	}
	return a.EndTime + a.RevealWindow
}
