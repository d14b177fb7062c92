// Package engine implements the timed-auction state machine. Every public
// operation executes as one atomic step against the backing datastore: it
// either commits all of its effects or none. The engine never reads wall
// clock time; callers supply the current ledger time per operation.
package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	ds "github.com/ipfs/go-datastore"
	"github.com/oklog/ulid/v2"
	golog "github.com/textileio/go-log/v2"

	"github.com/litemart-io/auctioncore/core"
)

var (
	log = golog.Logger("auctioncore/engine")

	// ErrAuctionNotFound indicates the requested auction was not found.
	ErrAuctionNotFound = errors.New("auction not found")
)

// Transfer is one fund or asset movement instruction. The settlement
// collaborator holds all custody; From identifies the account whose held
// funds are released, To the recipient. A refund has From == To.
type Transfer struct {
	From   string
	To     string
	Token  string
	Amount int64
}

// Settlement is the complete set of movements for closing one auction. The
// engine only decides what should move and how much commission to deduct;
// executing the movements atomically is the collaborator's job.
type Settlement struct {
	AuctionID     string
	Winner        string // empty for no sale or cancellation
	WinningAmount int64
	SellerShare   int64
	Commission    int64
	Transfers     []Transfer
}

// Settler executes fund and asset transfers. Settle must be atomic: either
// all transfers happen or none, in which case it returns an error and the
// engine rolls the resolution back.
//
// Settle runs while the engine's transaction is still open, so its side
// effects can outlive a resolution whose commit then fails: the auction
// stays ended while a settlement record already exists. Implementations
// must therefore tolerate a retried Settle for the same settlement, and the
// retry converges because the settlement content is deterministic.
type Settler interface {
	Settle(ctx context.Context, s Settlement) error
}

// CircuitBreaker gates all state-mutating operations.
type CircuitBreaker interface {
	Paused() bool
}

// AdminConfig supplies marketplace settings. The engine snapshots them into
// each auction at creation so later changes never affect in-flight auctions.
type AdminConfig interface {
	// Admin is the account receiving commission and forfeited deposits,
	// and the only caller allowed to force-cancel.
	Admin() string
	AntiSnipeWindow() int64
	CommissionRate() int64
	RevealWindow() int64
	ExtendableAuctions() bool
}

// StaticConfig is a fixed AdminConfig.
type StaticConfig struct {
	AdminAccount string
	AntiSnipe    int64
	Commission   int64
	Reveal       int64
	Extendable   bool
}

func (c StaticConfig) Admin() string            { return c.AdminAccount }
func (c StaticConfig) AntiSnipeWindow() int64   { return c.AntiSnipe }
func (c StaticConfig) CommissionRate() int64    { return c.Commission }
func (c StaticConfig) RevealWindow() int64      { return c.Reveal }
func (c StaticConfig) ExtendableAuctions() bool { return c.Extendable }

// Breaker is a CircuitBreaker that can be flipped at runtime.
type Breaker struct {
	paused atomic.Bool
}

func (b *Breaker) Paused() bool          { return b.paused.Load() }
func (b *Breaker) SetPaused(paused bool) { b.paused.Store(paused) }

type neverPaused struct{}

func (neverPaused) Paused() bool { return false }

// Engine orchestrates auction phase transitions, delegating pricing to the
// core strategies and fund movement to the settlement collaborator.
type Engine struct {
	store   ds.TxnDatastore
	settler Settler
	breaker CircuitBreaker
	cfg     AdminConfig
}

// New returns a new Engine. A nil breaker means never paused.
func New(store ds.TxnDatastore, settler Settler, breaker CircuitBreaker, cfg AdminConfig) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if settler == nil {
		return nil, errors.New("settler is required")
	}
	if cfg == nil {
		return nil, errors.New("admin config is required")
	}
	if breaker == nil {
		breaker = neverPaused{}
	}
	return &Engine{store: store, settler: settler, breaker: breaker, cfg: cfg}, nil
}

func (e *Engine) checkPaused() error {
	if e.breaker.Paused() {
		return core.ErrPaused
	}
	return nil
}

func (e *Engine) isAdmin(caller string) bool {
	return caller != "" && caller == e.cfg.Admin()
}

// newAuctionID returns a fresh lowercase ULID stamped with the ledger time.
// Times outside the ULID timestamp range are rejected rather than wrapped.
func newAuctionID(now int64) (string, error) {
	if now < 0 || uint64(now) > ulid.MaxTime()/1000 {
		return "", fmt.Errorf("%w: ledger time %d out of range", core.ErrPreconditionFailed, now)
	}
	id, err := ulid.New(uint64(now)*1000, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generating id: %v", err)
	}
	return strings.ToLower(id.String()), nil
}

// newTxn opens a read-write transaction against the store.
func (e *Engine) newTxn(ctx context.Context) (ds.Txn, error) {
	txn, err := e.store.NewTransaction(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("creating txn: %v", err)
	}
	return txn, nil
}
