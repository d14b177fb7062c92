// Package httpapi exposes the auction engine over HTTP for operators and
// integration tests. The ledger clock stays caller-supplied: every mutating
// request may carry a "time" field, defaulting to the host wall clock.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	golog "github.com/textileio/go-log/v2"

	"github.com/litemart-io/auctioncore/core"
	"github.com/litemart-io/auctioncore/engine"
	"github.com/litemart-io/auctioncore/receipt"
)

var log = golog.Logger("auctioncore/api")

// Service provides scoped access to the auction engine.
type Service interface {
	Create(ctx context.Context, p engine.CreateParams, now int64) (*core.Auction, error)
	Activate(ctx context.Context, auctionID, caller string, now int64) error
	PlaceBid(ctx context.Context, auctionID, bidder string, amount, now int64) (*core.Bid, error)
	PlaceSealedBid(ctx context.Context, auctionID, bidder string, digest []byte, now int64) (*core.Bid, error)
	RevealBid(ctx context.Context, auctionID, bidder string, amount int64, secret []byte, now int64) (*core.Bid, error)
	CancelBid(ctx context.Context, auctionID, bidder, caller string, now int64) error
	CancelAuction(ctx context.Context, auctionID, caller string, now int64) error
	Extend(ctx context.Context, auctionID, caller string, delta, now int64) error
	Resolve(ctx context.Context, auctionID string, now int64) (*core.Auction, error)
	GetAuction(ctx context.Context, auctionID string, now int64) (*core.Auction, error)
	ListAuctions(ctx context.Context, now int64) ([]*core.Auction, error)
	// Receipt returns the signed settlement receipt for a closed auction.
	Receipt(ctx context.Context, auctionID string) ([]byte, error)
	SetPaused(paused bool)
}

// NewServer returns a started http server exposing the engine.
func NewServer(listenAddr string, service Service) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           createMux(service),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("stopping http server: %s", err)
		}
	}()

	log.Infof("http server started at %s", listenAddr)
	return httpServer, nil
}

func createMux(service Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/pause", pauseHandler(service, true)).Methods(http.MethodPut)
	r.HandleFunc("/resume", pauseHandler(service, false)).Methods(http.MethodPut)
	r.HandleFunc("/auctions", listAuctionsHandler(service)).Methods(http.MethodGet)
	r.HandleFunc("/auctions", createAuctionHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}", getAuctionHandler(service)).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}/activate", activateHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/bids", placeBidHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/bids/{bidder}", cancelBidHandler(service)).Methods(http.MethodDelete)
	r.HandleFunc("/auctions/{id}/reveal", revealHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/extend", extendHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/resolve", resolveHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/cancel", cancelAuctionHandler(service)).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/receipt", receiptHandler(service)).Methods(http.MethodGet)
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func pauseHandler(service Service, paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		service.SetPaused(paused)
		w.WriteHeader(http.StatusOK)
	}
}

type createRequest struct {
	Seller      string `json:"seller"`
	AssetToken  string `json:"asset_token"`
	AssetAmount int64  `json:"asset_amount"`
	MarketToken string `json:"market_token"`
	StartTime   int64  `json:"start_time,omitempty"`
	Duration    int64  `json:"duration"`

	StartPrice        int64 `json:"start_price,omitempty"`
	ReservePrice      int64 `json:"reserve_price,omitempty"`
	AskPrice          int64 `json:"ask_price,omitempty"`
	DiscountRate      int64 `json:"discount_rate,omitempty"`
	DiscountFrequency int64 `json:"discount_frequency,omitempty"`
	Compounded        bool  `json:"compounded,omitempty"`

	SealedBid     bool  `json:"sealed_bid,omitempty"`
	SealedDeposit int64 `json:"sealed_deposit,omitempty"`
	RevealWindow  int64 `json:"reveal_window,omitempty"`

	Time int64 `json:"time,omitempty"`
}

func createAuctionHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if !decodeBody(w, r, &req) {
			return
		}
		a, err := service.Create(r.Context(), engine.CreateParams{
			Seller:      req.Seller,
			Asset:       core.Asset{Token: req.AssetToken, Amount: req.AssetAmount},
			MarketToken: req.MarketToken,
			StartTime:   req.StartTime,
			Duration:    req.Duration,
			Pricing: core.PricingParams{
				StartPrice:        req.StartPrice,
				ReservePrice:      req.ReservePrice,
				AskPrice:          req.AskPrice,
				DiscountRate:      req.DiscountRate,
				DiscountFrequency: req.DiscountFrequency,
				Compounded:        req.Compounded,
			},
			SealedBid:     req.SealedBid,
			SealedDeposit: req.SealedDeposit,
			RevealWindow:  req.RevealWindow,
		}, ledgerTime(req.Time))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func getAuctionHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := service.GetAuction(r.Context(), mux.Vars(r)["id"], queryTime(r))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func listAuctionsHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctions, err := service.ListAuctions(r.Context(), queryTime(r))
		if err != nil {
			serviceError(w, err)
			return
		}
		if auctions == nil {
			auctions = []*core.Auction{}
		}
		writeJSON(w, http.StatusOK, auctions)
	}
}

type bidRequest struct {
	Bidder string `json:"bidder"`
	Amount int64  `json:"amount,omitempty"`
	// Digest is the hex sealed-bid commitment; its presence selects the
	// sealed protocol.
	Digest string `json:"digest,omitempty"`
	Time   int64  `json:"time,omitempty"`
}

func placeBidHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bidRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := mux.Vars(r)["id"]
		now := ledgerTime(req.Time)

		var bid *core.Bid
		var err error
		if req.Digest != "" {
			var digest []byte
			digest, err = hex.DecodeString(req.Digest)
			if err != nil {
				httpError(w, fmt.Sprintf("decoding digest: %s", err), http.StatusBadRequest)
				return
			}
			bid, err = service.PlaceSealedBid(r.Context(), id, req.Bidder, digest, now)
		} else {
			bid, err = service.PlaceBid(r.Context(), id, req.Bidder, req.Amount, now)
		}
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bid)
	}
}

type revealRequest struct {
	Bidder string `json:"bidder"`
	Amount int64  `json:"amount"`
	Secret string `json:"secret"` // hex
	Time   int64  `json:"time,omitempty"`
}

func revealHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revealRequest
		if !decodeBody(w, r, &req) {
			return
		}
		secret, err := hex.DecodeString(req.Secret)
		if err != nil {
			httpError(w, fmt.Sprintf("decoding secret: %s", err), http.StatusBadRequest)
			return
		}
		bid, err := service.RevealBid(r.Context(), mux.Vars(r)["id"], req.Bidder, req.Amount, secret, ledgerTime(req.Time))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bid)
	}
}

func cancelBidHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		caller := r.URL.Query().Get("caller")
		if caller == "" {
			caller = vars["bidder"]
		}
		err := service.CancelBid(r.Context(), vars["id"], vars["bidder"], caller, queryTime(r))
		if err != nil {
			serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type callerRequest struct {
	Caller string `json:"caller"`
	Delta  int64  `json:"delta,omitempty"`
	Time   int64  `json:"time,omitempty"`
}

func activateHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := service.Activate(r.Context(), mux.Vars(r)["id"], req.Caller, ledgerTime(req.Time)); err != nil {
			serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func extendHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := service.Extend(r.Context(), mux.Vars(r)["id"], req.Caller, req.Delta, ledgerTime(req.Time)); err != nil {
			serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func cancelAuctionHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := service.CancelAuction(r.Context(), mux.Vars(r)["id"], req.Caller, ledgerTime(req.Time)); err != nil {
			serviceError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func resolveHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		a, err := service.Resolve(r.Context(), mux.Vars(r)["id"], ledgerTime(req.Time))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type receiptResponse struct {
	AuctionID string `json:"auction_id"`
	// Receipt is the base64 COSE_Sign1 envelope over the settlement.
	Receipt string `json:"receipt"`
}

func receiptHandler(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		env, err := service.Receipt(r.Context(), id)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, receiptResponse{
			AuctionID: id,
			Receipt:   base64.StdEncoding.EncodeToString(env),
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		httpError(w, "missing request body", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, fmt.Sprintf("decoding body: %s", err), http.StatusBadRequest)
		return false
	}
	return true
}

// ledgerTime defaults a zero request time to the host wall clock.
func ledgerTime(t int64) int64 {
	if t == 0 {
		return time.Now().Unix()
	}
	return t
}

func queryTime(r *http.Request) int64 {
	var t int64
	if raw := r.URL.Query().Get("time"); raw != "" {
		_, _ = fmt.Sscan(raw, &t)
	}
	return ledgerTime(t)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write failed: %v", err)
	}
}

func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAuctionNotFound), errors.Is(err, receipt.ErrReceiptNotFound):
		httpError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrNotAuthorized):
		httpError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, core.ErrPhaseViolation):
		httpError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, core.ErrPreconditionFailed), errors.Is(err, core.ErrArithmeticFault):
		httpError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrPaused):
		httpError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrSettlementFailed):
		httpError(w, err.Error(), http.StatusBadGateway)
	default:
		httpError(w, err.Error(), http.StatusInternalServerError)
	}
}

func httpError(w http.ResponseWriter, msg string, status int) {
	log.Debugf("request error: %s", msg)
	http.Error(w, msg, status)
}
