package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DigestSize is the length in bytes of a sealed-bid commitment digest.
const DigestSize = sha256.Size

// canonicalEnc is the deterministic CBOR mode used for commitment material.
// Canonical encoding guarantees exactly one byte representation per input,
// so no two encodings of the same material can map to different digests.
var canonicalEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	canonicalEnc = em
}

// commitmentMaterial is the canonical encoding layout of a sealed bid.
// Binding the auction id and bidder into the digest prevents replaying a
// commitment across auctions or bidders.
type commitmentMaterial struct {
	AuctionID string `cbor:"1,keyasint"`
	Bidder    string `cbor:"2,keyasint"`
	Amount    int64  `cbor:"3,keyasint"`
	Secret    []byte `cbor:"4,keyasint"`
}

// ComputeCommitment computes the sealed-bid digest:
// SHA-256 over the canonical CBOR encoding of (auction id, bidder, amount, secret).
func ComputeCommitment(auctionID, bidder string, amount int64, secret []byte) ([]byte, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive sealed amount %d", ErrPreconditionFailed, amount)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty commitment secret", ErrPreconditionFailed)
	}
	data, err := canonicalEnc.Marshal(commitmentMaterial{
		AuctionID: auctionID,
		Bidder:    bidder,
		Amount:    amount,
		Secret:    secret,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding commitment material: %w", err)
	}
	digest := sha256.Sum256(data)
	return digest[:], nil
}

// VerifyCommitment recomputes the digest from revealed material and compares
// it to the stored digest in constant time.
func VerifyCommitment(stored []byte, auctionID, bidder string, amount int64, secret []byte) (bool, error) {
	if len(stored) != DigestSize {
		return false, fmt.Errorf("%w: stored digest has invalid length %d", ErrPreconditionFailed, len(stored))
	}
	computed, err := ComputeCommitment(auctionID, bidder, amount, secret)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(stored, computed) == 1, nil
}
