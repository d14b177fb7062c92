// Package receipt issues and verifies signed settlement receipts. Each
// resolved or cancelled auction yields a COSE_Sign1 envelope over the
// canonically encoded settlement, so the party executing transfers out of
// band can prove what the engine decided without trusting the transport.
package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/litemart-io/auctioncore/engine"
)

// receiptEnc encodes payloads deterministically so re-issuing a receipt for
// the same settlement signs identical bytes.
var receiptEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	receiptEnc = em
}

// Issuer signs settlement receipts with an ECDSA P-256 key.
type Issuer struct {
	key    *ecdsa.PrivateKey
	signer cose.Signer
}

// NewIssuer returns an Issuer for the given key.
func NewIssuer(key *ecdsa.PrivateKey) (*Issuer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}
	return &Issuer{key: key, signer: signer}, nil
}

// PublicKey returns the verification key for receipts from this issuer.
func (i *Issuer) PublicKey() *ecdsa.PublicKey {
	return &i.key.PublicKey
}

// Issue signs the settlement and returns the COSE_Sign1 envelope bytes.
func (i *Issuer) Issue(s engine.Settlement) ([]byte, error) {
	payload, err := receiptEnc.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encoding settlement: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, i.signer); err != nil {
		return nil, fmt.Errorf("signing receipt: %w", err)
	}
	out, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encoding receipt: %w", err)
	}
	return out, nil
}

// Verify checks the envelope signature against the issuer's public key and
// returns the settlement it covers.
func Verify(receiptBytes []byte, pub *ecdsa.PublicKey) (*engine.Settlement, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(receiptBytes); err != nil {
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}
	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("creating verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("receipt signature verification failed: %w", err)
	}

	s := &engine.Settlement{}
	if err := cbor.Unmarshal(msg.Payload, s); err != nil {
		return nil, fmt.Errorf("decoding settlement: %w", err)
	}
	return s, nil
}

// GenerateKey returns a fresh P-256 signing key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// LoadOrCreateKey reads a PEM-encoded signing key from path, generating and
// persisting one if the file does not exist.
func LoadOrCreateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		key, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("encoding key: %w", err)
		}
		raw := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, fmt.Errorf("writing key: %w", err)
		}
		return key, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("no EC private key found in %s", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	return key, nil
}
