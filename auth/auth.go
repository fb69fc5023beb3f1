// Package auth turns secp256k1 signatures into verified principals.
//
// A party is identified by the SHA-256 of its compressed public key,
// expressed as a 32-byte account address. Every mutating ledger operation
// takes a Principal, and the only way to obtain a valid one is Verify.
package auth

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/gagliardetto/solana-go"
)

// domainTag separates action digests from any other signed payload.
const domainTag = "optifreight/v1|"

// PrivateKeySize is the length of a serialized private key scalar.
const PrivateKeySize = 32

// Key is a signing key pair.
type Key struct {
	priv *ec.PrivateKey
}

// NewKey generates a random key.
func NewKey() (*Key, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("auth: generate key: %w", err)
	}
	return &Key{priv: priv}, nil
}

// KeyFromBytes restores a key from its 32-byte scalar.
func KeyFromBytes(b []byte) (*Key, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, PrivateKeySize, len(b))
	}
	priv, _ := ec.PrivateKeyFromBytes(b)
	if priv == nil || priv.D.Sign() == 0 {
		return nil, ErrInvalidKey
	}
	return &Key{priv: priv}, nil
}

// Bytes returns the 32-byte private scalar.
func (k *Key) Bytes() []byte {
	return k.priv.D.FillBytes(make([]byte, PrivateKeySize))
}

// PublicKey returns the compressed public key.
func (k *Key) PublicKey() []byte {
	return k.priv.PubKey().Compressed()
}

// Address returns the account address controlled by this key.
func (k *Key) Address() solana.PublicKey {
	return AddressOf(k.priv.PubKey())
}

// Sign produces a proof that the key holder authorizes action.
func (k *Key) Sign(action string) (*Proof, error) {
	sig, err := k.priv.Sign(actionDigest(action))
	if err != nil {
		return nil, fmt.Errorf("auth: sign %q: %w", action, err)
	}
	return &Proof{PubKey: k.priv.PubKey(), Signature: sig}, nil
}

// Authorize signs and verifies action in one step. Used by local callers
// that hold the key themselves.
func (k *Key) Authorize(action string) (Principal, error) {
	proof, err := k.Sign(action)
	if err != nil {
		return Principal{}, err
	}
	return Verify(proof, action)
}

// AddressOf derives the account address of a public key.
func AddressOf(pub *ec.PublicKey) solana.PublicKey {
	return solana.PublicKeyFromBytes(bsvhash.Sha256(pub.Compressed()))
}

// Proof is a signature over an action digest.
type Proof struct {
	PubKey    *ec.PublicKey
	Signature *ec.Signature
}

// Principal is a caller whose authority over Address has been verified.
// The zero value is not valid.
type Principal struct {
	addr     solana.PublicKey
	action   string
	verified bool
}

// Verify checks proof against action and returns the proven principal.
func Verify(proof *Proof, action string) (Principal, error) {
	if proof == nil || proof.PubKey == nil || proof.Signature == nil {
		return Principal{}, ErrNilProof
	}
	if !proof.Signature.Verify(actionDigest(action), proof.PubKey) {
		return Principal{}, fmt.Errorf("%w: action %q", ErrInvalidSignature, action)
	}
	return Principal{addr: AddressOf(proof.PubKey), action: action, verified: true}, nil
}

// Address returns the proven account address.
func (p Principal) Address() solana.PublicKey { return p.addr }

// Action returns the action the proof was made for.
func (p Principal) Action() string { return p.action }

// Valid reports whether p came from a successful Verify.
func (p Principal) Valid() bool { return p.verified }

// Is reports whether p is valid and controls addr.
func (p Principal) Is(addr solana.PublicKey) bool {
	return p.verified && p.addr.Equals(addr)
}

func actionDigest(action string) []byte {
	return bsvhash.Sha256([]byte(domainTag + action))
}
