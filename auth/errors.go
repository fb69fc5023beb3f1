package auth

import "errors"

var (
	// ErrNilProof indicates a nil proof or proof without key material.
	ErrNilProof = errors.New("auth: nil proof")

	// ErrInvalidSignature indicates the signature does not verify for the action.
	ErrInvalidSignature = errors.New("auth: invalid signature")

	// ErrInvalidKey indicates private key bytes are not a valid scalar.
	ErrInvalidKey = errors.New("auth: invalid private key")
)
