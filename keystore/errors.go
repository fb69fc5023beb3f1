package keystore

import "errors"

var (
	// ErrDecryptionFailed indicates wrong password or corrupted key data.
	ErrDecryptionFailed = errors.New("keystore: key decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates the key checksum did not verify after decryption.
	ErrChecksumMismatch = errors.New("keystore: key checksum mismatch")

	// ErrEmptyPassword indicates an empty password.
	ErrEmptyPassword = errors.New("keystore: password is required")

	// ErrInvalidName indicates a key name with characters outside [a-z0-9_-].
	ErrInvalidName = errors.New("keystore: invalid key name")

	// ErrKeyNotFound indicates no key file exists for the name.
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrKeyExists indicates a key file already exists for the name.
	ErrKeyExists = errors.New("keystore: key already exists")
)
