// Package derive computes the canonical addresses of protocol accounts.
//
// Addresses are program-derived: a domain label plus key material is hashed
// with the program ID until an off-curve point is found, so no private key
// exists for them and only the program can act for them.
package derive

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed labels.
var (
	SeedTrailer    = []byte("trailer")
	SeedSale       = []byte("sale")
	SeedListing    = []byte("listing")
	SeedPool       = []byte("pool")
	SeedVault      = []byte("vault")
	SeedCustody    = []byte("custody")
	SeedGovernance = []byte("governance")
	SeedClaim      = []byte("claim")
	SeedPosition   = []byte("position")
)

// ErrNoAddress indicates no bump seed yields a valid program address.
var ErrNoAddress = errors.New("derive: unable to find program address")

// DefaultProgramID is the program ID of the unified freight program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("7x4rNdNN9Szce8qfasDGiV3srApWcJ339t8iGAyKjrga")

// Deriver derives addresses under one program ID.
type Deriver struct {
	ProgramID solana.PublicKey
}

// New creates a Deriver for programID.
func New(programID solana.PublicKey) Deriver {
	return Deriver{ProgramID: programID}
}

// Address derives the program address for seeds.
func (d Deriver) Address(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, d.ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %w", ErrNoAddress, err)
	}
	return addr, bump, nil
}

func (d Deriver) must(seeds ...[]byte) solana.PublicKey {
	addr, _, err := d.Address(seeds...)
	if err != nil {
		// FindProgramAddress exhausts 255 bumps; failure is a broken program ID.
		panic(err)
	}
	return addr
}

// Trailer returns the asset record address for mint.
func (d Deriver) Trailer(mint solana.PublicKey) solana.PublicKey {
	return d.must(SeedTrailer, mint[:])
}

// Sale returns the primary sale address for authority and mint.
func (d Deriver) Sale(authority, mint solana.PublicKey) solana.PublicKey {
	return d.must(SeedSale, authority[:], mint[:])
}

// Position returns the buyer position address within a sale.
func (d Deriver) Position(sale, holder solana.PublicKey) solana.PublicKey {
	return d.must(SeedPosition, sale[:], holder[:])
}

// Listing returns the resale listing address for seller and mint.
func (d Deriver) Listing(seller, mint solana.PublicKey) solana.PublicKey {
	return d.must(SeedListing, seller[:], mint[:])
}

// Pool returns the returns pool address for authority.
func (d Deriver) Pool(authority solana.PublicKey) solana.PublicKey {
	return d.must(SeedPool, authority[:])
}

// Vault returns the cash vault address of a pool.
func (d Deriver) Vault(pool solana.PublicKey) solana.PublicKey {
	return d.must(SeedVault, pool[:])
}

// Claim returns the claim record address of holder in pool for cycle.
func (d Deriver) Claim(pool, holder solana.PublicKey, cycle uint64) solana.PublicKey {
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], cycle)
	return d.must(SeedClaim, pool[:], holder[:], c[:])
}

// Custody returns the custody account of owner for mint.
func (d Deriver) Custody(owner, mint solana.PublicKey) solana.PublicKey {
	return d.must(SeedCustody, owner[:], mint[:])
}

// Escrow returns the escrow slot of a listing, a custody account owned by
// the listing address itself.
func (d Deriver) Escrow(listing, mint solana.PublicKey) solana.PublicKey {
	return d.Custody(listing, mint)
}

// Governance returns the singleton governance record address.
func (d Deriver) Governance() solana.PublicKey {
	return d.must(SeedGovernance)
}
