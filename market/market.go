// Package market is the escrow-backed resale market for custody units.
//
// Listing moves the seller's unit into an escrow slot whose authority is
// the listing record itself. The unit leaves the slot only through Buy,
// which pays the seller and the platform first, or through Cancel, which
// returns it to the seller. Either one ends the listing for good.
package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/registry"
	"github.com/optifreight/liboptifreight-go/service"
)

// RecordKind is the ledger record kind of listings.
const RecordKind = "listing"

// escrows is the market's claim on listing escrow slots. Nothing outside this
// package can open or release them.
var escrows = ledger.MustGrantor(RecordKind)

// Actions signed by callers.
const (
	ActionList   = "market.list"
	ActionBuy    = "market.buy"
	ActionCancel = "market.cancel"
)

// Status is the lifecycle state of a listing.
type Status uint8

const (
	StatusListed Status = iota + 1
	StatusSold
	StatusCancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusListed:
		return "listed"
	case StatusSold:
		return "sold"
	case StatusCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Listing is one offer to resell a custody unit.
type Listing struct {
	Address      solana.PublicKey
	Seller       solana.PublicKey
	Mint         solana.PublicKey
	Escrow       solana.PublicKey // custody slot holding the unit while listed
	Price        uint64
	PurchaseDate int64
	ListedAt     int64
	Active       bool
	Status       Status
	Buyer        solana.PublicKey
	SettledAt    int64
}

// ListParams are the inputs of List.
type ListParams struct {
	Mint         solana.PublicKey
	Holding      solana.PublicKey // zero means the seller's custody account for Mint
	Price        uint64
	PurchaseDate int64
}

// Receipt summarizes a completed resale.
type Receipt struct {
	ID      uuid.UUID
	Listing solana.PublicKey
	Seller  solana.PublicKey
	Buyer   solana.PublicKey
	Mint    solana.PublicKey
	Settlement
	At int64
}

// Market runs listings.
type Market struct {
	env *service.Env
}

// New creates a Market.
func New(env *service.Env) *Market {
	return &Market{env: env}
}

// Address returns the listing address of seller for mint.
func (m *Market) Address(seller, mint solana.PublicKey) solana.PublicKey {
	return m.env.Derive.Listing(seller, mint)
}

// List escrows the seller's unit and opens a listing at p.Price.
func (m *Market) List(ctx context.Context, seller auth.Principal, p ListParams) (*Listing, error) {
	owner, err := ledger.Signer(seller, ActionList)
	if err != nil {
		return nil, fmt.Errorf("%w: unverified caller", err)
	}
	if p.Price < m.env.Params.MinimumPrice {
		return nil, fmt.Errorf("%w: %d < %d", protocol.ErrPriceTooLow, p.Price, m.env.Params.MinimumPrice)
	}

	var l *Listing
	err = m.env.Update(ctx, ActionList, func(tx ledger.Tx, now int64) error {
		asset, err := registry.Load(tx, m.env.Derive, p.Mint)
		if err != nil {
			return err
		}
		if asset.IsLocked {
			return fmt.Errorf("%w: mint %s", protocol.ErrAssetLocked, p.Mint)
		}

		addr := m.Address(seller.Address(), p.Mint)
		exists, err := tx.HasRecord(RecordKind, addr)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: listing %s", protocol.ErrAlreadyInitialized, addr)
		}

		holdingAddr := p.Holding
		if holdingAddr.IsZero() {
			holdingAddr = m.env.Derive.Custody(seller.Address(), p.Mint)
		}
		h, err := tx.Holding(holdingAddr)
		if errors.Is(err, ledger.ErrHoldingNotFound) {
			return fmt.Errorf("%w: no holding at %s", protocol.ErrNFTNotOwned, holdingAddr)
		}
		if err != nil {
			return err
		}
		if !h.Mint.Equals(p.Mint) {
			return fmt.Errorf("%w: holding %s is for mint %s", protocol.ErrNFTNotOwned, h.Address, h.Mint)
		}
		if h.Amount != 1 {
			return fmt.Errorf("%w: holding %s has %d units", protocol.ErrNFTNotOwned, h.Address, h.Amount)
		}
		if h.Escrow || !h.Owner.Equals(seller.Address()) {
			return fmt.Errorf("%w: holding %s is owned by %s", protocol.ErrInvalidOwner, h.Address, h.Owner)
		}

		esc, err := tx.OpenEscrow(escrows, addr, p.Mint)
		if err != nil {
			return err
		}
		if err := esc.Deposit(h.Address, owner, 1); err != nil {
			return err
		}

		l = &Listing{
			Address:      addr,
			Seller:       seller.Address(),
			Mint:         p.Mint,
			Escrow:       esc.Address(),
			Price:        p.Price,
			PurchaseDate: p.PurchaseDate,
			ListedAt:     now,
			Active:       true,
			Status:       StatusListed,
		}
		return tx.PutRecord(RecordKind, addr, l)
	})
	if err != nil {
		return nil, err
	}
	m.env.Logger().Info("unit listed",
		zap.String("listing", l.Address.String()),
		zap.String("mint", l.Mint.String()),
		zap.Uint64("price", l.Price))
	return l, nil
}

// Buy settles the listing at addr to buyer. The settlement is computed
// before anything moves; then the seller and platform are paid and the unit
// is released from escrow to the buyer's custody account.
func (m *Market) Buy(ctx context.Context, buyer auth.Principal, addr solana.PublicKey) (*Receipt, error) {
	if err := service.RequireSigner(buyer, ActionBuy); err != nil {
		return nil, err
	}

	var rcpt *Receipt
	err := m.env.Update(ctx, ActionBuy, func(tx ledger.Tx, now int64) error {
		l, esc, err := m.open(tx, addr)
		if err != nil {
			return err
		}
		s, err := Quote(l.Price, l.PurchaseDate, now, m.env.Params)
		if err != nil {
			return err
		}

		if err := tx.Transfer(buyer.Address(), l.Seller, s.Proceeds); err != nil {
			return err
		}
		if err := tx.Transfer(buyer.Address(), m.env.Platform, s.Fee); err != nil {
			return err
		}
		dst, err := tx.OpenHolding(buyer.Address(), l.Mint)
		if err != nil {
			return err
		}
		if err := esc.Release(dst.Address); err != nil {
			return err
		}

		l.Active = false
		l.Status = StatusSold
		l.Buyer = buyer.Address()
		l.SettledAt = now
		if err := tx.PutRecord(RecordKind, addr, l); err != nil {
			return err
		}
		rcpt = &Receipt{
			ID:         uuid.New(),
			Listing:    addr,
			Seller:     l.Seller,
			Buyer:      l.Buyer,
			Mint:       l.Mint,
			Settlement: s,
			At:         now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.env.Metrics.Settled("secondary_seller", rcpt.Proceeds)
	m.env.Metrics.Settled("secondary_fee", rcpt.Fee)
	m.env.Logger().Info("resale settled",
		zap.String("receipt", rcpt.ID.String()),
		zap.String("listing", addr.String()),
		zap.Uint64("penalty", rcpt.Penalty),
		zap.Uint64("fee", rcpt.Fee),
		zap.Uint64("proceeds", rcpt.Proceeds))
	return rcpt, nil
}

// Cancel returns the escrowed unit to the seller and ends the listing.
// Only the seller may cancel.
func (m *Market) Cancel(ctx context.Context, seller auth.Principal, addr solana.PublicKey) error {
	err := m.env.Update(ctx, ActionCancel, func(tx ledger.Tx, now int64) error {
		l, err := load(tx, addr)
		if err != nil {
			return err
		}
		if !l.Active {
			return settled(l)
		}
		if err := service.RequireAuthority(seller, l.Seller, ActionCancel); err != nil {
			return err
		}
		esc, err := tx.Escrow(escrows, l.Address, l.Mint)
		if err != nil {
			return err
		}
		dst, err := tx.OpenHolding(l.Seller, l.Mint)
		if err != nil {
			return err
		}
		if err := esc.Release(dst.Address); err != nil {
			return err
		}
		l.Active = false
		l.Status = StatusCancelled
		l.SettledAt = now
		return tx.PutRecord(RecordKind, addr, l)
	})
	if err == nil {
		m.env.Logger().Info("listing cancelled", zap.String("listing", addr.String()))
	}
	return err
}

// open loads an active listing and the capability over its escrow slot,
// checking that the slot holds exactly one unit.
func (m *Market) open(tx ledger.Tx, addr solana.PublicKey) (*Listing, *ledger.Escrow, error) {
	l, err := load(tx, addr)
	if err != nil {
		return nil, nil, err
	}
	if !l.Active {
		return nil, nil, settled(l)
	}
	esc, err := tx.Escrow(escrows, l.Address, l.Mint)
	if errors.Is(err, ledger.ErrEscrowNotFound) {
		return nil, nil, fmt.Errorf("%w: listing %s has no escrow", protocol.ErrNFTNotOwned, addr)
	}
	if err != nil {
		return nil, nil, err
	}
	n, err := esc.Units()
	if err != nil {
		return nil, nil, err
	}
	if n != 1 {
		return nil, nil, fmt.Errorf("%w: escrow %s holds %d units", protocol.ErrNFTNotOwned, esc.Address(), n)
	}
	return l, esc, nil
}

// Get returns the listing at addr.
func (m *Market) Get(ctx context.Context, addr solana.PublicKey) (*Listing, error) {
	var l *Listing
	err := m.env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		l, err = load(tx, addr)
		return err
	})
	return l, err
}

// Listings returns every listing, settled ones included.
func (m *Market) Listings(ctx context.Context) ([]*Listing, error) {
	var out []*Listing
	err := m.env.View(ctx, func(tx ledger.ReadTx) error {
		keys, err := tx.RecordKeys(RecordKind)
		if err != nil {
			return err
		}
		for _, k := range keys {
			var l Listing
			if err := tx.GetRecord(RecordKind, k, &l); err != nil {
				return err
			}
			out = append(out, &l)
		}
		return nil
	})
	return out, err
}

// Quote returns the settlement Buy would perform on the listing at addr now.
func (m *Market) Quote(ctx context.Context, addr solana.PublicKey) (Settlement, error) {
	l, err := m.Get(ctx, addr)
	if err != nil {
		return Settlement{}, err
	}
	return Quote(l.Price, l.PurchaseDate, m.env.Now(), m.env.Params)
}

func settled(l *Listing) error {
	return fmt.Errorf("%w: listing %s is %s: %w", protocol.ErrNotActive, l.Address, l.Status, protocol.ErrAlreadySettled)
}

func load(tx ledger.ReadTx, addr solana.PublicKey) (*Listing, error) {
	var l Listing
	if err := tx.GetRecord(RecordKind, addr, &l); err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no listing at %s", protocol.ErrNotActive, addr)
		}
		return nil, err
	}
	return &l, nil
}
