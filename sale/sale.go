// Package sale implements the primary offering of a trailer's units.
//
// A sale moves from Uninitialized to Active on Init. Each Buy pays the
// seller price*amount and the platform a fee on top, and the sale goes
// inactive once every unit is sold. Close removes the record.
package sale

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

// Record kinds.
const (
	RecordKind   = "sale"
	PositionKind = "position"
)

// Actions signed by callers.
const (
	ActionInit  = "sale.init"
	ActionBuy   = "sale.buy"
	ActionClose = "sale.close"
)

// Sale is the state of one primary offering.
type Sale struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Mint      solana.PublicKey
	Seller    solana.PublicKey // receives the base cost
	Price     uint64
	Total     uint16
	Sold      uint16
	Active    bool
	OpenedAt  int64
}

// Remaining returns the units still for sale.
func (s *Sale) Remaining() uint16 { return s.Total - s.Sold }

// Position is a buyer's accumulated holding from one sale.
type Position struct {
	Sale   solana.PublicKey
	Holder solana.PublicKey
	Units  uint16
	Paid   uint64 // base cost plus fees
}

// Receipt summarizes a completed purchase.
type Receipt struct {
	ID       uuid.UUID
	Sale     solana.PublicKey
	Buyer    solana.PublicKey
	Amount   uint16
	BaseCost uint64
	Fee      uint64
	SoldOut  bool
	At       int64
}

// InitParams are the inputs of Init. Zero Price and Total fall back to the
// asset's token price and remaining supply.
type InitParams struct {
	Mint   solana.PublicKey
	Price  uint64
	Total  uint16
	Seller solana.PublicKey // zero means the authority
}

// Ledger runs primary sales.
type Ledger struct {
	env *service.Env
}

// New creates a primary sale ledger.
func New(env *service.Env) *Ledger {
	return &Ledger{env: env}
}

// Address returns the sale address for authority and mint.
func (l *Ledger) Address(authority, mint solana.PublicKey) solana.PublicKey {
	return l.env.Derive.Sale(authority, mint)
}

// Init opens an offering on a registered asset. Only the asset's authority
// may open it.
func (l *Ledger) Init(ctx context.Context, authority auth.Principal, p InitParams) (*Sale, error) {
	if err := service.RequireSigner(authority, ActionInit); err != nil {
		return nil, err
	}
	var s *Sale
	err := l.env.Update(ctx, ActionInit, func(tx ledger.Tx, now int64) error {
		asset, err := registry.Load(tx, l.env.Derive, p.Mint)
		if err != nil {
			return err
		}
		if err := service.RequireAuthority(authority, asset.Authority, ActionInit); err != nil {
			return err
		}
		addr := l.Address(authority.Address(), p.Mint)
		exists, err := tx.HasRecord(RecordKind, addr)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: sale %s", protocol.ErrAlreadyInitialized, addr)
		}

		price := p.Price
		if price == 0 {
			price = asset.TokenPrice
		}
		if price == 0 {
			price = l.env.Params.TokenPrice
		}
		total := p.Total
		if total == 0 {
			total = asset.Remaining()
		}
		if total == 0 {
			return fmt.Errorf("%w: asset %s has no units left", protocol.ErrSoldOut, p.Mint)
		}
		if total > asset.Remaining() {
			return fmt.Errorf("%w: sale of %d exceeds %d remaining", protocol.ErrNotEnough, total, asset.Remaining())
		}
		seller := p.Seller
		if seller.IsZero() {
			seller = authority.Address()
		}

		s = &Sale{
			Address:   addr,
			Authority: authority.Address(),
			Mint:      p.Mint,
			Seller:    seller,
			Price:     price,
			Total:     total,
			Active:    true,
			OpenedAt:  now,
		}
		return tx.PutRecord(RecordKind, addr, s)
	})
	if err != nil {
		return nil, err
	}
	l.env.Logger().Info("primary sale opened",
		zap.String("sale", s.Address.String()),
		zap.String("mint", s.Mint.String()),
		zap.Uint64("price", s.Price),
		zap.Uint16("total", s.Total))
	return s, nil
}

// Quote returns the base cost and fee of buying amount units at price.
// The product is formed in 128 bits and must narrow back to 64.
func Quote(price uint64, amount uint16, feeBps uint16) (baseCost, fee uint64, err error) {
	baseCost, err = protocol.Mul(price, uint64(amount))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: price %d * amount %d", err, price, amount)
	}
	fee, err = protocol.ApplyBps(baseCost, feeBps)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: fee on %d", err, baseCost)
	}
	return baseCost, fee, nil
}

// Buy purchases amount units from the sale at saleAddr.
func (l *Ledger) Buy(ctx context.Context, buyer auth.Principal, saleAddr solana.PublicKey, amount uint16) (*Receipt, error) {
	if err := service.RequireSigner(buyer, ActionBuy); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, protocol.ErrInvalidAmount
	}

	var rcpt *Receipt
	err := l.env.Update(ctx, ActionBuy, func(tx ledger.Tx, now int64) error {
		s, err := load(tx, saleAddr)
		if errors.Is(err, protocol.ErrNotInitialized) {
			return fmt.Errorf("%w: sale %s", protocol.ErrNotActive, saleAddr)
		}
		if err != nil {
			return err
		}
		if !s.Active {
			return fmt.Errorf("%w: sale %s", protocol.ErrNotActive, saleAddr)
		}
		sold, err := protocol.AddUnits(s.Sold, amount)
		if err != nil {
			return fmt.Errorf("%w: sold %d + amount %d", err, s.Sold, amount)
		}
		if sold > s.Total {
			if s.Remaining() == 0 {
				return fmt.Errorf("%w: sale %s", protocol.ErrSoldOut, saleAddr)
			}
			return fmt.Errorf("%w: %d requested, %d remaining", protocol.ErrNotEnough, amount, s.Remaining())
		}
		baseCost, fee, err := Quote(s.Price, amount, l.env.Params.PrimaryFeeBps)
		if err != nil {
			return err
		}

		if err := tx.Transfer(buyer.Address(), s.Seller, baseCost); err != nil {
			return err
		}
		if err := tx.Transfer(buyer.Address(), l.env.Platform, fee); err != nil {
			return err
		}

		s.Sold = sold
		if s.Sold >= s.Total {
			s.Active = false
		}
		if err := tx.PutRecord(RecordKind, saleAddr, s); err != nil {
			return err
		}
		if err := registry.RecordSale(tx, l.env.Derive, s.Mint, amount); err != nil {
			return err
		}
		paid, err := protocol.Add(baseCost, fee)
		if err != nil {
			return err
		}
		if err := creditPosition(tx, l, s.Address, buyer.Address(), amount, paid); err != nil {
			return err
		}

		rcpt = &Receipt{
			ID:       uuid.New(),
			Sale:     saleAddr,
			Buyer:    buyer.Address(),
			Amount:   amount,
			BaseCost: baseCost,
			Fee:      fee,
			SoldOut:  !s.Active,
			At:       now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.env.Metrics.Settled("primary_seller", rcpt.BaseCost)
	l.env.Metrics.Settled("primary_fee", rcpt.Fee)
	l.env.Logger().Info("primary purchase settled",
		zap.String("receipt", rcpt.ID.String()),
		zap.String("sale", saleAddr.String()),
		zap.Uint16("amount", amount),
		zap.Uint64("base_cost", rcpt.BaseCost),
		zap.Uint64("fee", rcpt.Fee))
	return rcpt, nil
}

func creditPosition(tx ledger.Tx, l *Ledger, saleAddr, holder solana.PublicKey, units uint16, paid uint64) error {
	key := l.env.Derive.Position(saleAddr, holder)
	pos := Position{Sale: saleAddr, Holder: holder}
	if err := tx.GetRecord(PositionKind, key, &pos); err != nil && !errors.Is(err, ledger.ErrRecordNotFound) {
		return err
	}
	next, err := protocol.AddUnits(pos.Units, units)
	if err != nil {
		return err
	}
	total, err := protocol.Add(pos.Paid, paid)
	if err != nil {
		return err
	}
	pos.Units, pos.Paid = next, total
	return tx.PutRecord(PositionKind, key, &pos)
}

// Close terminates the sale and reclaims its record. Only the authority
// may close, whether the sale is active or sold out.
func (l *Ledger) Close(ctx context.Context, authority auth.Principal, saleAddr solana.PublicKey) error {
	err := l.env.Update(ctx, ActionClose, func(tx ledger.Tx, _ int64) error {
		s, err := load(tx, saleAddr)
		if err != nil {
			return err
		}
		if err := service.RequireAuthority(authority, s.Authority, ActionClose); err != nil {
			return err
		}
		return tx.DeleteRecord(RecordKind, saleAddr)
	})
	if err == nil {
		l.env.Logger().Info("primary sale closed", zap.String("sale", saleAddr.String()))
	}
	return err
}

// Get returns the sale at saleAddr.
func (l *Ledger) Get(ctx context.Context, saleAddr solana.PublicKey) (*Sale, error) {
	var s *Sale
	err := l.env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		s, err = load(tx, saleAddr)
		return err
	})
	return s, err
}

// Position returns holder's position in the sale. A holder who never
// bought has a zero position.
func (l *Ledger) Position(ctx context.Context, saleAddr, holder solana.PublicKey) (*Position, error) {
	pos := &Position{Sale: saleAddr, Holder: holder}
	err := l.env.View(ctx, func(tx ledger.ReadTx) error {
		err := tx.GetRecord(PositionKind, l.env.Derive.Position(saleAddr, holder), pos)
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil
		}
		return err
	})
	return pos, err
}

func load(tx ledger.ReadTx, addr solana.PublicKey) (*Sale, error) {
	var s Sale
	if err := tx.GetRecord(RecordKind, addr, &s); err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: sale %s", protocol.ErrNotInitialized, addr)
		}
		return nil, err
	}
	return &s, nil
}
