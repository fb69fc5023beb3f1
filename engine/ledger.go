package engine

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// Fund credits cash to addr from outside the protocol.
func (e *Engine) Fund(ctx context.Context, addr solana.PublicKey, amount uint64) error {
	err := e.Env.Update(ctx, "engine.fund", func(tx ledger.Tx, _ int64) error {
		return tx.Credit(addr, amount)
	})
	if err == nil {
		e.Env.Logger().Info("account funded",
			zap.String("account", addr.String()),
			zap.Uint64("amount", amount))
	}
	return err
}

// Balance returns the cash balance of addr.
func (e *Engine) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var bal uint64
	err := e.Env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		bal, err = tx.Balance(addr)
		return err
	})
	return bal, err
}

// Units returns how many units of mint owner holds. A missing holding
// holds zero.
func (e *Engine) Units(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var n uint64
	err := e.Env.View(ctx, func(tx ledger.ReadTx) error {
		h, err := tx.HoldingOf(owner, mint)
		if errors.Is(err, ledger.ErrHoldingNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		n = h.Amount
		return nil
	})
	return n, err
}

// Journal returns the movements touching addr.
func (e *Engine) Journal(ctx context.Context, addr solana.PublicKey) ([]ledger.JournalEntry, error) {
	var entries []ledger.JournalEntry
	err := e.Env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		entries, err = tx.Journal(addr)
		return err
	})
	return entries, err
}

// Params returns the protocol parameters in effect.
func (e *Engine) Params() protocol.Params {
	return e.Env.Params
}
