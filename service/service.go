// Package service holds the dependencies shared by the protocol services and
// the per-operation transaction boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/logging"
	"github.com/optifreight/liboptifreight-go/metrics"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// ErrNoLedger indicates an Env without a ledger.
var ErrNoLedger = errors.New("service: ledger is required")

// Env is the environment every service runs in.
type Env struct {
	Ledger   ledger.Ledger
	Derive   derive.Deriver
	Params   protocol.Params
	Platform solana.PublicKey  // receives protocol fees
	Clock    protocol.Clock    // nil uses the system clock
	Log      *zap.Logger       // nil discards
	Metrics  *metrics.Recorder // nil records nothing
}

// Validate checks that the environment is usable.
func (e *Env) Validate() error {
	if e.Ledger == nil {
		return ErrNoLedger
	}
	return e.Params.Validate()
}

// Logger returns the environment's logger, never nil.
func (e *Env) Logger() *zap.Logger {
	return logging.OrNop(e.Log)
}

// Now reads the clock.
func (e *Env) Now() int64 {
	if e.Clock == nil {
		return time.Now().Unix()
	}
	return e.Clock.Now().Unix()
}

// Update runs fn as operation op in one ledger transaction. The clock is
// read once and passed to fn. Errors roll back every effect of fn.
func (e *Env) Update(ctx context.Context, op string, fn func(tx ledger.Tx, now int64) error) error {
	start := time.Now()
	now := e.Now()
	err := e.Ledger.Update(ctx, func(tx ledger.Tx) error {
		return fn(tx, now)
	})
	e.Metrics.Observe(op, start, err)
	if err != nil {
		e.Logger().Debug("operation rejected",
			zap.String("op", op),
			zap.String("kind", protocol.KindOf(err).String()),
			zap.Error(err))
	}
	return err
}

// View runs fn in a read-only transaction.
func (e *Env) View(ctx context.Context, fn func(tx ledger.ReadTx) error) error {
	return e.Ledger.View(ctx, fn)
}

// RequireAuthority checks that p is verified for action and controls addr.
func RequireAuthority(p auth.Principal, addr solana.PublicKey, action string) error {
	if err := RequireSigner(p, action); err != nil {
		return err
	}
	if !p.Is(addr) {
		return fmt.Errorf("%w: %s is not %s", protocol.ErrUnauthorized, p.Address(), addr)
	}
	return nil
}

// RequireSigner checks that p is verified and was signed for action.
func RequireSigner(p auth.Principal, action string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: unverified caller", protocol.ErrUnauthorized)
	}
	if p.Action() != action {
		return fmt.Errorf("%w: signed for %q, not %q", protocol.ErrUnauthorized, p.Action(), action)
	}
	return nil
}
