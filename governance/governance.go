// Package governance holds the protocol's governance record. Only
// initialization exists; proposals and voting are not implemented.
package governance

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/service"
)

const (
	RecordKind = "governance"
	ActionInit = "governance.initialize"
)

// State is the governance record.
type State struct {
	Address       solana.PublicKey
	Authority     solana.PublicKey
	InitializedAt int64
}

// Governance manages the single governance record.
type Governance struct {
	env *service.Env
}

// New creates a Governance service.
func New(env *service.Env) *Governance {
	return &Governance{env: env}
}

// Initialize writes the governance record with authority as its owner. It
// can run once.
func (g *Governance) Initialize(ctx context.Context, authority auth.Principal) (*State, error) {
	if err := service.RequireSigner(authority, ActionInit); err != nil {
		return nil, err
	}
	var st *State
	err := g.env.Update(ctx, ActionInit, func(tx ledger.Tx, now int64) error {
		addr := g.env.Derive.Governance()
		exists, err := tx.HasRecord(RecordKind, addr)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: governance %s", protocol.ErrAlreadyInitialized, addr)
		}
		st = &State{Address: addr, Authority: authority.Address(), InitializedAt: now}
		return tx.PutRecord(RecordKind, addr, st)
	})
	if err != nil {
		return nil, err
	}
	g.env.Logger().Info("governance initialized", zap.String("authority", st.Authority.String()))
	return st, nil
}

// Get returns the governance record.
func (g *Governance) Get(ctx context.Context) (*State, error) {
	var st State
	err := g.env.View(ctx, func(tx ledger.ReadTx) error {
		return tx.GetRecord(RecordKind, g.env.Derive.Governance(), &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}
