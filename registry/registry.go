// Package registry keeps the descriptive and financial terms of each
// tokenized trailer. Only an asset's authority may change its URI or lock
// flag; the market and primary sale read it for validation.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/service"
)

// Actions signed by callers.
const (
	ActionCreate    = "registry.create"
	ActionUpdateURI = "registry.update_metadata"
	ActionSetLock   = "registry.set_lock_status"
	ActionIssue     = "registry.issue_unit"
)

// CreateParams are the inputs of Create.
type CreateParams struct {
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	URI         string
	Series      string
	TotalValue  uint64
	TokenPrice  uint64
	TotalTokens uint16
	APY         uint16
	TermYears   uint8
}

// Registry manages TrailerAsset records.
type Registry struct {
	env *service.Env
}

// New creates a Registry.
func New(env *service.Env) *Registry {
	return &Registry{env: env}
}

// Create registers a new asset owned by authority.
func (r *Registry) Create(ctx context.Context, authority auth.Principal, p CreateParams) (*TrailerAsset, error) {
	if err := service.RequireSigner(authority, ActionCreate); err != nil {
		return nil, err
	}
	if err := validateFields(p.Name, p.Symbol, p.URI, p.Series); err != nil {
		return nil, err
	}
	if p.TermYears == 0 {
		return nil, protocol.ErrInvalidTerm
	}
	if p.TotalTokens == 0 {
		return nil, fmt.Errorf("%w: total_tokens", protocol.ErrInvalidAmount)
	}

	var asset *TrailerAsset
	err := r.env.Update(ctx, ActionCreate, func(tx ledger.Tx, now int64) error {
		key := r.env.Derive.Trailer(p.Mint)
		exists, err := tx.HasRecord(RecordKind, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: trailer %s", protocol.ErrAlreadyInitialized, p.Mint)
		}
		asset = &TrailerAsset{
			Authority:   authority.Address(),
			Mint:        p.Mint,
			Name:        p.Name,
			Symbol:      p.Symbol,
			URI:         p.URI,
			Series:      p.Series,
			TotalValue:  p.TotalValue,
			TokenPrice:  p.TokenPrice,
			TotalTokens: p.TotalTokens,
			APY:         p.APY,
			TermYears:   p.TermYears,
			CreatedAt:   now,
			ExpiryAt:    now + int64(p.TermYears)*protocol.SecondsPerYear,
		}
		return save(tx, r.env.Derive, asset)
	})
	if err != nil {
		return nil, err
	}
	r.env.Logger().Info("trailer asset created",
		zap.String("mint", asset.Mint.String()),
		zap.String("name", asset.Name),
		zap.Uint16("total_tokens", asset.TotalTokens))
	return asset, nil
}

// UpdateMetadata replaces the asset's content URI.
func (r *Registry) UpdateMetadata(ctx context.Context, authority auth.Principal, mint solana.PublicKey, uri string) error {
	if len(uri) > MaxURILen {
		return fmt.Errorf("%w: uri is %d bytes, max %d", protocol.ErrFieldTooLong, len(uri), MaxURILen)
	}
	return r.mutate(ctx, ActionUpdateURI, authority, mint, func(a *TrailerAsset) {
		a.URI = uri
	})
}

// SetLockStatus sets the asset's lock flag. Locked assets cannot be listed.
func (r *Registry) SetLockStatus(ctx context.Context, authority auth.Principal, mint solana.PublicKey, locked bool) error {
	return r.mutate(ctx, ActionSetLock, authority, mint, func(a *TrailerAsset) {
		a.IsLocked = locked
	})
}

func (r *Registry) mutate(ctx context.Context, op string, authority auth.Principal, mint solana.PublicKey, fn func(*TrailerAsset)) error {
	return r.env.Update(ctx, op, func(tx ledger.Tx, _ int64) error {
		a, err := Load(tx, r.env.Derive, mint)
		if err != nil {
			return err
		}
		if err := service.RequireAuthority(authority, a.Authority, op); err != nil {
			return err
		}
		fn(a)
		return save(tx, r.env.Derive, a)
	})
}

// IssueUnit mints the custody unit carrying resale rights for mint into
// holder's holding. A holding carries at most one unit.
func (r *Registry) IssueUnit(ctx context.Context, authority auth.Principal, mint, holder solana.PublicKey) error {
	err := r.env.Update(ctx, ActionIssue, func(tx ledger.Tx, _ int64) error {
		a, err := Load(tx, r.env.Derive, mint)
		if err != nil {
			return err
		}
		if err := service.RequireAuthority(authority, a.Authority, ActionIssue); err != nil {
			return err
		}
		h, err := tx.OpenHolding(holder, mint)
		if err != nil {
			return err
		}
		if h.Amount != 0 {
			return fmt.Errorf("%w: %s already holds a unit of %s", protocol.ErrAlreadyInitialized, holder, mint)
		}
		return tx.IssueUnits(h.Address, 1)
	})
	if err == nil {
		r.env.Logger().Info("custody unit issued",
			zap.String("mint", mint.String()),
			zap.String("holder", holder.String()))
	}
	return err
}

// Get returns the asset for mint.
func (r *Registry) Get(ctx context.Context, mint solana.PublicKey) (*TrailerAsset, error) {
	var a *TrailerAsset
	err := r.env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		a, err = Load(tx, r.env.Derive, mint)
		return err
	})
	return a, err
}

// List returns every registered asset.
func (r *Registry) List(ctx context.Context) ([]*TrailerAsset, error) {
	var out []*TrailerAsset
	err := r.env.View(ctx, func(tx ledger.ReadTx) error {
		keys, err := tx.RecordKeys(RecordKind)
		if err != nil {
			return err
		}
		for _, k := range keys {
			var a TrailerAsset
			if err := tx.GetRecord(RecordKind, k, &a); err != nil {
				return err
			}
			out = append(out, &a)
		}
		return nil
	})
	return out, err
}

// IsNotFound reports whether err means the asset is not registered.
func IsNotFound(err error) bool {
	return errors.Is(err, protocol.ErrAssetNotFound)
}
