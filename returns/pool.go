// Package returns runs the pools that collect trailer income and pay it out
// to holders once per distribution cycle.
//
// Deposits raise a pool's running total and move cash into the pool vault.
// Claim validates a holder's entitlement against the total; Distribute pays
// from the live vault balance, only on the distribution day. Each holder has
// one ClaimRecord per cycle, so neither can happen twice in a cycle.
package returns

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

// Record kinds.
const (
	PoolKind  = "pool"
	ClaimKind = "claim"
)

// Actions signed by callers.
const (
	ActionInit       = "returns.init_pool"
	ActionDeposit    = "returns.deposit"
	ActionClaim      = "returns.claim"
	ActionDistribute = "returns.distribute"
)

// Pool accumulates deposits for distribution.
type Pool struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Vault     solana.PublicKey // cash account the pool pays from
	APY       uint16
	Total     uint64 // cumulative deposits, never decremented
	CreatedAt int64
}

// ClaimRecord is a holder's ledger entry for one cycle.
type ClaimRecord struct {
	Pool      solana.PublicKey
	Holder    solana.PublicKey
	Cycle     uint64
	Tokens    uint16
	Entitled  uint64
	Claimed   bool
	ClaimedAt int64
	Paid      uint64
	PaidOut   bool
	PaidAt    int64
}

// Pools manages returns pools.
type Pools struct {
	env *service.Env
}

// New creates a Pools service.
func New(env *service.Env) *Pools {
	return &Pools{env: env}
}

// Address returns the pool address of authority.
func (p *Pools) Address(authority solana.PublicKey) solana.PublicKey {
	return p.env.Derive.Pool(authority)
}

// InitPool creates authority's pool with the given APY and a zero total.
func (p *Pools) InitPool(ctx context.Context, authority auth.Principal, apy uint16) (*Pool, error) {
	if err := service.RequireSigner(authority, ActionInit); err != nil {
		return nil, err
	}
	var pool *Pool
	err := p.env.Update(ctx, ActionInit, func(tx ledger.Tx, now int64) error {
		addr := p.Address(authority.Address())
		exists, err := tx.HasRecord(PoolKind, addr)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: pool %s", protocol.ErrAlreadyInitialized, addr)
		}
		pool = &Pool{
			Address:   addr,
			Authority: authority.Address(),
			Vault:     p.env.Derive.Vault(addr),
			APY:       apy,
			CreatedAt: now,
		}
		return tx.PutRecord(PoolKind, addr, pool)
	})
	if err != nil {
		return nil, err
	}
	p.env.Logger().Info("returns pool created",
		zap.String("pool", pool.Address.String()),
		zap.Uint16("apy", apy))
	return pool, nil
}

// Deposit adds amount from depositor to the pool. Anyone may deposit.
func (p *Pools) Deposit(ctx context.Context, depositor auth.Principal, poolAddr solana.PublicKey, amount uint64) error {
	if err := service.RequireSigner(depositor, ActionDeposit); err != nil {
		return err
	}
	if amount == 0 {
		return protocol.ErrInvalidAmount
	}
	err := p.env.Update(ctx, ActionDeposit, func(tx ledger.Tx, _ int64) error {
		pool, err := load(tx, poolAddr)
		if err != nil {
			return err
		}
		total, err := protocol.Add(pool.Total, amount)
		if err != nil {
			return fmt.Errorf("%w: pool total %d + %d", err, pool.Total, amount)
		}
		if err := tx.Transfer(depositor.Address(), pool.Vault, amount); err != nil {
			return err
		}
		pool.Total = total
		return tx.PutRecord(PoolKind, poolAddr, pool)
	})
	if err != nil {
		return err
	}
	p.env.Metrics.Settled("pool_deposit", amount)
	p.env.Logger().Info("pool deposit",
		zap.String("pool", poolAddr.String()),
		zap.String("depositor", depositor.Address().String()),
		zap.Uint64("amount", amount))
	return nil
}

// Entitlement returns the returns owed on tokens at apy percent.
func Entitlement(tokens uint16, apy uint16) (uint64, error) {
	return protocol.MulDiv(uint64(tokens), uint64(apy), 100)
}

// Claim records holder's entitlement for tokens in the current cycle. It
// checks the entitlement against the pool total and leaves the total as is.
func (p *Pools) Claim(ctx context.Context, holder auth.Principal, poolAddr solana.PublicKey, tokens uint16) (*ClaimRecord, error) {
	if err := service.RequireSigner(holder, ActionClaim); err != nil {
		return nil, err
	}
	if tokens == 0 {
		return nil, protocol.ErrInvalidAmount
	}
	var rec *ClaimRecord
	err := p.env.Update(ctx, ActionClaim, func(tx ledger.Tx, now int64) error {
		pool, err := load(tx, poolAddr)
		if err != nil {
			return err
		}
		entitled, err := Entitlement(tokens, pool.APY)
		if err != nil {
			return err
		}
		if entitled > pool.Total {
			return fmt.Errorf("%w: returns %d exceed pool total %d", protocol.ErrInsufficientFunds, entitled, pool.Total)
		}
		cycle := p.env.Params.Cycle(now)
		rec, err = loadClaim(tx, p.env, poolAddr, holder.Address(), cycle)
		if err != nil {
			return err
		}
		if rec.Claimed {
			return fmt.Errorf("%w: cycle %d", protocol.ErrAlreadyClaimed, cycle)
		}
		rec.Tokens = tokens
		rec.Entitled = entitled
		rec.Claimed = true
		rec.ClaimedAt = now
		return tx.PutRecord(ClaimKind, p.env.Derive.Claim(poolAddr, holder.Address(), cycle), rec)
	})
	if err != nil {
		return nil, err
	}
	p.env.Logger().Info("returns claimed",
		zap.String("pool", poolAddr.String()),
		zap.String("holder", holder.Address().String()),
		zap.Uint64("entitled", rec.Entitled))
	return rec, nil
}

// Distribute pays holder its share of the vault for userTokens units. Only
// the pool authority may distribute, and only on the distribution day.
func (p *Pools) Distribute(ctx context.Context, authority auth.Principal, poolAddr, holder solana.PublicKey, userTokens uint16) (*Payout, error) {
	var out *Payout
	err := p.env.Update(ctx, ActionDistribute, func(tx ledger.Tx, now int64) error {
		pool, err := p.authorize(tx, authority, poolAddr, now)
		if err != nil {
			return err
		}
		payout, err := p.pay(tx, pool, Holder{Address: holder, Units: userTokens}, now)
		if err != nil {
			return err
		}
		out = &payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.env.Metrics.Settled("distribution", out.Amount)
	p.env.Logger().Info("returns distributed",
		zap.String("pool", poolAddr.String()),
		zap.String("holder", holder.String()),
		zap.Uint64("amount", out.Amount))
	return out, nil
}

// DistributeAll pays every holder in one transaction. Payouts are planned
// against the vault balance before the first transfer, so holder order does
// not change the amounts.
func (p *Pools) DistributeAll(ctx context.Context, authority auth.Principal, poolAddr solana.PublicKey, holders []Holder) ([]Payout, error) {
	var payouts []Payout
	err := p.env.Update(ctx, ActionDistribute, func(tx ledger.Tx, now int64) error {
		pool, err := p.authorize(tx, authority, poolAddr, now)
		if err != nil {
			return err
		}
		balance, err := tx.Balance(pool.Vault)
		if err != nil {
			return err
		}
		payouts, err = Plan(balance, holders, p.env.Params.TotalSupplyUnits)
		if err != nil {
			return err
		}
		for i, po := range payouts {
			if po.Amount == 0 {
				continue
			}
			if err := p.settle(tx, pool, holders[i], po.Amount, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	total, err := Total(payouts)
	if err == nil {
		p.env.Metrics.Settled("distribution", total)
	}
	p.env.Logger().Info("returns distributed",
		zap.String("pool", poolAddr.String()),
		zap.Int("holders", len(payouts)),
		zap.Uint64("amount", total))
	return payouts, nil
}

// authorize loads the pool and applies the authority and day gates.
func (p *Pools) authorize(tx ledger.Tx, authority auth.Principal, poolAddr solana.PublicKey, now int64) (*Pool, error) {
	pool, err := load(tx, poolAddr)
	if err != nil {
		return nil, err
	}
	if err := service.RequireAuthority(authority, pool.Authority, ActionDistribute); err != nil {
		return nil, err
	}
	if !p.env.Params.IsDistributionDay(now) {
		return nil, fmt.Errorf("%w: cycle day %d, distribution on day %d",
			protocol.ErrWrongDay, p.env.Params.CycleDay(now), p.env.Params.DistributionDay)
	}
	return pool, nil
}

func (p *Pools) pay(tx ledger.Tx, pool *Pool, h Holder, now int64) (Payout, error) {
	if h.Units == 0 || h.Units > p.env.Params.TotalSupplyUnits {
		return Payout{}, fmt.Errorf("%w: %d of %d units", protocol.ErrInvalidAmount, h.Units, p.env.Params.TotalSupplyUnits)
	}
	balance, err := tx.Balance(pool.Vault)
	if err != nil {
		return Payout{}, err
	}
	amount, err := protocol.MulDiv(balance, uint64(h.Units), uint64(p.env.Params.TotalSupplyUnits))
	if err != nil {
		return Payout{}, err
	}
	if err := p.settle(tx, pool, h, amount, now); err != nil {
		return Payout{}, err
	}
	return Payout{Address: h.Address, Amount: amount}, nil
}

// settle moves amount from the vault to h and marks h paid for the cycle.
func (p *Pools) settle(tx ledger.Tx, pool *Pool, h Holder, amount uint64, now int64) error {
	if amount == 0 {
		return fmt.Errorf("%w: nothing to pay %s", protocol.ErrInsufficientFunds, h.Address)
	}
	cycle := p.env.Params.Cycle(now)
	rec, err := loadClaim(tx, p.env, pool.Address, h.Address, cycle)
	if err != nil {
		return err
	}
	if rec.PaidOut {
		return fmt.Errorf("%w: %s in cycle %d", protocol.ErrAlreadyPaid, h.Address, cycle)
	}
	if err := tx.Transfer(pool.Vault, h.Address, amount); err != nil {
		return err
	}
	if rec.Tokens == 0 {
		rec.Tokens = h.Units
	}
	rec.Paid = amount
	rec.PaidOut = true
	rec.PaidAt = now
	return tx.PutRecord(ClaimKind, p.env.Derive.Claim(pool.Address, h.Address, cycle), rec)
}

// Get returns the pool at addr.
func (p *Pools) Get(ctx context.Context, addr solana.PublicKey) (*Pool, error) {
	var pool *Pool
	err := p.env.View(ctx, func(tx ledger.ReadTx) error {
		var err error
		pool, err = load(tx, addr)
		return err
	})
	return pool, err
}

// Balance returns the live vault balance of the pool at addr.
func (p *Pools) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	var bal uint64
	err := p.env.View(ctx, func(tx ledger.ReadTx) error {
		pool, err := load(tx, addr)
		if err != nil {
			return err
		}
		bal, err = tx.Balance(pool.Vault)
		return err
	})
	return bal, err
}

// Claims returns the claim records of the pool at addr across all cycles.
func (p *Pools) Claims(ctx context.Context, addr solana.PublicKey) ([]*ClaimRecord, error) {
	var out []*ClaimRecord
	err := p.env.View(ctx, func(tx ledger.ReadTx) error {
		keys, err := tx.RecordKeys(ClaimKind)
		if err != nil {
			return err
		}
		for _, k := range keys {
			var rec ClaimRecord
			if err := tx.GetRecord(ClaimKind, k, &rec); err != nil {
				return err
			}
			if rec.Pool.Equals(addr) {
				out = append(out, &rec)
			}
		}
		return nil
	})
	return out, err
}

func load(tx ledger.ReadTx, addr solana.PublicKey) (*Pool, error) {
	var pool Pool
	if err := tx.GetRecord(PoolKind, addr, &pool); err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: pool %s", protocol.ErrNotInitialized, addr)
		}
		return nil, err
	}
	return &pool, nil
}

// loadClaim returns the holder's record for cycle, or a fresh one.
func loadClaim(tx ledger.ReadTx, env *service.Env, pool, holder solana.PublicKey, cycle uint64) (*ClaimRecord, error) {
	rec := &ClaimRecord{Pool: pool, Holder: holder, Cycle: cycle}
	err := tx.GetRecord(ClaimKind, env.Derive.Claim(pool, holder, cycle), rec)
	if err != nil && !errors.Is(err, ledger.ErrRecordNotFound) {
		return nil, err
	}
	return rec, nil
}
