package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// store is the bucketed key-value view a transaction operates on.
type store interface {
	get(bucket string, key []byte) ([]byte, error)
	put(bucket string, key, val []byte) error
	del(bucket string, key []byte) error
	// scan visits keys with prefix in ascending order.
	scan(bucket string, prefix []byte, fn func(k, v []byte) error) error
	writable() bool
}

// txn implements Tx over a store. Both ledgers share it.
type txn struct {
	s      store
	d      derive.Deriver
	clock  protocol.Clock
	closed bool
}

var _ Tx = (*txn)(nil)

func (t *txn) live() error {
	if t.closed {
		return ErrTxClosed
	}
	return nil
}

func (t *txn) mutable() error {
	if err := t.live(); err != nil {
		return err
	}
	if !t.s.writable() {
		return fmt.Errorf("ledger: write in read-only transaction")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cash
// ---------------------------------------------------------------------------

func (t *txn) Balance(addr solana.PublicKey) (uint64, error) {
	if err := t.live(); err != nil {
		return 0, err
	}
	data, err := t.s.get(bucketBalances, addr[:])
	if err != nil {
		return 0, err
	}
	return decodeUint64(data)
}

func (t *txn) setBalance(addr solana.PublicKey, v uint64) error {
	if v == 0 {
		return t.s.del(bucketBalances, addr[:])
	}
	return t.s.put(bucketBalances, addr[:], encodeUint64(v))
}

func (t *txn) Credit(addr solana.PublicKey, amount uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if amount == 0 {
		return protocol.ErrInvalidAmount
	}
	bal, err := t.Balance(addr)
	if err != nil {
		return err
	}
	next, err := protocol.Add(bal, amount)
	if err != nil {
		return fmt.Errorf("%w: credit %d to %s", err, amount, addr)
	}
	if err := t.setBalance(addr, next); err != nil {
		return err
	}
	return t.record(JournalCredit, solana.PublicKey{}, addr, solana.PublicKey{}, amount)
}

func (t *txn) Transfer(from, to solana.PublicKey, amount uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if amount == 0 || from.Equals(to) {
		return nil
	}
	fromBal, err := t.Balance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", protocol.ErrInsufficientBalance, from, fromBal, amount)
	}
	toBal, err := t.Balance(to)
	if err != nil {
		return err
	}
	toNext, err := protocol.Add(toBal, amount)
	if err != nil {
		return fmt.Errorf("%w: credit %d to %s", err, amount, to)
	}
	if err := t.setBalance(from, fromBal-amount); err != nil {
		return err
	}
	if err := t.setBalance(to, toNext); err != nil {
		return err
	}
	return t.record(JournalTransfer, from, to, solana.PublicKey{}, amount)
}

// ---------------------------------------------------------------------------
// Custody
// ---------------------------------------------------------------------------

func (t *txn) Holding(addr solana.PublicKey) (*Holding, error) {
	if err := t.live(); err != nil {
		return nil, err
	}
	data, err := t.s.get(bucketHoldings, addr[:])
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrHoldingNotFound, addr)
	}
	return decodeHolding(data)
}

func (t *txn) HoldingOf(owner, mint solana.PublicKey) (*Holding, error) {
	return t.Holding(t.d.Custody(owner, mint))
}

func (t *txn) putHolding(h *Holding) error {
	return t.s.put(bucketHoldings, h.Address[:], encodeHolding(h))
}

func (t *txn) openHolding(owner, mint solana.PublicKey, grantor string) (*Holding, error) {
	if err := t.mutable(); err != nil {
		return nil, err
	}
	addr := t.d.Custody(owner, mint)
	data, err := t.s.get(bucketHoldings, addr[:])
	if err != nil {
		return nil, err
	}
	if data != nil {
		return decodeHolding(data)
	}
	h := &Holding{Address: addr, Owner: owner, Mint: mint, Escrow: grantor != "", Grantor: grantor}
	if err := t.putHolding(h); err != nil {
		return nil, err
	}
	return h, nil
}

func (t *txn) OpenHolding(owner, mint solana.PublicKey) (*Holding, error) {
	h, err := t.openHolding(owner, mint, "")
	if err != nil {
		return nil, err
	}
	if h.Escrow {
		return nil, fmt.Errorf("%w: %s is an escrow slot", protocol.ErrInvalidAccount, h.Address)
	}
	return h, nil
}

func (t *txn) IssueUnits(addr solana.PublicKey, qty uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if qty == 0 {
		return protocol.ErrInvalidAmount
	}
	h, err := t.Holding(addr)
	if err != nil {
		return err
	}
	next, err := protocol.Add(h.Amount, qty)
	if err != nil {
		return err
	}
	h.Amount = next
	if err := t.putHolding(h); err != nil {
		return err
	}
	return t.record(JournalIssue, solana.PublicKey{}, addr, h.Mint, qty)
}

func (t *txn) TransferUnit(from, to solana.PublicKey, authority Authority, qty uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if authority == nil {
		return fmt.Errorf("%w: authority", ErrNilParam)
	}
	if qty == 0 {
		return protocol.ErrInvalidAmount
	}
	src, err := t.Holding(from)
	if err != nil {
		return err
	}
	if src.Escrow != authority.delegated() || !src.Owner.Equals(authority.principal()) {
		return fmt.Errorf("%w: holding %s", protocol.ErrUnauthorized, from)
	}
	if from.Equals(to) {
		return nil
	}
	dst, err := t.Holding(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s != %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < qty {
		return fmt.Errorf("%w: holding %s has %d units, needs %d", protocol.ErrInsufficientBalance, from, src.Amount, qty)
	}
	next, err := protocol.Add(dst.Amount, qty)
	if err != nil {
		return err
	}
	src.Amount -= qty
	dst.Amount = next
	if err := t.putHolding(src); err != nil {
		return err
	}
	if err := t.putHolding(dst); err != nil {
		return err
	}
	return t.record(JournalUnit, from, to, src.Mint, qty)
}

func (t *txn) OpenEscrow(g *Grantor, grantee, mint solana.PublicKey) (*Escrow, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	h, err := t.openHolding(grantee, mint, g.kind)
	if err != nil {
		return nil, err
	}
	return t.escrow(g, h)
}

func (t *txn) Escrow(g *Grantor, grantee, mint solana.PublicKey) (*Escrow, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	h, err := t.HoldingOf(grantee, mint)
	if err != nil {
		if errors.Is(err, ErrHoldingNotFound) {
			return nil, fmt.Errorf("%w: grantee %s", ErrEscrowNotFound, grantee)
		}
		return nil, err
	}
	if !h.Escrow {
		return nil, fmt.Errorf("%w: grantee %s", ErrEscrowNotFound, grantee)
	}
	return t.escrow(g, h)
}

func (t *txn) escrow(g *Grantor, h *Holding) (*Escrow, error) {
	if !h.Escrow {
		return nil, fmt.Errorf("%w: %s is not an escrow slot", protocol.ErrInvalidAccount, h.Address)
	}
	if h.Grantor != g.kind {
		return nil, fmt.Errorf("%w: escrow %s is granted to %q", protocol.ErrUnauthorized, h.Address, h.Grantor)
	}
	return &Escrow{t: t, addr: h.Address, grantee: h.Owner, mint: h.Mint}, nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func (t *txn) GetRecord(kind string, key solana.PublicKey, v any) error {
	if err := t.live(); err != nil {
		return err
	}
	data, err := t.s.get(bucketRecords, recordKey(kind, key))
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: %s %s", ErrRecordNotFound, kind, key)
	}
	if err := decodeGob(data, v); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrCorruptData, kind, key, err)
	}
	return nil
}

func (t *txn) HasRecord(kind string, key solana.PublicKey) (bool, error) {
	if err := t.live(); err != nil {
		return false, err
	}
	data, err := t.s.get(bucketRecords, recordKey(kind, key))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

func (t *txn) RecordKeys(kind string) ([]solana.PublicKey, error) {
	if err := t.live(); err != nil {
		return nil, err
	}
	prefix := recordPrefix(kind)
	var keys []solana.PublicKey
	err := t.s.scan(bucketRecords, prefix, func(k, _ []byte) error {
		var key solana.PublicKey
		copy(key[:], k[len(prefix):])
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (t *txn) PutRecord(kind string, key solana.PublicKey, v any) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	data, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("ledger: encode %s record: %w", kind, err)
	}
	return t.s.put(bucketRecords, recordKey(kind, key), data)
}

func (t *txn) DeleteRecord(kind string, key solana.PublicKey) error {
	if err := t.mutable(); err != nil {
		return err
	}
	return t.s.del(bucketRecords, recordKey(kind, key))
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

func (t *txn) record(kind JournalKind, from, to, mint solana.PublicKey, amount uint64) error {
	seqData, err := t.s.get(bucketMeta, keyJournalSeq)
	if err != nil {
		return err
	}
	seq, err := decodeUint64(seqData)
	if err != nil {
		return err
	}
	seq++
	entry := JournalEntry{
		ID:     uuid.New(),
		Seq:    seq,
		Kind:   kind,
		From:   from,
		To:     to,
		Mint:   mint,
		Amount: amount,
		At:     t.clock.Now().UTC(),
	}
	data, err := encodeGob(&entry)
	if err != nil {
		return fmt.Errorf("ledger: encode journal entry: %w", err)
	}
	if err := t.s.put(bucketJournal, encodeUint64(seq), data); err != nil {
		return err
	}
	return t.s.put(bucketMeta, keyJournalSeq, encodeUint64(seq))
}

func (t *txn) Journal(addr solana.PublicKey) ([]JournalEntry, error) {
	if err := t.live(); err != nil {
		return nil, err
	}
	var out []JournalEntry
	err := t.s.scan(bucketJournal, nil, func(_, v []byte) error {
		var e JournalEntry
		if err := decodeGob(v, &e); err != nil {
			return fmt.Errorf("%w: journal: %w", ErrCorruptData, err)
		}
		if e.From.Equals(addr) || e.To.Equals(addr) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// hasPrefix is bytes.HasPrefix with a nil prefix matching everything.
func hasPrefix(k, prefix []byte) bool {
	return len(prefix) == 0 || bytes.HasPrefix(k, prefix)
}
