// Package ledger is the value and custody substrate of the protocol.
//
// It keeps cash balances, custody holdings of instrument units, escrow slots
// and protocol records. Every mutation happens inside Ledger.Update: a
// non-nil error from the callback discards all of its effects, so a
// settlement made of several transfers either commits as a whole or leaves
// no trace.
package ledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Ledger runs serialized transactions against the substrate.
type Ledger interface {
	// Update runs fn in a read-write transaction. fn's effects are committed
	// only if it returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx ReadTx) error) error

	// Close releases the underlying storage.
	Close() error
}

// ReadTx exposes the read side of a transaction.
type ReadTx interface {
	// Balance returns the cash balance of addr; unknown addresses hold zero.
	Balance(addr solana.PublicKey) (uint64, error)

	// Holding returns the custody account at addr.
	Holding(addr solana.PublicKey) (*Holding, error)

	// HoldingOf returns the custody account of owner for mint.
	HoldingOf(owner, mint solana.PublicKey) (*Holding, error)

	// GetRecord decodes the record of kind at key into v.
	GetRecord(kind string, key solana.PublicKey, v any) error

	// HasRecord reports whether a record of kind exists at key.
	HasRecord(kind string, key solana.PublicKey) (bool, error)

	// RecordKeys returns the keys of all records of kind in key order.
	RecordKeys(kind string) ([]solana.PublicKey, error)

	// Journal returns movements touching addr in commit order.
	Journal(addr solana.PublicKey) ([]JournalEntry, error)
}

// Tx is a read-write transaction.
type Tx interface {
	ReadTx

	// Credit adds amount of cash to addr. Used to fund accounts from outside
	// the protocol.
	Credit(addr solana.PublicKey, amount uint64) error

	// Transfer moves amount of cash from one address to another. It fails
	// with protocol.ErrInsufficientBalance if from holds less than amount.
	Transfer(from, to solana.PublicKey, amount uint64) error

	// OpenHolding returns the custody account of owner for mint, creating an
	// empty one if needed.
	OpenHolding(owner, mint solana.PublicKey) (*Holding, error)

	// IssueUnits mints qty new units into the holding at addr.
	IssueUnits(addr solana.PublicKey, qty uint64) error

	// TransferUnit moves qty units between holdings of the same mint. auth
	// must be the owner of the source holding.
	TransferUnit(from, to solana.PublicKey, auth Authority, qty uint64) error

	// OpenEscrow creates the escrow slot of g for mint whose authority is
	// grantee and returns the capability over it.
	OpenEscrow(g *Grantor, grantee, mint solana.PublicKey) (*Escrow, error)

	// Escrow returns the capability over an existing escrow slot. Only the
	// Grantor that opened the slot can reach it.
	Escrow(g *Grantor, grantee, mint solana.PublicKey) (*Escrow, error)

	// PutRecord stores v as the record of kind at key.
	PutRecord(kind string, key solana.PublicKey, v any) error

	// DeleteRecord removes the record of kind at key.
	DeleteRecord(kind string, key solana.PublicKey) error
}

// Holding is a custody account: a count of units of one mint controlled by
// one owner.
type Holding struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
	Escrow  bool   // owner is a delegated record, not a key holder
	Grantor string // kind of the Grantor that opened an escrow slot
}

// JournalKind labels a journal entry.
type JournalKind uint8

const (
	JournalCredit JournalKind = iota + 1
	JournalTransfer
	JournalIssue
	JournalUnit
)

// String returns the journal kind name.
func (k JournalKind) String() string {
	switch k {
	case JournalCredit:
		return "credit"
	case JournalTransfer:
		return "transfer"
	case JournalIssue:
		return "issue"
	case JournalUnit:
		return "unit"
	default:
		return "unknown"
	}
}

// JournalEntry records one committed movement.
type JournalEntry struct {
	ID     uuid.UUID
	Seq    uint64
	Kind   JournalKind
	From   solana.PublicKey // zero for credit and issue
	To     solana.PublicKey
	Mint   solana.PublicKey // zero for cash movements
	Amount uint64
	At     time.Time
}
