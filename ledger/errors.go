package ledger

import (
	"errors"

	"github.com/optifreight/liboptifreight-go/protocol"
)

var (
	// ErrHoldingNotFound indicates no custody account exists at the address.
	ErrHoldingNotFound = protocol.NewError(protocol.KindValidation, "HoldingNotFound", "ledger: holding not found")

	// ErrMintMismatch indicates a unit transfer between holdings of different mints.
	ErrMintMismatch = protocol.NewError(protocol.KindValidation, "MintMismatch", "ledger: holdings hold different mints")

	// ErrRecordNotFound indicates no record of the kind exists at the key.
	ErrRecordNotFound = protocol.NewError(protocol.KindState, "RecordNotFound", "ledger: record not found")

	// ErrEscrowNotFound indicates no escrow slot is granted to the grantee.
	ErrEscrowNotFound = protocol.NewError(protocol.KindState, "EscrowNotFound", "ledger: escrow slot not found")

	// ErrTxClosed indicates use of a transaction or capability after commit or rollback.
	ErrTxClosed = errors.New("ledger: transaction closed")

	// ErrCorruptData indicates a stored value failed to decode.
	ErrCorruptData = errors.New("ledger: corrupt data")

	// ErrGrantorTaken indicates a second claim on an escrow grantor kind.
	ErrGrantorTaken = errors.New("ledger: grantor kind already claimed")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("ledger: nil parameter")
)
