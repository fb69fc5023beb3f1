package ledger

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// Authority authorizes a unit transfer out of a holding. It is sealed:
// the only implementations are Signer and the escrow capability.
type Authority interface {
	principal() solana.PublicKey
	delegated() bool
}

type signerAuthority struct {
	addr solana.PublicKey
}

func (s signerAuthority) principal() solana.PublicKey { return s.addr }
func (s signerAuthority) delegated() bool             { return false }

// Signer returns the authority of a key holder verified for action.
func Signer(p auth.Principal, action string) (Authority, error) {
	if !p.Valid() {
		return nil, protocol.ErrUnauthorized
	}
	if p.Action() != action {
		return nil, fmt.Errorf("%w: signed for %q, not %q", protocol.ErrUnauthorized, p.Action(), action)
	}
	return signerAuthority{addr: p.Address()}, nil
}

type escrowAuthority struct {
	grantee solana.PublicKey
}

func (e escrowAuthority) principal() solana.PublicKey { return e.grantee }
func (e escrowAuthority) delegated() bool             { return true }

// Grantor is the right to open and reach escrow slots of one kind. A kind is
// claimed by at most one Grantor per process, so a package that keeps its
// Grantor unexported is the only code able to move units out of its slots.
type Grantor struct {
	kind string
}

var grantors = struct {
	sync.Mutex
	byKind map[string]*Grantor
}{byKind: make(map[string]*Grantor)}

// NewGrantor claims kind. It fails with ErrGrantorTaken if kind is already
// claimed.
func NewGrantor(kind string) (*Grantor, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: grantor kind", ErrNilParam)
	}
	grantors.Lock()
	defer grantors.Unlock()
	if _, ok := grantors.byKind[kind]; ok {
		return nil, fmt.Errorf("%w: %q", ErrGrantorTaken, kind)
	}
	g := &Grantor{kind: kind}
	grantors.byKind[kind] = g
	return g, nil
}

// MustGrantor is like NewGrantor but panics on error. It is meant for
// package-level variables.
func MustGrantor(kind string) *Grantor {
	g, err := NewGrantor(kind)
	if err != nil {
		panic(err)
	}
	return g
}

// Kind returns the claimed kind.
func (g *Grantor) Kind() string { return g.kind }

func (g *Grantor) check() error {
	if g == nil {
		return fmt.Errorf("%w: grantor", ErrNilParam)
	}
	grantors.Lock()
	defer grantors.Unlock()
	if grantors.byKind[g.kind] != g {
		return fmt.Errorf("%w: grantor %q is not registered", protocol.ErrUnauthorized, g.kind)
	}
	return nil
}

// Escrow is the capability to move the units of one escrow slot. It is
// valid only within the transaction that produced it.
type Escrow struct {
	t       *txn
	addr    solana.PublicKey
	grantee solana.PublicKey
	mint    solana.PublicKey
}

// Address returns the escrow slot's custody address.
func (e *Escrow) Address() solana.PublicKey { return e.addr }

// Grantee returns the record the slot's authority is delegated to.
func (e *Escrow) Grantee() solana.PublicKey { return e.grantee }

// Mint returns the mint held in the slot.
func (e *Escrow) Mint() solana.PublicKey { return e.mint }

// Units returns the number of units in the slot.
func (e *Escrow) Units() (uint64, error) {
	if err := e.t.live(); err != nil {
		return 0, err
	}
	h, err := e.t.Holding(e.addr)
	if err != nil {
		return 0, err
	}
	return h.Amount, nil
}

// Deposit moves qty units from the holding at from into the slot. owner must
// control the source holding.
func (e *Escrow) Deposit(from solana.PublicKey, owner Authority, qty uint64) error {
	if owner == nil || owner.delegated() {
		return protocol.ErrUnauthorized
	}
	return e.t.TransferUnit(from, e.addr, owner, qty)
}

// Release moves every unit in the slot to the holding at to.
func (e *Escrow) Release(to solana.PublicKey) error {
	n, err := e.Units()
	if err != nil {
		return err
	}
	if n == 0 {
		return protocol.ErrNFTNotOwned
	}
	return e.t.TransferUnit(e.addr, to, escrowAuthority{grantee: e.grantee}, n)
}
