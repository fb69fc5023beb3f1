package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/protocol"
)

var testDeriver = derive.New(derive.DefaultProgramID)

var (
	testGrantor  = MustGrantor("ledger.test")
	otherGrantor = MustGrantor("ledger.test.other")
)

func makeKey(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

// ledgerFactories runs each contract test against both implementations.
func ledgerFactories(t *testing.T) map[string]func(t *testing.T) Ledger {
	return map[string]func(t *testing.T) Ledger{
		"mem": func(t *testing.T) Ledger {
			return NewMemLedger(testDeriver, protocol.NewFixedClock(1_700_000_000))
		},
		"bolt": func(t *testing.T) Ledger {
			t.Helper()
			l, err := OpenBoltLedger(filepath.Join(t.TempDir(), "ledger.db"), testDeriver, protocol.NewFixedClock(1_700_000_000))
			require.NoError(t, err)
			t.Cleanup(func() { l.Close() })
			return l
		},
	}
}

func eachLedger(t *testing.T, fn func(t *testing.T, l Ledger)) {
	for name, factory := range ledgerFactories(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func signer(t *testing.T, k *auth.Key) Authority {
	t.Helper()
	p, err := k.Authorize("ledger.test")
	require.NoError(t, err)
	a, err := Signer(p, "ledger.test")
	require.NoError(t, err)
	return a
}

func balance(t *testing.T, l Ledger, addr solana.PublicKey) uint64 {
	t.Helper()
	var bal uint64
	require.NoError(t, l.View(context.Background(), func(tx ReadTx) error {
		var err error
		bal, err = tx.Balance(addr)
		return err
	}))
	return bal
}

func units(t *testing.T, l Ledger, owner, mint solana.PublicKey) uint64 {
	t.Helper()
	var n uint64
	require.NoError(t, l.View(context.Background(), func(tx ReadTx) error {
		h, err := tx.HoldingOf(owner, mint)
		if errors.Is(err, ErrHoldingNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		n = h.Amount
		return nil
	}))
	return n
}

// ---------------------------------------------------------------------------
// Cash tests
// ---------------------------------------------------------------------------

func TestCreditAndTransfer(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		a, b := makeKey(1), makeKey(2)

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			if err := tx.Credit(a, 1000); err != nil {
				return err
			}
			return tx.Transfer(a, b, 300)
		}))
		assert.Equal(t, uint64(700), balance(t, l, a))
		assert.Equal(t, uint64(300), balance(t, l, b))
	})
}

func TestTransfer_Insufficient(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		a, b := makeKey(1), makeKey(2)
		require.NoError(t, l.Update(ctx, func(tx Tx) error { return tx.Credit(a, 10) }))

		err := l.Update(ctx, func(tx Tx) error { return tx.Transfer(a, b, 11) })
		assert.ErrorIs(t, err, protocol.ErrInsufficientBalance)
		assert.Equal(t, protocol.KindCapacity, protocol.KindOf(err))
		assert.Equal(t, uint64(10), balance(t, l, a))
		assert.Zero(t, balance(t, l, b))
	})
}

func TestTransfer_ZeroIsNoop(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		require.NoError(t, l.Update(context.Background(), func(tx Tx) error {
			return tx.Transfer(makeKey(1), makeKey(2), 0)
		}))
		assert.Zero(t, balance(t, l, makeKey(2)))
	})
}

func TestUpdate_RollbackOnError(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		a, b, c := makeKey(1), makeKey(2), makeKey(3)
		require.NoError(t, l.Update(ctx, func(tx Tx) error { return tx.Credit(a, 100) }))

		// First leg succeeds, second fails: neither may be visible.
		err := l.Update(ctx, func(tx Tx) error {
			if err := tx.Transfer(a, b, 60); err != nil {
				return err
			}
			return tx.Transfer(a, c, 60)
		})
		require.ErrorIs(t, err, protocol.ErrInsufficientBalance)

		assert.Equal(t, uint64(100), balance(t, l, a))
		assert.Zero(t, balance(t, l, b))
		assert.Zero(t, balance(t, l, c))

		var journal []JournalEntry
		require.NoError(t, l.View(ctx, func(tx ReadTx) error {
			var err error
			journal, err = tx.Journal(b)
			return err
		}))
		assert.Empty(t, journal)
	})
}

func TestUpdate_CancelledContext(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := l.Update(ctx, func(tx Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestView_ReadOnly(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		err := l.View(context.Background(), func(tx ReadTx) error {
			return tx.(Tx).Credit(makeKey(1), 5)
		})
		assert.Error(t, err)
		assert.Zero(t, balance(t, l, makeKey(1)))
	})
}

// ---------------------------------------------------------------------------
// Custody tests
// ---------------------------------------------------------------------------

func TestUnitTransfer(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		sellerKey, err := auth.NewKey()
		require.NoError(t, err)
		seller, buyer, mint := sellerKey.Address(), makeKey(9), makeKey(7)

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			src, err := tx.OpenHolding(seller, mint)
			if err != nil {
				return err
			}
			dst, err := tx.OpenHolding(buyer, mint)
			if err != nil {
				return err
			}
			if err := tx.IssueUnits(src.Address, 1); err != nil {
				return err
			}
			return tx.TransferUnit(src.Address, dst.Address, signer(t, sellerKey), 1)
		}))
		assert.Zero(t, units(t, l, seller, mint))
		assert.Equal(t, uint64(1), units(t, l, buyer, mint))
	})
}

func TestUnitTransfer_WrongAuthority(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		owner, err := auth.NewKey()
		require.NoError(t, err)
		thief, err := auth.NewKey()
		require.NoError(t, err)
		mint := makeKey(7)

		err = l.Update(ctx, func(tx Tx) error {
			src, err := tx.OpenHolding(owner.Address(), mint)
			if err != nil {
				return err
			}
			dst, err := tx.OpenHolding(thief.Address(), mint)
			if err != nil {
				return err
			}
			if err := tx.IssueUnits(src.Address, 1); err != nil {
				return err
			}
			return tx.TransferUnit(src.Address, dst.Address, signer(t, thief), 1)
		})
		assert.ErrorIs(t, err, protocol.ErrUnauthorized)
		assert.Zero(t, units(t, l, owner.Address(), mint), "rolled back issue")
	})
}

func TestUnitTransfer_MintMismatch(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		owner, err := auth.NewKey()
		require.NoError(t, err)
		err = l.Update(context.Background(), func(tx Tx) error {
			src, err := tx.OpenHolding(owner.Address(), makeKey(1))
			if err != nil {
				return err
			}
			dst, err := tx.OpenHolding(makeKey(5), makeKey(2))
			if err != nil {
				return err
			}
			if err := tx.IssueUnits(src.Address, 1); err != nil {
				return err
			}
			return tx.TransferUnit(src.Address, dst.Address, signer(t, owner), 1)
		})
		assert.ErrorIs(t, err, ErrMintMismatch)
	})
}

func TestSigner_RejectsUnverified(t *testing.T) {
	_, err := Signer(auth.Principal{}, "ledger.test")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestSigner_RejectsOtherAction(t *testing.T) {
	k, err := auth.NewKey()
	require.NoError(t, err)
	p, err := k.Authorize("ledger.other")
	require.NoError(t, err)
	_, err = Signer(p, "ledger.test")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

// ---------------------------------------------------------------------------
// Escrow tests
// ---------------------------------------------------------------------------

func TestEscrow_DepositRelease(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		sellerKey, err := auth.NewKey()
		require.NoError(t, err)
		seller, buyer, mint := sellerKey.Address(), makeKey(9), makeKey(7)
		listing := testDeriver.Listing(seller, mint)

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			src, err := tx.OpenHolding(seller, mint)
			if err != nil {
				return err
			}
			if err := tx.IssueUnits(src.Address, 1); err != nil {
				return err
			}
			esc, err := tx.OpenEscrow(testGrantor, listing, mint)
			if err != nil {
				return err
			}
			return esc.Deposit(src.Address, signer(t, sellerKey), 1)
		}))
		assert.Zero(t, units(t, l, seller, mint))
		assert.Equal(t, uint64(1), units(t, l, listing, mint))

		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			esc, err := tx.Escrow(testGrantor, listing, mint)
			if err != nil {
				return err
			}
			dst, err := tx.OpenHolding(buyer, mint)
			if err != nil {
				return err
			}
			return esc.Release(dst.Address)
		}))
		assert.Zero(t, units(t, l, listing, mint))
		assert.Equal(t, uint64(1), units(t, l, buyer, mint))

		// An empty slot cannot be released twice.
		err = l.Update(ctx, func(tx Tx) error {
			esc, err := tx.Escrow(testGrantor, listing, mint)
			if err != nil {
				return err
			}
			return esc.Release(testDeriver.Custody(buyer, mint))
		})
		assert.ErrorIs(t, err, protocol.ErrNFTNotOwned)
	})
}

func TestEscrow_SignerCannotDrain(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		key, err := auth.NewKey()
		require.NoError(t, err)
		mint := makeKey(7)

		err = l.Update(context.Background(), func(tx Tx) error {
			// A slot granted to the key's own address is still not movable
			// with a signer authority.
			esc, err := tx.OpenEscrow(testGrantor, key.Address(), mint)
			if err != nil {
				return err
			}
			if err := tx.IssueUnits(esc.Address(), 1); err != nil {
				return err
			}
			dst, err := tx.OpenHolding(makeKey(3), mint)
			if err != nil {
				return err
			}
			return tx.TransferUnit(esc.Address(), dst.Address, signer(t, key), 1)
		})
		assert.ErrorIs(t, err, protocol.ErrUnauthorized)
	})
}

func TestEscrow_NotFound(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		err := l.Update(context.Background(), func(tx Tx) error {
			_, err := tx.Escrow(testGrantor, makeKey(1), makeKey(2))
			return err
		})
		assert.ErrorIs(t, err, ErrEscrowNotFound)
	})
}

func TestGrantor_KindClaimedOnce(t *testing.T) {
	_, err := NewGrantor("ledger.test")
	assert.ErrorIs(t, err, ErrGrantorTaken)
	_, err = NewGrantor("")
	assert.ErrorIs(t, err, ErrNilParam)
	assert.Panics(t, func() { MustGrantor("ledger.test") })
	assert.Equal(t, "ledger.test", testGrantor.Kind())
}

func TestEscrow_OtherGrantorCannotReach(t *testing.T) {
	other := otherGrantor
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		listing, mint := makeKey(4), makeKey(5)
		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			esc, err := tx.OpenEscrow(testGrantor, listing, mint)
			if err != nil {
				return err
			}
			return tx.IssueUnits(esc.Address(), 1)
		}))

		tests := []struct {
			name    string
			grantor *Grantor
			wantErr error
		}{
			{"other kind", other, protocol.ErrUnauthorized},
			{"unregistered", &Grantor{kind: "ledger.test"}, protocol.ErrUnauthorized},
			{"zero value", &Grantor{}, protocol.ErrUnauthorized},
			{"nil", nil, ErrNilParam},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				err := l.Update(ctx, func(tx Tx) error {
					esc, err := tx.Escrow(tc.grantor, listing, mint)
					if err != nil {
						return err
					}
					dst, err := tx.OpenHolding(makeKey(6), mint)
					if err != nil {
						return err
					}
					return esc.Release(dst.Address)
				})
				assert.ErrorIs(t, err, tc.wantErr)

				err = l.Update(ctx, func(tx Tx) error {
					_, err := tx.OpenEscrow(tc.grantor, listing, mint)
					return err
				})
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}
		assert.Equal(t, uint64(1), units(t, l, listing, mint))
		assert.Zero(t, units(t, l, makeKey(6), mint))
	})
}

func TestEscrow_ClosedAfterCommit(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		var leaked *Escrow
		require.NoError(t, l.Update(context.Background(), func(tx Tx) error {
			var err error
			leaked, err = tx.OpenEscrow(testGrantor, makeKey(1), makeKey(2))
			return err
		}))
		_, err := leaked.Units()
		assert.ErrorIs(t, err, ErrTxClosed)
	})
}

// ---------------------------------------------------------------------------
// Record and journal tests
// ---------------------------------------------------------------------------

type testRecord struct {
	Name  string
	Price uint64
}

func TestRecords(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			if err := tx.PutRecord("sale", makeKey(2), &testRecord{Name: "b", Price: 2}); err != nil {
				return err
			}
			if err := tx.PutRecord("sale", makeKey(1), &testRecord{Name: "a", Price: 1}); err != nil {
				return err
			}
			return tx.PutRecord("pool", makeKey(1), &testRecord{Name: "p"})
		}))

		require.NoError(t, l.View(ctx, func(tx ReadTx) error {
			var r testRecord
			require.NoError(t, tx.GetRecord("sale", makeKey(2), &r))
			assert.Equal(t, testRecord{Name: "b", Price: 2}, r)

			keys, err := tx.RecordKeys("sale")
			require.NoError(t, err)
			assert.Equal(t, []solana.PublicKey{makeKey(1), makeKey(2)}, keys)

			ok, err := tx.HasRecord("listing", makeKey(1))
			require.NoError(t, err)
			assert.False(t, ok)

			err = tx.GetRecord("listing", makeKey(1), &r)
			assert.ErrorIs(t, err, ErrRecordNotFound)
			return nil
		}))

		require.NoError(t, l.Update(ctx, func(tx Tx) error { return tx.DeleteRecord("sale", makeKey(1)) }))
		require.NoError(t, l.View(ctx, func(tx ReadTx) error {
			ok, err := tx.HasRecord("sale", makeKey(1))
			require.NoError(t, err)
			assert.False(t, ok)
			return nil
		}))
	})
}

func TestJournal(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		a, b := makeKey(1), makeKey(2)
		require.NoError(t, l.Update(ctx, func(tx Tx) error {
			if err := tx.Credit(a, 50); err != nil {
				return err
			}
			return tx.Transfer(a, b, 20)
		}))

		var entries []JournalEntry
		require.NoError(t, l.View(ctx, func(tx ReadTx) error {
			var err error
			entries, err = tx.Journal(a)
			return err
		}))
		require.Len(t, entries, 2)
		assert.Equal(t, JournalCredit, entries[0].Kind)
		assert.Equal(t, JournalTransfer, entries[1].Kind)
		assert.Less(t, entries[0].Seq, entries[1].Seq)
		assert.NotEqual(t, entries[0].ID, entries[1].ID)
		assert.Equal(t, int64(1_700_000_000), entries[1].At.Unix())
	})
}

func TestBoltLedger_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := OpenBoltLedger(path, testDeriver, nil)
	require.NoError(t, err)
	require.NoError(t, l.Update(context.Background(), func(tx Tx) error { return tx.Credit(makeKey(1), 99) }))
	require.NoError(t, l.Close())

	reopened, err := OpenBoltLedger(path, testDeriver, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(99), balance(t, reopened, makeKey(1)))
}

// --- codec tests ---

func TestDecodeHolding_WrongSize(t *testing.T) {
	_, err := decodeHolding([]byte{0x01})
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestHoldingCodec_Grantor(t *testing.T) {
	slot := &Holding{Address: makeKey(1), Owner: makeKey(2), Mint: makeKey(3), Amount: 1, Escrow: true, Grantor: "listing"}
	got, err := decodeHolding(encodeHolding(slot))
	require.NoError(t, err)
	assert.Equal(t, slot, got)

	plain := &Holding{Address: makeKey(1), Owner: makeKey(2), Mint: makeKey(3), Amount: 4}
	data := encodeHolding(plain)
	assert.Len(t, data, holdingSize)

	_, err = decodeHolding(append(data, 'x'))
	assert.ErrorIs(t, err, ErrCorruptData)
}
