package ledger

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// BoltLedger is a Ledger persisted in a bbolt database. Each Update is one
// bbolt read-write transaction; bbolt aborts it when fn returns an error.
type BoltLedger struct {
	db    *bbolt.DB
	d     derive.Deriver
	clock protocol.Clock
}

var _ Ledger = (*BoltLedger)(nil)

// openTimeout bounds the wait for another process holding the database lock.
const openTimeout = 2 * time.Second

// OpenBoltLedger opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltLedger(dbPath string, d derive.Deriver, clock protocol.Clock) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("ledger: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}

	if clock == nil {
		clock = protocol.RealClock{}
	}
	return &BoltLedger{db: db, d: d, clock: clock}, nil
}

// Close closes the underlying database.
func (l *BoltLedger) Close() error { return l.db.Close() }

// Update runs fn in a bbolt read-write transaction.
func (l *BoltLedger) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Update(func(btx *bbolt.Tx) error {
		t := &txn{s: &boltStore{tx: btx}, d: l.d, clock: l.clock}
		defer func() { t.closed = true }()
		if err := fn(t); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// View runs fn in a bbolt read-only transaction.
func (l *BoltLedger) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.View(func(btx *bbolt.Tx) error {
		t := &txn{s: &boltStore{tx: btx}, d: l.d, clock: l.clock}
		defer func() { t.closed = true }()
		return fn(t)
	})
}

// boltStore implements store over one bbolt transaction.
type boltStore struct {
	tx *bbolt.Tx
}

func (s *boltStore) bucket(name string) (*bbolt.Bucket, error) {
	b := s.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("ledger: missing bucket %q", name)
	}
	return b, nil
}

func (s *boltStore) get(bucket string, key []byte) ([]byte, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, nil
	}
	// bbolt values are only valid for the life of the transaction.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *boltStore) put(bucket string, key, val []byte) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Put(key, val); err != nil {
		return fmt.Errorf("ledger: put %s: %w", bucket, err)
	}
	return nil
}

func (s *boltStore) del(bucket string, key []byte) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", bucket, err)
	}
	return nil
}

func (s *boltStore) scan(bucket string, prefix []byte, fn func(k, v []byte) error) error {
	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	c := b.Cursor()
	var k, v []byte
	if len(prefix) == 0 {
		k, v = c.First()
	} else {
		k, v = c.Seek(prefix)
	}
	for ; k != nil && (len(prefix) == 0 || bytes.HasPrefix(k, prefix)); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *boltStore) writable() bool { return s.tx.Writable() }
