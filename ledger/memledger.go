package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// MemLedger is an in-memory Ledger. Update works on a copy of the state and
// swaps it in on success, so a failed callback leaves nothing behind.
type MemLedger struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	d       derive.Deriver
	clock   protocol.Clock
}

var _ Ledger = (*MemLedger)(nil)

// NewMemLedger creates an empty in-memory ledger. A nil clock uses the
// system clock for journal timestamps.
func NewMemLedger(d derive.Deriver, clock protocol.Clock) *MemLedger {
	if clock == nil {
		clock = protocol.RealClock{}
	}
	buckets := make(map[string]map[string][]byte, len(allBuckets))
	for _, name := range allBuckets {
		buckets[name] = make(map[string][]byte)
	}
	return &MemLedger{buckets: buckets, d: d, clock: clock}
}

// Update runs fn against a snapshot and commits it if fn returns nil.
func (l *MemLedger) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &memStore{buckets: cloneBuckets(l.buckets), rw: true}
	t := &txn{s: snap, d: l.d, clock: l.clock}
	err := fn(t)
	t.closed = true
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.buckets = snap.buckets
	return nil
}

// View runs fn against the current state.
func (l *MemLedger) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := &txn{s: &memStore{buckets: l.buckets}, d: l.d, clock: l.clock}
	defer func() { t.closed = true }()
	return fn(t)
}

// Close is a no-op.
func (l *MemLedger) Close() error { return nil }

func cloneBuckets(src map[string]map[string][]byte) map[string]map[string][]byte {
	dst := make(map[string]map[string][]byte, len(src))
	for name, b := range src {
		nb := make(map[string][]byte, len(b))
		for k, v := range b {
			nb[k] = v
		}
		dst[name] = nb
	}
	return dst
}

// memStore implements store over nested maps. Values are never mutated in
// place, so the shallow clone above is enough for isolation.
type memStore struct {
	buckets map[string]map[string][]byte
	rw      bool
}

func (s *memStore) get(bucket string, key []byte) ([]byte, error) {
	v, ok := s.buckets[bucket][string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *memStore) put(bucket string, key, val []byte) error {
	v := make([]byte, len(val))
	copy(v, val)
	s.buckets[bucket][string(key)] = v
	return nil
}

func (s *memStore) del(bucket string, key []byte) error {
	delete(s.buckets[bucket], string(key))
	return nil
}

func (s *memStore) scan(bucket string, prefix []byte, fn func(k, v []byte) error) error {
	b := s.buckets[bucket]
	keys := make([]string, 0, len(b))
	for k := range b {
		if hasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), b[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) writable() bool { return s.rw }
