package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	bucketBalances = "balances"
	bucketHoldings = "holdings"
	bucketRecords  = "records"
	bucketJournal  = "journal"
	bucketMeta     = "meta"
)

var allBuckets = []string{bucketBalances, bucketHoldings, bucketRecords, bucketJournal, bucketMeta}

var keyJournalSeq = []byte("journal_seq")

// holdingSize is the fixed part of an encoded holding: address(32) +
// owner(32) + mint(32) + amount(8) + flags(1). Escrow slots append the
// grantor kind.
const holdingSize = 105

func encodeHolding(h *Holding) []byte {
	buf := make([]byte, holdingSize, holdingSize+len(h.Grantor))
	copy(buf[0:32], h.Address[:])
	copy(buf[32:64], h.Owner[:])
	copy(buf[64:96], h.Mint[:])
	binary.BigEndian.PutUint64(buf[96:104], h.Amount)
	if h.Escrow {
		buf[104] = 0x01
		buf = append(buf, h.Grantor...)
	}
	return buf
}

func decodeHolding(data []byte) (*Holding, error) {
	if len(data) < holdingSize {
		return nil, fmt.Errorf("%w: holding expected at least %d bytes, got %d", ErrCorruptData, holdingSize, len(data))
	}
	h := &Holding{}
	copy(h.Address[:], data[0:32])
	copy(h.Owner[:], data[32:64])
	copy(h.Mint[:], data[64:96])
	h.Amount = binary.BigEndian.Uint64(data[96:104])
	h.Escrow = data[104]&0x01 != 0
	if len(data) > holdingSize {
		if !h.Escrow {
			return nil, fmt.Errorf("%w: grantor on a non-escrow holding", ErrCorruptData)
		}
		h.Grantor = string(data[holdingSize:])
	}
	return h, nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(data []byte) (uint64, error) {
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes, got %d", ErrCorruptData, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// recordKey prefixes key with its kind so one bucket holds every record type.
func recordKey(kind string, key solana.PublicKey) []byte {
	k := make([]byte, 0, len(kind)+1+len(key))
	k = append(k, kind...)
	k = append(k, 0x00)
	return append(k, key[:]...)
}

func recordPrefix(kind string) []byte {
	return append([]byte(kind), 0x00)
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
