package registry

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/protocol"
)

// RecordKind is the ledger record kind of trailer assets.
const RecordKind = "trailer"

// Field limits.
const (
	MaxNameLen   = 50
	MaxSymbolLen = 10
	MaxURILen    = 200
	MaxSeriesLen = 50
)

// TrailerAsset describes one tokenized trailer and its financial terms.
type TrailerAsset struct {
	Authority   solana.PublicKey
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	URI         string
	Series      string
	TotalValue  uint64
	TokenPrice  uint64
	TotalTokens uint16
	TokensSold  uint16
	APY         uint16
	TermYears   uint8
	IsLocked    bool
	CreatedAt   int64
	ExpiryAt    int64
}

// Remaining returns the units not yet sold.
func (a *TrailerAsset) Remaining() uint16 {
	return a.TotalTokens - a.TokensSold
}

// Expired reports whether the asset's term has ended at now.
func (a *TrailerAsset) Expired(now int64) bool {
	return now >= a.ExpiryAt
}

// Load reads the asset record for mint within tx.
func Load(tx ledger.ReadTx, d derive.Deriver, mint solana.PublicKey) (*TrailerAsset, error) {
	var a TrailerAsset
	if err := tx.GetRecord(RecordKind, d.Trailer(mint), &a); err != nil {
		if errors.Is(err, ledger.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: mint %s", protocol.ErrAssetNotFound, mint)
		}
		return nil, err
	}
	return &a, nil
}

func save(tx ledger.Tx, d derive.Deriver, a *TrailerAsset) error {
	return tx.PutRecord(RecordKind, d.Trailer(a.Mint), a)
}

// RecordSale adds amount to the asset's sold count within tx.
func RecordSale(tx ledger.Tx, d derive.Deriver, mint solana.PublicKey, amount uint16) error {
	a, err := Load(tx, d, mint)
	if err != nil {
		return err
	}
	sold, err := protocol.AddUnits(a.TokensSold, amount)
	if err != nil {
		return fmt.Errorf("%w: tokens_sold %d + %d", err, a.TokensSold, amount)
	}
	if sold > a.TotalTokens {
		return fmt.Errorf("%w: asset %s has %d of %d units left", protocol.ErrNotEnough, mint, a.Remaining(), a.TotalTokens)
	}
	a.TokensSold = sold
	return save(tx, d, a)
}

func validateFields(name, symbol, uri, series string) error {
	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"name", name, MaxNameLen},
		{"symbol", symbol, MaxSymbolLen},
		{"uri", uri, MaxURILen},
		{"series", series, MaxSeriesLen},
	} {
		if len(f.value) > f.max {
			return fmt.Errorf("%w: %s is %d bytes, max %d", protocol.ErrFieldTooLong, f.field, len(f.value), f.max)
		}
	}
	return nil
}
