package market

import (
	"fmt"

	"github.com/optifreight/liboptifreight-go/protocol"
)

// Settlement is the split of one resale.
type Settlement struct {
	Penalty           uint64 // withheld from the price when sold before term
	PriceAfterPenalty uint64 // what the buyer pays
	Fee               uint64 // to the platform
	Proceeds          uint64 // to the seller
}

// Quote computes the settlement of a listing at price whose unit was bought
// at purchaseDate, sold at now. It has no side effects.
func Quote(price uint64, purchaseDate, now int64, p protocol.Params) (Settlement, error) {
	var s Settlement
	if early(purchaseDate, now, p.TermSeconds()) {
		s.Penalty = p.EarlySalePenalty
	}

	var err error
	if s.PriceAfterPenalty, err = protocol.Sub(price, s.Penalty); err != nil {
		return Settlement{}, fmt.Errorf("%w: price %d less penalty %d", err, price, s.Penalty)
	}
	if s.Fee, err = protocol.ApplyBps(s.PriceAfterPenalty, p.SecondaryFeeBps); err != nil {
		return Settlement{}, fmt.Errorf("%w: fee on %d", err, s.PriceAfterPenalty)
	}
	if s.Proceeds, err = protocol.Sub(s.PriceAfterPenalty, s.Fee); err != nil {
		return Settlement{}, fmt.Errorf("%w: proceeds of %d", err, s.PriceAfterPenalty)
	}
	return s, nil
}

// early reports whether less than term seconds passed between purchase and
// now. A purchase date in the future counts as early.
func early(purchaseDate, now, term int64) bool {
	if now < purchaseDate {
		return true
	}
	held := uint64(now) - uint64(purchaseDate)
	return held < uint64(term)
}
