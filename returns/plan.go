package returns

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/optifreight/liboptifreight-go/protocol"
)

// Holder is one recipient of a distribution and the units it holds.
type Holder struct {
	Address solana.PublicKey
	Units   uint16
}

// Payout is a single transfer out of the pool vault.
type Payout struct {
	Address solana.PublicKey
	Amount  uint64
}

// Plan splits balance across holders in proportion to their units out of
// supply. Each payout is balance*units/supply, rounded down; the remainder
// stays in the vault for the next cycle.
func Plan(balance uint64, holders []Holder, supply uint16) ([]Payout, error) {
	if len(holders) == 0 {
		return nil, ErrNoHolders
	}
	if supply == 0 {
		return nil, ErrZeroSupply
	}

	var allocated uint32
	payouts := make([]Payout, len(holders))
	for i, h := range holders {
		allocated += uint32(h.Units)
		if allocated > uint32(supply) {
			return nil, fmt.Errorf("%w: %d > %d", ErrOverAllocated, allocated, supply)
		}
		amount, err := protocol.MulDiv(balance, uint64(h.Units), uint64(supply))
		if err != nil {
			return nil, err
		}
		payouts[i] = Payout{Address: h.Address, Amount: amount}
	}
	return payouts, nil
}

// ValidatePlan checks that payouts match the proportional split of balance
// and never exceed it.
func ValidatePlan(payouts []Payout, holders []Holder, balance uint64, supply uint16) error {
	if len(payouts) != len(holders) {
		return fmt.Errorf("%w: %d payouts for %d holders", ErrPlanMismatch, len(payouts), len(holders))
	}
	expected, err := Plan(balance, holders, supply)
	if err != nil {
		return err
	}
	var sum uint64
	for i := range payouts {
		if !payouts[i].Address.Equals(expected[i].Address) {
			return fmt.Errorf("%w: entry %d address", ErrPlanMismatch, i)
		}
		if payouts[i].Amount != expected[i].Amount {
			return fmt.Errorf("%w: entry %d amount %d != %d", ErrPlanMismatch, i, payouts[i].Amount, expected[i].Amount)
		}
		if sum, err = protocol.Add(sum, payouts[i].Amount); err != nil {
			return err
		}
	}
	if sum > balance {
		return fmt.Errorf("%w: %d paid from %d", ErrPlanMismatch, sum, balance)
	}
	return nil
}

// Total returns the sum of payouts.
func Total(payouts []Payout) (uint64, error) {
	var sum uint64
	for _, p := range payouts {
		var err error
		if sum, err = protocol.Add(sum, p.Amount); err != nil {
			return 0, err
		}
	}
	return sum, nil
}
