package returns

import "github.com/optifreight/liboptifreight-go/protocol"

var (
	// ErrNoHolders indicates a distribution plan with no holders.
	ErrNoHolders = protocol.NewError(protocol.KindValidation, "NoHolders", "returns: no holders")

	// ErrZeroSupply indicates a zero supply denominator.
	ErrZeroSupply = protocol.NewError(protocol.KindValidation, "ZeroSupply", "returns: zero total supply")

	// ErrOverAllocated indicates holders claim more units than the supply.
	ErrOverAllocated = protocol.NewError(protocol.KindValidation, "OverAllocated", "returns: holder units exceed total supply")

	// ErrPlanMismatch indicates a payout plan that does not match holder proportions.
	ErrPlanMismatch = protocol.NewError(protocol.KindValidation, "PlanMismatch", "returns: payout plan mismatch")
)
