package protocol

import "fmt"

const (
	SecondsPerDay  = 86400
	DaysPerYear    = 365
	SecondsPerYear = DaysPerYear * SecondsPerDay
)

// Params holds the economic constants of the protocol. It is injected into
// every component at construction.
type Params struct {
	TokenPrice            uint64 `mapstructure:"token_price"`             // primary price per unit, lamports
	TokensPerTrailer      uint16 `mapstructure:"tokens_per_trailer"`      // default sale size
	PrimaryFeeBps         uint16 `mapstructure:"primary_fee_bps"`         // platform fee on primary purchases
	SecondaryFeeBps       uint16 `mapstructure:"secondary_fee_bps"`       // marketplace fee on resale
	EarlySalePenalty      uint64 `mapstructure:"early_sale_penalty"`      // deducted when resold before term
	MinimumPrice          uint64 `mapstructure:"minimum_price"`           // resale floor
	TermYears             uint8  `mapstructure:"term_years"`              // holding period before penalty lifts
	DistributionDay       uint8  `mapstructure:"distribution_day"`        // day index within the cycle
	DistributionCycleDays uint8  `mapstructure:"distribution_cycle_days"` // cycle length in days
	TotalSupplyUnits      uint16 `mapstructure:"total_supply_units"`      // denominator for pool payouts
}

// DefaultParams returns the production schedule.
func DefaultParams() Params {
	return Params{
		TokenPrice:            120_000_000,
		TokensPerTrailer:      1000,
		PrimaryFeeBps:         300,
		SecondaryFeeBps:       300,
		EarlySalePenalty:      25_000_000,
		MinimumPrice:          149_500_000,
		TermYears:             5,
		DistributionDay:       20,
		DistributionCycleDays: 30,
		TotalSupplyUnits:      1000,
	}
}

// Validate checks internal consistency of the schedule.
func (p Params) Validate() error {
	switch {
	case p.PrimaryFeeBps > BasisPoints:
		return fmt.Errorf("%w: primary_fee_bps %d exceeds %d", ErrInvalidParams, p.PrimaryFeeBps, BasisPoints)
	case p.SecondaryFeeBps > BasisPoints:
		return fmt.Errorf("%w: secondary_fee_bps %d exceeds %d", ErrInvalidParams, p.SecondaryFeeBps, BasisPoints)
	case p.MinimumPrice < p.EarlySalePenalty:
		return fmt.Errorf("%w: minimum_price %d below early_sale_penalty %d", ErrInvalidParams, p.MinimumPrice, p.EarlySalePenalty)
	case p.TermYears == 0:
		return fmt.Errorf("%w: term_years must be positive", ErrInvalidParams)
	case p.DistributionCycleDays == 0:
		return fmt.Errorf("%w: distribution_cycle_days must be positive", ErrInvalidParams)
	case p.DistributionDay >= p.DistributionCycleDays:
		return fmt.Errorf("%w: distribution_day %d outside cycle of %d days", ErrInvalidParams, p.DistributionDay, p.DistributionCycleDays)
	case p.TotalSupplyUnits == 0:
		return fmt.Errorf("%w: total_supply_units must be positive", ErrInvalidParams)
	}
	return nil
}

// TermSeconds is the holding period after which no early-sale penalty applies.
func (p Params) TermSeconds() int64 {
	return int64(p.TermYears) * SecondsPerYear
}

// CycleDay returns the day index of now within the distribution cycle.
func (p Params) CycleDay(now int64) uint8 {
	return uint8((now / SecondsPerDay) % int64(p.DistributionCycleDays))
}

// Cycle returns the distribution cycle number containing now.
func (p Params) Cycle(now int64) uint64 {
	return uint64(now / SecondsPerDay / int64(p.DistributionCycleDays))
}

// IsDistributionDay reports whether now falls on the distribution day.
func (p Params) IsDistributionDay(now int64) bool {
	return p.CycleDay(now) == p.DistributionDay
}
