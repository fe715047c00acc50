// internal/engine/params.go
package engine

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// Params are the risk parameters of the engine. Rates are in basis points.
type Params struct {
	FeeRateBps           uint64
	MaintenanceMarginBps uint64
	LiquidationRewardBps uint64
	MinLeverage          uint64
	MaxLeverage          uint64
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{
		FeeRateBps:           10,
		MaintenanceMarginBps: 500,
		LiquidationRewardBps: 500,
		MinLeverage:          2,
		MaxLeverage:          50,
	}
}

// Validate checks the parameters are internally consistent.
func (p Params) Validate() error {
	if p.FeeRateBps > fixedpoint.BasisPoints ||
		p.MaintenanceMarginBps > fixedpoint.BasisPoints ||
		p.LiquidationRewardBps > fixedpoint.BasisPoints {
		return errors.New("rates must not exceed 10000 bps")
	}
	if p.MinLeverage < 2 || p.MinLeverage > p.MaxLeverage {
		return fmt.Errorf("leverage bounds [%d, %d] are invalid", p.MinLeverage, p.MaxLeverage)
	}
	// the entry fee must leave a positive net margin at max leverage
	if p.FeeRateBps*p.MaxLeverage >= fixedpoint.BasisPoints {
		return fmt.Errorf("fee rate %d bps consumes the whole margin at %dx", p.FeeRateBps, p.MaxLeverage)
	}
	return nil
}
