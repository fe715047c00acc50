// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// RecordOperation записывает результат и длительность операции движка
func (c *Collector) RecordOperation(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeRejected
	}
	c.operations.WithLabelValues(op, outcome).Inc()
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// UpdateBalances publishes the reserve and custody balances as decimals.
func (c *Collector) UpdateBalances(feeReserve, custody *uint256.Int) {
	if c == nil {
		return
	}
	if feeReserve != nil {
		c.feeReserve.Set(fixedpoint.ToDecimal(feeReserve).InexactFloat64())
	}
	if custody != nil {
		c.custodyBalance.Set(fixedpoint.ToDecimal(custody).InexactFloat64())
	}
}

// UpdateOpenPositions sets the open position gauge.
func (c *Collector) UpdateOpenPositions(n int) {
	if c == nil {
		return
	}
	c.openPositions.Set(float64(n))
}

// RecordKeeperLiquidations counts liquidations performed by the keeper.
func (c *Collector) RecordKeeperLiquidations(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.keeperLiquidations.Add(float64(n))
}
