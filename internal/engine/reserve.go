// internal/engine/reserve.go
package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// InitializeReserve seeds the fee reserve from the operator's tokens. It
// succeeds once.
func (e *Engine) InitializeReserve(ctx context.Context, operator solana.PublicKey, amount *uint256.Int) (err error) {
	ctx, unlock, err := e.enter(ctx)
	if err != nil {
		return opError(OpInitialize, err)
	}
	defer unlock()
	start := time.Now()
	defer func() { e.finish(ctx, OpInitialize, start, err) }()

	if e.operator.IsZero() || operator != e.operator {
		return opError(OpInitialize, ErrUnauthorized)
	}
	if e.reserve.Initialized() {
		return opError(OpInitialize, ErrAlreadyInitialized)
	}
	if amount == nil {
		amount = fixedpoint.Zero()
	}
	if !amount.IsZero() {
		if err := e.checkFunding(ctx, operator, amount); err != nil {
			return opError(OpInitialize, err)
		}
		if err := e.pull(ctx, OpInitialize, operator, amount); err != nil {
			return err
		}
	}
	if err := e.reserve.Seed(amount); err != nil {
		e.refund(ctx, OpInitialize, operator, amount)
		return opError(OpInitialize, err)
	}

	e.logger.Info("Fee reserve initialized",
		zap.Stringer("operator", operator),
		zap.String("amount", fixedpoint.Format(amount)))
	e.publish(&events.ReserveInitializedEvent{
		BaseEvent: events.NewBase(events.ReserveInitialized, operator, e.clock()),
		Amount:    amount.Clone(),
	})
	return nil
}
