// internal/engine/liquidate.go
package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// Liquidate closes an undercollateralized position on behalf of anyone.
// The owner receives the remaining equity; the liquidator receives a reward
// from the fee reserve when the reserve can cover all of it.
func (e *Engine) Liquidate(ctx context.Context, liquidator, account solana.PublicKey) (res *LiquidationResult, err error) {
	ctx, unlock, err := e.enter(ctx)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	defer unlock()
	start := time.Now()
	defer func() { e.finish(ctx, OpLiquidate, start, err) }()

	p := e.load(account)
	if !p.IsOpen() {
		return nil, opError(OpLiquidate, ErrNoPosition)
	}

	price, err := e.price(ctx)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	pnl, err := position.ComputePnL(p.IsLong, p.Size, p.EntryPrice, price)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	equity, err := position.SettledEquity(p.Margin, pnl)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	required, err := fixedpoint.Bps(p.Margin, e.params.MaintenanceMarginBps)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	if equity.Gt(required) {
		return nil, opError(OpLiquidate, ErrNotLiquidatable)
	}
	reward, err := fixedpoint.Bps(p.Margin, e.params.LiquidationRewardBps)
	if err != nil {
		return nil, opError(OpLiquidate, err)
	}
	if err := e.checkLiquidity(ctx, equity); err != nil {
		return nil, opError(OpLiquidate, err)
	}

	// zero the position and reserve the reward before any funds move
	e.remove(account)
	rewardPaid := !reward.IsZero() && e.reserve.TryDebit(reward)

	if err := e.pay(ctx, OpLiquidate, account, equity); err != nil {
		e.store(account, p)
		if rewardPaid {
			e.recredit(reward)
		}
		return nil, err
	}

	if rewardPaid {
		if err := e.pay(ctx, OpLiquidate, liquidator, reward); err != nil {
			e.logger.Warn("Liquidation reward not delivered, skipping",
				zap.Stringer("liquidator", liquidator),
				zap.String("reward", fixedpoint.Format(reward)),
				zap.Error(err))
			e.recredit(reward)
			rewardPaid = false
		}
	} else if !reward.IsZero() {
		e.logger.Info("Fee reserve cannot cover liquidation reward, skipping",
			zap.String("reward", fixedpoint.Format(reward)),
			zap.String("reserve", fixedpoint.Format(e.reserve.Balance())))
	}

	res = &LiquidationResult{
		Account:        account,
		Liquidator:     liquidator,
		Position:       p,
		Price:          price.Clone(),
		Equity:         equity,
		RequiredMargin: required,
		Reward:         fixedpoint.Zero(),
		RewardPaid:     rewardPaid,
	}
	if rewardPaid {
		res.Reward = reward
	}

	e.logger.Info("Position liquidated",
		append(p.Fields(),
			zap.Stringer("account", account),
			zap.Stringer("liquidator", liquidator),
			zap.String("price", fixedpoint.Format(price)),
			zap.String("equity", fixedpoint.Format(equity)),
			zap.String("reward", fixedpoint.Format(res.Reward)))...)
	e.publish(&events.PositionLiquidatedEvent{
		BaseEvent:  events.NewBase(events.PositionLiquidated, account, e.clock()),
		Liquidator: liquidator,
		IsLong:     p.IsLong,
		Margin:     p.Margin,
		Size:       p.Size,
		Price:      res.Price,
		Equity:     equity,
		Reward:     res.Reward,
	})
	return res, nil
}
