// internal/engine/close.go
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// settlement is the valuation of a position being closed at price.
type settlement struct {
	pnl      *big.Int
	equity   *uint256.Int // floored at zero
	profit   *uint256.Int
	loss     *uint256.Int // at most the margin
	closeFee *uint256.Int
	payout   *uint256.Int
}

func (e *Engine) settle(p position.Position, price *uint256.Int) (settlement, error) {
	pnl, err := position.ComputePnL(p.IsLong, p.Size, p.EntryPrice, price)
	if err != nil {
		return settlement{}, err
	}
	equity, err := position.SettledEquity(p.Margin, pnl)
	if err != nil {
		return settlement{}, err
	}
	closeFee, err := fixedpoint.Bps(p.Size, e.params.FeeRateBps)
	if err != nil {
		return settlement{}, err
	}

	s := settlement{
		pnl:      pnl,
		equity:   equity,
		profit:   fixedpoint.Zero(),
		loss:     fixedpoint.Zero(),
		closeFee: closeFee,
		payout:   fixedpoint.SubFloor(equity, closeFee),
	}
	if pnl.Sign() > 0 {
		s.profit = fixedpoint.SubFloor(equity, p.Margin)
	} else if pnl.Sign() < 0 {
		s.loss = fixedpoint.SubFloor(p.Margin, equity)
	}
	return s, nil
}

func (s settlement) result(account solana.PublicKey, p position.Position, price *uint256.Int) *CloseResult {
	return &CloseResult{
		Account:        account,
		Position:       p,
		ExitPrice:      price.Clone(),
		PnL:            s.pnl,
		RealizedProfit: s.profit,
		RealizedLoss:   s.loss,
		CloseFee:       s.closeFee,
		Payout:         s.payout,
	}
}

func closedEvent(r *CloseResult, at time.Time, implicit bool) *events.PositionClosedEvent {
	return &events.PositionClosedEvent{
		BaseEvent:      events.NewBase(events.PositionClosed, r.Account, at),
		IsLong:         r.Position.IsLong,
		Margin:         r.Position.Margin,
		Size:           r.Position.Size,
		EntryPrice:     r.Position.EntryPrice,
		ExitPrice:      r.ExitPrice,
		RealizedProfit: r.RealizedProfit,
		RealizedLoss:   r.RealizedLoss,
		CloseFee:       r.CloseFee,
		Payout:         r.Payout,
		Implicit:       implicit,
	}
}

// Close settles the account's position at the current price and pays the
// remaining margin out of custody. The close fee goes to the fee reserve.
func (e *Engine) Close(ctx context.Context, account solana.PublicKey) (res *CloseResult, err error) {
	ctx, unlock, err := e.enter(ctx)
	if err != nil {
		return nil, opError(OpClose, err)
	}
	defer unlock()
	start := time.Now()
	defer func() { e.finish(ctx, OpClose, start, err) }()

	p := e.load(account)
	if !p.IsOpen() {
		return nil, opError(OpClose, ErrNoPosition)
	}

	price, err := e.price(ctx)
	if err != nil {
		return nil, opError(OpClose, err)
	}
	s, err := e.settle(p, price)
	if err != nil {
		return nil, opError(OpClose, err)
	}
	if err := e.checkLiquidity(ctx, s.payout); err != nil {
		return nil, opError(OpClose, err)
	}

	// state first, then funds
	if err := e.reserve.Credit(s.closeFee); err != nil {
		return nil, opError(OpClose, err)
	}
	e.remove(account)

	if err := e.pay(ctx, OpClose, account, s.payout); err != nil {
		e.store(account, p)
		e.uncredit(s.closeFee)
		return nil, err
	}

	res = s.result(account, p, price)
	e.logger.Info("Position closed",
		append(p.Fields(),
			zap.Stringer("account", account),
			zap.String("exit_price", fixedpoint.Format(price)),
			zap.String("pnl", fixedpoint.SignedToDecimal(s.pnl).String()),
			zap.String("close_fee", fixedpoint.Format(s.closeFee)),
			zap.String("payout", fixedpoint.Format(s.payout)))...)
	e.publish(closedEvent(res, e.clock(), false))
	return res, nil
}
