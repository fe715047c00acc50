// internal/engine/open.go
package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// entry is the sizing of one Open call.
type entry struct {
	fee       *uint256.Int
	netMargin *uint256.Int
	size      *uint256.Int
}

// sizeEntry charges the fee on gross notional and applies leverage to what
// remains of the margin.
func (e *Engine) sizeEntry(margin *uint256.Int, leverage uint64) (entry, error) {
	lev := uint256.NewInt(leverage)
	gross, err := fixedpoint.Mul(margin, lev)
	if err != nil {
		return entry{}, err
	}
	fee, err := fixedpoint.Bps(gross, e.params.FeeRateBps)
	if err != nil {
		return entry{}, err
	}
	net := fixedpoint.SubFloor(margin, fee)
	if net.IsZero() {
		return entry{}, ErrInvalidMarginAmount
	}
	size, err := fixedpoint.Mul(net, lev)
	if err != nil {
		return entry{}, err
	}
	return entry{fee: fee, netMargin: net, size: size}, nil
}

// Open opens a position, adds to a same-direction one, or closes an
// opposite one and opens the new direction. marginAmount is the gross
// amount pulled from the account, fee included.
func (e *Engine) Open(ctx context.Context, account solana.PublicKey, marginAmount *uint256.Int, isLong bool, leverage uint64) (res *OpenResult, err error) {
	if marginAmount == nil || marginAmount.IsZero() {
		e.metrics.RecordOperation(OpOpen, 0, ErrInvalidMarginAmount)
		return nil, opError(OpOpen, ErrInvalidMarginAmount)
	}
	if leverage < e.params.MinLeverage || leverage > e.params.MaxLeverage {
		e.metrics.RecordOperation(OpOpen, 0, ErrInvalidLeverage)
		return nil, opError(OpOpen, ErrInvalidLeverage)
	}

	ctx, unlock, err := e.enter(ctx)
	if err != nil {
		return nil, opError(OpOpen, err)
	}
	defer unlock()
	start := time.Now()
	defer func() { e.finish(ctx, OpOpen, start, err) }()

	if err := e.checkFunding(ctx, account, marginAmount); err != nil {
		return nil, opError(OpOpen, err)
	}

	price, err := e.price(ctx)
	if err != nil {
		return nil, opError(OpOpen, err)
	}
	sized, err := e.sizeEntry(marginAmount, leverage)
	if err != nil {
		return nil, opError(OpOpen, err)
	}

	now := e.clock()
	old := e.load(account)
	res = &OpenResult{
		Account:  account,
		Price:    price.Clone(),
		Leverage: leverage,
		Fee:      sized.fee,
		Margin:   sized.netMargin,
		Size:     sized.size,
	}

	var next position.Position
	var flip *settlement
	switch {
	case !old.IsOpen():
		res.Kind = Opened
		next = position.Position{IsLong: isLong, Margin: sized.netMargin, Size: sized.size, EntryPrice: price.Clone(), LastUpdated: now}

	case old.IsLong == isLong:
		res.Kind = Increased
		avg, err := position.WeightedEntry(old.Size, old.EntryPrice, sized.size, price)
		if err != nil {
			return nil, opError(OpOpen, err)
		}
		margin, err := fixedpoint.Add(old.Margin, sized.netMargin)
		if err != nil {
			return nil, opError(OpOpen, err)
		}
		size, err := fixedpoint.Add(old.Size, sized.size)
		if err != nil {
			return nil, opError(OpOpen, err)
		}
		next = position.Position{IsLong: isLong, Margin: margin, Size: size, EntryPrice: avg, LastUpdated: now}

	default:
		res.Kind = Flipped
		s, err := e.settle(old, price)
		if err != nil {
			return nil, opError(OpOpen, err)
		}
		// custody is checked before the new margin arrives
		if err := e.checkLiquidity(ctx, s.payout); err != nil {
			return nil, opError(OpOpen, err)
		}
		flip = &s
		next = position.Position{IsLong: isLong, Margin: sized.netMargin, Size: sized.size, EntryPrice: price.Clone(), LastUpdated: now}
	}

	if err := e.pull(ctx, OpOpen, account, marginAmount); err != nil {
		return nil, err
	}

	credited := []*uint256.Int{}
	if err := e.reserve.Credit(sized.fee); err != nil {
		e.refund(ctx, OpOpen, account, marginAmount)
		return nil, opError(OpOpen, err)
	}
	credited = append(credited, sized.fee)
	if flip != nil {
		if err := e.reserve.Credit(flip.closeFee); err != nil {
			e.uncredit(credited...)
			e.refund(ctx, OpOpen, account, marginAmount)
			return nil, opError(OpOpen, err)
		}
		credited = append(credited, flip.closeFee)
	}
	e.store(account, next)

	if flip != nil {
		if err := e.pay(ctx, OpOpen, account, flip.payout); err != nil {
			e.store(account, old)
			e.uncredit(credited...)
			e.refund(ctx, OpOpen, account, marginAmount)
			return nil, err
		}
		res.Closed = flip.result(account, old, price)
	}
	res.Position = next.Clone()

	e.logger.Info("Position "+string(res.Kind),
		append(next.Fields(),
			zap.Stringer("account", account),
			zap.String("price", fixedpoint.Format(price)),
			zap.Uint64("leverage", leverage),
			zap.String("fee", fixedpoint.Format(sized.fee)))...)
	e.publish(openEvents(res, now)...)
	return res, nil
}

func openEvents(r *OpenResult, at time.Time) []events.Event {
	var out []events.Event
	if r.Closed != nil {
		out = append(out, closedEvent(r.Closed, at, true))
	}
	if r.Kind == Increased {
		return append(out, &events.PositionIncreasedEvent{
			BaseEvent:   events.NewBase(events.PositionIncreased, r.Account, at),
			IsLong:      r.Position.IsLong,
			AddedMargin: r.Margin,
			AddedSize:   r.Size,
			Price:       r.Price,
			Leverage:    r.Leverage,
			Fee:         r.Fee,
			Margin:      r.Position.Margin,
			Size:        r.Position.Size,
			EntryPrice:  r.Position.EntryPrice,
		})
	}
	return append(out, &events.PositionOpenedEvent{
		BaseEvent: events.NewBase(events.PositionOpened, r.Account, at),
		IsLong:    r.Position.IsLong,
		Margin:    r.Position.Margin,
		Size:      r.Position.Size,
		Price:     r.Price,
		Leverage:  r.Leverage,
		Fee:       r.Fee,
	})
}
