package journal

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// Entry is one engine event flattened for storage.
type Entry struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       events.EventType `json:"type"`
	Account    string           `json:"account"`
	Liquidator string           `json:"liquidator,omitempty"`
	Direction  string           `json:"direction,omitempty"`
	Leverage   uint64           `json:"leverage,omitempty"`

	Margin     decimal.Decimal `json:"margin"`
	Size       decimal.Decimal `json:"size"`
	Price      decimal.Decimal `json:"price"` // fill, exit or liquidation price
	EntryPrice decimal.Decimal `json:"entry_price"`
	Fee        decimal.Decimal `json:"fee"` // entry fee, or close fee
	PnL        decimal.Decimal `json:"pnl"` // realized
	Payout     decimal.Decimal `json:"payout"`
	Reward     decimal.Decimal `json:"reward"`
	Amount     decimal.Decimal `json:"amount"` // reserve seed

	Implicit bool `json:"implicit,omitempty"`
}

// FromEvent converts an engine event. ok is false for unknown event types.
func FromEvent(ev events.Event) (Entry, bool) {
	e := Entry{
		ID:        ev.ID(),
		Timestamp: ev.Timestamp(),
		Type:      ev.Type(),
		Account:   ev.Subject().String(),
	}
	dec := fixedpoint.ToDecimal

	switch v := ev.(type) {
	case *events.PositionOpenedEvent:
		e.Direction = position.Direction(v.IsLong)
		e.Leverage = v.Leverage
		e.Margin = dec(v.Margin)
		e.Size = dec(v.Size)
		e.Price = dec(v.Price)
		e.EntryPrice = dec(v.Price)
		e.Fee = dec(v.Fee)
	case *events.PositionIncreasedEvent:
		e.Direction = position.Direction(v.IsLong)
		e.Leverage = v.Leverage
		e.Margin = dec(v.Margin)
		e.Size = dec(v.Size)
		e.Price = dec(v.Price)
		e.EntryPrice = dec(v.EntryPrice)
		e.Fee = dec(v.Fee)
	case *events.PositionClosedEvent:
		e.Direction = position.Direction(v.IsLong)
		e.Margin = dec(v.Margin)
		e.Size = dec(v.Size)
		e.Price = dec(v.ExitPrice)
		e.EntryPrice = dec(v.EntryPrice)
		e.Fee = dec(v.CloseFee)
		e.PnL = dec(v.RealizedProfit).Sub(dec(v.RealizedLoss))
		e.Payout = dec(v.Payout)
		e.Implicit = v.Implicit
	case *events.PositionLiquidatedEvent:
		e.Liquidator = v.Liquidator.String()
		e.Direction = position.Direction(v.IsLong)
		e.Margin = dec(v.Margin)
		e.Size = dec(v.Size)
		e.Price = dec(v.Price)
		e.Payout = dec(v.Equity)
		e.Reward = dec(v.Reward)
		e.PnL = dec(v.Equity).Sub(dec(v.Margin))
	case *events.ReserveInitializedEvent:
		e.Amount = dec(v.Amount)
	default:
		return Entry{}, false
	}
	return e, true
}

// ToCSV converts the entry to a CSV record
func (e *Entry) ToCSV() []string {
	return []string{
		e.ID,
		e.Timestamp.Format(time.RFC3339Nano),
		string(e.Type),
		e.Account,
		e.Liquidator,
		e.Direction,
		strconv.FormatUint(e.Leverage, 10),
		e.Margin.String(),
		e.Size.String(),
		e.Price.String(),
		e.EntryPrice.String(),
		e.Fee.String(),
		e.PnL.String(),
		e.Payout.String(),
		e.Reward.String(),
		e.Amount.String(),
		strconv.FormatBool(e.Implicit),
	}
}

// CSVHeaders returns the header row for journal CSV files
func CSVHeaders() []string {
	return []string{
		"id",
		"timestamp",
		"type",
		"account",
		"liquidator",
		"direction",
		"leverage",
		"margin",
		"size",
		"price",
		"entry_price",
		"fee",
		"pnl",
		"payout",
		"reward",
		"amount",
		"implicit",
	}
}
