// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventType represents the type of event.
type EventType string

const (
	PositionOpened     EventType = "position.opened"
	PositionIncreased  EventType = "position.increased"
	PositionClosed     EventType = "position.closed"
	PositionLiquidated EventType = "position.liquidated"
	ReserveInitialized EventType = "reserve.initialized"
)

// AllTypes lists every event the engine emits.
var AllTypes = []EventType{
	PositionOpened,
	PositionIncreased,
	PositionClosed,
	PositionLiquidated,
	ReserveInitialized,
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	ID() string
	Subject() solana.PublicKey
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventID   string
	EventType EventType
	EventTime time.Time
	Account   solana.PublicKey
}

// NewBase stamps a new event with a unique id.
func NewBase(t EventType, account solana.PublicKey, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: t,
		EventTime: at,
		Account:   account,
	}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ID returns the unique event id.
func (e BaseEvent) ID() string {
	return e.EventID
}

// Subject returns the account whose position the event concerns.
func (e BaseEvent) Subject() solana.PublicKey {
	return e.Account
}

// PositionOpenedEvent is emitted when an account without a position opens one.
type PositionOpenedEvent struct {
	BaseEvent
	IsLong   bool
	Margin   *uint256.Int // net of fee
	Size     *uint256.Int
	Price    *uint256.Int
	Leverage uint64
	Fee      *uint256.Int
}

// PositionIncreasedEvent is emitted when a same-direction open adds to a position.
type PositionIncreasedEvent struct {
	BaseEvent
	IsLong      bool
	AddedMargin *uint256.Int
	AddedSize   *uint256.Int
	Price       *uint256.Int // fill price of the increase
	Leverage    uint64
	Fee         *uint256.Int
	Margin      *uint256.Int // totals after the increase
	Size        *uint256.Int
	EntryPrice  *uint256.Int // averaged
}

// PositionClosedEvent is emitted on close and on the implicit close of a direction flip.
// Exactly one of RealizedProfit and RealizedLoss is non-zero unless PnL is zero.
type PositionClosedEvent struct {
	BaseEvent
	IsLong         bool
	Margin         *uint256.Int
	Size           *uint256.Int
	EntryPrice     *uint256.Int
	ExitPrice      *uint256.Int
	RealizedProfit *uint256.Int
	RealizedLoss   *uint256.Int
	CloseFee       *uint256.Int
	Payout         *uint256.Int
	Implicit       bool
}

// PositionLiquidatedEvent is emitted when a third party liquidates a position.
type PositionLiquidatedEvent struct {
	BaseEvent
	Liquidator solana.PublicKey
	IsLong     bool
	Margin     *uint256.Int // original margin
	Size       *uint256.Int
	Price      *uint256.Int
	Equity     *uint256.Int // paid to the owner
	Reward     *uint256.Int // paid to the liquidator, zero when skipped
}

// ReserveInitializedEvent is emitted once, when the operator seeds the fee reserve.
type ReserveInitializedEvent struct {
	BaseEvent
	Amount *uint256.Int
}
