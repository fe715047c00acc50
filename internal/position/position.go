// internal/position/position.go
package position

import (
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// Position is the single leveraged position an account may hold.
// A zero Margin means there is no position; Size and EntryPrice are then meaningless.
type Position struct {
	IsLong      bool
	Margin      *uint256.Int // collateral net of the entry fee
	Size        *uint256.Int // notional exposure, margin * leverage
	EntryPrice  *uint256.Int // volume-weighted average opening price
	LastUpdated time.Time
}

// IsOpen reports whether the position holds margin.
func (p Position) IsOpen() bool {
	return p.Margin != nil && !p.Margin.IsZero()
}

// Direction returns "long" or "short".
func (p Position) Direction() string {
	return Direction(p.IsLong)
}

// Direction names a side.
func Direction(isLong bool) string {
	if isLong {
		return "long"
	}
	return "short"
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	return Position{
		IsLong:      p.IsLong,
		Margin:      cloneOrZero(p.Margin),
		Size:        cloneOrZero(p.Size),
		EntryPrice:  cloneOrZero(p.EntryPrice),
		LastUpdated: p.LastUpdated,
	}
}

// Fields renders the position for structured logs.
func (p Position) Fields() []zap.Field {
	return []zap.Field{
		zap.String("direction", p.Direction()),
		zap.String("margin", fixedpoint.Format(p.Margin)),
		zap.String("size", fixedpoint.Format(p.Size)),
		zap.String("entry_price", fixedpoint.Format(p.EntryPrice)),
	}
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
