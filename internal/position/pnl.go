package position

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// ComputePnL returns the signed profit or loss of a position at currentPrice.
//
//	long:  size*currentPrice/entryPrice - size
//	short: size - size*currentPrice/entryPrice
//
// The quotient is truncated before the subtraction.
func ComputePnL(isLong bool, size, entryPrice, currentPrice *uint256.Int) (*big.Int, error) {
	valued, err := fixedpoint.MulDiv(size, currentPrice, entryPrice)
	if err != nil {
		return nil, err
	}
	if isLong {
		return new(big.Int).Sub(valued.ToBig(), size.ToBig()), nil
	}
	return new(big.Int).Sub(size.ToBig(), valued.ToBig()), nil
}

// Equity is margin plus pnl without flooring. It may be negative.
func Equity(margin *uint256.Int, pnl *big.Int) *big.Int {
	return new(big.Int).Add(margin.ToBig(), pnl)
}

// SettledEquity is margin plus pnl floored at zero: a loss can consume at most
// the whole margin.
func SettledEquity(margin *uint256.Int, pnl *big.Int) (*uint256.Int, error) {
	if pnl.Sign() >= 0 {
		gain, overflow := uint256.FromBig(pnl)
		if overflow {
			return nil, fixedpoint.ErrOverflow
		}
		return fixedpoint.Add(margin, gain)
	}

	loss, overflow := uint256.FromBig(new(big.Int).Neg(pnl))
	if overflow {
		return new(uint256.Int), nil
	}
	return fixedpoint.SubFloor(margin, loss), nil
}

// WeightedEntry averages two fills by size:
// (oldSize*oldEntry + addSize*addPrice) / (oldSize + addSize).
func WeightedEntry(oldSize, oldEntry, addSize, addPrice *uint256.Int) (*uint256.Int, error) {
	oldNotional, err := fixedpoint.Mul(oldSize, oldEntry)
	if err != nil {
		return nil, err
	}
	addNotional, err := fixedpoint.Mul(addSize, addPrice)
	if err != nil {
		return nil, err
	}
	total, err := fixedpoint.Add(oldNotional, addNotional)
	if err != nil {
		return nil, err
	}
	totalSize, err := fixedpoint.Add(oldSize, addSize)
	if err != nil {
		return nil, err
	}
	if totalSize.IsZero() {
		return nil, fixedpoint.ErrDivisionByZero
	}
	return total.Div(total, totalSize), nil
}
