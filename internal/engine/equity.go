// internal/engine/equity.go
package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// GetEquity values the account's position at the current price without
// changing anything. Unlike Close and Liquidate, equity here is not floored.
func (e *Engine) GetEquity(ctx context.Context, account solana.PublicKey) (report *EquityReport, err error) {
	start := time.Now()
	defer func() { e.metrics.RecordOperation(OpEquity, time.Since(start), err) }()

	p := e.load(account)
	if !p.IsOpen() {
		return nil, opError(OpEquity, ErrNoPosition)
	}
	price, err := e.price(ctx)
	if err != nil {
		return nil, opError(OpEquity, err)
	}
	pnl, err := position.ComputePnL(p.IsLong, p.Size, p.EntryPrice, price)
	if err != nil {
		return nil, opError(OpEquity, err)
	}

	return &EquityReport{
		Account:    account,
		IsLong:     p.IsLong,
		Margin:     p.Margin,
		Size:       p.Size,
		EntryPrice: p.EntryPrice,
		Price:      price,
		PnL:        pnl,
		Equity:     position.Equity(p.Margin, pnl),
	}, nil
}
