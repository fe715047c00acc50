// internal/engine/results.go
package engine

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/leverage-engine/internal/position"
)

// OpenKind tells what an Open did to the account's position.
type OpenKind string

const (
	Opened    OpenKind = "opened"
	Increased OpenKind = "increased"
	Flipped   OpenKind = "flipped"
)

// OpenResult describes a committed Open.
type OpenResult struct {
	Account  solana.PublicKey
	Kind     OpenKind
	Price    *uint256.Int
	Leverage uint64
	Fee      *uint256.Int
	Margin   *uint256.Int // net margin added by this call
	Size     *uint256.Int // size added by this call
	Position position.Position
	// Closed is the implicit close of a flip, nil otherwise.
	Closed *CloseResult
}

// CloseResult describes a settled position.
type CloseResult struct {
	Account        solana.PublicKey
	Position       position.Position // as it was before the close
	ExitPrice      *uint256.Int
	PnL            *big.Int
	RealizedProfit *uint256.Int
	RealizedLoss   *uint256.Int
	CloseFee       *uint256.Int
	Payout         *uint256.Int
}

// LiquidationResult describes a committed liquidation.
type LiquidationResult struct {
	Account        solana.PublicKey
	Liquidator     solana.PublicKey
	Position       position.Position
	Price          *uint256.Int
	Equity         *uint256.Int // paid to the owner
	RequiredMargin *uint256.Int
	Reward         *uint256.Int // zero when skipped
	RewardPaid     bool
}

// EquityReport is the read-only valuation of a position.
// Equity is not floored and is negative once losses exceed the margin.
type EquityReport struct {
	Account    solana.PublicKey
	IsLong     bool
	Margin     *uint256.Int
	Size       *uint256.Int
	EntryPrice *uint256.Int
	Price      *uint256.Int
	PnL        *big.Int
	Equity     *big.Int
}
