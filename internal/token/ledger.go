// internal/token/ledger.go
package token

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Ledger is the external token contract the engine moves funds through.
// A false result and a returned error are both treated as a rejected transfer.
type Ledger interface {
	BalanceOf(ctx context.Context, account solana.PublicKey) (*uint256.Int, error)
	Allowance(ctx context.Context, owner, spender solana.PublicKey) (*uint256.Int, error)
	// Transfer moves amount out of from, which must be the caller's own account.
	Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) (bool, error)
	// TransferFrom moves amount from an owner that has approved spender.
	TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) (bool, error)
}
