package token

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryLedgerTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(zaptest.NewLogger(t))
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	require.NoError(t, l.Mint(alice, uint256.NewInt(100)))

	ok, err := l.Transfer(ctx, alice, bob, uint256.NewInt(40))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Transfer(ctx, alice, bob, uint256.NewInt(61))
	require.NoError(t, err)
	assert.False(t, ok, "overdraft must be rejected")

	a, _ := l.BalanceOf(ctx, alice)
	b, _ := l.BalanceOf(ctx, bob)
	assert.Equal(t, uint64(60), a.Uint64())
	assert.Equal(t, uint64(40), b.Uint64())
}

func TestMemoryLedgerSelfTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(nil)
	alice := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(alice, uint256.NewInt(10)))

	ok, err := l.Transfer(ctx, alice, alice, uint256.NewInt(10))
	require.NoError(t, err)
	assert.True(t, ok)

	a, _ := l.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(10), a.Uint64())
}

func TestMemoryLedgerTransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(zaptest.NewLogger(t))
	owner, spender, vault := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	require.NoError(t, l.Mint(owner, uint256.NewInt(100)))
	l.Approve(owner, spender, uint256.NewInt(30))

	ok, err := l.TransferFrom(ctx, spender, owner, vault, uint256.NewInt(31))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.TransferFrom(ctx, spender, owner, vault, uint256.NewInt(30))
	require.NoError(t, err)
	assert.True(t, ok)

	left, _ := l.Allowance(ctx, owner, spender)
	assert.True(t, left.IsZero())
	v, _ := l.BalanceOf(ctx, vault)
	assert.Equal(t, uint64(30), v.Uint64())
}

func TestMemoryLedgerFreeze(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(nil)
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(alice, uint256.NewInt(5)))

	l.Freeze(bob, true)
	ok, _ := l.Transfer(ctx, alice, bob, uint256.NewInt(1))
	assert.False(t, ok)

	l.Freeze(bob, false)
	ok, _ = l.Transfer(ctx, alice, bob, uint256.NewInt(1))
	assert.True(t, ok)
}

func TestMemoryLedgerHookRunsOutsideLock(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(nil)
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(alice, uint256.NewInt(5)))

	var seen *uint256.Int
	l.OnTransfer(func(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) {
		// re-entering the ledger must not deadlock
		seen, _ = l.BalanceOf(ctx, to)
	})

	ok, err := l.Transfer(ctx, alice, bob, uint256.NewInt(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, seen)
	assert.Equal(t, uint64(2), seen.Uint64())
}
