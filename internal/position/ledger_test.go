package position

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerGetAbsent(t *testing.T) {
	l := NewLedger()
	p := l.Get(solana.NewWallet().PublicKey())

	assert.False(t, p.IsOpen())
	require.NotNil(t, p.Margin)
	assert.True(t, p.Size.IsZero())
	assert.True(t, p.EntryPrice.IsZero())
}

func TestLedgerPutGetCopies(t *testing.T) {
	l := NewLedger()
	acct := solana.NewWallet().PublicKey()

	p := Position{IsLong: true, Margin: fp("99"), Size: fp("990"), EntryPrice: fp("2000"), LastUpdated: time.Now()}
	l.Put(acct, p)

	// mutating the caller's copy must not leak into the table
	p.Margin.SetUint64(1)

	got := l.Get(acct)
	assert.True(t, got.IsOpen())
	assert.Equal(t, "long", got.Direction())
	assert.True(t, got.Margin.Eq(fp("99")))

	got.Size.SetUint64(0)
	assert.True(t, l.Get(acct).Size.Eq(fp("990")))
}

func TestLedgerZeroMarginRemoves(t *testing.T) {
	l := NewLedger()
	acct := solana.NewWallet().PublicKey()

	l.Put(acct, Position{IsLong: false, Margin: fp("1"), Size: fp("2"), EntryPrice: fp("3")})
	require.Equal(t, 1, l.Len())

	l.Put(acct, Position{}.Clone())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Get(acct).IsOpen())
}

func TestLedgerAccountsSorted(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 5; i++ {
		l.Put(solana.NewWallet().PublicKey(), Position{Margin: fp("1"), Size: fp("2"), EntryPrice: fp("3")})
	}

	accounts := l.Accounts()
	require.Len(t, accounts, 5)
	for i := 1; i < len(accounts); i++ {
		assert.True(t, accounts[i-1].String() != accounts[i].String())
		assert.Negative(t, compareKeys(accounts[i-1], accounts[i]))
	}

	l.Delete(accounts[0])
	assert.Equal(t, 4, l.Len())
}

func compareKeys(a, b solana.PublicKey) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
