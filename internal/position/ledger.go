package position

import (
	"bytes"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// Ledger maps accounts to their open position. It does no locking of its
// own; the owner serializes access.
type Ledger struct {
	positions map[solana.PublicKey]Position
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[solana.PublicKey]Position),
	}
}

// Get returns a copy of the account's position, or a zeroed Position when
// the account has none.
func (l *Ledger) Get(account solana.PublicKey) Position {
	p, ok := l.positions[account]
	if !ok {
		return Position{}.Clone()
	}
	return p.Clone()
}

// Put stores p for the account. Storing a position without margin removes
// the entry, so at most one live position exists per account.
func (l *Ledger) Put(account solana.PublicKey, p Position) {
	if !p.IsOpen() {
		delete(l.positions, account)
		return
	}
	l.positions[account] = p.Clone()
}

// Delete zeroes the account's position.
func (l *Ledger) Delete(account solana.PublicKey) {
	delete(l.positions, account)
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

// Accounts returns the accounts with an open position in a stable order.
func (l *Ledger) Accounts() []solana.PublicKey {
	accounts := make([]solana.PublicKey, 0, len(l.positions))
	for a := range l.positions {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i][:], accounts[j][:]) < 0
	})
	return accounts
}
