// internal/reserve/reserve.go
package reserve

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

var (
	ErrAlreadyInitialized = errors.New("fee reserve already initialized")
	ErrInsufficient       = errors.New("fee reserve insufficient")
)

// Reserve accumulates trading fees and funds liquidation rewards.
// The balance never goes negative.
type Reserve struct {
	mu          sync.Mutex
	balance     *uint256.Int
	initialized bool
}

// New returns an empty, uninitialized reserve.
func New() *Reserve {
	return &Reserve{balance: new(uint256.Int)}
}

// Seed adds the one-time initial amount. A second call fails.
func (r *Reserve) Seed(amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return ErrAlreadyInitialized
	}
	sum, err := fixedpoint.Add(r.balance, amount)
	if err != nil {
		return err
	}
	r.balance = sum
	r.initialized = true
	return nil
}

// Credit adds a fee.
func (r *Reserve) Credit(amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, err := fixedpoint.Add(r.balance, amount)
	if err != nil {
		return err
	}
	r.balance = sum
	return nil
}

// TryDebit removes amount only if the whole amount is available.
func (r *Reserve) TryDebit(amount *uint256.Int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balance.Lt(amount) {
		return false
	}
	r.balance = new(uint256.Int).Sub(r.balance, amount)
	return true
}

// Debit removes amount or fails without changing the balance.
func (r *Reserve) Debit(amount *uint256.Int) error {
	if !r.TryDebit(amount) {
		return ErrInsufficient
	}
	return nil
}

// Balance returns a copy of the current balance.
func (r *Reserve) Balance() *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance.Clone()
}

// Initialized reports whether Seed has succeeded.
func (r *Reserve) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}
