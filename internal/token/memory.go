package token

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

// TransferHook runs after a successful transfer, outside the ledger lock.
// It models a receiver callback and may call back into whoever initiated the transfer.
type TransferHook func(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int)

// MemoryLedger is an in-process token ledger.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[solana.PublicKey]*uint256.Int
	allowances map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
	frozen     map[solana.PublicKey]bool
	hook       TransferHook
	logger     *zap.Logger
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLedger{
		balances:   make(map[solana.PublicKey]*uint256.Int),
		allowances: make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int),
		frozen:     make(map[solana.PublicKey]bool),
		logger:     logger.Named("token"),
	}
}

// Mint credits new tokens to account.
func (l *MemoryLedger) Mint(account solana.PublicKey, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum, err := fixedpoint.Add(l.balanceLocked(account), amount)
	if err != nil {
		return err
	}
	l.balances[account] = sum
	return nil
}

// Approve sets the amount spender may move out of owner.
func (l *MemoryLedger) Approve(owner, spender solana.PublicKey, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[solana.PublicKey]*uint256.Int)
	}
	l.allowances[owner][spender] = amount.Clone()
}

// Freeze makes every transfer touching account fail.
func (l *MemoryLedger) Freeze(account solana.PublicKey, frozen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if frozen {
		l.frozen[account] = true
		return
	}
	delete(l.frozen, account)
}

// OnTransfer installs a hook called after each successful transfer.
func (l *MemoryLedger) OnTransfer(hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = hook
}

// BalanceOf implements Ledger.
func (l *MemoryLedger) BalanceOf(_ context.Context, account solana.PublicKey) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(account).Clone(), nil
}

// Allowance implements Ledger.
func (l *MemoryLedger) Allowance(_ context.Context, owner, spender solana.PublicKey) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowanceLocked(owner, spender).Clone(), nil
}

// Transfer implements Ledger.
func (l *MemoryLedger) Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	ok := l.moveLocked(from, to, amount)
	hook := l.hook
	l.mu.Unlock()

	if !ok {
		l.logger.Debug("Transfer rejected",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.String("amount", fixedpoint.Format(amount)))
		return false, nil
	}
	if hook != nil {
		hook(ctx, from, to, amount)
	}
	return true, nil
}

// TransferFrom implements Ledger.
func (l *MemoryLedger) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	allowed := l.allowanceLocked(from, spender)
	if allowed.Lt(amount) {
		l.mu.Unlock()
		l.logger.Debug("TransferFrom exceeds allowance",
			zap.Stringer("owner", from),
			zap.Stringer("spender", spender))
		return false, nil
	}
	if !l.moveLocked(from, to, amount) {
		l.mu.Unlock()
		return false, nil
	}
	if l.allowances[from] == nil {
		l.allowances[from] = make(map[solana.PublicKey]*uint256.Int)
	}
	l.allowances[from][spender] = new(uint256.Int).Sub(allowed, amount)
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(ctx, from, to, amount)
	}
	return true, nil
}

func (l *MemoryLedger) moveLocked(from, to solana.PublicKey, amount *uint256.Int) bool {
	if l.frozen[from] || l.frozen[to] {
		return false
	}
	src := l.balanceLocked(from)
	if src.Lt(amount) {
		return false
	}
	if from == to {
		return true
	}
	dst, err := fixedpoint.Add(l.balanceLocked(to), amount)
	if err != nil {
		return false
	}
	l.balances[from] = new(uint256.Int).Sub(src, amount)
	l.balances[to] = dst
	return true
}

func (l *MemoryLedger) balanceLocked(account solana.PublicKey) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *MemoryLedger) allowanceLocked(owner, spender solana.PublicKey) *uint256.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(uint256.Int)
}
