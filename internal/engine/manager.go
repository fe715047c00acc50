// internal/engine/manager.go
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/metrics"
	"github.com/rovshanmuradov/leverage-engine/internal/position"
	"github.com/rovshanmuradov/leverage-engine/internal/reserve"
	"github.com/rovshanmuradov/leverage-engine/internal/token"
)

// Operation names used in errors, logs and metrics.
const (
	OpOpen       = "open"
	OpClose      = "close"
	OpLiquidate  = "liquidate"
	OpEquity     = "get_equity"
	OpInitialize = "initialize_reserve"
)

// PriceFeed supplies the current price at canonical precision.
type PriceFeed interface {
	CurrentPrice(ctx context.Context) (*uint256.Int, error)
}

// Config wires an Engine to its collaborators.
type Config struct {
	Params    Params
	Feed      PriceFeed
	Ledger    token.Ledger
	Custody   solana.PublicKey // account holding all margin
	Operator  solana.PublicKey // the only account allowed to seed the reserve
	Logger    *zap.Logger
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Clock     func() time.Time
}

// Engine is the position manager. Mutating operations run one at a time.
// Reads (Position, Accounts, GetEquity) never wait on a running operation, so
// a token ledger callback may call them; mutating re-entry is rejected.
type Engine struct {
	mu sync.Mutex

	// book guards positions only and is never held across a transfer.
	book sync.RWMutex

	params    Params
	feed      PriceFeed
	ledger    token.Ledger
	custody   solana.PublicKey
	operator  solana.PublicKey
	logger    *zap.Logger
	publisher events.Publisher
	metrics   *metrics.Collector
	clock     func() time.Time

	positions *position.Ledger
	reserve   *reserve.Reserve
}

// New builds an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Feed == nil {
		return nil, errors.New("price feed is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("token ledger is required")
	}
	if cfg.Custody.IsZero() {
		return nil, errors.New("custody account is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		params:    cfg.Params,
		feed:      cfg.Feed,
		ledger:    cfg.Ledger,
		custody:   cfg.Custody,
		operator:  cfg.Operator,
		logger:    logger.Named("engine"),
		publisher: publisher,
		metrics:   cfg.Metrics,
		clock:     clock,
		positions: position.NewLedger(),
		reserve:   reserve.New(),
	}, nil
}

// callKey marks a context that is already inside an engine operation.
type callKey struct{}

func (e *Engine) inCall(ctx context.Context) bool {
	owner, _ := ctx.Value(callKey{}).(*Engine)
	return owner == e
}

// enter takes the engine lock for a mutating operation. The returned context
// travels into the token ledger so callbacks can be recognised.
func (e *Engine) enter(ctx context.Context) (context.Context, func(), error) {
	if e.inCall(ctx) {
		return nil, nil, ErrReentrantCall
	}
	e.mu.Lock()
	return context.WithValue(ctx, callKey{}, e), e.mu.Unlock, nil
}

// finish records the outcome of an operation. Called with the lock held.
func (e *Engine) finish(ctx context.Context, op string, start time.Time, err error) {
	e.metrics.RecordOperation(op, time.Since(start), err)
	if err != nil {
		e.logger.Debug("Operation rejected", zap.String("op", op), zap.Error(err))
		return
	}
	if e.metrics == nil {
		return
	}
	custody, cerr := e.ledger.BalanceOf(ctx, e.custody)
	if cerr != nil {
		custody = nil
	}
	e.metrics.UpdateBalances(e.reserve.Balance(), custody)
	e.metrics.UpdateOpenPositions(e.openCount())
}

func (e *Engine) publish(evts ...events.Event) {
	for _, ev := range evts {
		if err := e.publisher.Publish(ev); err != nil {
			e.logger.Warn("Failed to publish event",
				zap.String("event_type", string(ev.Type())),
				zap.String("event_id", ev.ID()),
				zap.Error(err))
		}
	}
}

func (e *Engine) price(ctx context.Context) (*uint256.Int, error) {
	return e.feed.CurrentPrice(ctx)
}

// checkFunding verifies owner can move amount into custody.
func (e *Engine) checkFunding(ctx context.Context, owner solana.PublicKey, amount *uint256.Int) error {
	balance, err := e.ledger.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	allowance, err := e.ledger.Allowance(ctx, owner, e.custody)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	return nil
}

// checkLiquidity verifies custody can pay out amount.
func (e *Engine) checkLiquidity(ctx context.Context, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	balance, err := e.ledger.BalanceOf(ctx, e.custody)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return ErrInsufficientLiquidity
	}
	return nil
}

// pull moves amount from owner into custody.
func (e *Engine) pull(ctx context.Context, op string, owner solana.PublicKey, amount *uint256.Int) error {
	ok, err := e.ledger.TransferFrom(ctx, e.custody, owner, e.custody, amount)
	if err != nil || !ok {
		return transferError(op, err)
	}
	return nil
}

// pay moves amount out of custody to account.
func (e *Engine) pay(ctx context.Context, op string, to solana.PublicKey, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	ok, err := e.ledger.Transfer(ctx, e.custody, to, amount)
	if err != nil || !ok {
		return transferError(op, err)
	}
	return nil
}

// refund returns an inbound pull after a later step failed.
func (e *Engine) refund(ctx context.Context, op string, to solana.PublicKey, amount *uint256.Int) {
	if err := e.pay(ctx, op, to, amount); err != nil {
		e.logger.Error("Refund failed, custody holds unmatched funds",
			zap.String("op", op),
			zap.Stringer("account", to),
			zap.String("amount", fixedpoint.Format(amount)),
			zap.Error(err))
	}
}

// uncredit reverses reserve credits made earlier in the same operation.
func (e *Engine) uncredit(amounts ...*uint256.Int) {
	for _, a := range amounts {
		if err := e.reserve.Debit(a); err != nil {
			e.logger.Error("Reserve rollback failed", zap.String("amount", fixedpoint.Format(a)), zap.Error(err))
		}
	}
}

// recredit returns a reward taken by TryDebit to the reserve.
func (e *Engine) recredit(amount *uint256.Int) {
	if err := e.reserve.Credit(amount); err != nil {
		e.logger.Error("Reserve re-credit failed", zap.String("amount", fixedpoint.Format(amount)), zap.Error(err))
	}
}

// Position returns a copy of the account's position; zero when none.
func (e *Engine) Position(account solana.PublicKey) position.Position {
	return e.load(account)
}

// Accounts lists accounts with an open position.
func (e *Engine) Accounts() []solana.PublicKey {
	e.book.RLock()
	defer e.book.RUnlock()
	return e.positions.Accounts()
}

func (e *Engine) load(account solana.PublicKey) position.Position {
	e.book.RLock()
	defer e.book.RUnlock()
	return e.positions.Get(account)
}

func (e *Engine) store(account solana.PublicKey, p position.Position) {
	e.book.Lock()
	defer e.book.Unlock()
	e.positions.Put(account, p)
}

func (e *Engine) remove(account solana.PublicKey) {
	e.book.Lock()
	defer e.book.Unlock()
	e.positions.Delete(account)
}

func (e *Engine) openCount() int {
	e.book.RLock()
	defer e.book.RUnlock()
	return e.positions.Len()
}

// FeeReserve returns the current reserve balance.
func (e *Engine) FeeReserve() *uint256.Int {
	return e.reserve.Balance()
}

// ReserveInitialized reports whether the one-time seed has happened.
func (e *Engine) ReserveInitialized() bool {
	return e.reserve.Initialized()
}

// Params returns the engine's risk parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Custody returns the custody account.
func (e *Engine) Custody() solana.PublicKey {
	return e.custody
}
