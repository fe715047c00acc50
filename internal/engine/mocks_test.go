// internal/engine/mocks_test.go
package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
	"github.com/rovshanmuradov/leverage-engine/internal/oracle"
	"github.com/rovshanmuradov/leverage-engine/internal/token"
)

// MockLedger реализует интерфейс token.Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) BalanceOf(ctx context.Context, account solana.PublicKey) (*uint256.Int, error) {
	args := m.Called(account)
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockLedger) Allowance(ctx context.Context, owner, spender solana.PublicKey) (*uint256.Int, error) {
	args := m.Called(owner, spender)
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockLedger) Transfer(ctx context.Context, from, to solana.PublicKey, amount *uint256.Int) (bool, error) {
	args := m.Called(from, to, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, amount *uint256.Int) (bool, error) {
	args := m.Called(spender, from, to, amount)
	return args.Bool(0), args.Error(1)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) last() events.Event {
	all := r.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	ledger   *token.MemoryLedger
	source   *oracle.StaticSource
	events   *recorder
	engine   *Engine
	custody  solana.PublicKey
	operator solana.PublicKey
}

const priceDecimals = 8

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		ledger:   token.NewMemoryLedger(logger),
		source:   oracle.NewStaticSource(decimal.RequireFromString("2000"), priceDecimals),
		events:   &recorder{},
		custody:  solana.NewWallet().PublicKey(),
		operator: solana.NewWallet().PublicKey(),
	}
	e, err := New(Config{
		Params:    params,
		Feed:      oracle.NewFeed(f.source, logger),
		Ledger:    f.ledger,
		Custody:   f.custody,
		Operator:  f.operator,
		Logger:    logger,
		Publisher: f.events,
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

// fund mints amount to a fresh account and approves the custody for it.
func (f *fixture) fund(amount string) solana.PublicKey {
	f.t.Helper()
	account := solana.NewWallet().PublicKey()
	f.fundAccount(account, amount)
	return account
}

func (f *fixture) fundAccount(account solana.PublicKey, amount string) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(account, fixedpoint.MustParse(amount)))
	allowance, _ := f.ledger.Allowance(f.ctx, account, f.custody)
	total, err := fixedpoint.Add(allowance, fixedpoint.MustParse(amount))
	require.NoError(f.t, err)
	f.ledger.Approve(account, f.custody, total)
}

// seedLiquidity gives the custody house funds beyond users' margin.
func (f *fixture) seedLiquidity(amount string) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(f.custody, fixedpoint.MustParse(amount)))
}

func (f *fixture) setPrice(p string) {
	f.source.Set(decimal.RequireFromString(p), priceDecimals)
}

func (f *fixture) balance(account solana.PublicKey) *uint256.Int {
	f.t.Helper()
	b, err := f.ledger.BalanceOf(f.ctx, account)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) open(account solana.PublicKey, margin string, isLong bool, leverage uint64) *OpenResult {
	f.t.Helper()
	res, err := f.engine.Open(f.ctx, account, fixedpoint.MustParse(margin), isLong, leverage)
	require.NoError(f.t, err)
	return res
}

func assertAmount(t *testing.T, want string, got *uint256.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	assert.Equal(t, fixedpoint.Format(fixedpoint.MustParse(want)), fixedpoint.Format(got), msgAndArgs...)
}

func zeroFee() Params {
	p := DefaultParams()
	p.FeeRateBps = 0
	return p
}
