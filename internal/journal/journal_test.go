package journal

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
	"github.com/rovshanmuradov/leverage-engine/internal/fixedpoint"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func amt(s string) *uint256.Int { return fixedpoint.MustParse(s) }

func opened(account solana.PublicKey, at time.Time) *events.PositionOpenedEvent {
	return &events.PositionOpenedEvent{
		BaseEvent: events.NewBase(events.PositionOpened, account, at),
		IsLong:    true,
		Margin:    amt("99"),
		Size:      amt("990"),
		Price:     amt("2000"),
		Leverage:  10,
		Fee:       amt("1"),
	}
}

func closed(account solana.PublicKey, at time.Time, implicit bool) *events.PositionClosedEvent {
	return &events.PositionClosedEvent{
		BaseEvent:      events.NewBase(events.PositionClosed, account, at),
		IsLong:         true,
		Margin:         amt("99"),
		Size:           amt("990"),
		EntryPrice:     amt("2000"),
		ExitPrice:      amt("2200"),
		RealizedProfit: amt("99"),
		RealizedLoss:   amt("0"),
		CloseFee:       amt("0.99"),
		Payout:         amt("197.01"),
		Implicit:       implicit,
	}
}

func liquidated(account, liquidator solana.PublicKey, at time.Time) *events.PositionLiquidatedEvent {
	return &events.PositionLiquidatedEvent{
		BaseEvent:  events.NewBase(events.PositionLiquidated, account, at),
		Liquidator: liquidator,
		IsLong:     true,
		Margin:     amt("99"),
		Size:       amt("990"),
		Price:      amt("1810"),
		Equity:     amt("4.95"),
		Reward:     amt("4.95"),
	}
}

func TestFromEvent(t *testing.T) {
	acct := solana.NewWallet().PublicKey()
	keeper := solana.NewWallet().PublicKey()

	t.Run("opened", func(t *testing.T) {
		e, ok := FromEvent(opened(acct, t0))
		require.True(t, ok)
		assert.Equal(t, events.PositionOpened, e.Type)
		assert.Equal(t, acct.String(), e.Account)
		assert.Equal(t, "long", e.Direction)
		assert.Equal(t, uint64(10), e.Leverage)
		assert.True(t, e.Margin.Equal(decimal.RequireFromString("99")))
		assert.True(t, e.EntryPrice.Equal(decimal.RequireFromString("2000")))
	})

	t.Run("closed realizes profit", func(t *testing.T) {
		e, ok := FromEvent(closed(acct, t0, true))
		require.True(t, ok)
		assert.True(t, e.Implicit)
		assert.True(t, e.PnL.Equal(decimal.RequireFromString("99")))
		assert.True(t, e.Fee.Equal(decimal.RequireFromString("0.99")))
		assert.True(t, e.Payout.Equal(decimal.RequireFromString("197.01")))
	})

	t.Run("liquidated loses margin above equity", func(t *testing.T) {
		e, ok := FromEvent(liquidated(acct, keeper, t0))
		require.True(t, ok)
		assert.Equal(t, keeper.String(), e.Liquidator)
		assert.True(t, e.PnL.Equal(decimal.RequireFromString("-94.05")))
		assert.True(t, e.Reward.Equal(decimal.RequireFromString("4.95")))
	})

	t.Run("reserve", func(t *testing.T) {
		e, ok := FromEvent(&events.ReserveInitializedEvent{
			BaseEvent: events.NewBase(events.ReserveInitialized, acct, t0),
			Amount:    amt("10"),
		})
		require.True(t, ok)
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(10)))
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := FromEvent(events.NewBase("other", acct, t0))
		assert.False(t, ok)
	})
}

func TestEntryCSVShape(t *testing.T) {
	e, _ := FromEvent(opened(solana.NewWallet().PublicKey(), t0))
	assert.Len(t, e.ToCSV(), len(CSVHeaders()))
}

func TestJournalStreamsCSV(t *testing.T) {
	dir := t.TempDir()
	j, err := New(Options{Dir: dir, Format: FormatCSV, FlushInterval: time.Hour}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	acct := solana.NewWallet().PublicKey()
	require.NoError(t, j.Handle(ctx, opened(acct, t0)))
	require.NoError(t, j.Handle(ctx, closed(acct, t0.Add(time.Minute), false)))
	require.NoError(t, j.Close())

	f, err := os.Open(j.Path())
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeaders(), rows[0])
	assert.Equal(t, string(events.PositionOpened), rows[1][2])
	assert.Equal(t, string(events.PositionClosed), rows[2][2])
}

func TestJournalStreamsJSONLines(t *testing.T) {
	j, err := New(Options{Dir: t.TempDir(), Format: FormatJSON}, zaptest.NewLogger(t))
	require.NoError(t, err)

	acct := solana.NewWallet().PublicKey()
	require.NoError(t, j.Handle(context.Background(), opened(acct, t0)))
	require.NoError(t, j.Close())
	assert.True(t, strings.HasSuffix(j.Path(), ".jsonl"))

	data, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &e))
	assert.Equal(t, acct.String(), e.Account)
	assert.True(t, e.Size.Equal(decimal.NewFromInt(990)))
}

func TestJournalRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Dir: t.TempDir(), Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestJournalViaBus(t *testing.T) {
	j, err := New(Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, j.Path())

	bus := events.NewBus(zaptest.NewLogger(t), 16)
	bus.SubscribeAll(j)

	acct := solana.NewWallet().PublicKey()
	require.NoError(t, bus.Publish(opened(acct, t0)))
	require.NoError(t, bus.Publish(closed(acct, t0.Add(time.Second), false)))
	require.NoError(t, bus.Shutdown(context.Background()))

	entries := j.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, events.PositionOpened, entries[0].Type)
	assert.Equal(t, events.PositionClosed, entries[1].Type)
	require.NoError(t, j.Close())
}

func TestSummarize(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	j, err := New(Options{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	for _, ev := range []events.Event{
		&events.ReserveInitializedEvent{BaseEvent: events.NewBase(events.ReserveInitialized, bob, t0), Amount: amt("10")},
		opened(alice, t0.Add(time.Second)),
		closed(alice, t0.Add(2*time.Second), true),
		opened(alice, t0.Add(3*time.Second)),
		liquidated(alice, bob, t0.Add(4*time.Second)),
	} {
		require.NoError(t, j.Handle(ctx, ev))
	}

	s := j.Summary()
	assert.Equal(t, 5, s.TotalEvents)
	assert.Equal(t, 2, s.Opened)
	assert.Equal(t, 1, s.Closed)
	assert.Equal(t, 1, s.ImplicitCloses)
	assert.Equal(t, 1, s.Liquidated)
	assert.Equal(t, 2, s.UniqueAccounts)
	assert.True(t, s.TotalFees.Equal(decimal.RequireFromString("2.99")), s.TotalFees.String())
	assert.True(t, s.RealizedPnL.Equal(decimal.RequireFromString("4.95")), s.RealizedPnL.String())
	assert.True(t, s.TotalRewards.Equal(decimal.RequireFromString("4.95")))
	assert.True(t, s.ReserveSeed.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, t0, s.StartDate)
	assert.Equal(t, t0.Add(4*time.Second), s.EndDate)
}
