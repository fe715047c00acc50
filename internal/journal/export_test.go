package journal

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
)

func testEntries(t *testing.T, alice, bob solana.PublicKey) []Entry {
	t.Helper()
	var out []Entry
	for _, ev := range []events.Event{
		closed(alice, t0.Add(2*time.Minute), false),
		opened(alice, t0),
		opened(bob, t0.Add(time.Minute)),
		liquidated(bob, alice, t0.Add(3*time.Minute)),
	} {
		e, ok := FromEvent(ev)
		require.True(t, ok)
		out = append(out, e)
	}
	return out
}

func TestExportJSONSortsAndSummarizes(t *testing.T) {
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	ex := NewExporter(zaptest.NewLogger(t))

	path, err := ex.Export(testEntries(t, alice, bob), ExportOptions{Format: FormatJSON, OutputDir: t.TempDir()})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		EntryCount int     `json:"entry_count"`
		Summary    Summary `json:"summary"`
		Entries    []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 4, doc.EntryCount)
	assert.Equal(t, 2, doc.Summary.Opened)
	require.Len(t, doc.Entries, 4)
	for i := 1; i < len(doc.Entries); i++ {
		assert.False(t, doc.Entries[i].Timestamp.Before(doc.Entries[i-1].Timestamp))
	}
}

func TestExportFilters(t *testing.T) {
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	entries := testEntries(t, alice, bob)

	tests := []struct {
		name string
		opts ExportOptions
		want int
	}{
		{"type", ExportOptions{TypeFilter: events.PositionOpened}, 2},
		// alice also appears as the liquidator of bob
		{"account", ExportOptions{AccountFilter: alice.String()}, 3},
		{"window", ExportOptions{StartTime: t0.Add(time.Minute), EndTime: t0.Add(2 * time.Minute)}, 2},
	}

	ex := NewExporter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ex.filter(entries, tt.opts), tt.want)
		})
	}
}

func TestExportCSV(t *testing.T) {
	alice, bob := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	ex := NewExporter(nil)

	path, err := ex.Export(testEntries(t, alice, bob), ExportOptions{
		Format:     FormatCSV,
		OutputDir:  t.TempDir(),
		TypeFilter: events.PositionLiquidated,
	})
	require.NoError(t, err)
	assert.Contains(t, path, "journal_position.liquidated")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestExportNothing(t *testing.T) {
	_, err := NewExporter(nil).Export(nil, ExportOptions{Format: FormatCSV, OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = NewExporter(nil).Export([]Entry{{Timestamp: t0}}, ExportOptions{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestJournalExport(t *testing.T) {
	j, err := New(Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, j.Path())

	acct := solana.NewWallet().PublicKey()
	require.NoError(t, j.Handle(context.Background(), opened(acct, t0)))
	require.NoError(t, j.Handle(context.Background(), closed(acct, t0.Add(time.Minute), false)))

	path, err := j.Export(t.TempDir(), FormatCSV)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}
