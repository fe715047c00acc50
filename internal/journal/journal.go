// internal/journal/journal.go
package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
)

// Options configures the live journal file.
type Options struct {
	// Dir receives the live file; empty keeps the journal in memory only.
	Dir           string
	Format        ExportFormat
	FlushInterval time.Duration
}

// Journal records every engine event in delivery order and streams it to a
// live CSV or JSON-lines file.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	live    *entryWriter
	path    string
	logger  *zap.Logger
}

// New creates a journal. Subscribe it to a bus with bus.SubscribeAll(j).
func New(opts Options, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{logger: logger.Named("journal")}
	if opts.Dir == "" {
		return j, nil
	}

	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	ext, err := liveExtension(opts.Format)
	if err != nil {
		return nil, err
	}
	stamp := time.Now().Format("20060102_150405")
	j.path = filepath.Join(opts.Dir, fmt.Sprintf("journal_%s.%s", stamp, ext))
	j.live, err = newEntryWriter(j.path, opts.Format, opts.FlushInterval, j.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal writer: %w", err)
	}

	j.logger.Info("Journal initialized", zap.String("file", j.path))
	return j, nil
}

// Handle implements events.Handler.
func (j *Journal) Handle(_ context.Context, ev events.Event) error {
	entry, ok := FromEvent(ev)
	if !ok {
		j.logger.Debug("Ignoring unknown event", zap.String("event_type", string(ev.Type())))
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, entry)

	if j.live != nil {
		return j.live.Write(entry)
	}
	return nil
}

// Export writes every recorded entry to dir in the given format.
func (j *Journal) Export(dir string, format ExportFormat) (string, error) {
	return NewExporter(j.logger).Export(j.Entries(), ExportOptions{Format: format, OutputDir: dir})
}

// Close flushes and closes the live file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.live == nil {
		return nil
	}
	err := j.live.Close()
	j.live = nil
	return err
}

// Summary contains aggregate statistics over journal entries
type Summary struct {
	TotalEvents    int             `json:"total_events"`
	Opened         int             `json:"opened"`
	Increased      int             `json:"increased"`
	Closed         int             `json:"closed"`
	ImplicitCloses int             `json:"implicit_closes"`
	Liquidated     int             `json:"liquidated"`
	UniqueAccounts int             `json:"unique_accounts"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	TotalPayouts   decimal.Decimal `json:"total_payouts"`
	TotalRewards   decimal.Decimal `json:"total_rewards"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	ReserveSeed    decimal.Decimal `json:"reserve_seed"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

// Summarize computes a Summary over entries.
func Summarize(entries []Entry) Summary {
	s := Summary{TotalEvents: len(entries)}
	if len(entries) == 0 {
		return s
	}
	s.StartDate = entries[0].Timestamp
	s.EndDate = entries[len(entries)-1].Timestamp

	accounts := make(map[string]bool)
	for _, e := range entries {
		accounts[e.Account] = true
		s.TotalFees = s.TotalFees.Add(e.Fee)
		s.TotalPayouts = s.TotalPayouts.Add(e.Payout)

		switch e.Type {
		case events.PositionOpened:
			s.Opened++
		case events.PositionIncreased:
			s.Increased++
		case events.PositionClosed:
			s.Closed++
			if e.Implicit {
				s.ImplicitCloses++
			}
			s.RealizedPnL = s.RealizedPnL.Add(e.PnL)
		case events.PositionLiquidated:
			s.Liquidated++
			s.TotalRewards = s.TotalRewards.Add(e.Reward)
			s.RealizedPnL = s.RealizedPnL.Add(e.PnL)
		case events.ReserveInitialized:
			s.ReserveSeed = s.ReserveSeed.Add(e.Amount)
		}
	}
	s.UniqueAccounts = len(accounts)
	return s
}
