package journal

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/leverage-engine/internal/events"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ErrNothingToExport is returned when no entry passes the filters.
var ErrNothingToExport = errors.New("no entries match the export criteria")

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format        ExportFormat
	StartTime     time.Time
	EndTime       time.Time
	AccountFilter string // base58 account
	TypeFilter    events.EventType
	OutputDir     string
}

// Exporter writes journal snapshots to disk
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger.Named("export")}
}

// Export writes the entries that pass options' filters and returns the file path.
func (ex *Exporter) Export(entries []Entry, options ExportOptions) (string, error) {
	filtered := ex.filter(entries, options)
	if len(filtered) == 0 {
		return "", ErrNothingToExport
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, ex.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = ex.toCSV(filtered, outputPath)
	case FormatJSON:
		err = ex.toJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	ex.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (ex *Exporter) filter(entries []Entry, options ExportOptions) []Entry {
	var filtered []Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.Timestamp.After(options.EndTime) {
			continue
		}
		if options.AccountFilter != "" && e.Account != options.AccountFilter && e.Liquidator != options.AccountFilter {
			continue
		}
		if options.TypeFilter != "" && e.Type != options.TypeFilter {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (ex *Exporter) filename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405.000")

	prefix := "journal_all"
	if options.TypeFilter != "" {
		prefix = "journal_" + string(options.TypeFilter)
	}
	if len(options.AccountFilter) >= 8 {
		prefix += "_" + options.AccountFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (ex *Exporter) toCSV(entries []Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(e.ToCSV()); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (ex *Exporter) toJSON(entries []Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time `json:"export_time"`
		EntryCount int       `json:"entry_count"`
		Summary    Summary   `json:"summary"`
		Entries    []Entry   `json:"entries"`
	}{
		ExportTime: time.Now(),
		EntryCount: len(entries),
		Summary:    Summarize(entries),
		Entries:    entries,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
