// internal/journal/writers.go
package journal

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// entryWriter appends entries to the live journal file, one CSV row or one
// JSON line per entry, and flushes on an interval.
type entryWriter struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	encode func(Entry) error
	drain  func() error // pushes encoder state into buf
	ticker *time.Ticker
	done   chan struct{}
	logger *zap.Logger
	path   string

	written uint64
}

// liveExtension maps a journal format to the live file's extension.
func liveExtension(format ExportFormat) (string, error) {
	switch format {
	case FormatCSV, "":
		return "csv", nil
	case FormatJSON:
		return "jsonl", nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// newEntryWriter opens path for appending. A CSV file gets the header only
// when it is new.
func newEntryWriter(path string, format ExportFormat, flushInterval time.Duration, logger *zap.Logger) (*entryWriter, error) {
	if _, err := liveExtension(format); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	w := &entryWriter{
		file:   file,
		buf:    bufio.NewWriter(file),
		done:   make(chan struct{}),
		logger: logger,
		path:   path,
	}

	if format == FormatJSON {
		enc := json.NewEncoder(w.buf)
		w.encode = func(e Entry) error { return enc.Encode(e) }
		w.drain = func() error { return nil }
	} else {
		cw := csv.NewWriter(w.buf)
		w.encode = func(e Entry) error { return cw.Write(e.ToCSV()) }
		w.drain = func() error {
			cw.Flush()
			return cw.Error()
		}
		if stat.Size() == 0 {
			if err := cw.Write(CSVHeaders()); err != nil {
				file.Close()
				return nil, fmt.Errorf("failed to write header: %w", err)
			}
		}
	}

	w.ticker = time.NewTicker(flushInterval)
	go w.periodicFlush()
	return w, nil
}

// Write appends one entry.
func (w *entryWriter) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encode(e); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", e.ID, err)
	}
	w.written++
	return nil
}

// Flush forces buffered entries to disk.
func (w *entryWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(true)
}

func (w *entryWriter) flushLocked(durable bool) error {
	if err := w.drain(); err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if durable {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file: %w", err)
		}
	}
	return nil
}

func (w *entryWriter) periodicFlush() {
	for {
		select {
		case <-w.ticker.C:
			if err := w.Flush(); err != nil {
				w.logger.Error("Periodic journal flush failed", zap.String("file", w.path), zap.Error(err))
			}
		case <-w.done:
			return
		}
	}
}

// Close flushes and closes the file.
func (w *entryWriter) Close() error {
	close(w.done)
	w.ticker.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(false); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	w.logger.Debug("Journal file closed",
		zap.String("file", w.path),
		zap.Uint64("entries", w.written))
	return nil
}
