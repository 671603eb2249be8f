// internal/logger/records.go
package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RecordHeader is the column layout of the submission record file.
var RecordHeader = []string{"timestamp", "signature", "outcome", "resends", "unit_limit", "unit_price", "elapsed"}

// SafeCSVWriter provides thread-safe CSV writing
type SafeCSVWriter struct {
	mu      sync.Mutex
	writer  *csv.Writer
	file    *os.File
	written uint64
}

// NewSafeCSVWriter opens path in append mode and writes header to an empty file.
func NewSafeCSVWriter(path string, header []string) (*SafeCSVWriter, error) {
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

	w := &SafeCSVWriter{writer: csv.NewWriter(file), file: file}
	if stat.Size() == 0 && len(header) > 0 {
		if err := w.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.writer.Flush()
	}
	return w, nil
}

// WriteRecord writes and flushes one record.
func (w *SafeCSVWriter) WriteRecord(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	w.written++
	return nil
}

func (w *SafeCSVWriter) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes and closes the file.
func (w *SafeCSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	return w.file.Close()
}
