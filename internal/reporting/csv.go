// Package reporting owns the presentation side of call outcomes: the
// append-only CSV call log and the HTML dashboard. It only reads the
// recorder; it never influences routing.
package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"zip-routing-api-go/internal/routing"
)

var csvHeader = []string{
	"timestamp", "caller_id", "zip_code", "original_tier", "chosen_tier",
	"fallback_used", "business_hours_ok", "rate_limit_ok", "status",
	"response_time_ms", "external_call_id",
}

// CSVLogger appends one row per finalized call record to a log file.
type CSVLogger struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewCSVLogger opens (or creates) the log file, writing the header row
// only when the file is new or empty.
func NewCSVLogger(path string) (*CSVLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat call log: %w", err)
	}

	l := &CSVLogger{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write call log header: %w", err)
		}
		l.w.Flush()
	}

	return l, nil
}

// Append writes one record and flushes. Thread-safe.
func (l *CSVLogger) Append(rec routing.CallRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		rec.Timestamp.Format(time.RFC3339),
		rec.CallerID,
		rec.ZipCode,
		string(rec.OriginalTier),
		string(rec.ChosenTier),
		strconv.FormatBool(rec.FallbackUsed),
		strconv.FormatBool(rec.BusinessHoursOK),
		strconv.FormatBool(rec.RateLimitOK),
		string(rec.Status),
		strconv.FormatInt(rec.ResponseTimeMs, 10),
		rec.ExternalCallID,
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("failed to write call log row: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the underlying file.
func (l *CSVLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
