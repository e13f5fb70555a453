package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"autohedge/backtest"
)

// ErrNotFound is returned by Get when no saved run matches.
var ErrNotFound = errors.New("backtest record not found")

// Record is one saved single-symbol backtest.
type Record struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Symbol    string          `json:"symbol"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Params    backtest.Params `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
	Result    backtest.Result `json:"result"`
}

// Store persists backtest records for the history view.
type Store interface {
	Save(ctx context.Context, rec Record) error
	// List returns every record, newest first.
	List(ctx context.Context) ([]Record, error)
	// Get finds a record by ID or by filename.
	Get(ctx context.Context, key string) (Record, error)
	Close() error
}

// NewRecord stamps a report with a fresh ID, a creation time and its
// canonical filename.
func NewRecord(rep backtest.Report, now time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		Filename:  Filename(rep.Symbol, rep.StartDate, rep.EndDate),
		Symbol:    rep.Symbol,
		StartDate: rep.StartDate,
		EndDate:   rep.EndDate,
		Params:    rep.Params,
		CreatedAt: now.UTC(),
		Result:    rep.Result,
	}
}

// Report converts the record back into the runner's report shape.
func (r Record) Report() backtest.Report {
	return backtest.Report{
		Symbol:    r.Symbol,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Params:    r.Params,
		Result:    r.Result,
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is backtest_{SYMBOL}_{start}_to_{end}.json with anything outside
// [A-Za-z0-9._-] replaced.
func Filename(symbol, start, end string) string {
	clean := func(s string) string {
		s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
		if s == "" {
			return "unknown"
		}
		return s
	}
	return fmt.Sprintf("backtest_%s_%s_to_%s.json", clean(symbol), clean(start), clean(end))
}

// Open picks a backend by kind: "file" (default) or "sqlite".
func Open(kind, dir, dbPath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
