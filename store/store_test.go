package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autohedge/backtest"
)

func sampleReport(symbol string) backtest.Report {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	trades := []backtest.Trade{{
		Stock:       symbol,
		EntryDate:   entry,
		EntryPrice:  100,
		ExitDate:    entry.AddDate(0, 0, 3),
		ExitPrice:   110,
		Action:      backtest.ActionBuy,
		Quantity:    10,
		Allocation:  1000,
		StopLossPct: 5,
		PnL:         100,
		PnLPct:      10,
		IsWinner:    true,
		ExitReason:  backtest.ExitTakeProfit,
	}}
	return backtest.Report{
		Symbol:    symbol,
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Params:    backtest.DefaultParams(),
		Result:    backtest.NewResult(trades, 100000),
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("AAPL", "2024-01-01", "2024-06-30"); got != "backtest_AAPL_2024-01-01_to_2024-06-30.json" {
		t.Fatalf("unexpected filename %s", got)
	}
	if got := Filename("../x y", "", "2024-06-30"); got != "backtest_.._x_y_unknown_to_2024-06-30.json" {
		t.Fatalf("unexpected sanitised filename %s", got)
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	older := NewRecord(sampleReport("AAPL"), base)
	newer := NewRecord(sampleReport("MSFT"), base.Add(time.Minute))
	if older.ID == newer.ID || older.ID == "" {
		t.Fatalf("expected distinct ids")
	}
	for _, rec := range []Record{older, newer} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.Symbol, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Symbol != "MSFT" || list[1].Symbol != "AAPL" {
		t.Fatalf("expected newest first, got %#v", list)
	}

	got, err := s.Get(ctx, older.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Result.TotalTrades != 1 || got.Result.Trades[0].ExitReason != backtest.ExitTakeProfit {
		t.Fatalf("result not preserved: %#v", got.Result)
	}
	if !got.Result.Trades[0].EntryDate.Equal(older.Result.Trades[0].EntryDate) || got.Params != older.Params {
		t.Fatalf("record not preserved: %#v", got)
	}

	byName, err := s.Get(ctx, newer.Filename)
	if err != nil || byName.ID != newer.ID {
		t.Fatalf("get by filename: %#v %v", byName, err)
	}

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "outputs"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	if _, err := os.Stat(filepath.Join(dir, "outputs", "backtest_AAPL_2024-01-01_to_2024-06-30.json")); err != nil {
		t.Fatalf("expected dashboard-style filename: %v", err)
	}
}

func TestFileStoreReplacesSameRange(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	now := time.Now()
	_ = s.Save(ctx, NewRecord(sampleReport("AAPL"), now))
	second := NewRecord(sampleReport("AAPL"), now.Add(time.Second))
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("expected the later save to replace the first, got %#v", list)
	}
}

func TestFileStoreSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "backtest_BAD_x_to_y.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %#v %v", list, err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open("file", filepath.Join(dir, "out"), "")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, ok := fs.(*FileStore); !ok {
		t.Fatalf("expected FileStore, got %T", fs)
	}

	ss, err := Open("SQLite", "", filepath.Join(dir, "h.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer ss.Close()
	if _, ok := ss.(*SQLiteStore); !ok {
		t.Fatalf("expected SQLiteStore, got %T", ss)
	}

	if _, err := Open("mongo", dir, ""); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}
