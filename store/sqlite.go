package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every run as a row; re-running a range adds a new record.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("database path is empty")
	}
	if p != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Printf("[store] opened database at %s\n", p)
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS backtests (
			id         TEXT    PRIMARY KEY,
			filename   TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			start_date TEXT    NOT NULL,
			end_date   TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			params     TEXT    NOT NULL,
			result     TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_backtests_created ON backtests(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_backtests_filename ON backtests(filename);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record id is empty")
	}
	if rec.Filename == "" {
		rec.Filename = Filename(rec.Symbol, rec.StartDate, rec.EndDate)
	}
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return err
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtests (id, filename, symbol, start_date, end_date, created_at, params, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Symbol, rec.StartDate, rec.EndDate,
		rec.CreatedAt.UTC().UnixNano(), string(params), string(result))
	if err != nil {
		return fmt.Errorf("insert backtest: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, filename, symbol, start_date, end_date, created_at, params, result FROM backtests`

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, filename ASC`)
	if err != nil {
		return nil, fmt.Errorf("query backtests: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, error) {
	k := strings.TrimSpace(key)
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE id = ? OR filename = ? ORDER BY created_at DESC LIMIT 1`, k, k)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (Record, error) {
	var (
		rec            Record
		created        int64
		params, result string
	)
	if err := r.Scan(&rec.ID, &rec.Filename, &rec.Symbol, &rec.StartDate, &rec.EndDate, &created, &params, &result); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return Record{}, fmt.Errorf("decode params of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return Record{}, fmt.Errorf("decode result of %s: %w", rec.ID, err)
	}
	return rec, nil
}
