package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON document per run in a directory. Saving the same
// symbol and date range again replaces the earlier file.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	d := strings.TrimSpace(dir)
	if d == "" {
		return nil, errors.New("output dir is empty")
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileStore{dir: d}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Save(ctx context.Context, rec Record) error {
	if rec.Filename == "" {
		rec.Filename = Filename(rec.Symbol, rec.StartDate, rec.EndDate)
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	// Atomic-ish write.
	tmp, err := os.CreateTemp(s.dir, ".backtest-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(s.dir, rec.Filename))
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "backtest_*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(path)
		if err != nil {
			log.Printf("[store] skip %s: %v\n", path, err)
			continue
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, key string) (Record, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return Record{}, ErrNotFound
	}
	if filepath.Base(k) == k && strings.HasSuffix(k, ".json") {
		rec, err := readRecord(filepath.Join(s.dir, k))
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Record{}, err
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, rec := range all {
		if rec.ID == k {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) Close() error { return nil }

func readRecord(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, err
	}
	rec.Filename = filepath.Base(path)
	if rec.CreatedAt.IsZero() {
		if fi, err := os.Stat(path); err == nil {
			rec.CreatedAt = fi.ModTime().UTC()
		}
	}
	return rec, nil
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].Filename < recs[j].Filename
	})
}
