package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dexArb/internal/model"
)

const dayLayout = "2006-01-02"

// JsonlStorage appends decision records to a JSONL journal. With daily rotation
// each record lands in <base>-YYYY-MM-DD<ext>, keyed on its UTC DecidedAt.
type JsonlStorage struct {
	path  string
	daily bool
	mu    sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// NewDailyJsonlStorage rotates the journal at UTC midnight.
func NewDailyJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path, daily: true}
}

// PathFor names the file a decision is written to.
func (s *JsonlStorage) PathFor(d model.Decision) string {
	if !s.daily {
		return s.path
	}
	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	return base + "-" + d.DecidedAt.UTC().Format(dayLayout) + ext
}

// PutDecisions appends decisions in batch order. A batch spanning midnight splits
// across files.
func (s *JsonlStorage) PutDecisions(_ context.Context, decisions []model.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]model.Decision)
	for _, d := range decisions {
		path := s.PathFor(d)
		if _, seen := groups[path]; !seen {
			order = append(order, path)
		}
		groups[path] = append(groups[path], d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range order {
		if err := appendLines(path, groups[path]); err != nil {
			return err
		}
	}
	return nil
}

func appendLines(path string, decisions []model.Decision) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for i := range decisions {
		if err := enc.Encode(&decisions[i]); err != nil {
			file.Close()
			return fmt.Errorf("encode decision at block %d: %w", decisions[i].BlockNumber, err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush journal %s: %w", path, err)
	}
	return file.Close()
}
