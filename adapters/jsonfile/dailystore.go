// Package jsonfile persists the daily rollup table as a single JSON
// file mapping ISO dates to call/token counts.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/ports"
)

// DailyStore implements ports.DailySnapshotStore on a JSON file. Each
// Save rewrites the file in full through a temp file and rename, so a
// crash mid-write leaves either the old or the new table, never a
// torn one.
type DailyStore struct {
	path string
}

// NewDailyStore creates a store backed by the file at path. Parent
// directories are created on first use.
func NewDailyStore(path string) *DailyStore {
	return &DailyStore{path: path}
}

// Load reads the persisted table. A missing, empty, or unreadable
// file is healed: an empty table is returned and a fresh valid file
// is written in its place.
func (s *DailyStore) Load(ctx context.Context) (map[string]stats.Counts, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if werr := s.writeTable(map[string]stats.Counts{}); werr != nil {
			return nil, fmt.Errorf("create daily stats file: %w", werr)
		}
		return map[string]stats.Counts{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily stats file: %w", err)
	}

	if len(raw) == 0 {
		if werr := s.writeTable(map[string]stats.Counts{}); werr != nil {
			return nil, fmt.Errorf("rewrite empty daily stats file: %w", werr)
		}
		return map[string]stats.Counts{}, nil
	}

	table := make(map[string]stats.Counts)
	if err := json.Unmarshal(raw, &table); err != nil {
		// Corrupt file: start from an empty table and replace it
		// with a valid one rather than failing the load.
		if werr := s.writeTable(map[string]stats.Counts{}); werr != nil {
			return nil, fmt.Errorf("replace corrupt daily stats file: %w", werr)
		}
		return map[string]stats.Counts{}, nil
	}

	return table, nil
}

// Save replaces the persisted table.
func (s *DailyStore) Save(ctx context.Context, table map[string]stats.Counts) error {
	return s.writeTable(table)
}

func (s *DailyStore) writeTable(table map[string]stats.Counts) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode daily stats: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write daily stats: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace daily stats: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.DailySnapshotStore = (*DailyStore)(nil)
