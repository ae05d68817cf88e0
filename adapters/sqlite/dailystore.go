package sqlite

import (
	"context"
	"fmt"

	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/ports"
)

// DailyStore implements ports.DailySnapshotStore using SQLite. Save
// replaces the whole table inside one transaction, matching the
// all-or-nothing semantics of the JSON snapshot.
type DailyStore struct {
	db *DB
}

// NewDailyStore creates a new SQLite daily store.
func NewDailyStore(db *DB) *DailyStore {
	return &DailyStore{db: db}
}

// Load reads the persisted table. An absent table yields an empty map.
func (s *DailyStore) Load(ctx context.Context) (map[string]stats.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, calls, tokens FROM daily_stats`)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	table := make(map[string]stats.Counts)
	for rows.Next() {
		var date string
		var c stats.Counts
		if err := rows.Scan(&date, &c.Calls, &c.Tokens); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		table[date] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stats: %w", err)
	}
	return table, nil
}

// Save replaces the persisted table with the given one.
func (s *DailyStore) Save(ctx context.Context, table map[string]stats.Counts) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_stats`); err != nil {
		return fmt.Errorf("clear daily stats: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_stats (date, calls, tokens) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for date, c := range table {
		if _, err := stmt.ExecContext(ctx, date, c.Calls, c.Tokens); err != nil {
			return fmt.Errorf("insert daily stats %s: %w", date, err)
		}
	}

	return tx.Commit()
}

// Ensure interface compliance.
var _ ports.DailySnapshotStore = (*DailyStore)(nil)
