package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertMapping records the destination key created for a source issue
// within a session. Re-processing the same source key (at-least-once resume)
// overwrites the previous row: latest wins, and the primary key guarantees a
// single destination key per (session, source key).
func (s *Store) UpsertMapping(ctx context.Context, sessionID, sourceKey, destKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_mappings (sync_id, source_key, dest_key, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (sync_id, source_key)
		DO UPDATE SET dest_key = excluded.dest_key, timestamp = excluded.timestamp`,
		sessionID, sourceKey, destKey, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upsert mapping %s -> %s: %w", sourceKey, destKey, err)
	}
	return nil
}

// GetMapping returns the destination key for a source key within a session.
// The second return value reports whether a mapping exists.
func (s *Store) GetMapping(ctx context.Context, sessionID, sourceKey string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dest_key FROM issue_mappings WHERE sync_id = ? AND source_key = ?`,
		sessionID, sourceKey)

	var destKey string
	err := row.Scan(&destKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get mapping for %s: %w", sourceKey, err)
	}
	return destKey, true, nil
}

// GetMappings returns all source -> destination key mappings for a session.
func (s *Store) GetMappings(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_key, dest_key FROM issue_mappings WHERE sync_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get mappings for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]string)
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		result[src] = dst
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return result, nil
}

// CountMappings returns the number of mapped issues for a session.
func (s *Store) CountMappings(ctx context.Context, sessionID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issue_mappings WHERE sync_id = ?`, sessionID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count mappings for %s: %w", sessionID, err)
	}
	return n, nil
}
