package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PhaseIssueProcessing is the only resumable phase. Checkpoints from other
// phases are informational.
const PhaseIssueProcessing = "issue_processing"

// Checkpoint is an append-only progress marker. ResumeKey is the source key
// about to be processed when the checkpoint was written.
type Checkpoint struct {
	SessionID string
	Phase     string
	Progress  int
	Total     int
	Timestamp time.Time
	ResumeKey string
}

// AddCheckpoint appends a checkpoint for a session.
func (s *Store) AddCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if cp.Progress > cp.Total {
		return fmt.Errorf("checkpoint progress %d exceeds total %d", cp.Progress, cp.Total)
	}
	ts := cp.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
		cp.Timestamp = ts
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (sync_id, phase, progress, total, timestamp, resume_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cp.SessionID, cp.Phase, cp.Progress, cp.Total, ts.Format(timeFormat), cp.ResumeKey)
	if err != nil {
		return fmt.Errorf("add checkpoint for %s: %w", cp.SessionID, err)
	}
	return nil
}

// LatestCheckpoint returns the most recent checkpoint for a session, or
// nil, nil when the session has none. The insertion id breaks timestamp
// ties.
func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sync_id, phase, progress, total, timestamp, resume_key
		FROM checkpoints
		WHERE sync_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`, sessionID)

	var cp Checkpoint
	var tsStr string
	var resumeKey sql.NullString
	err := row.Scan(&cp.SessionID, &cp.Phase, &cp.Progress, &cp.Total, &tsStr, &resumeKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest checkpoint for %s: %w", sessionID, err)
	}
	if cp.Timestamp, err = time.Parse(timeFormat, tsStr); err != nil {
		return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	cp.ResumeKey = resumeKey.String
	return &cp, nil
}
