package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a sync session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Session is a durable record of one end-to-end fork or sync run.
type Session struct {
	ID            string
	SourceProject string
	DestProject   string
	Kind          string
	Status        SessionStatus
	StartTime     time.Time
	EndTime       *time.Time
	ErrorMessage  string
}

// timeFormat is the canonical timestamp encoding in the store.
const timeFormat = time.RFC3339Nano

// CreateSession inserts a new running session record.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("create session: id is required")
	}
	start := sess.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
		sess.StartTime = start
	}
	sess.Status = StatusRunning

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (sync_id, source_project, dest_project, sync_type, status, start_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SourceProject, sess.DestProject, sess.Kind, string(StatusRunning), start.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

// CompleteSession marks a running session as completed. The terminal state
// is set exactly once: completing an already-terminal session is an error.
func (s *Store) CompleteSession(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusCompleted, "")
}

// FailSession marks a running session as failed with the captured error.
func (s *Store) FailSession(ctx context.Context, id, errorMessage string) error {
	return s.finish(ctx, id, StatusFailed, errorMessage)
}

func (s *Store) finish(ctx context.Context, id string, status SessionStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET status = ?, end_time = ?, error_message = ?
		WHERE sync_id = ? AND status = ?`,
		string(status), time.Now().UTC().Format(timeFormat), errorMessage, id, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s is not running", id)
	}
	return nil
}

// ReopenSession returns a failed session to running so an interrupted run can
// be resumed from its checkpoint. Completed sessions stay terminal; reopening
// anything but a failed session is an error.
func (s *Store) ReopenSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_sessions
		SET status = ?, end_time = NULL, error_message = ''
		WHERE sync_id = ? AND status = ?`,
		string(StatusRunning), id, string(StatusFailed))
	if err != nil {
		return fmt.Errorf("reopen session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s is not failed", id)
	}
	return nil
}

// GetSession fetches a session by id. Returns nil, nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sync_id, source_project, dest_project, sync_type, status, start_time, end_time, error_message
		FROM sync_sessions WHERE sync_id = ?`, id)
	return scanSession(row)
}

// LastCompletedSession returns the most recently completed session, used to
// baseline incremental sync. Returns nil, nil when none exists.
func (s *Store) LastCompletedSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sync_id, source_project, dest_project, sync_type, status, start_time, end_time, error_message
		FROM sync_sessions
		WHERE status = ?
		ORDER BY end_time DESC
		LIMIT 1`, string(StatusCompleted))
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var status, startStr string
	var endStr, errMsg sql.NullString
	err := row.Scan(&sess.ID, &sess.SourceProject, &sess.DestProject, &sess.Kind,
		&status, &startStr, &endStr, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = SessionStatus(status)
	if sess.StartTime, err = time.Parse(timeFormat, startStr); err != nil {
		return nil, fmt.Errorf("parse session start time: %w", err)
	}
	if endStr.Valid {
		end, err := time.Parse(timeFormat, endStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse session end time: %w", err)
		}
		sess.EndTime = &end
	}
	sess.ErrorMessage = errMsg.String
	return &sess, nil
}
