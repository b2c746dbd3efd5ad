package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wecall/signaling/internal/domain"
)

// SQLite persists call records and notifications in a single database
// file. Pure-Go driver, no cgo.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS call_logs (
			call_id    TEXT PRIMARY KEY,
			caller     TEXT NOT NULL,
			callee     TEXT NOT NULL,
			type       TEXT NOT NULL,
			status     TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at   DATETIME
		);
		CREATE TABLE IF NOT EXISTS notifications (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			type         TEXT NOT NULL,
			from_user_id TEXT,
			message      TEXT NOT NULL,
			read         INTEGER NOT NULL DEFAULT 0,
			data         TEXT,
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_call_logs_caller ON call_logs(caller);
		CREATE INDEX IF NOT EXISTS idx_call_logs_callee ON call_logs(callee);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, rec *domain.CallLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (call_id, caller, callee, type, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.CallID), string(rec.Caller), string(rec.Callee),
		string(rec.Type), string(rec.Status), rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateByCallID(ctx context.Context, id domain.CallID, status domain.CallStatus, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_logs SET status = ?, ended_at = ? WHERE call_id = ?`,
		string(status), endedAt, string(id),
	)
	if err != nil {
		return fmt.Errorf("update call log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetByCallID(ctx context.Context, id domain.CallID) (*domain.CallLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT call_id, caller, callee, type, status, started_at, ended_at
		FROM call_logs WHERE call_id = ?`, string(id))
	rec, err := scanCallLog(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.CallLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, caller, callee, type, status, started_at, ended_at
		FROM call_logs WHERE caller = ? OR callee = ?
		ORDER BY started_at DESC LIMIT ?`,
		string(user), string(user), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}
	defer rows.Close()

	var out []domain.CallLog
	for rows.Next() {
		rec, err := scanCallLog(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanCallLog(scan func(...any) error) (*domain.CallLog, error) {
	var rec domain.CallLog
	var callID, caller, callee, typ, status string
	var endedAt sql.NullTime
	if err := scan(&callID, &caller, &callee, &typ, &status, &rec.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	rec.CallID = domain.CallID(callID)
	rec.Caller = domain.UserID(caller)
	rec.Callee = domain.UserID(callee)
	rec.Type = domain.CallType(typ)
	rec.Status = domain.CallStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return &rec, nil
}

// SQLiteNotes is the Notifications store backed by the same database.
type SQLiteNotes struct {
	db *sql.DB
}

func (s *SQLite) Notes() *SQLiteNotes { return &SQLiteNotes{db: s.db} }

func (s *SQLiteNotes) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, from_user_id, message, read, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.UserID), string(n.Type), string(n.FromUserID),
		n.Message, n.Read, data, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLiteNotes) ListByUser(ctx context.Context, user domain.UserID, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, from_user_id, message, read, data, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		string(user), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var userID, typ, from string
		var data sql.NullString
		if err := rows.Scan(&n.ID, &userID, &typ, &from, &n.Message, &n.Read, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.UserID = domain.UserID(userID)
		n.Type = domain.NotificationType(typ)
		n.FromUserID = domain.UserID(from)
		if data.Valid {
			n.Data = []byte(data.String)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
