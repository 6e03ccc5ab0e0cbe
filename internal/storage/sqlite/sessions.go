package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/storage"
)

// CreateSession inserts a new session aggregate. An active session claims
// the single active_session slot in the same transaction, so two concurrent
// creates cannot both become active.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	aggregate, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session aggregate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, is_active, created_at, ended_at, version, aggregate)
		VALUES (?, ?, ?, ?, 1, ?)
	`, session.ID, boolToInt(session.IsActive), session.CreatedAt, session.EndedAt, string(aggregate))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if session.IsActive {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO active_session (slot, session_id) VALUES (1, ?)
			ON CONFLICT (slot) DO NOTHING
		`, session.ID)
		if err != nil {
			return fmt.Errorf("failed to claim active session slot: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return storage.ErrActiveSessionExists
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	session.Version = 1
	return nil
}

// GetSession retrieves a whole session aggregate by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, is_active, created_at, ended_at, version, aggregate
		FROM sessions
		WHERE id = ?
	`
	return s.scanSession(s.db.QueryRowContext(ctx, query, id))
}

// GetActiveSession returns the active session, or nil when none is active.
func (s *SQLiteStore) GetActiveSession(ctx context.Context) (*models.Session, error) {
	query := `
		SELECT s.id, s.is_active, s.created_at, s.ended_at, s.version, s.aggregate
		FROM sessions s
		JOIN active_session a ON a.session_id = s.id
	`
	session, err := s.scanSession(s.db.QueryRowContext(ctx, query))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	return session, err
}

// ListInactiveSessions returns ended sessions, newest first.
func (s *SQLiteStore) ListInactiveSessions(ctx context.Context) ([]*models.Session, error) {
	query := `
		SELECT id, is_active, created_at, ended_at, version, aggregate
		FROM sessions
		WHERE is_active = 0
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// UpdateSession writes back a whole session aggregate with a version check:
// the UPDATE only matches when the stored version equals the caller's base
// version, so a write that raced against another one fails instead of
// silently overwriting it. Deactivating a session releases the active slot.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *models.Session) error {
	aggregate, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session aggregate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = ?, ended_at = ?, version = version + 1, aggregate = ?
		WHERE id = ? AND version = ?
	`, boolToInt(session.IsActive), session.EndedAt, string(aggregate), session.ID, session.Version)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, session.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if exists == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	if !session.IsActive {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_session WHERE session_id = ?`, session.ID); err != nil {
			return fmt.Errorf("failed to release active session slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	session.Version++
	return nil
}

// scanSession decodes one session row. The columns are authoritative for the
// fields they duplicate from the aggregate JSON. A row whose aggregate does
// not decode surfaces as an error; there is no default-value fallback for
// corrupt data.
func (s *SQLiteStore) scanSession(row rowScanner) (*models.Session, error) {
	var (
		id        string
		isActive  int
		createdAt int64
		endedAt   int64
		version   int64
		aggregate string
	)

	err := row.Scan(&id, &isActive, &createdAt, &endedAt, &version, &aggregate)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session := &models.Session{}
	if err := json.Unmarshal([]byte(aggregate), session); err != nil {
		return nil, fmt.Errorf("failed to decode session aggregate %s: %w", id, err)
	}

	session.ID = id
	session.IsActive = isActive != 0
	session.CreatedAt = createdAt
	session.EndedAt = endedAt
	session.Version = version
	return session, nil
}
