package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akarpov/bowltab/internal/models"
)

// AppendAudit stores an audit entry and evicts everything older than the
// configured capacity in the same transaction.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp, entry.ActorID, entry.Action, string(metadata))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if s.auditCapacity > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM audit_log
			WHERE seq NOT IN (SELECT seq FROM audit_log ORDER BY seq DESC LIMIT ?)
		`, s.auditCapacity)
		if err != nil {
			return fmt.Errorf("failed to trim audit log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit entry: %w", err)
	}

	return nil
}

// ListAudit returns up to limit audit entries, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, action, metadata
		FROM audit_log
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		var metadata string
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.ActorID, &entry.Action, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
