// Package audit records mutating actions in a capacity-bounded log.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/storage"
)

// Log appends and reads audit entries. Retention is handled by the store:
// only the most recent entries up to its configured capacity survive.
type Log struct {
	store   storage.Store
	pageMax int
}

// New creates an audit log. pageMax caps the limit a reader may request.
func New(store storage.Store, pageMax int) *Log {
	return &Log{store: store, pageMax: pageMax}
}

// Record appends an entry for the given actor and action. Audit failures are
// logged but never propagated: an audit hiccup must not fail the mutation it
// describes.
func (l *Log) Record(ctx context.Context, actorID, action string, metadata map[string]string) {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().Unix(),
		ActorID:   actorID,
		Action:    action,
		Metadata:  metadata,
	}

	if err := l.store.AppendAudit(ctx, entry); err != nil {
		slog.Error("failed to record audit entry", "action", action, "actor_id", actorID, "error", err)
	}
}

// List returns up to limit entries, newest first. Non-positive or oversized
// limits clamp to the configured page maximum.
func (l *Log) List(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > l.pageMax {
		limit = l.pageMax
	}
	return l.store.ListAudit(ctx, limit)
}
