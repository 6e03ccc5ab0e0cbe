// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/akarpov/bowltab/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a session write's base version is
	// stale, i.e. another write landed in between.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrActiveSessionExists is returned when creating an active session
	// while another one is already active.
	ErrActiveSessionExists = errors.New("another session is already active")
)

// Store defines the persistence operations the services rely on.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, ...)
// without changing the service layer.
type Store interface {
	// CreateUser persists a new user.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by local id. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByTelegramID retrieves a user by external identity.
	// Returns ErrNotFound if absent.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// UpdateUser overwrites an existing user record.
	UpdateUser(ctx context.Context, user *models.User) error

	// ListUsers returns all users ordered by creation time, earliest first.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateSession persists a new session aggregate. When the session is
	// active it atomically claims the single-active slot and fails with
	// ErrActiveSessionExists if another active session holds it.
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves a whole session aggregate by id, including its
	// current version. Returns ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// GetActiveSession returns the active session, or nil when none is.
	GetActiveSession(ctx context.Context) (*models.Session, error)

	// ListInactiveSessions returns ended sessions, newest first.
	ListInactiveSessions(ctx context.Context) ([]*models.Session, error)

	// UpdateSession writes back a whole session aggregate. The write only
	// succeeds if the stored version still equals session.Version
	// (ErrVersionConflict otherwise); on success the version is bumped.
	// Deactivating a session releases the single-active slot.
	UpdateSession(ctx context.Context, session *models.Session) error

	// AppendAudit stores an audit entry and evicts the oldest entries beyond
	// the configured capacity.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error

	// ListAudit returns up to limit audit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error)

	// Close releases any resources held by the store.
	Close() error
}
