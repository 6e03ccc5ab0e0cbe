// Package directory maps Telegram identities onto local user records and
// keeps the admin-exists invariant intact.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov/bowltab/internal/audit"
	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/storage"
	"github.com/akarpov/bowltab/internal/telegram"
)

var (
	// ErrForbidden means the acting user lacks the admin role.
	ErrForbidden = errors.New("admin role required")

	// ErrUserNotFound means the target user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRole means the requested role is not a known one.
	ErrInvalidRole = errors.New("invalid role")
)

// Directory is the user directory service.
type Directory struct {
	store storage.Store
	audit *audit.Log

	// mu serializes every user-record write (upserts, role changes,
	// settings) so the first-user-is-admin decision, the self-heal scan,
	// and read-modify-write updates cannot race each other.
	mu sync.Mutex
}

// New creates a Directory.
func New(store storage.Store, auditLog *audit.Log) *Directory {
	return &Directory{store: store, audit: auditLog}
}

// Upsert resolves a verified identity to a local user. A new identity gets a
// fresh record; the first user ever created becomes admin. A known identity
// has only its mutable profile fields refreshed; id, role, and settings are
// preserved. Either way the admin-exists invariant is re-checked afterwards.
func (d *Directory) Upsert(ctx context.Context, identity *telegram.Identity) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()

	user, err := d.store.GetUserByTelegramID(ctx, identity.TelegramID)
	switch {
	case err == nil:
		user.Username = identity.Username
		user.DisplayName = displayName(identity)
		user.UpdatedAt = now
		if err := d.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("refresh profile: %w", err)
		}

	case errors.Is(err, storage.ErrNotFound):
		existing, err := d.store.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}

		role := models.RoleUser
		if len(existing) == 0 {
			role = models.RoleAdmin
		}

		user = &models.User{
			ID:              uuid.New().String(),
			TelegramID:      identity.TelegramID,
			Username:        identity.Username,
			DisplayName:     displayName(identity),
			Role:            role,
			NotifyOnNewBowl: true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := d.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		slog.Info("user created", "user_id", user.ID, "telegram_id", user.TelegramID, "role", user.Role)

	default:
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := d.ensureAdminLocked(ctx); err != nil {
		return nil, err
	}

	// The self-heal may have promoted this very user.
	return d.store.GetUser(ctx, user.ID)
}

// Get returns a user by local id.
func (d *Directory) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := d.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// VisibleUsers returns the user records the caller may see: admins see
// everyone, everyone else sees only themselves.
func (d *Directory) VisibleUsers(ctx context.Context, caller *models.User) ([]*models.User, error) {
	if caller.IsAdmin() {
		return d.store.ListUsers(ctx)
	}
	return []*models.User{caller}, nil
}

// DisplayNames returns an id → display name map covering the given ids.
// Unknown ids are simply absent.
func (d *Directory) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	names := make(map[string]string, len(ids))
	for _, u := range users {
		if wanted[u.ID] {
			names[u.ID] = u.DisplayName
		}
	}
	return names, nil
}

// UpdateSettings merges the given settings into the user's record. Only the
// fields present are touched.
func (d *Directory) UpdateSettings(ctx context.Context, userID string, notifyOnNewBowl *bool) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, err := d.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if notifyOnNewBowl != nil {
		user.NotifyOnNewBowl = *notifyOnNewBowl
	}
	user.UpdatedAt = time.Now().Unix()

	if err := d.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return user, nil
}

// SetRole changes a user's role. Only admins may do this; the change is
// audited and followed by an admin-exists re-check, so an admin demoting
// themself as the last admin is immediately healed back.
func (d *Directory) SetRole(ctx context.Context, actor *models.User, userID string, role models.Role) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user, err := d.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Role = role
	user.UpdatedAt = time.Now().Unix()
	if err := d.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	d.audit.Record(ctx, actor.ID, models.AuditRoleChanged, map[string]string{
		"user_id": user.ID,
		"role":    string(role),
	})

	if err := d.ensureAdminLocked(ctx); err != nil {
		return nil, err
	}
	return d.store.GetUser(ctx, user.ID)
}

// ensureAdminLocked re-checks the admin-exists invariant: with at least one
// user and no admins, the earliest-created user is promoted. Callers must
// hold d.mu.
func (d *Directory) ensureAdminLocked(ctx context.Context) error {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}
	for _, u := range users {
		if u.Role == models.RoleAdmin {
			return nil
		}
	}

	// ListUsers orders earliest-first.
	earliest := users[0]
	earliest.Role = models.RoleAdmin
	earliest.UpdatedAt = time.Now().Unix()
	if err := d.store.UpdateUser(ctx, earliest); err != nil {
		return fmt.Errorf("promote earliest user: %w", err)
	}

	slog.Warn("no admin found, promoted earliest user", "user_id", earliest.ID)
	d.audit.Record(ctx, "system", models.AuditAdminSelfHeal, map[string]string{
		"user_id": earliest.ID,
	})
	return nil
}

func displayName(identity *telegram.Identity) string {
	if name := identity.DisplayName(); name != "" {
		return name
	}
	if identity.Username != "" {
		return identity.Username
	}
	return "user" + strconv.FormatInt(identity.TelegramID, 10)
}
