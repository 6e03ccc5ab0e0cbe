package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/storage"
)

// Project applies the visibility rule to one session: admins see everything,
// participants see the whole session they belong to, and everyone else gets
// nil. Absence instead of a Forbidden error keeps a session's existence from
// leaking to users who were never part of it. The privacy unit is the
// session: once visible, every bowl's full participant list is exposed.
func Project(session *models.Session, caller *models.User) *models.Session {
	if session == nil {
		return nil
	}
	if caller.IsAdmin() || session.HasParticipant(caller.ID) {
		return session
	}
	return nil
}

// CurrentSession returns the active session as the caller may see it, or nil
// when there is no active session or the caller may not see it.
func (s *Service) CurrentSession(ctx context.Context, caller *models.User) (*models.Session, error) {
	session, err := s.store.GetActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}
	return Project(session, caller), nil
}

// History returns ended sessions visible to the caller, newest first.
func (s *Service) History(ctx context.Context, caller *models.User) ([]*models.Session, error) {
	sessions, err := s.store.ListInactiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	visible := make([]*models.Session, 0, len(sessions))
	for _, session := range sessions {
		if projected := Project(session, caller); projected != nil {
			visible = append(visible, projected)
		}
	}
	return visible, nil
}

// GetSession returns one session as the caller may see it. Unknown ids and
// invisible sessions are indistinguishable: both are ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, caller *models.User, sessionID string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if projected := Project(session, caller); projected != nil {
		return projected, nil
	}
	return nil, ErrSessionNotFound
}
