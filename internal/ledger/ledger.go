// Package ledger owns the session aggregate: creating sessions, adding bowls
// and participants, ending sessions, and projecting sessions per caller.
//
// Every mutation follows the same shape: take the per-session lock, read the
// whole aggregate, mutate it in memory, write the whole aggregate back. The
// store additionally rejects writes whose base version went stale, so even a
// mutation that bypasses the lock cannot silently overwrite another.
package ledger

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
	"github.com/akarpov/bowltab/internal/notify"
	"github.com/akarpov/bowltab/internal/storage"
)

var (
	// ErrForbidden means the acting user lacks the admin role.
	ErrForbidden = errors.New("admin role required")

	// ErrSessionNotFound means the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrBowlNotFound means the target bowl does not exist in the session.
	ErrBowlNotFound = errors.New("bowl not found")

	// ErrUserNotFound means the user being added does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotActive means the session has ended and is read-only.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrActiveSessionExists means a session cannot be created while
	// another one is still active.
	ErrActiveSessionExists = errors.New("another session is already active")
)

// Service is the session ledger.
type Service struct {
	store    storage.Store
	audit    *audit.Log
	notifier notify.Notifier

	defaultBowlCost int64
	maxBowlCost     int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex // one mutation lock per session id
}

// NewService creates a ledger service. defaultBowlCost is used when a session
// is created without an explicit default; maxBowlCost bounds every cost.
func NewService(store storage.Store, auditLog *audit.Log, notifier notify.Notifier, defaultBowlCost, maxBowlCost int64) *Service {
	return &Service{
		store:           store,
		audit:           auditLog,
		notifier:        notifier,
		defaultBowlCost: defaultBowlCost,
		maxBowlCost:     maxBowlCost,
		locks:           make(map[string]*sync.Mutex),
	}
}

// lockSession takes the mutation lock for one session id and returns the
// unlock func. Locks are never removed; the session count of a shared ledger
// stays small.
func (s *Service) lockSession(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// validCost reports whether cost is inside [1, maxBowlCost].
func (s *Service) validCost(cost int64) bool {
	return cost >= 1 && cost <= s.maxBowlCost
}

// CreateSession starts a new active session with one default bowl. It
// refuses, rather than silently overriding, while another session is still
// active. defaultBowlCost falls back to the configured default when absent
// or out of range. Admin only.
func (s *Service) CreateSession(ctx context.Context, actor *models.User, title string, defaultBowlCost int64) (*models.Session, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if !s.validCost(defaultBowlCost) {
		defaultBowlCost = s.defaultBowlCost
	}

	now := time.Now().Unix()
	bowl := models.Bowl{
		ID:   uuid.New().String(),
		Name: "Bowl 1",
		Cost: defaultBowlCost,
	}
	session := &models.Session{
		ID:              uuid.New().String(),
		Title:           title,
		CreatedAt:       now,
		StartedAt:       now,
		IsActive:        true,
		DefaultBowlCost: defaultBowlCost,
		ActiveBowlID:    bowl.ID,
		Bowls:           []models.Bowl{bowl},
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, storage.ErrActiveSessionExists) {
			return nil, ErrActiveSessionExists
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Info("session created", "session_id", session.ID, "title", title, "actor_id", actor.ID)
	s.audit.Record(ctx, actor.ID, models.AuditSessionCreated, map[string]string{
		"session_id": session.ID,
		"title":      title,
	})
	return session, nil
}

// AddBowl appends a bowl to an active session and makes it the session's
// active bowl. An absent or out-of-range cost falls back to the session's
// default; an empty name becomes "Bowl N". Initial participants, if given,
// are added the same way AddParticipant would add them. Admin only.
func (s *Service) AddBowl(ctx context.Context, actor *models.User, sessionID, name string, cost int64, participantIDs []string) (*models.Session, *models.Bowl, error) {
	if !actor.IsAdmin() {
		return nil, nil, ErrForbidden
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if !s.validCost(cost) {
		cost = session.DefaultBowlCost
	}
	if name == "" {
		name = "Bowl " + strconv.Itoa(len(session.Bowls)+1)
	}

	bowl := models.Bowl{
		ID:   uuid.New().String(),
		Name: name,
		Cost: cost,
	}
	session.Bowls = append(session.Bowls, bowl)
	session.ActiveBowlID = bowl.ID

	added, err := s.addParticipants(ctx, session, bowl.ID, participantIDs, actor.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("persist bowl: %w", err)
	}

	slog.Info("bowl added", "session_id", session.ID, "bowl_id", bowl.ID, "cost", cost, "actor_id", actor.ID)
	s.audit.Record(ctx, actor.ID, models.AuditBowlAdded, map[string]string{
		"session_id": session.ID,
		"bowl_id":    bowl.ID,
		"cost":       strconv.FormatInt(cost, 10),
	})

	s.notifyAdded(session, bowl.ID, added)
	return session, session.Bowl(bowl.ID), nil
}

// AddParticipant adds a user to a bowl. Idempotent per bowl: adding the same
// user twice leaves the bowl unchanged, and session-level membership
// (joinedAt, invitedBy) is recorded only on the first occurrence. The
// returned bool reports whether this was the user's first addition to this
// specific bowl, which is what decides the outbound notification. Admin only.
func (s *Service) AddParticipant(ctx context.Context, actor *models.User, sessionID, bowlID, userID string) (*models.Session, bool, error) {
	if !actor.IsAdmin() {
		return nil, false, ErrForbidden
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if session.Bowl(bowlID) == nil {
		return nil, false, ErrBowlNotFound
	}

	added, err := s.addParticipants(ctx, session, bowlID, []string{userID}, actor.ID)
	if err != nil {
		return nil, false, err
	}
	if len(added) == 0 {
		// Already in this bowl; nothing to persist.
		return session, false, nil
	}

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("persist participant: %w", err)
	}

	s.audit.Record(ctx, actor.ID, models.AuditParticipantAdded, map[string]string{
		"session_id": session.ID,
		"bowl_id":    bowlID,
		"user_id":    userID,
	})

	s.notifyAdded(session, bowlID, added)
	return session, true, nil
}

// EndSession deactivates a session forever. Ending an already-ended session
// is rejected like any other mutation of an inactive session. Admin only.
func (s *Service) EndSession(ctx context.Context, actor *models.User, sessionID string) (*models.Session, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.IsActive = false
	session.EndedAt = time.Now().Unix()

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist end: %w", err)
	}

	slog.Info("session ended", "session_id", session.ID, "actor_id", actor.ID)
	s.audit.Record(ctx, actor.ID, models.AuditSessionEnded, map[string]string{
		"session_id": session.ID,
	})
	return session, nil
}

// activeSession loads a session that must still accept mutations.
func (s *Service) activeSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive {
		return nil, ErrSessionNotActive
	}
	return session, nil
}

// addParticipants puts each user into the bowl, skipping users already
// there, and records session-level membership on first occurrence. Returns
// the users actually added to the bowl. The session is mutated in place and
// not persisted here.
func (s *Service) addParticipants(ctx context.Context, session *models.Session, bowlID string, userIDs []string, invitedBy string) ([]*models.User, error) {
	bowl := session.Bowl(bowlID)
	now := time.Now().Unix()

	var added []*models.User
	for _, userID := range userIDs {
		if bowl.HasParticipant(userID) {
			continue
		}

		user, err := s.store.GetUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", userID, err)
		}

		bowl.ParticipantIDs = append(bowl.ParticipantIDs, userID)
		if !session.HasParticipant(userID) {
			session.Participants = append(session.Participants, models.SessionParticipant{
				UserID:    userID,
				JoinedAt:  now,
				InvitedBy: invitedBy,
			})
		}
		added = append(added, user)
	}
	return added, nil
}

// notifyAdded fires a notification per newly added user. The notifier is
// fire-and-forget; this never blocks or fails the mutation.
func (s *Service) notifyAdded(session *models.Session, bowlID string, users []*models.User) {
	bowl := session.Bowl(bowlID)
	for _, user := range users {
		s.notifier.BowlAdded(user, session, bowl)
	}
}
