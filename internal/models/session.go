package models

// Session represents one evening of shared bowls. It is the aggregate root:
// bowls and participants live inside it and are persisted together as one
// unit.
type Session struct {
	// ID is the unique identifier for the session (UUID format).
	ID string `json:"id"`

	// Title is the human-readable name for the session.
	Title string `json:"title"`

	// CreatedAt is the Unix timestamp when the session was created.
	CreatedAt int64 `json:"createdAt"`

	// StartedAt is the Unix timestamp when the session started. Currently
	// equal to CreatedAt; kept separate so a scheduled start can be added
	// without a migration.
	StartedAt int64 `json:"startedAt"`

	// EndedAt is the Unix timestamp when the session was ended, or 0 while
	// it is still active. Ending is irreversible.
	EndedAt int64 `json:"endedAt,omitempty"`

	// IsActive reports whether the session still accepts mutations.
	IsActive bool `json:"isActive"`

	// DefaultBowlCost is the cost applied to bowls added without an explicit
	// cost, fixed at creation time.
	DefaultBowlCost int64 `json:"defaultBowlCost"`

	// ActiveBowlID points at the most recently added bowl. A UI convenience
	// only; it grants no authorization.
	ActiveBowlID string `json:"activeBowlId,omitempty"`

	// Bowls are the bowls of this session, in creation order.
	Bowls []Bowl `json:"bowls"`

	// Participants records session-level membership, in join order.
	Participants []SessionParticipant `json:"participants"`

	// Version is the optimistic concurrency counter, incremented on every
	// persisted mutation. A write whose base version is stale is rejected
	// by the store.
	Version int64 `json:"-"`
}

// SessionParticipant records one user's membership in a session.
type SessionParticipant struct {
	// UserID is the participating user.
	UserID string `json:"userId"`

	// JoinedAt is the Unix timestamp of the user's first addition to any
	// bowl of this session.
	JoinedAt int64 `json:"joinedAt"`

	// InvitedBy is the admin who first added the user.
	InvitedBy string `json:"invitedBy"`
}

// Bowl returns the bowl with the given id, or nil if the session has none.
func (s *Session) Bowl(bowlID string) *Bowl {
	for i := range s.Bowls {
		if s.Bowls[i].ID == bowlID {
			return &s.Bowls[i]
		}
	}
	return nil
}

// HasParticipant reports whether the user is a session-level participant.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
