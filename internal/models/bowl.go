package models

// Bowl represents a single shared bowl within a session.
type Bowl struct {
	// ID is the unique identifier for the bowl (UUID format).
	ID string `json:"id"`

	// Name is the display name of the bowl (e.g., "Bowl 2", "Mint").
	Name string `json:"name"`

	// Cost is the bowl's price as a positive integer in the smallest
	// currency unit. Always within [1, configured maximum].
	Cost int64 `json:"cost"`

	// ParticipantIDs are the users sharing this bowl, in the order they were
	// added. Insertion order matters: the split engine hands out remainder
	// units to the earliest participants.
	ParticipantIDs []string `json:"participantIds"`
}

// HasParticipant reports whether the user already shares this bowl.
func (b *Bowl) HasParticipant(userID string) bool {
	for _, id := range b.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
