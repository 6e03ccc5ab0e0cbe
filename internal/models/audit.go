package models

// Audit actions recorded by the services. Kept as plain strings in storage
// so new actions never require a migration.
const (
	AuditSessionCreated   = "session_created"
	AuditSessionEnded     = "session_ended"
	AuditBowlAdded        = "bowl_added"
	AuditParticipantAdded = "participant_added"
	AuditRoleChanged      = "role_changed"
	AuditAdminSelfHeal    = "admin_self_heal"
)

// AuditEntry is one record of a mutating action. Entries are append-only and
// the log retains only the most recent N.
type AuditEntry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string `json:"id"`

	// Timestamp is the Unix timestamp when the action happened.
	Timestamp int64 `json:"timestamp"`

	// ActorID is the user who performed the action. "system" for actions
	// taken by the directory itself, such as admin self-healing.
	ActorID string `json:"actorId"`

	// Action is one of the Audit* constants.
	Action string `json:"action"`

	// Metadata carries action-specific details (session id, bowl id, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}
