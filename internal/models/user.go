package models

// Role is the local authorization role of a user.
type Role string

const (
	// RoleAdmin may create and mutate sessions, change roles, and read the
	// audit log.
	RoleAdmin Role = "admin"

	// RoleUser may read sessions they participate in and edit their own
	// settings.
	RoleUser Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account mirrored from a Telegram identity.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// TelegramID is the stable external identity the user logs in with.
	TelegramID int64 `json:"telegramId"`

	// Username is the Telegram username, without the leading @. May be empty.
	Username string `json:"username"`

	// DisplayName is built from the Telegram first/last name and refreshed
	// on every login.
	DisplayName string `json:"displayName"`

	// Role is the local authorization role. The first user ever created is
	// promoted to admin automatically.
	Role Role `json:"role"`

	// NotifyOnNewBowl controls whether the user receives a Telegram message
	// when they are added to a bowl.
	NotifyOnNewBowl bool `json:"notifyOnNewBowl"`

	// CreatedAt is the Unix timestamp when the account was first created.
	CreatedAt int64 `json:"createdAt"`

	// UpdatedAt is the Unix timestamp of the last profile refresh.
	UpdatedAt int64 `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
