package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/akarpov/bowltab/internal/calculator"
	"github.com/akarpov/bowltab/internal/models"
)

// SessionView is a session projection plus the computed money split. Bowls
// without participants still appear in the session itself; they just never
// contribute shares or totals.
type SessionView struct {
	*models.Session
	Totals []calculator.ParticipantTotal `json:"totals"`
	Shares map[string][]calculator.Share `json:"shares"`
}

// sessionView decorates a visible session with per-bowl shares and sorted
// participant totals.
func (s *Server) sessionView(c *fiber.Ctx, session *models.Session) (*SessionView, error) {
	ids := make([]string, 0, len(session.Participants))
	for _, p := range session.Participants {
		ids = append(ids, p.UserID)
	}
	names, err := s.directory.DisplayNames(c.Context(), ids)
	if err != nil {
		return nil, err
	}

	shares := make(map[string][]calculator.Share, len(session.Bowls))
	for _, bowl := range session.Bowls {
		if split := calculator.BowlShares(bowl.Cost, bowl.ParticipantIDs); split != nil {
			shares[bowl.ID] = split
		}
	}

	return &SessionView{
		Session: session,
		Totals:  s.calc.SessionTotals(session, names),
		Shares:  shares,
	}, nil
}

// userView strips nothing today but pins the wire shape in one place.
type userView struct {
	ID              string      `json:"id"`
	TelegramID      int64       `json:"telegramId"`
	Username        string      `json:"username"`
	DisplayName     string      `json:"displayName"`
	Role            models.Role `json:"role"`
	NotifyOnNewBowl bool        `json:"notifyOnNewBowl"`
	CreatedAt       int64       `json:"createdAt"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:              u.ID,
		TelegramID:      u.TelegramID,
		Username:        u.Username,
		DisplayName:     u.DisplayName,
		Role:            u.Role,
		NotifyOnNewBowl: u.NotifyOnNewBowl,
		CreatedAt:       u.CreatedAt,
	}
}
