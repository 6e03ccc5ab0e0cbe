package server

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/akarpov/bowltab/internal/directory"
	"github.com/akarpov/bowltab/internal/models"
	"github.com/akarpov/bowltab/internal/telegram"
)

// parseBody decodes the JSON body into dst. A body that cannot be decoded,
// whether malformed JSON or a non-JSON content type, is treated as an empty
// object: the request then fails schema validation with a 400 instead of
// crashing or leaking parser errors.
func parseBody(c *fiber.Ctx, dst any) {
	_ = c.BodyParser(dst)
}

type loginRequest struct {
	InitData string `json:"initData"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

// handleLogin verifies the Telegram login payload, upserts the user, and
// issues a bearer token.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	parseBody(c, &req)

	var identity *telegram.Identity
	if req.InitData == "" {
		if !s.cfg.DevAllowAnon {
			return envelope(c, fiber.StatusBadRequest, "initData is required")
		}
		// Local debugging outside Telegram.
		identity = &telegram.Identity{
			TelegramID: 1,
			Username:   "guest",
			FirstName:  "Guest",
			AuthDate:   time.Now().Unix(),
		}
	} else {
		var err error
		identity, err = s.verifier.Verify(req.InitData)
		if err != nil {
			return apiError(c, err)
		}
	}

	user, err := s.directory.Upsert(c.Context(), identity)
	if err != nil {
		return apiError(c, err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(loginResponse{Token: token, User: toUserView(user)})
}

// handleMe returns the caller's own user record.
func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(toUserView(caller(c)))
}

// handleListParticipants returns the users visible to the caller.
func (s *Server) handleListParticipants(c *fiber.Ctx) error {
	users, err := s.directory.VisibleUsers(c.Context(), caller(c))
	if err != nil {
		return apiError(c, err)
	}

	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = toUserView(u)
	}
	return c.JSON(views)
}

type settingsRequest struct {
	Settings struct {
		NotifyOnNewBowl *bool `json:"notifyOnNewBowl"`
	} `json:"settings"`
}

// handleUpdateSettings merges the given settings into the caller's record.
func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	parseBody(c, &req)

	user, err := s.directory.UpdateSettings(c.Context(), caller(c).ID, req.Settings.NotifyOnNewBowl)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toUserView(user))
}

type promoteRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (r promoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.In(string(models.RoleAdmin), string(models.RoleUser))),
	)
}

// handlePromote changes a user's role. Admin only.
func (s *Server) handlePromote(c *fiber.Ctx) error {
	var req promoteRequest
	parseBody(c, &req)
	if err := req.Validate(); err != nil {
		return apiError(c, err)
	}

	user, err := s.directory.SetRole(c.Context(), caller(c), req.UserID, models.Role(req.Role))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(toUserView(user))
}

// handleCurrentSession returns the active session as the caller may see it,
// or null when none is active or visible.
func (s *Server) handleCurrentSession(c *fiber.Ctx) error {
	session, err := s.ledger.CurrentSession(c.Context(), caller(c))
	if err != nil {
		return apiError(c, err)
	}
	if session == nil {
		return c.JSON(nil)
	}

	view, err := s.sessionView(c, session)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(view)
}

// handleSessionHistory returns ended sessions visible to the caller.
func (s *Server) handleSessionHistory(c *fiber.Ctx) error {
	sessions, err := s.ledger.History(c.Context(), caller(c))
	if err != nil {
		return apiError(c, err)
	}

	views := make([]*SessionView, len(sessions))
	for i, session := range sessions {
		view, err := s.sessionView(c, session)
		if err != nil {
			return apiError(c, err)
		}
		views[i] = view
	}
	return c.JSON(views)
}

type createSessionRequest struct {
	Name            string `json:"name"`
	DefaultBowlCost int64  `json:"defaultBowlCost"`
}

func (r createSessionRequest) Validate() error {
	// Cost is not validated here: any out-of-range value, negatives
	// included, falls back to the configured default in the service.
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// handleCreateSession starts a new session. Admin only, 201 on success.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	parseBody(c, &req)
	if err := req.Validate(); err != nil {
		return apiError(c, err)
	}

	session, err := s.ledger.CreateSession(c.Context(), caller(c), req.Name, req.DefaultBowlCost)
	if err != nil {
		return apiError(c, err)
	}

	view, err := s.sessionView(c, session)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// handleEndSession closes a session for good. Admin only.
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	session, err := s.ledger.EndSession(c.Context(), caller(c), c.Params("id"))
	if err != nil {
		return apiError(c, err)
	}

	view, err := s.sessionView(c, session)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(view)
}

type addBowlRequest struct {
	Name           string   `json:"name"`
	Cost           int64    `json:"cost"`
	ParticipantIDs []string `json:"participantIds"`
}

func (r addBowlRequest) Validate() error {
	// Cost follows the same fallback rule as session creation.
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
	)
}

// handleAddBowl appends a bowl to an active session. Admin only, 201.
func (s *Server) handleAddBowl(c *fiber.Ctx) error {
	var req addBowlRequest
	parseBody(c, &req)
	if err := req.Validate(); err != nil {
		return apiError(c, err)
	}

	session, _, err := s.ledger.AddBowl(c.Context(), caller(c), c.Params("id"), req.Name, req.Cost, req.ParticipantIDs)
	if err != nil {
		return apiError(c, err)
	}

	view, err := s.sessionView(c, session)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

type addParticipantRequest struct {
	UserID string `json:"userId"`
}

func (r addParticipantRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
	)
}

type addParticipantResponse struct {
	Session *SessionView `json:"session"`
	Added   bool         `json:"added"`
}

// handleAddParticipant puts a user into a bowl. Idempotent: a repeat call
// reports added=false and changes nothing. Admin only.
func (s *Server) handleAddParticipant(c *fiber.Ctx) error {
	var req addParticipantRequest
	parseBody(c, &req)
	if err := req.Validate(); err != nil {
		return apiError(c, err)
	}

	session, added, err := s.ledger.AddParticipant(c.Context(), caller(c), c.Params("id"), c.Params("bowlId"), req.UserID)
	if err != nil {
		return apiError(c, err)
	}

	view, err := s.sessionView(c, session)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(addParticipantResponse{Session: view, Added: added})
}

// handleAuditLogs returns a page of the audit log, newest first. Admin only.
func (s *Server) handleAuditLogs(c *fiber.Ctx) error {
	if !caller(c).IsAdmin() {
		return apiError(c, directory.ErrForbidden)
	}

	entries, err := s.auditLog.List(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}
