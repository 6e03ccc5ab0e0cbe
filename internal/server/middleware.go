package server

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/akarpov/bowltab/internal/auth"
	"github.com/akarpov/bowltab/internal/directory"
	"github.com/akarpov/bowltab/internal/models"
)

// userKey is the fiber locals key holding the authenticated *models.User.
const userKey = "bowltab_user"

// caller returns the authenticated user placed by requireAuth.
func caller(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

// requireAuth validates the Bearer token and loads the caller's user record
// into the request locals. Missing or invalid tokens end the request with
// 401 before any handler runs.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return apiError(c, auth.ErrMissingToken)
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return apiError(c, auth.ErrInvalidToken)
	}

	userID, err := s.tokens.Verify(parts[1])
	if err != nil {
		return apiError(c, err)
	}

	user, err := s.directory.Get(c.Context(), userID)
	if errors.Is(err, directory.ErrUserNotFound) {
		// A valid signature over an id we no longer know is still a bad
		// credential from the caller's point of view.
		return apiError(c, auth.ErrInvalidToken)
	}
	if err != nil {
		return apiError(c, err)
	}

	c.Locals(userKey, user)
	return c.Next()
}

// requestLogger logs every request with its outcome and duration.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if user := caller(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}

		switch {
		case status >= 500:
			slog.Error("request failed", attrs...)
		case status >= 400:
			slog.Warn("request rejected", attrs...)
		default:
			slog.Info("request ok", attrs...)
		}
		return err
	}
}
