package server

import (
	"errors"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/akarpov/bowltab/internal/auth"
	"github.com/akarpov/bowltab/internal/directory"
	"github.com/akarpov/bowltab/internal/ledger"
	"github.com/akarpov/bowltab/internal/storage"
	"github.com/akarpov/bowltab/internal/telegram"
)

// apiError maps service errors onto the response taxonomy. Every error body
// is the same envelope: {"error": "..."}. Unknown errors become an opaque
// 500; internal detail never reaches the client.
func apiError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors

	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, telegram.ErrBadHash),
		errors.Is(err, telegram.ErrExpired):
		return envelope(c, fiber.StatusUnauthorized, err.Error())

	case errors.Is(err, ledger.ErrForbidden),
		errors.Is(err, directory.ErrForbidden):
		return envelope(c, fiber.StatusForbidden, err.Error())

	case errors.Is(err, ledger.ErrSessionNotFound),
		errors.Is(err, ledger.ErrBowlNotFound),
		errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, directory.ErrUserNotFound):
		return envelope(c, fiber.StatusNotFound, err.Error())

	case errors.Is(err, ledger.ErrActiveSessionExists),
		errors.Is(err, ledger.ErrSessionNotActive),
		errors.Is(err, storage.ErrVersionConflict):
		return envelope(c, fiber.StatusConflict, err.Error())

	case errors.Is(err, telegram.ErrBadInitData),
		errors.Is(err, telegram.ErrNoHash),
		errors.Is(err, telegram.ErrNoUser),
		errors.Is(err, directory.ErrInvalidRole):
		return envelope(c, fiber.StatusBadRequest, err.Error())

	case errors.As(err, &verrs):
		return envelope(c, fiber.StatusBadRequest, verrs.Error())
	}

	slog.Error("internal error", "path", c.Path(), "error", err)
	return envelope(c, fiber.StatusInternalServerError, "internal server error")
}

func envelope(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
