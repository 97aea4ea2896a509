package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain"
)

// writeError traduce la taxonomía de errores de dominio a HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		ce *domain.ConfigurationError
		re *domain.ProviderRejectionError
		me *domain.CommunicationError
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: ve.Message, Field: ve.Field})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "CONFIGURATION", Message: ce.Message, Field: ce.Field})
	case errors.As(err, &re):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "PROVIDER_REJECTED", Message: re.Message})
	case errors.As(err, &me):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "PROVIDER_UNAVAILABLE", Message: me.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota no encontrada"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrOperationInProgress):
		return c.Status(fiber.StatusLocked).JSON(dto.ErrorResponse{Code: "LOCKED", Message: err.Error()})
	case errors.Is(err, domain.ErrCannotResend), errors.Is(err, domain.ErrCannotCancel),
		errors.Is(err, domain.ErrNotEditable), errors.Is(err, domain.ErrCannotDelete),
		errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotSubmitted):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATE", Message: err.Error()})
	case errors.Is(err, domain.ErrCancelUnsupported), errors.Is(err, domain.ErrOperationUnsupported):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "UNSUPPORTED", Message: err.Error()})
	case errors.Is(err, domain.ErrArtifactUnavailable):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "ARTIFACT_UNAVAILABLE", Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownProvider):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "UNKNOWN_PROVIDER", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "cuenta inactiva"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: "TIMEOUT", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
