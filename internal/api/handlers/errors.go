package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingRequiredField),
		errors.Is(err, services.ErrInvalidField):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrPatientNotFound),
		errors.Is(err, services.ErrVisitNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrExportNotFound),
		errors.Is(err, services.ErrMediaNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAnalysisInProgress),
		errors.Is(err, services.ErrToolModeMismatch),
		errors.Is(err, services.ErrNavigationLocked):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrUnsupportedScanType),
		errors.Is(err, services.ErrNotRenderable):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrAnalysisFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		logger.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "could not parse request: " + err.Error(),
	})
}
