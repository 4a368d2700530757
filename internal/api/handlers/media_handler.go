package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/services"
	"oct-review-service/internal/storage"
)

// MediaHandler serves stored scans, masks and reports under /media/.
type MediaHandler struct {
	store  storage.Store
	logger *zap.Logger
}

func NewMediaHandler(store storage.Store, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

func (h *MediaHandler) Serve(c *fiber.Ctx) error {
	key, ok := storage.KeyFromURL(storage.URLPrefix + c.Params("*"))
	if !ok {
		return respondError(c, h.logger, fmt.Errorf("%w: %s", services.ErrMediaNotFound, c.Path()))
	}
	data, contentType, err := h.store.Get(c.UserContext(), key)
	if errors.Is(err, storage.ErrNoObject) {
		return respondError(c, h.logger, fmt.Errorf("%w: %s", services.ErrMediaNotFound, c.Path()))
	}
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

func RegisterMediaRoutes(app *fiber.App, mh *MediaHandler) {
	app.Get(storage.URLPrefix+"*", mh.Serve)
}

// RegisterRoutes mounts every API route in an order where static paths win
// over parameterised ones.
func RegisterRoutes(app *fiber.App, ph *PatientHandler, eh *ExaminationHandler, rh *ReportHandler, vh *ViewerHandler, mh *MediaHandler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	RegisterReportRoutes(app, rh)
	RegisterPatientRoutes(app, ph)
	RegisterExaminationRoutes(app, eh)
	RegisterViewerRoutes(app, vh)
	RegisterMediaRoutes(app, mh)
}
