package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/services"
)

type ExaminationHandler struct {
	examinationService services.ExaminationServiceContract
	logger             *zap.Logger
}

func NewExaminationHandler(es services.ExaminationServiceContract, logger *zap.Logger) *ExaminationHandler {
	return &ExaminationHandler{
		examinationService: es,
		logger:             logger,
	}
}

// Examine accepts a multipart form with the scan in "file" and an optional
// "patient_id". Without a patient the result is returned but not saved.
func (h *ExaminationHandler) Examine(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: file", services.ErrMissingRequiredField))
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, err)
	}

	resp, err := h.examinationService.Examine(c.UserContext(), c.FormValue("patient_id"), services.ScanUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	status := fiber.StatusOK
	if resp.Saved {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

func RegisterExaminationRoutes(app *fiber.App, eh *ExaminationHandler) {
	app.Post("/api/examinations", eh.Examine)
}
