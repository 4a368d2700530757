package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/services"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeFHIR = "application/fhir+json"

	renderTimeout = 30 * time.Second
)

type ReportHandler struct {
	reportService services.ReportServiceContract
	logger        *zap.Logger
}

func NewReportHandler(rs services.ReportServiceContract, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: rs,
		logger:        logger,
	}
}

func (h *ReportHandler) VisitReport(c *fiber.Ctx) error {
	patientID, visitID := c.Params("id"), c.Params("visitId")
	ctx, cancel := context.WithTimeout(c.UserContext(), renderTimeout)
	defer cancel()

	pdf, err := h.reportService.RenderVisitReport(ctx, patientID, visitID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, contentTypePDF)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="report_%s_%s.pdf"`, patientID, visitID))
	return c.Send(pdf)
}

func (h *ReportHandler) Roster(c *fiber.Ctx) error {
	data, err := h.reportService.RenderRoster(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, contentTypeXLSX)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="patients.xlsx"`)
	return c.Send(data)
}

func (h *ReportHandler) PatientBundle(c *fiber.Ctx) error {
	bundle, err := h.reportService.PatientBundle(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, contentTypeFHIR)
	return c.Send(bundle)
}

func (h *ReportHandler) InitiateExport(c *fiber.Ctx) error {
	var req dtos.InitiateExportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), renderTimeout)
	defer cancel()

	exportID, err := h.reportService.RequestExport(ctx, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.logger.Debug("export accepted", zap.String("export_id", exportID))
	// 202: rendering happens on the export queue.
	return c.Status(fiber.StatusAccepted).JSON(dtos.ExportStatusResponse{
		ExportProgress: dtos.ExportProgress{
			ExportID: exportID,
			Status:   dtos.ExportPending,
			Message:  "Export queued.",
		},
		PatientID: req.PatientID,
		VisitID:   req.VisitID,
	})
}

func (h *ReportHandler) ExportStatus(c *fiber.Ctx) error {
	st, err := h.reportService.ExportStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(st)
}

// RegisterReportRoutes must run before RegisterPatientRoutes so that
// /api/patients/export.xlsx is not captured by /api/patients/:id.
func RegisterReportRoutes(app *fiber.App, rh *ReportHandler) {
	app.Get("/api/patients/export.xlsx", rh.Roster)
	app.Get("/api/patients/:id/visits/:visitId/report.pdf", rh.VisitReport)
	app.Get("/api/patients/:id/fhir", rh.PatientBundle)

	app.Post("/api/reports/exports", rh.InitiateExport)
	app.Get("/api/reports/exports/:id", rh.ExportStatus)
}
