package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/services"
)

type PatientHandler struct {
	patientService services.PatientServiceContract
	logger         *zap.Logger
}

func NewPatientHandler(ps services.PatientServiceContract, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		patientService: ps,
		logger:         logger,
	}
}

func (h *PatientHandler) List(c *fiber.Ctx) error {
	var q dtos.PatientListQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, err)
	}
	patients, err := h.patientService.ListPatients(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(dtos.NewPatientListResponse(patients))
}

func (h *PatientHandler) Create(c *fiber.Ctx) error {
	var req dtos.CreatePatientRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	patient, err := h.patientService.CreatePatient(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(patient)
}

func (h *PatientHandler) Get(c *fiber.Ctx) error {
	patient, err := h.patientService.GetPatient(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(patient)
}

func (h *PatientHandler) AppendVisit(c *fiber.Ctx) error {
	var req dtos.AppendVisitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	visit, err := h.patientService.RecordVisit(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(visit)
}

func RegisterPatientRoutes(app *fiber.App, ph *PatientHandler) {
	patients := app.Group("/api/patients")
	patients.Get("/", ph.List)
	patients.Post("/", ph.Create)
	patients.Get("/:id", ph.Get)
	patients.Post("/:id/visits", ph.AppendVisit)
}
