package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/services"
)

type ViewerHandler struct {
	viewerService services.ViewerServiceContract
	logger        *zap.Logger
}

func NewViewerHandler(vs services.ViewerServiceContract, logger *zap.Logger) *ViewerHandler {
	return &ViewerHandler{
		viewerService: vs,
		logger:        logger,
	}
}

func (h *ViewerHandler) respond(c *fiber.Ctx, status int, resp *dtos.ViewerSessionResponse, err error) error {
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(status).JSON(resp)
}

func (h *ViewerHandler) Create(c *fiber.Ctx) error {
	var req dtos.CreateViewerSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.CreateSession(c.UserContext(), req)
	return h.respond(c, fiber.StatusCreated, resp, err)
}

func (h *ViewerHandler) Get(c *fiber.Ctx) error {
	resp, err := h.viewerService.GetSession(c.UserContext(), c.Params("id"))
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Close(c *fiber.Ctx) error {
	if err := h.viewerService.CloseSession(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ViewerHandler) Zoom(c *fiber.Ctx) error {
	var req dtos.ZoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.Zoom(c.UserContext(), c.Params("id"), req.Direction)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Wheel(c *fiber.Ctx) error {
	var req dtos.WheelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.Wheel(c.UserContext(), c.Params("id"), req)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Pan(c *fiber.Ctx) error {
	var req dtos.PanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.Pan(c.UserContext(), c.Params("id"), req)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Reset(c *fiber.Ctx) error {
	resp, err := h.viewerService.Reset(c.UserContext(), c.Params("id"))
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) SelectTool(c *fiber.Ctx) error {
	var req dtos.ToolRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.SelectTool(c.UserContext(), c.Params("id"), req.Mode)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) SetOpacity(c *fiber.Ctx) error {
	var req dtos.OpacityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.SetOpacity(c.UserContext(), c.Params("id"), req.Value)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) ToggleLayer(c *fiber.Ctx) error {
	resp, err := h.viewerService.ToggleLayer(c.UserContext(), c.Params("id"), c.Params("layerId"))
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) AddStroke(c *fiber.Ctx) error {
	var req dtos.StrokeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.AddStroke(c.UserContext(), c.Params("id"), req)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Erase(c *fiber.Ctx) error {
	var req dtos.EraseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	resp, err := h.viewerService.Erase(c.UserContext(), c.Params("id"), req)
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Undo(c *fiber.Ctx) error {
	resp, err := h.viewerService.Undo(c.UserContext(), c.Params("id"))
	return h.respond(c, fiber.StatusOK, resp, err)
}

func (h *ViewerHandler) Metrics(c *fiber.Ctx) error {
	m, err := h.viewerService.Metrics(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(m)
}

func (h *ViewerHandler) Render(c *fiber.Ctx) error {
	img, err := h.viewerService.Render(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(img)
}

func RegisterViewerRoutes(app *fiber.App, vh *ViewerHandler) {
	sessions := app.Group("/api/viewer/sessions")
	sessions.Post("/", vh.Create)
	sessions.Get("/:id", vh.Get)
	sessions.Delete("/:id", vh.Close)
	sessions.Post("/:id/zoom", vh.Zoom)
	sessions.Post("/:id/wheel", vh.Wheel)
	sessions.Post("/:id/pan", vh.Pan)
	sessions.Post("/:id/reset", vh.Reset)
	sessions.Put("/:id/tool", vh.SelectTool)
	sessions.Put("/:id/opacity", vh.SetOpacity)
	sessions.Post("/:id/layers/:layerId/toggle", vh.ToggleLayer)
	sessions.Post("/:id/strokes", vh.AddStroke)
	sessions.Post("/:id/erase", vh.Erase)
	sessions.Post("/:id/undo", vh.Undo)
	sessions.Get("/:id/metrics", vh.Metrics)
	sessions.Get("/:id/render.png", vh.Render)
}
