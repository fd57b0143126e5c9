package controller

import (
	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/pkg/serverutils"
	"github.com/MKRushil/Pulse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISpiralController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	RunRound(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	EvictSession(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type spiralController struct {
	sessionService   service.ISessionService
	diagnosisService service.IDiagnosisService
}

func NewSpiralController(sessionService service.ISessionService, diagnosisService service.IDiagnosisService) ISpiralController {
	return &spiralController{
		sessionService:   sessionService,
		diagnosisService: diagnosisService,
	}
}

func (c *spiralController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/spiral")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/stats", c.Stats)
	h.Post("/sessions", c.CreateSession)
	h.Post("/sessions/:id/rounds", c.RunRound)
	h.Get("/sessions/:id", c.ShowSession)
	h.Post("/sessions/:id/reset", c.ResetSession)
	h.Delete("/sessions/:id", c.EvictSession)
}

func practitionerID(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := ctx.Locals("practitioner_id").(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, serverutils.NewAppError(fiber.StatusUnauthorized, "invalid token subject")
	}
	return id, nil
}

func sessionParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, serverutils.NewAppError(fiber.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

func (c *spiralController) CreateSession(ctx *fiber.Ctx) error {
	pid, err := practitionerID(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Create(pid)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *spiralController) RunRound(ctx *fiber.Ctx) error {
	pid, err := practitionerID(ctx)
	if err != nil {
		return err
	}
	sid, err := sessionParam(ctx)
	if err != nil {
		return err
	}

	var req dto.RunRoundRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.diagnosisService.RunRound(ctx.Context(), pid, sid, &req, ctx.IP())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Round completed", res))
}

func (c *spiralController) ShowSession(ctx *fiber.Ctx) error {
	pid, err := practitionerID(ctx)
	if err != nil {
		return err
	}
	sid, err := sessionParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Snapshot(pid, sid)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session snapshot", res))
}

func (c *spiralController) ResetSession(ctx *fiber.Ctx) error {
	pid, err := practitionerID(ctx)
	if err != nil {
		return err
	}
	sid, err := sessionParam(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.Reset(pid, sid); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session reset", nil))
}

func (c *spiralController) EvictSession(ctx *fiber.Ctx) error {
	pid, err := practitionerID(ctx)
	if err != nil {
		return err
	}
	sid, err := sessionParam(ctx)
	if err != nil {
		return err
	}

	if err := c.sessionService.Evict(pid, sid); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session evicted", nil))
}

func (c *spiralController) Stats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Store stats", c.sessionService.Stats()))
}
