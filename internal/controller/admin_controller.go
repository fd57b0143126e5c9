package controller

import (
	"strconv"

	"github.com/MKRushil/Pulse/internal/dto"
	"github.com/MKRushil/Pulse/internal/pkg/serverutils"
	"github.com/MKRushil/Pulse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetPractitioners(ctx *fiber.Ctx) error
	UpdatePractitionerStatus(ctx *fiber.Ctx) error
	GetAuditRecords(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

type adminController struct {
	adminService service.IAdminService
}

func NewAdminController(adminService service.IAdminService) IAdminController {
	return &adminController{adminService: adminService}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.JwtMiddleware)
	h.Use(serverutils.AdminOnly)
	h.Get("/practitioners", c.GetPractitioners)
	h.Put("/practitioners/:id/status", c.UpdatePractitionerStatus)
	h.Get("/audit", c.GetAuditRecords)
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogDetail)
}

func (c *adminController) GetPractitioners(ctx *fiber.Ctx) error {
	var req dto.PractitionerListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}

	res, err := c.adminService.GetPractitioners(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Practitioners", res))
}

func (c *adminController) UpdatePractitionerStatus(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "invalid practitioner id")
	}

	var req dto.UpdatePractitionerStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.adminService.UpdatePractitionerStatus(ctx.Context(), id, &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Status updated", nil))
}

func (c *adminController) GetAuditRecords(ctx *fiber.Ctx) error {
	var req dto.AuditListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}

	res, err := c.adminService.GetAuditRecords(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Audit records", res))
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	level := ctx.Query("level", "")

	res, err := c.adminService.GetSystemLogs(ctx.Context(), page, limit, level)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", res))
}

func (c *adminController) GetLogDetail(ctx *fiber.Ctx) error {
	res, err := c.adminService.GetLogDetail(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return serverutils.NewAppError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Log detail", res))
}
