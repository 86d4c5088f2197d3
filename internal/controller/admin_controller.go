package controller

import (
	"admission-chatbot-be/internal/pkg/serverutils"
	"admission-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetFailedVerifications(ctx *fiber.Ctx) error
	GetQueueStats(ctx *fiber.Ctx) error
}

type adminController struct {
	verificationService service.IVerificationService
}

func NewAdminController(verificationService service.IVerificationService) IAdminController {
	return &adminController{
		verificationService: verificationService,
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("verification/failed", c.GetFailedVerifications)
	h.Get("verification/stats", c.GetQueueStats)
}

// GetFailedVerifications lists tasks that exhausted their retries, for the
// admissions team to review and correct the source documents.
func (c *adminController) GetFailedVerifications(ctx *fiber.Ctx) error {
	res, err := c.verificationService.GetFailedTasks(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get failed verifications", res))
}

func (c *adminController) GetQueueStats(ctx *fiber.Ctx) error {
	res, err := c.verificationService.GetQueueStats(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get queue stats", res))
}
