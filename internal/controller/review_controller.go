package controller

import (
	"concept-review-be/internal/dto"
	"concept-review-be/internal/pkg/serverutils"
	"concept-review-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Vote(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	EditPrompt(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	Progress(ctx *fiber.Ctx) error
}

type reviewController struct {
	service service.ISessionService
}

func NewReviewController(service service.ISessionService) IReviewController {
	return &reviewController{service: service}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("progress", c.Progress)
	h.Post("sessions/:key", c.Open)
	h.Get("sessions/:key", c.Show)
	h.Delete("sessions/:key", c.Close)
	h.Post("sessions/:key/votes", c.Vote)
	h.Post("sessions/:key/retry", c.Retry)
	h.Put("sessions/:key/prompt", c.EditPrompt)
}

func caller(ctx *fiber.Ctx) (uuid.UUID, string) {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	token, _ := ctx.Locals("token").(string)
	return userId, token
}

func (c *reviewController) Open(ctx *fiber.Ctx) error {
	userId, token := caller(ctx)

	var req dto.OpenSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	res, err := c.service.Open(ctx.UserContext(), userId, token, ctx.Params("key"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open review session", res))
}

func (c *reviewController) Show(ctx *fiber.Ctx) error {
	userId, token := caller(ctx)

	res, err := c.service.Get(ctx.UserContext(), userId, token, ctx.Params("key"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get review session", res))
}

func (c *reviewController) Vote(ctx *fiber.Ctx) error {
	userId, token := caller(ctx)

	var req dto.VoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Vote(ctx.UserContext(), userId, token, ctx.Params("key"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success vote", res))
}

func (c *reviewController) Retry(ctx *fiber.Ctx) error {
	userId, token := caller(ctx)

	res, err := c.service.Retry(ctx.UserContext(), userId, token, ctx.Params("key"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retry review session", res))
}

func (c *reviewController) EditPrompt(ctx *fiber.Ctx) error {
	userId, token := caller(ctx)

	var req dto.EditPromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.EditPrompt(ctx.UserContext(), userId, token, ctx.Params("key"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update prompt", res))
}

func (c *reviewController) Close(ctx *fiber.Ctx) error {
	userId, _ := caller(ctx)

	if err := c.service.Close(ctx.UserContext(), userId, ctx.Params("key")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success close review session", nil))
}

func (c *reviewController) Progress(ctx *fiber.Ctx) error {
	userId, _ := caller(ctx)

	res, err := c.service.Progress(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get review progress", res))
}
