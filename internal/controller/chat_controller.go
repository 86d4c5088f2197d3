package controller

import (
	"admission-chatbot-be/internal/dto"
	"admission-chatbot-be/internal/pkg/logger"
	"admission-chatbot-be/internal/pkg/serverutils"
	"admission-chatbot-be/internal/service"
	internalWS "admission-chatbot-be/internal/websocket"
	"admission-chatbot-be/pkg/qa/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateConversation(ctx *fiber.Ctx) error
	GetAllConversations(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	AskQuestion(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	GetPolicy(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	hub         *internalWS.Hub
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, hub *internalWS.Hub, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		hub:         hub,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.OptionalJwtMiddleware) // anonymous visitors allowed
	h.Post("conversation", c.CreateConversation)
	h.Get("conversations", c.GetAllConversations)
	h.Get("conversation/:id/history", c.GetChatHistory)
	h.Delete("conversation/:id", c.DeleteConversation)
	h.Post("question", c.AskQuestion)
	h.Get("policy", c.GetPolicy)
	h.Get("ws/:conversation_id", c.ServeWs)
}

// visitorIdentity resolves who is asking: authenticated staff get their user
// id (and bypass the rate limit), anonymous visitors are keyed by the
// client-held visitor id header.
func visitorIdentity(ctx *fiber.Ctx) ratelimit.Identity {
	if userId, ok := ctx.Locals("user_id").(string); ok && userId != "" {
		return ratelimit.Identity{Key: "user:" + userId, Authenticated: true}
	}

	visitorId := ctx.Get("X-Visitor-Id")
	if visitorId == "" {
		visitorId = ctx.IP()
	}
	return ratelimit.Identity{Key: "visitor:" + visitorId}
}

func (c *chatController) CreateConversation(ctx *fiber.Ctx) error {
	identity := visitorIdentity(ctx)

	res, err := c.chatService.CreateConversation(ctx.Context(), identity.Key)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *chatController) GetAllConversations(ctx *fiber.Ctx) error {
	identity := visitorIdentity(ctx)

	res, err := c.chatService.GetAllConversations(ctx.Context(), identity.Key)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	identity := visitorIdentity(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	res, err := c.chatService.GetChatHistory(ctx.Context(), identity.Key, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) AskQuestion(ctx *fiber.Ctx) error {
	identity := visitorIdentity(ctx)

	var req dto.AskQuestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.AskQuestion(ctx.Context(), identity, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Question accepted", res))
}

func (c *chatController) DeleteConversation(ctx *fiber.Ctx) error {
	identity := visitorIdentity(ctx)

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	if err := c.chatService.DeleteConversation(ctx.Context(), identity.Key, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", nil))
}

func (c *chatController) GetPolicy(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get policy", c.chatService.Policy()))
}

// ServeWs upgrades to a websocket subscribed to the conversation's delivery
// channel. The conversation id may be provisional; the channel registry maps
// it onto the durable stream either way.
func (c *chatController) ServeWs(ctx *fiber.Ctx) error {
	conversationId := ctx.Params("conversation_id")
	if conversationId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing conversation id")
	}

	channel := c.chatService.ResolveChannel(conversationId)

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("ChatController", "Starting WebSocket session", map[string]interface{}{"channel": channel})
			internalWS.ServeWs(c.hub, conn, channel)
			c.logger.Info("ChatController", "WebSocket session ended", map[string]interface{}{"channel": channel})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
