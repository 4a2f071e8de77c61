package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/middleware"
	"github.com/algoprep/algoprep-api/internal/service"
	"github.com/algoprep/algoprep-api/internal/utils"
)

// ChatHandler exposes the REST surface of per-question chat. The websocket
// path delivers the same messages live; this surface serves history fetches
// and clients without a socket.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service service.ChatService, validate *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/:questionID/messages", h.messages)
	router.Post("/:questionID/messages", h.send)
}

func (h *ChatHandler) messages(c *fiber.Ctx) error {
	questionID, err := parseParamUint(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	messages, err := h.service.Messages(requestContext(c), questionID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Uint("question_id", questionID).Msg("failed to load chat messages")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load chat messages")
	}

	return utils.SendSuccess(c, "chat messages", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	questionID, err := parseParamUint(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	var payload dto.ChatMessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	message, err := h.service.AddMessage(requestContext(c), questionID, userID, payload.Content)
	if err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("question_id", questionID).Msg("failed to store chat message")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to store chat message")
	}

	return utils.SendCreated(c, "message sent", message)
}
