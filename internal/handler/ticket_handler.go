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

// TicketHandler exposes the doubt-ticket lifecycle endpoints.
type TicketHandler struct {
	service   service.TicketService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(service service.TicketService, validate *validator.Validate, logger zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "ticket_handler").Logger(),
	}
}

// Register binds ticket routes under the provided router group.
func (h *TicketHandler) Register(router fiber.Router) {
	router.Post("", h.raise)
	router.Get("", h.available)
	router.Get("/mine", h.mine)
	router.Post("/:id/solutions", h.provideSolution)
	router.Post("/:id/solutions/:solutionID/accept", h.acceptSolution)
	router.Post("/:id/video-request", h.requestVideoMeet)
	router.Put("/:id/video-accept", h.acceptVideoMeet)
	router.Put("/:id/close", h.close)
}

func (h *TicketHandler) raise(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.TicketRaiseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ticket, err := h.service.Raise(requestContext(c), userID, payload)
	if err != nil {
		return h.sendServiceError(c, err, "failed to raise ticket")
	}

	return utils.SendCreated(c, "ticket raised", ticket)
}

func (h *TicketHandler) available(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	tickets, err := h.service.Available(requestContext(c), userID)
	if err != nil {
		return h.sendServiceError(c, err, "failed to list tickets")
	}

	return utils.SendSuccess(c, "tickets retrieved", tickets)
}

func (h *TicketHandler) mine(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	tickets, err := h.service.RaisedBy(requestContext(c), userID)
	if err != nil {
		return h.sendServiceError(c, err, "failed to list tickets")
	}

	return utils.SendSuccess(c, "tickets retrieved", tickets)
}

func (h *TicketHandler) provideSolution(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	ticketID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	var payload dto.SolutionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ticket, err := h.service.ProvideSolution(requestContext(c), ticketID, userID, payload)
	if err != nil {
		return h.sendServiceError(c, err, "failed to add solution")
	}

	return utils.SendSuccess(c, "solution added", ticket)
}

func (h *TicketHandler) acceptSolution(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	ticketID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}
	solutionID, err := parseParamUint(c, "solutionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid solution id")
	}

	ticket, err := h.service.AcceptSolution(requestContext(c), ticketID, solutionID, userID)
	if err != nil {
		return h.sendServiceError(c, err, "failed to accept solution")
	}

	return utils.SendSuccess(c, "solution accepted", ticket)
}

func (h *TicketHandler) requestVideoMeet(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	ticketID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.service.RequestVideoMeet(requestContext(c), ticketID, userID)
	if err != nil {
		return h.sendServiceError(c, err, "failed to request video meet")
	}

	return utils.SendSuccess(c, "video meet requested", ticket)
}

func (h *TicketHandler) acceptVideoMeet(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	ticketID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	var payload dto.VideoMeetAcceptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	ticket, err := h.service.AcceptVideoMeet(requestContext(c), ticketID, userID, payload)
	if err != nil {
		return h.sendServiceError(c, err, "failed to accept video meet")
	}

	return utils.SendSuccess(c, "video meet accepted", ticket)
}

func (h *TicketHandler) close(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	ticketID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.service.Close(requestContext(c), ticketID, userID)
	if err != nil {
		return h.sendServiceError(c, err, "failed to close ticket")
	}

	return utils.SendSuccess(c, "ticket closed", ticket)
}

func (h *TicketHandler) sendServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrSolutionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTicketForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrTicketConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
