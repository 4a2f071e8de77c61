package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/service"
	"github.com/algoprep/algoprep-api/internal/utils"
)

// PlannerHandler exposes AI-generated study timetables.
type PlannerHandler struct {
	service service.PlannerService
	logger  zerolog.Logger
}

// NewPlannerHandler constructs the handler.
func NewPlannerHandler(service service.PlannerService, logger zerolog.Logger) *PlannerHandler {
	return &PlannerHandler{
		service: service,
		logger:  logger.With().Str("component", "planner_handler").Logger(),
	}
}

// Register binds planner routes under the provided router group.
func (h *PlannerHandler) Register(router fiber.Router) {
	router.Post("/timetable", h.timetable)
}

func (h *PlannerHandler) timetable(c *fiber.Ctx) error {
	var payload dto.TimetableRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.service.Generate(requestContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlannerUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to generate timetable")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate timetable")
		}
	}

	return utils.SendSuccess(c, "timetable generated", plan)
}
