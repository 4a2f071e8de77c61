package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/repository"
	"github.com/algoprep/algoprep-api/internal/utils"
)

// QuestionHandler serves the read-only catalog endpoints backing tickets and chat.
type QuestionHandler struct {
	repo   repository.QuestionRepository
	logger zerolog.Logger
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(repo repository.QuestionRepository, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		repo:   repo,
		logger: logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register binds question routes under the provided router group.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("/daily", h.daily)
	router.Get("/:id", h.byID)
}

func (h *QuestionHandler) daily(c *fiber.Ctx) error {
	question, err := h.repo.Daily(requestContext(c), time.Now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "no daily question available")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load daily question")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load daily question")
	}

	return utils.SendSuccess(c, "daily question", dto.NewQuestionResponse(question))
}

func (h *QuestionHandler) byID(c *fiber.Ctx) error {
	id, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question id")
	}

	question, err := h.repo.FindByID(requestContext(c), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "question not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load question")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load question")
	}

	return utils.SendSuccess(c, "question", dto.NewQuestionResponse(question))
}
