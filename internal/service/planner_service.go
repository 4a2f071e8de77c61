package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/pkg/ai"
)

// ErrPlannerUnavailable indicates no planner backend is configured.
var ErrPlannerUnavailable = errors.New("timetable planner not configured")

// PlannerService turns a study goal into a day-by-day timetable.
type PlannerService interface {
	Generate(ctx context.Context, payload dto.TimetableRequest) (dto.TimetableResponse, error)
}

type plannerService struct {
	planner   ai.Planner
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPlannerService constructs the planner service. A nil planner yields
// ErrPlannerUnavailable on every request.
func NewPlannerService(planner ai.Planner, validate *validator.Validate, logger zerolog.Logger) PlannerService {
	return &plannerService{
		planner:   planner,
		validator: validate,
		logger:    logger.With().Str("component", "planner_service").Logger(),
	}
}

func (s *plannerService) Generate(ctx context.Context, payload dto.TimetableRequest) (dto.TimetableResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TimetableResponse{}, err
	}
	if s.planner == nil {
		return dto.TimetableResponse{}, ErrPlannerUnavailable
	}

	result, err := s.planner.Plan(ctx, ai.TimetableInput{
		Goal:         payload.Goal,
		Topics:       payload.Topics,
		HoursPerDay:  payload.HoursPerDay,
		DurationDays: payload.DurationDays,
		Notes:        payload.Notes,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("timetable generation failed")
		return dto.TimetableResponse{}, err
	}

	return dto.NewTimetableResponse(result), nil
}
