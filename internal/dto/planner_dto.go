package dto

import "github.com/algoprep/algoprep-api/pkg/ai"

// TimetableRequest asks the planner for a study schedule.
type TimetableRequest struct {
	Goal         string   `json:"goal" validate:"required,min=3,max=500"`
	Topics       []string `json:"topics" validate:"required,min=1,max=20,dive,min=1,max=64"`
	HoursPerDay  int      `json:"hours_per_day" validate:"required,min=1,max=16"`
	DurationDays int      `json:"duration_days" validate:"required,min=1,max=60"`
	Notes        string   `json:"notes" validate:"omitempty,max=1000"`
}

// TimetableResponse wraps the generated plan.
type TimetableResponse struct {
	Summary string            `json:"summary"`
	Days    []ai.TimetableDay `json:"days"`
}

// NewTimetableResponse converts a planner result into a DTO.
func NewTimetableResponse(result ai.TimetableResult) TimetableResponse {
	return TimetableResponse{
		Summary: result.Summary,
		Days:    result.Days,
	}
}
