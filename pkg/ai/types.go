package ai

import "context"

// TimetableInput describes the study-plan request forwarded to the model.
type TimetableInput struct {
	Goal         string
	Topics       []string
	HoursPerDay  int
	DurationDays int
	Notes        string
}

// TimetableSlot is a single scheduled block within a day.
type TimetableSlot struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Topic    string `json:"topic"`
	Activity string `json:"activity"`
}

// TimetableDay groups the slots planned for one day.
type TimetableDay struct {
	Day   int             `json:"day"`
	Focus string          `json:"focus"`
	Slots []TimetableSlot `json:"slots"`
}

// TimetableResult is the parsed plan returned by the model.
type TimetableResult struct {
	Summary string                 `json:"summary"`
	Days    []TimetableDay         `json:"days"`
	Raw     map[string]interface{} `json:"-"`
}

// Planner generates study timetables from free-form goals.
type Planner interface {
	Plan(ctx context.Context, input TimetableInput) (TimetableResult, error)
}
