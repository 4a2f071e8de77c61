package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	planDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "algoprep",
		Subsystem: "ai",
		Name:      "timetable_duration_seconds",
		Help:      "Duration of AI timetable generation requests",
	}, []string{"model"})

	planFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algoprep",
		Subsystem: "ai",
		Name:      "timetable_failures_total",
		Help:      "Number of AI timetable generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI planner.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIPlanner implements Planner against the OpenAI chat completion API.
type OpenAIPlanner struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIPlanner builds a planner using the provided configuration.
func NewOpenAIPlanner(cfg OpenAIConfig) (*OpenAIPlanner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/algoprep/algoprep-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIPlanner{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Plan sends the timetable request to OpenAI and parses the response.
func (p *OpenAIPlanner) Plan(parent context.Context, input TimetableInput) (TimetableResult, error) {
	ctx, span := p.tracer.Start(parent, "openai.timetable", trace.WithAttributes(
		attribute.String("model", p.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: plannerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPlannerPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	planDuration.WithLabelValues(p.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		planFailures.WithLabelValues(p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TimetableResult{}, fmt.Errorf("openai timetable: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		planFailures.WithLabelValues(p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TimetableResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseTimetableResponse(content)
	if err != nil {
		planFailures.WithLabelValues(p.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TimetableResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func plannerSystemPrompt() string {
	return "You are a study planner for competitive programming preparation. Respond with a JSON object containing summary " +
		"and days, where each day has day (number), focus, and slots with start, end, topic, and activity fields."
}

func buildPlannerPrompt(input TimetableInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Goal\n")
	builder.WriteString(input.Goal)
	builder.WriteString("\n\n## Topics\n")
	builder.WriteString(strings.Join(input.Topics, ", "))
	builder.WriteString("\n\n## Hours per day\n")
	builder.WriteString(strconv.Itoa(input.HoursPerDay))
	builder.WriteString("\n\n## Duration in days\n")
	builder.WriteString(strconv.Itoa(input.DurationDays))
	if input.Notes != "" {
		builder.WriteString("\n\n## Notes\n")
		builder.WriteString(input.Notes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseTimetableResponse(content string) (TimetableResult, error) {
	var result TimetableResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return TimetableResult{}, fmt.Errorf("parse timetable json: %w", err)
	}

	if len(result.Days) == 0 {
		return TimetableResult{}, fmt.Errorf("timetable response contained no days")
	}

	return result, nil
}
