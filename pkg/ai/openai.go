package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	assessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "assessment_duration_seconds",
		Help:      "Duration of AI assessment requests",
	}, []string{"model"})

	assessFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "ai",
		Name:      "assessment_failures_total",
		Help:      "Number of AI assessment failures",
	}, []string{"model"})
)

// resultSchema constrains the JSON the model is allowed to return. Responses
// that fail validation are treated as assessment failures.
const resultSchema = `{
  "type": "object",
  "required": ["score", "feedback", "confidence", "comparison"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "feedback": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "comparison": {
      "type": "object",
      "required": ["similarities", "differences", "suggestions"],
      "properties": {
        "similarities": {"type": "array", "items": {"type": "string"}},
        "differences": {"type": "array", "items": {"type": "string"}},
        "suggestions": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

// OpenAIConfig defines configuration options for the OpenAI assessor.
type OpenAIConfig struct {
	APIKey      string
	Models      map[string]string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAssessor implements Assessor against the OpenAI chat completion API.
// The complexity tier on each request selects which model variant is called.
type OpenAIAssessor struct {
	client *openai.Client
	cfg    OpenAIConfig
	schema *jsonschema.Schema
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAssessor builds a new assessor using the provided configuration.
func NewOpenAIAssessor(cfg OpenAIConfig) (*OpenAIAssessor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Models == nil {
		cfg.Models = map[string]string{}
	}
	if cfg.Models[TierBasic] == "" {
		cfg.Models[TierBasic] = "gpt-4o-mini"
	}
	if cfg.Models[TierStandard] == "" {
		cfg.Models[TierStandard] = "gpt-4o-mini"
	}
	if cfg.Models[TierComplex] == "" {
		cfg.Models[TierComplex] = "gpt-4o"
	}
	if cfg.Models[TierAgentic] == "" {
		cfg.Models[TierAgentic] = "gpt-4o"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	schema, err := jsonschema.CompileString("assessment_result.json", resultSchema)
	if err != nil {
		return nil, fmt.Errorf("compile result schema: %w", err)
	}

	tracer := otel.Tracer("github.com/assessly/assess-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIAssessor{
		client: client,
		cfg:    cfg,
		schema: schema,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Assess sends the comparison request to OpenAI and parses the response.
func (a *OpenAIAssessor) Assess(parent context.Context, input AssessmentInput) (AssessmentResult, error) {
	model := a.modelFor(input.ComplexityTier)

	ctx, span := a.tracer.Start(parent, "openai.assess", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("tier", input.ComplexityTier),
		attribute.String("kind", input.SubmissionKind),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: assessorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildAssessmentPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	assessDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		assessFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssessmentResult{}, fmt.Errorf("openai assess: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		assessFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssessmentResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := a.parseAssessmentResponse(content)
	if err != nil {
		assessFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssessmentResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
		"model": model,
	}

	return result, nil
}

func (a *OpenAIAssessor) modelFor(tier string) string {
	if model, ok := a.cfg.Models[tier]; ok && model != "" {
		return model
	}
	return a.cfg.Models[TierStandard]
}

func assessorSystemPrompt() string {
	return "You are an assessment agent that compares a student submission against a reference perfect answer. " +
		"Respond with a JSON object containing score (0-100), feedback, confidence (0-1), and a comparison object " +
		"with similarities, differences, and suggestions arrays. Judge only against the reference and the stated criteria."
}

func buildAssessmentPrompt(input AssessmentInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionTitle)
	builder.WriteString("\n\n## Submission Kind\n")
	builder.WriteString(input.SubmissionKind)
	if input.Criteria != "" {
		builder.WriteString("\n\n## Grading Criteria\n")
		builder.WriteString(input.Criteria)
	}
	builder.WriteString("\n\n## Reference Answer\n")
	builder.WriteString(input.BaseExample)
	builder.WriteString("\n\n## Student Submission\n")
	builder.WriteString(input.Content)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func (a *OpenAIAssessor) parseAssessmentResponse(content string) (AssessmentResult, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return AssessmentResult{}, fmt.Errorf("parse assessment json: %w", err)
	}

	if err := a.schema.Validate(generic); err != nil {
		return AssessmentResult{}, fmt.Errorf("assessment response failed schema validation: %w", err)
	}

	var result AssessmentResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return AssessmentResult{}, fmt.Errorf("decode assessment json: %w", err)
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	return result, nil
}
