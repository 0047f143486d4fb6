package ai

import "context"

// Complexity tiers routing a grading request to a model variant.
const (
	TierBasic    = "basic"
	TierStandard = "standard"
	TierComplex  = "complex"
	TierAgentic  = "agentic"
)

// AssessmentInput contains the artefacts needed to grade a submission against
// its base example.
type AssessmentInput struct {
	QuestionTitle  string
	Criteria       string
	SubmissionKind string
	ComplexityTier string
	Content        string
	BaseExample    string
}

// Comparison is the structured breakdown returned alongside the score.
type Comparison struct {
	Similarities []string `json:"similarities"`
	Differences  []string `json:"differences"`
	Suggestions  []string `json:"suggestions"`
}

// AssessmentResult is the structured grading output returned by the model.
type AssessmentResult struct {
	Score      float64                `json:"score"`
	Feedback   string                 `json:"feedback"`
	Confidence float64                `json:"confidence"`
	Comparison Comparison             `json:"comparison"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
}

// Assessor describes an AI model capable of comparing a submission to a base
// example and producing a score.
type Assessor interface {
	Assess(ctx context.Context, input AssessmentInput) (AssessmentResult, error)
}
