package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/assessly/assess-api/internal/models"
)

// QuestionCreateRequest creates a question inside a course.
type QuestionCreateRequest struct {
	CourseID       uint   `json:"course_id" validate:"required,gt=0"`
	Title          string `json:"title" validate:"required,min=2,max=255"`
	Description    string `json:"description" validate:"omitempty,max=8000"`
	SubmissionKind string `json:"submission_kind" validate:"required,oneof=text document website github_repo"`
	Criteria       string `json:"criteria" validate:"omitempty,max=8000"`
}

// QuestionUpdateRequest updates question fields; nil fields are left unchanged.
// The submission kind is fixed at creation so existing submissions keep
// matching their question.
type QuestionUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=8000"`
	Criteria    *string `json:"criteria" validate:"omitempty,max=8000"`
	IsActive    *bool   `json:"is_active"`
}

// BaseExampleUpsertRequest sets or replaces the question's perfect answer.
// Exactly one content field must match the question's submission kind.
type BaseExampleUpsertRequest struct {
	Content    *string                `json:"content"`
	FileURL    *string                `json:"file_url" validate:"omitempty,url"`
	WebsiteURL *string                `json:"website_url" validate:"omitempty,url"`
	GitHubURL  *string                `json:"github_url" validate:"omitempty,url"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// QuestionResponse is returned to API clients when viewing questions.
type QuestionResponse struct {
	ID             uint                 `json:"id"`
	CourseID       uint                 `json:"course_id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	SubmissionKind string               `json:"submission_kind"`
	Criteria       string               `json:"criteria"`
	IsActive       bool                 `json:"is_active"`
	BaseExample    *BaseExampleResponse `json:"base_example,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// BaseExampleResponse serializes a question's base example.
type BaseExampleResponse struct {
	ID         uint                   `json:"id"`
	QuestionID uint                   `json:"question_id"`
	Content    string                 `json:"content"`
	FileURL    *string                `json:"file_url"`
	WebsiteURL *string                `json:"website_url"`
	GitHubURL  *string                `json:"github_url"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// NewQuestionResponse converts a Question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	response := QuestionResponse{
		ID:             model.ID,
		CourseID:       model.CourseID,
		Title:          model.Title,
		Description:    model.Description,
		SubmissionKind: model.SubmissionKind,
		Criteria:       model.Criteria,
		IsActive:       model.IsActive,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.BaseExample != nil {
		example := NewBaseExampleResponse(*model.BaseExample)
		response.BaseExample = &example
	}

	return response
}

// NewQuestionResponseSlice converts question models into DTOs.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}

	return responses
}

// NewBaseExampleResponse converts a BaseExample model into a DTO.
func NewBaseExampleResponse(model models.BaseExample) BaseExampleResponse {
	return BaseExampleResponse{
		ID:         model.ID,
		QuestionID: model.QuestionID,
		Content:    model.Content,
		FileURL:    model.FileURL,
		WebsiteURL: model.WebsiteURL,
		GitHubURL:  model.GitHubURL,
		Metadata:   decodeJSONMap(model.Metadata),
		UpdatedAt:  model.UpdatedAt,
	}
}

func decodeJSONMap(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	return decoded
}
