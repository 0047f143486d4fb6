package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/assessly/assess-api/internal/models"
)

// SubmissionCreateRequest submits an answer to a question. Only the content
// field matching the question's declared kind is read.
type SubmissionCreateRequest struct {
	QuestionID uint    `json:"question_id" validate:"required,gt=0"`
	Content    *string `json:"content"`
	FileURL    *string `json:"file_url" validate:"omitempty,url"`
	WebsiteURL *string `json:"website_url" validate:"omitempty,url"`
	GitHubURL  *string `json:"github_url" validate:"omitempty,url"`
}

// SubmissionUpdateRequest replaces submission content. A changed value resets
// grading and schedules a new pass.
type SubmissionUpdateRequest struct {
	Content    *string `json:"content"`
	FileURL    *string `json:"file_url" validate:"omitempty,url"`
	WebsiteURL *string `json:"website_url" validate:"omitempty,url"`
	GitHubURL  *string `json:"github_url" validate:"omitempty,url"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	QuestionID *uint   `query:"question_id"`
	Status     *string `query:"status" validate:"omitempty,oneof=pending processing completed failed"`
}

// ComparisonPayload mirrors the structured comparison stored after grading.
type ComparisonPayload struct {
	Similarities []string `json:"similarities"`
	Differences  []string `json:"differences"`
	Suggestions  []string `json:"suggestions"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID          uint               `json:"id"`
	QuestionID  uint               `json:"question_id"`
	StudentID   uint               `json:"student_id"`
	Content     *string            `json:"content"`
	FileURL     *string            `json:"file_url"`
	WebsiteURL  *string            `json:"website_url"`
	GitHubURL   *string            `json:"github_url"`
	Status      string             `json:"status"`
	Score       *float64           `json:"score"`
	Feedback    *string            `json:"feedback"`
	Confidence  *float64           `json:"confidence"`
	Comparison  *ComparisonPayload `json:"comparison,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
	ProcessedAt *time.Time         `json:"processed_at"`
	Question    QuestionLite       `json:"question"`
	Student     UserResponse       `json:"student"`
}

// QuestionLite summarizes a question in submission responses.
type QuestionLite struct {
	ID             uint   `json:"id"`
	CourseID       uint   `json:"course_id"`
	Title          string `json:"title"`
	SubmissionKind string `json:"submission_kind"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:          model.ID,
		QuestionID:  model.QuestionID,
		StudentID:   model.StudentID,
		Content:     model.Content,
		FileURL:     model.FileURL,
		WebsiteURL:  model.WebsiteURL,
		GitHubURL:   model.GitHubURL,
		Status:      model.Status,
		Score:       model.Score,
		Feedback:    model.Feedback,
		Confidence:  model.Confidence,
		Comparison:  decodeComparison(model.Comparison),
		SubmittedAt: model.SubmittedAt,
		ProcessedAt: model.ProcessedAt,
	}

	if model.Question.ID != 0 {
		response.Question = QuestionLite{
			ID:             model.Question.ID,
			CourseID:       model.Question.CourseID,
			Title:          model.Question.Title,
			SubmissionKind: model.Question.SubmissionKind,
		}
	}

	if model.Student.ID != 0 {
		response.Student = NewUserResponse(model.Student)
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

func decodeComparison(raw datatypes.JSON) *ComparisonPayload {
	if len(raw) == 0 {
		return nil
	}

	var payload ComparisonPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	return &payload
}
