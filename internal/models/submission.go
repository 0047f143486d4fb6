package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses. A submission starts pending, is moved to processing by
// the grading dispatcher, and ends completed or failed. Edits and manual
// reprocessing move it back to pending.
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusCompleted  = "completed"
	SubmissionStatusFailed     = "failed"
)

// Submission is a student's answer to a question. Exactly one of the four
// content columns is populated, matching the question's declared kind.
type Submission struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	QuestionID uint    `gorm:"not null;index" json:"question_id"`
	StudentID  uint    `gorm:"not null;index" json:"student_id"`
	Content    *string `gorm:"type:text" json:"content"`
	FileURL    *string `gorm:"size:512" json:"file_url"`
	WebsiteURL *string `gorm:"size:512" json:"website_url"`
	GitHubURL  *string `gorm:"size:512" json:"github_url"`

	Status      string         `gorm:"size:32;not null;default:pending;index" json:"status"`
	Score       *float64       `json:"score"`
	Feedback    *string        `gorm:"type:text" json:"feedback"`
	Confidence  *float64       `json:"confidence"`
	Comparison  datatypes.JSON `json:"comparison,omitempty"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`
	ProcessedAt *time.Time     `json:"processed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Question Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
	Student  User     `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// SubmissionContent is the tagged one-of-four content value used at the
// domain layer. The four nullable columns exist only at the storage edge.
type SubmissionContent struct {
	Kind  string
	Value string
}

// ContentFor extracts the content value matching the given kind. The second
// return value is false when the column for that kind is empty.
func (s Submission) ContentFor(kind string) (SubmissionContent, bool) {
	var value *string
	switch kind {
	case SubmissionKindText:
		value = s.Content
	case SubmissionKindDocument:
		value = s.FileURL
	case SubmissionKindWebsite:
		value = s.WebsiteURL
	case SubmissionKindGitHubRepo:
		value = s.GitHubURL
	}
	if value == nil || *value == "" {
		return SubmissionContent{}, false
	}
	return SubmissionContent{Kind: kind, Value: *value}, true
}

// SetContent stores the value in the column matching its kind and clears the
// other three, preserving the exclusivity invariant.
func (s *Submission) SetContent(content SubmissionContent) {
	s.Content = nil
	s.FileURL = nil
	s.WebsiteURL = nil
	s.GitHubURL = nil

	value := content.Value
	switch content.Kind {
	case SubmissionKindText:
		s.Content = &value
	case SubmissionKindDocument:
		s.FileURL = &value
	case SubmissionKindWebsite:
		s.WebsiteURL = &value
	case SubmissionKindGitHubRepo:
		s.GitHubURL = &value
	}
}

// IsTerminal reports whether grading has finished, successfully or not.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusCompleted || s.Status == SubmissionStatusFailed
}
