package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission kinds a question may declare. The kind determines which content
// field a submission must populate and which model tier grades it.
const (
	SubmissionKindText       = "text"
	SubmissionKindDocument   = "document"
	SubmissionKindWebsite    = "website"
	SubmissionKindGitHubRepo = "github_repo"
)

// Question is an assessed task inside a course.
type Question struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CourseID       uint      `gorm:"not null;index" json:"course_id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	SubmissionKind string    `gorm:"size:32;not null" json:"submission_kind"`
	Criteria       string    `gorm:"type:text" json:"criteria"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Course      Course       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	BaseExample *BaseExample `json:"base_example,omitempty"`
}

// BaseExample holds the canonical perfect answer a submission is compared
// against. At most one exists per question.
type BaseExample struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	QuestionID uint           `gorm:"not null;uniqueIndex" json:"question_id"`
	Content    string         `gorm:"type:text" json:"content"`
	FileURL    *string        `gorm:"size:512" json:"file_url"`
	WebsiteURL *string        `gorm:"size:512" json:"website_url"`
	GitHubURL  *string        `gorm:"size:512" json:"github_url"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ValidSubmissionKind reports whether the given string names a known kind.
func ValidSubmissionKind(kind string) bool {
	switch kind {
	case SubmissionKindText, SubmissionKindDocument, SubmissionKindWebsite, SubmissionKindGitHubRepo:
		return true
	default:
		return false
	}
}

// ReferenceContent returns the comparison target for the question's kind.
func (b BaseExample) ReferenceContent(kind string) string {
	switch kind {
	case SubmissionKindDocument:
		if b.FileURL != nil {
			return *b.FileURL
		}
	case SubmissionKindWebsite:
		if b.WebsiteURL != nil {
			return *b.WebsiteURL
		}
	case SubmissionKindGitHubRepo:
		if b.GitHubURL != nil {
			return *b.GitHubURL
		}
	}
	return b.Content
}
