package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/models"
)

// SubmissionFilter narrows submission queries. CourseAdminID scopes results to
// submissions whose question belongs to a course administered by that user.
type SubmissionFilter struct {
	QuestionID    *uint
	StudentID     *uint
	CourseID      *uint
	CourseAdminID *uint
	Status        *string
	MinScore      *float64
	MaxScore      *float64
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
	Limit         int
	Offset        int
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Count(ctx context.Context, filter SubmissionFilter) (int64, error)
	CountByStatus(ctx context.Context, filter SubmissionFilter) (map[string]int64, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error

	// UpdateStatusIf performs a conditional status transition and reports
	// whether a row actually changed. This is the compare-and-swap guarding
	// the pending/processing boundary.
	UpdateStatusIf(ctx context.Context, id uint, from, to string) (bool, error)

	// ResetGrading moves the submission back to pending and clears all
	// grading output columns.
	ResetGrading(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Question").
		Preload("Question.Course").
		Preload("Question.BaseExample").
		Preload("Student")
}

func applySubmissionFilter(query *gorm.DB, filter SubmissionFilter) *gorm.DB {
	if filter.QuestionID != nil {
		query = query.Where("submissions.question_id = ?", *filter.QuestionID)
	}

	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}

	if filter.CourseID != nil || filter.CourseAdminID != nil {
		query = query.Joins("JOIN questions ON questions.id = submissions.question_id")
		if filter.CourseID != nil {
			query = query.Where("questions.course_id = ?", *filter.CourseID)
		}
		if filter.CourseAdminID != nil {
			query = query.
				Joins("JOIN courses ON courses.id = questions.course_id").
				Where("courses.admin_id = ?", *filter.CourseAdminID)
		}
	}

	if filter.Status != nil {
		query = query.Where("submissions.status = ?", *filter.Status)
	}

	if filter.MinScore != nil {
		query = query.Where("submissions.score >= ?", *filter.MinScore)
	}

	if filter.MaxScore != nil {
		query = query.Where("submissions.score <= ?", *filter.MaxScore)
	}

	if filter.SubmittedFrom != nil {
		query = query.Where("submissions.submitted_at >= ?", *filter.SubmittedFrom)
	}

	if filter.SubmittedTo != nil {
		query = query.Where("submissions.submitted_at <= ?", *filter.SubmittedTo)
	}

	return query
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := applySubmissionFilter(r.baseQuery(ctx), filter)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var submissions []models.Submission
	if err := query.Order("submissions.submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Count(ctx context.Context, filter SubmissionFilter) (int64, error) {
	filter.Limit = 0
	filter.Offset = 0

	var total int64
	query := applySubmissionFilter(r.db.WithContext(ctx).Model(&models.Submission{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

func (r *submissionRepository) CountByStatus(ctx context.Context, filter SubmissionFilter) (map[string]int64, error) {
	filter.Status = nil
	filter.Limit = 0
	filter.Offset = 0

	type statusCount struct {
		Status string
		Total  int64
	}

	var rows []statusCount
	query := applySubmissionFilter(r.db.WithContext(ctx).Model(&models.Submission{}), filter)
	if err := query.
		Select("submissions.status AS status, COUNT(*) AS total").
		Group("submissions.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Submission{}, id).Error
}

func (r *submissionRepository) UpdateStatusIf(ctx context.Context, id uint, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *submissionRepository) ResetGrading(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.SubmissionStatusPending,
			"score":        nil,
			"feedback":     nil,
			"confidence":   nil,
			"comparison":   nil,
			"processed_at": nil,
		}).Error
}
