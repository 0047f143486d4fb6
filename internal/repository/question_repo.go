package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/models"
)

// QuestionFilter narrows question listings.
type QuestionFilter struct {
	CourseID *uint
	IsActive *bool
}

// QuestionRepository defines data operations for questions and base examples.
type QuestionRepository interface {
	List(ctx context.Context, filter QuestionFilter) ([]models.Question, error)
	GetByID(ctx context.Context, id uint) (models.Question, error)
	Create(ctx context.Context, question *models.Question) error
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	UpsertBaseExample(ctx context.Context, example *models.BaseExample) error
	GetBaseExample(ctx context.Context, questionID uint) (models.BaseExample, error)
	DeleteBaseExample(ctx context.Context, questionID uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Question{}).
		Preload("Course").
		Preload("BaseExample")
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]models.Question, error) {
	query := r.baseQuery(ctx)

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}

	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var questions []models.Question
	if err := query.Order("created_at DESC").Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.baseQuery(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Question{}, id).Error
}

func (r *questionRepository) UpsertBaseExample(ctx context.Context, example *models.BaseExample) error {
	var existing models.BaseExample
	err := r.db.WithContext(ctx).
		Where("question_id = ?", example.QuestionID).
		First(&existing).Error
	if err == nil {
		example.ID = existing.ID
		example.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(example).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	return r.db.WithContext(ctx).Create(example).Error
}

func (r *questionRepository) GetBaseExample(ctx context.Context, questionID uint) (models.BaseExample, error) {
	var example models.BaseExample
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		First(&example).Error; err != nil {
		return models.BaseExample{}, err
	}

	return example, nil
}

func (r *questionRepository) DeleteBaseExample(ctx context.Context, questionID uint) error {
	return r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Delete(&models.BaseExample{}).Error
}
