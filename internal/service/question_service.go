package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
)

// ErrQuestionNotFound indicates a question could not be located.
var ErrQuestionNotFound = errors.New("question not found")

// ErrBaseExampleNotFound indicates the question has no base example.
var ErrBaseExampleNotFound = errors.New("base example not found")

// ErrInvalidContent indicates a content payload does not match the question's
// submission kind.
var ErrInvalidContent = errors.New("content does not match submission kind")

// QuestionService manages questions and their base examples.
type QuestionService interface {
	List(ctx context.Context, caller Identity) ([]dto.QuestionResponse, error)
	ListByCourse(ctx context.Context, caller Identity, courseID uint) ([]dto.QuestionResponse, error)
	Get(ctx context.Context, caller Identity, id uint) (dto.QuestionResponse, error)
	Create(ctx context.Context, caller Identity, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Update(ctx context.Context, caller Identity, id uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	Delete(ctx context.Context, caller Identity, id uint) error

	UpsertBaseExample(ctx context.Context, caller Identity, questionID uint, payload dto.BaseExampleUpsertRequest) (dto.BaseExampleResponse, error)
	DeleteBaseExample(ctx context.Context, caller Identity, questionID uint) error
}

type questionService struct {
	questions repository.QuestionRepository
	courses   repository.CourseRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewQuestionService constructs a QuestionService instance.
func NewQuestionService(questions repository.QuestionRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		questions: questions,
		courses:   courses,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) courseForAdmin(ctx context.Context, caller Identity, courseID uint) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}

	if !canAdminister(caller, course) {
		return models.Course{}, ErrForbidden
	}

	return course, nil
}

func (s *questionService) List(ctx context.Context, caller Identity) ([]dto.QuestionResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	filter := repository.QuestionFilter{}
	if caller.Role == models.RoleStudent {
		active := true
		filter.IsActive = &active
	}

	questions, err := s.questions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if caller.Role == models.RoleCourseAdmin {
		scoped := questions[:0]
		for _, question := range questions {
			if question.Course.AdminID == caller.ID {
				scoped = append(scoped, question)
			}
		}
		questions = scoped
	}

	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) ListByCourse(ctx context.Context, caller Identity, courseID uint) ([]dto.QuestionResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	filter := repository.QuestionFilter{CourseID: &courseID}
	if caller.Role == models.RoleStudent {
		active := true
		filter.IsActive = &active
	}

	questions, err := s.questions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) Get(ctx context.Context, caller Identity, id uint) (dto.QuestionResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	// Students never see the perfect answer.
	if caller.Role == models.RoleStudent {
		question.BaseExample = nil
	}

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Create(ctx context.Context, caller Identity, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	if _, err := s.courseForAdmin(ctx, caller, payload.CourseID); err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		CourseID:       payload.CourseID,
		Title:          payload.Title,
		Description:    payload.Description,
		SubmissionKind: payload.SubmissionKind,
		Criteria:       s.sanitizer.Sanitize(payload.Criteria),
		IsActive:       true,
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	created, err := s.questions.GetByID(ctx, question.ID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Str("kind", question.SubmissionKind).Msg("question created")

	return dto.NewQuestionResponse(created), nil
}

func (s *questionService) Update(ctx context.Context, caller Identity, id uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if _, err := s.courseForAdmin(ctx, caller, question.CourseID); err != nil {
		return dto.QuestionResponse{}, err
	}

	if payload.Title != nil {
		question.Title = *payload.Title
	}
	if payload.Description != nil {
		question.Description = *payload.Description
	}
	if payload.Criteria != nil {
		question.Criteria = s.sanitizer.Sanitize(*payload.Criteria)
	}
	if payload.IsActive != nil {
		question.IsActive = *payload.IsActive
	}

	question.BaseExample = nil
	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	updated, err := s.questions.GetByID(ctx, question.ID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Msg("question updated")

	return dto.NewQuestionResponse(updated), nil
}

func (s *questionService) Delete(ctx context.Context, caller Identity, id uint) error {
	if err := RequireAnyAdmin(caller); err != nil {
		return err
	}

	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if _, err := s.courseForAdmin(ctx, caller, question.CourseID); err != nil {
		return err
	}

	return s.questions.Delete(ctx, id)
}

func (s *questionService) UpsertBaseExample(ctx context.Context, caller Identity, questionID uint, payload dto.BaseExampleUpsertRequest) (dto.BaseExampleResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.BaseExampleResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.BaseExampleResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BaseExampleResponse{}, ErrQuestionNotFound
		}
		return dto.BaseExampleResponse{}, err
	}

	if _, err := s.courseForAdmin(ctx, caller, question.CourseID); err != nil {
		return dto.BaseExampleResponse{}, err
	}

	example := models.BaseExample{QuestionID: questionID}
	switch question.SubmissionKind {
	case models.SubmissionKindText:
		if payload.Content == nil || *payload.Content == "" {
			return dto.BaseExampleResponse{}, ErrInvalidContent
		}
		example.Content = *payload.Content
	case models.SubmissionKindDocument:
		if payload.FileURL == nil {
			return dto.BaseExampleResponse{}, ErrInvalidContent
		}
		example.FileURL = payload.FileURL
	case models.SubmissionKindWebsite:
		if payload.WebsiteURL == nil {
			return dto.BaseExampleResponse{}, ErrInvalidContent
		}
		example.WebsiteURL = payload.WebsiteURL
	case models.SubmissionKindGitHubRepo:
		if payload.GitHubURL == nil {
			return dto.BaseExampleResponse{}, ErrInvalidContent
		}
		example.GitHubURL = payload.GitHubURL
	}

	if payload.Metadata != nil {
		raw, err := json.Marshal(payload.Metadata)
		if err != nil {
			return dto.BaseExampleResponse{}, err
		}
		example.Metadata = datatypes.JSON(raw)
	}

	if err := s.questions.UpsertBaseExample(ctx, &example); err != nil {
		return dto.BaseExampleResponse{}, err
	}

	s.logger.Info().Uint("question_id", questionID).Msg("base example stored")

	return dto.NewBaseExampleResponse(example), nil
}

func (s *questionService) DeleteBaseExample(ctx context.Context, caller Identity, questionID uint) error {
	if err := RequireAnyAdmin(caller); err != nil {
		return err
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if _, err := s.courseForAdmin(ctx, caller, question.CourseID); err != nil {
		return err
	}

	if _, err := s.questions.GetBaseExample(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBaseExampleNotFound
		}
		return err
	}

	return s.questions.DeleteBaseExample(ctx, questionID)
}
