package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
)

// ErrSubmissionNotFound indicates a submission could not be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrNotEnrolled indicates the student holds no enrollment in the question's course.
var ErrNotEnrolled = errors.New("student not enrolled in course")

// ErrQuestionInactive indicates the question no longer accepts submissions.
var ErrQuestionInactive = errors.New("question is not active")

// ErrSubmissionLocked indicates the submission is being graded and cannot be
// modified until the dispatcher finishes.
var ErrSubmissionLocked = errors.New("submission is processing")

// GradingQueue accepts submission ids for asynchronous grading. Acceptance of
// a submission and completion of its grading are two separate events; callers
// never block on the grading pass.
type GradingQueue interface {
	Enqueue(ctx context.Context, submissionID uint) error
}

// SubmissionService owns the submission lifecycle: creation, edits, deletion,
// manual reprocessing, and the status state machine around them.
type SubmissionService interface {
	List(ctx context.Context, caller Identity, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, caller Identity, id uint) (dto.SubmissionResponse, error)
	Create(ctx context.Context, caller Identity, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Update(ctx context.Context, caller Identity, id uint, payload dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, caller Identity, id uint) error
	Reprocess(ctx context.Context, caller Identity, id uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	courses     repository.CourseRepository
	queue       GradingQueue
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(submissions repository.SubmissionRepository, questions repository.QuestionRepository, courses repository.CourseRepository, queue GradingQueue, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		questions:   questions,
		courses:     courses,
		queue:       queue,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// contentForKind extracts the single content value matching the question's
// declared kind. The other three fields are ignored.
func contentForKind(kind string, content, fileURL, websiteURL, githubURL *string) (models.SubmissionContent, bool) {
	var value *string
	switch kind {
	case models.SubmissionKindText:
		value = content
	case models.SubmissionKindDocument:
		value = fileURL
	case models.SubmissionKindWebsite:
		value = websiteURL
	case models.SubmissionKindGitHubRepo:
		value = githubURL
	}
	if value == nil || *value == "" {
		return models.SubmissionContent{}, false
	}
	return models.SubmissionContent{Kind: kind, Value: *value}, true
}

func (s *submissionService) List(ctx context.Context, caller Identity, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		QuestionID: filter.QuestionID,
		Status:     filter.Status,
	}

	switch caller.Role {
	case models.RoleStudent:
		repoFilter.StudentID = &caller.ID
	case models.RoleCourseAdmin:
		repoFilter.CourseAdminID = &caller.ID
	}

	if filter.QuestionID != nil && caller.Role == models.RoleCourseAdmin {
		question, err := s.questions.GetByID(ctx, *filter.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrQuestionNotFound
			}
			return nil, err
		}
		if question.Course.AdminID != caller.ID {
			return nil, ErrForbidden
		}
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, caller Identity, id uint) (dto.SubmissionResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !s.canView(caller, submission) {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Create(ctx context.Context, caller Identity, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := RequireRole(caller, models.RoleStudent); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrQuestionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.courses.GetEnrollment(ctx, question.CourseID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrNotEnrolled
		}
		return dto.SubmissionResponse{}, err
	}

	if !question.IsActive || !question.Course.IsActive {
		return dto.SubmissionResponse{}, ErrQuestionInactive
	}

	content, ok := contentForKind(question.SubmissionKind, payload.Content, payload.FileURL, payload.WebsiteURL, payload.GitHubURL)
	if !ok {
		return dto.SubmissionResponse{}, ErrInvalidContent
	}

	submission := models.Submission{
		QuestionID:  question.ID,
		StudentID:   caller.ID,
		Status:      models.SubmissionStatusPending,
		SubmittedAt: s.now(),
	}
	submission.SetContent(content)

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.schedule(ctx, submission.ID)

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", created.ID).Uint("question_id", question.ID).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) Update(ctx context.Context, caller Identity, id uint, payload dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error) {
	if err := RequireRole(caller, models.RoleStudent); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if submission.StudentID != caller.ID {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	if submission.Status == models.SubmissionStatusProcessing {
		return dto.SubmissionResponse{}, ErrSubmissionLocked
	}

	kind := submission.Question.SubmissionKind
	content, ok := contentForKind(kind, payload.Content, payload.FileURL, payload.WebsiteURL, payload.GitHubURL)
	if !ok {
		return dto.SubmissionResponse{}, ErrInvalidContent
	}

	current, _ := submission.ContentFor(kind)
	if current.Value == content.Value {
		return dto.NewSubmissionResponse(submission), nil
	}

	// Conditional transition: a dispatcher that claimed the row between our
	// read and this write makes the swap fail, and the edit is rejected.
	swapped, err := s.submissions.UpdateStatusIf(ctx, submission.ID, submission.Status, models.SubmissionStatusPending)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !swapped {
		return dto.SubmissionResponse{}, ErrSubmissionLocked
	}

	if err := s.submissions.ResetGrading(ctx, submission.ID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission.SetContent(content)
	submission.Status = models.SubmissionStatusPending
	submission.Score = nil
	submission.Feedback = nil
	submission.Confidence = nil
	submission.Comparison = nil
	submission.ProcessedAt = nil

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.schedule(ctx, submission.ID)

	updated, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission content updated, grading rescheduled")

	return dto.NewSubmissionResponse(updated), nil
}

func (s *submissionService) Delete(ctx context.Context, caller Identity, id uint) error {
	if err := RequireAuthenticated(caller); err != nil {
		return err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if !s.canView(caller, submission) {
		return ErrForbidden
	}

	return s.submissions.Delete(ctx, id)
}

func (s *submissionService) Reprocess(ctx context.Context, caller Identity, id uint) (dto.SubmissionResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !caller.IsSuperAdmin() && submission.Question.Course.AdminID != caller.ID {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	if submission.Status == models.SubmissionStatusProcessing {
		return dto.SubmissionResponse{}, ErrSubmissionLocked
	}

	if err := s.submissions.ResetGrading(ctx, submission.ID); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.schedule(ctx, submission.ID)

	updated, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission queued for reprocessing")

	return dto.NewSubmissionResponse(updated), nil
}

// canView reports whether the caller owns or administers the submission.
func (s *submissionService) canView(caller Identity, submission models.Submission) bool {
	switch caller.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleCourseAdmin:
		return submission.Question.Course.AdminID == caller.ID
	case models.RoleStudent:
		return submission.StudentID == caller.ID
	default:
		return false
	}
}

// schedule hands the submission to the grading queue. Enqueue failures are
// logged, not surfaced: the row stays pending and can be reprocessed.
func (s *submissionService) schedule(ctx context.Context, submissionID uint) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, submissionID); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to enqueue grading job")
	}
}
