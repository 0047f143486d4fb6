package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/observability"
	"github.com/assessly/assess-api/internal/repository"
	"github.com/assessly/assess-api/pkg/ai"
)

// ErrSubmissionNotPending indicates the submission was not claimable for
// grading, either because another worker holds it or it already finished.
var ErrSubmissionNotPending = errors.New("submission not pending")

// ErrAssessorUnavailable indicates no grading collaborator is configured.
var ErrAssessorUnavailable = errors.New("assessor unavailable")

// Content length thresholds used when picking a complexity tier.
const (
	textStandardThreshold    = 1500
	documentComplexThreshold = 4000
)

const gradingBatchSize = 3

// GradingService turns pending submissions into completed or failed ones by
// calling the external assessor.
type GradingService interface {
	GradeSubmission(ctx context.Context, submissionID uint) error
	BatchGrade(ctx context.Context, submissionIDs []uint) error
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assessor    ai.Assessor
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	batchPause  time.Duration
}

// NewGradingService constructs a GradingService instance.
func NewGradingService(submissions repository.SubmissionRepository, assessor ai.Assessor, batchPause time.Duration, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		assessor:    assessor,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/assessly/assess-api/internal/service/grading"),
		now:         time.Now,
		batchPause:  batchPause,
	}
}

// complexityTier maps submission kind and content size onto a model tier.
func complexityTier(kind string, contentLength int) string {
	switch kind {
	case models.SubmissionKindGitHubRepo:
		return ai.TierAgentic
	case models.SubmissionKindDocument:
		if contentLength > documentComplexThreshold {
			return ai.TierComplex
		}
		return ai.TierStandard
	case models.SubmissionKindText:
		if contentLength > textStandardThreshold {
			return ai.TierStandard
		}
		return ai.TierBasic
	default:
		return ai.TierStandard
	}
}

// GradeSubmission claims a pending submission and runs a full grading pass.
// Any assessor failure lands the row in failed with a diagnostic; the only
// retry path from there is a manual reprocess.
func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint) error {
	ctx, span := s.tracer.Start(ctx, "grading.grade_submission", trace.WithAttributes(
		attribute.Int64("submission_id", int64(submissionID)),
	))
	defer span.End()

	claimed, err := s.submissions.UpdateStatusIf(ctx, submissionID, models.SubmissionStatusPending, models.SubmissionStatusProcessing)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !claimed {
		if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}
		span.SetStatus(codes.Error, "not_pending")
		return ErrSubmissionNotPending
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	question := submission.Question

	content, ok := submission.ContentFor(question.SubmissionKind)
	if !ok {
		return s.markFailed(ctx, submissionID, "submission has no content for its question kind")
	}

	if question.BaseExample == nil {
		return s.markFailed(ctx, submissionID, "no base example configured for question")
	}

	if s.assessor == nil {
		return s.markFailed(ctx, submissionID, ErrAssessorUnavailable.Error())
	}

	tier := complexityTier(question.SubmissionKind, len(content.Value))
	span.SetAttributes(
		attribute.String("tier", tier),
		attribute.String("kind", question.SubmissionKind),
	)

	start := s.now()
	result, err := s.assessor.Assess(ctx, ai.AssessmentInput{
		QuestionTitle:  question.Title,
		Criteria:       question.Criteria,
		SubmissionKind: question.SubmissionKind,
		ComplexityTier: tier,
		Content:        content.Value,
		BaseExample:    question.BaseExample.ReferenceContent(question.SubmissionKind),
	})
	observability.GradingDuration().WithLabelValues(tier).Observe(s.now().Sub(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment_failed")
		return s.markFailed(ctx, submissionID, fmt.Sprintf("grading failed: %v", err))
	}

	comparison, err := json.Marshal(result.Comparison)
	if err != nil {
		return s.markFailed(ctx, submissionID, fmt.Sprintf("grading failed: %v", err))
	}

	processedAt := s.now()
	feedback := s.sanitizer.Sanitize(result.Feedback)

	submission.Status = models.SubmissionStatusCompleted
	submission.Score = &result.Score
	submission.Feedback = &feedback
	submission.Confidence = &result.Confidence
	submission.Comparison = datatypes.JSON(comparison)
	submission.ProcessedAt = &processedAt

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return err
	}

	observability.GradingOutcomes().WithLabelValues(models.SubmissionStatusCompleted).Inc()
	s.logger.Info().
		Uint("submission_id", submissionID).
		Str("tier", tier).
		Float64("score", result.Score).
		Msg("submission graded")

	return nil
}

// BatchGrade grades submissions in fixed-size groups of three, waiting for
// each group and pausing between groups to throttle the external API.
func (s *gradingService) BatchGrade(ctx context.Context, submissionIDs []uint) error {
	for start := 0; start < len(submissionIDs); start += gradingBatchSize {
		end := start + gradingBatchSize
		if end > len(submissionIDs) {
			end = len(submissionIDs)
		}

		var wg sync.WaitGroup
		for _, id := range submissionIDs[start:end] {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				if err := s.GradeSubmission(ctx, id); err != nil {
					s.logger.Warn().Err(err).Uint("submission_id", id).Msg("batch grading pass failed")
				}
			}(id)
		}
		wg.Wait()

		if end < len(submissionIDs) && s.batchPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.batchPause):
			}
		}
	}

	return nil
}

// markFailed moves the submission into the failed state with a diagnostic,
// leaving score, confidence, and comparison null.
func (s *gradingService) markFailed(ctx context.Context, submissionID uint, diagnostic string) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return err
	}

	processedAt := s.now()
	submission.Status = models.SubmissionStatusFailed
	submission.Score = nil
	submission.Feedback = &diagnostic
	submission.Confidence = nil
	submission.Comparison = nil
	submission.ProcessedAt = &processedAt

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return err
	}

	observability.GradingOutcomes().WithLabelValues(models.SubmissionStatusFailed).Inc()
	s.logger.Warn().
		Uint("submission_id", submissionID).
		Str("diagnostic", diagnostic).
		Msg("submission marked failed")

	return nil
}
