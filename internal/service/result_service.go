package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
)

const (
	defaultResultPageSize = 20
	insightTopN           = 5
)

// ResultService aggregates graded submissions into listings, insights, and
// CSV exports.
type ResultService interface {
	ListResults(ctx context.Context, caller Identity, filter dto.ResultFilter) (dto.ResultListResponse, error)
	Insights(ctx context.Context, caller Identity, scope dto.InsightScope) (dto.InsightsResponse, error)
	ExportCSV(ctx context.Context, caller Identity, filter dto.ResultFilter, out io.Writer) error
}

type resultService struct {
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	courses     repository.CourseRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewResultService constructs a ResultService. cache may be nil, in which case
// insights are recomputed on every call.
func NewResultService(submissions repository.SubmissionRepository, questions repository.QuestionRepository, courses repository.CourseRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ResultService {
	return &resultService{
		submissions: submissions,
		questions:   questions,
		courses:     courses,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger.With().Str("component", "result_service").Logger(),
		tracer:      otel.Tracer("github.com/assessly/assess-api/internal/service/results"),
		now:         time.Now,
	}
}

// scopedFilter converts the API filter into a repository filter with role
// scoping applied on top.
func (s *resultService) scopedFilter(caller Identity, filter dto.ResultFilter) repository.SubmissionFilter {
	repoFilter := repository.SubmissionFilter{
		QuestionID:    filter.QuestionID,
		CourseID:      filter.CourseID,
		Status:        filter.Status,
		MinScore:      filter.MinScore,
		MaxScore:      filter.MaxScore,
		SubmittedFrom: filter.From,
		SubmittedTo:   filter.To,
	}

	switch caller.Role {
	case models.RoleStudent:
		repoFilter.StudentID = &caller.ID
	case models.RoleCourseAdmin:
		repoFilter.CourseAdminID = &caller.ID
	}

	return repoFilter
}

func (s *resultService) ListResults(ctx context.Context, caller Identity, filter dto.ResultFilter) (dto.ResultListResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return dto.ResultListResponse{}, err
	}

	if err := s.validator.Struct(filter); err != nil {
		return dto.ResultListResponse{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultResultPageSize
	}

	repoFilter := s.scopedFilter(caller, filter)
	repoFilter.Limit = pageSize
	repoFilter.Offset = (page - 1) * pageSize

	total, err := s.submissions.Count(ctx, repoFilter)
	if err != nil {
		return dto.ResultListResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return dto.ResultListResponse{}, err
	}

	return dto.ResultListResponse{
		Items:   dto.NewSubmissionResponseSlice(submissions),
		Total:   total,
		Page:    page,
		HasMore: int64(page*pageSize) < total,
	}, nil
}

// Insights computes aggregate statistics over completed submissions in the
// given scope. Results are cached per scope for a short TTL since every
// dashboard load requests them.
func (s *resultService) Insights(ctx context.Context, caller Identity, scope dto.InsightScope) (dto.InsightsResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.InsightsResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "results.insights")
	defer span.End()

	if err := s.authorizeScope(ctx, caller, scope); err != nil {
		return dto.InsightsResponse{}, err
	}

	cacheKey := s.insightsCacheKey(caller, scope)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var response dto.InsightsResponse
			if err := json.Unmarshal(cached, &response); err == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("insights cache read failed")
		}
	}

	repoFilter := repository.SubmissionFilter{
		QuestionID: scope.QuestionID,
		CourseID:   scope.CourseID,
	}
	if caller.Role == models.RoleCourseAdmin {
		repoFilter.CourseAdminID = &caller.ID
	}

	statusCounts, err := s.submissions.CountByStatus(ctx, repoFilter)
	if err != nil {
		return dto.InsightsResponse{}, err
	}

	completed := models.SubmissionStatusCompleted
	completedFilter := repoFilter
	completedFilter.Status = &completed

	graded, err := s.submissions.List(ctx, completedFilter)
	if err != nil {
		return dto.InsightsResponse{}, err
	}

	response := s.buildInsights(graded, statusCounts)
	span.SetAttributes(attribute.Int64("graded_count", response.GradedCount))

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("insights cache write failed")
			}
		}
	}

	return response, nil
}

func (s *resultService) buildInsights(graded []models.Submission, statusCounts map[string]int64) dto.InsightsResponse {
	var scoreSum float64
	differences := make(map[string]int64)
	similarities := make(map[string]int64)

	for _, submission := range graded {
		if submission.Score != nil {
			scoreSum += *submission.Score
		}

		var comparison dto.ComparisonPayload
		if len(submission.Comparison) > 0 {
			if err := json.Unmarshal(submission.Comparison, &comparison); err != nil {
				continue
			}
		}
		for _, entry := range comparison.Differences {
			differences[normalizePhrase(entry)]++
		}
		for _, entry := range comparison.Similarities {
			similarities[normalizePhrase(entry)]++
		}
	}

	response := dto.InsightsResponse{
		GradedCount:     int64(len(graded)),
		StatusCounts:    statusCounts,
		TopDifferences:  rankEntries(differences, insightTopN),
		TopSimilarities: rankEntries(similarities, insightTopN),
		GeneratedAt:     s.now().UTC(),
	}
	if len(graded) > 0 {
		response.AverageScore = scoreSum / float64(len(graded))
	}
	response.Recommendations = buildRecommendations(response)

	return response
}

// authorizeScope verifies a course admin only reads scopes they administer.
func (s *resultService) authorizeScope(ctx context.Context, caller Identity, scope dto.InsightScope) error {
	if caller.IsSuperAdmin() {
		return nil
	}

	if scope.CourseID != nil {
		course, err := s.courses.GetByID(ctx, *scope.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCourseNotFound
			}
			return err
		}
		if course.AdminID != caller.ID {
			return ErrForbidden
		}
	}

	if scope.QuestionID != nil {
		question, err := s.questions.GetByID(ctx, *scope.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}
		if question.Course.AdminID != caller.ID {
			return ErrForbidden
		}
	}

	return nil
}

func (s *resultService) insightsCacheKey(caller Identity, scope dto.InsightScope) string {
	var b strings.Builder
	b.WriteString("insights")
	if scope.CourseID != nil {
		fmt.Fprintf(&b, ":course:%d", *scope.CourseID)
	}
	if scope.QuestionID != nil {
		fmt.Fprintf(&b, ":question:%d", *scope.QuestionID)
	}
	if caller.Role == models.RoleCourseAdmin {
		fmt.Fprintf(&b, ":admin:%d", caller.ID)
	}
	return b.String()
}

// ExportCSV streams the filtered result set as CSV. Admin-only; the same
// role scoping as ListResults applies underneath.
func (s *resultService) ExportCSV(ctx context.Context, caller Identity, filter dto.ResultFilter, out io.Writer) error {
	if err := RequireAnyAdmin(caller); err != nil {
		return err
	}

	if err := s.validator.Struct(filter); err != nil {
		return err
	}

	repoFilter := s.scopedFilter(caller, filter)

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(out)
	header := []string{"submission_id", "question_id", "question_title", "student_id", "student_email", "status", "score", "confidence", "submitted_at", "processed_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, submission := range submissions {
		record := []string{
			strconv.FormatUint(uint64(submission.ID), 10),
			strconv.FormatUint(uint64(submission.QuestionID), 10),
			submission.Question.Title,
			strconv.FormatUint(uint64(submission.StudentID), 10),
			submission.Student.Email,
			submission.Status,
			formatFloat(submission.Score),
			formatFloat(submission.Confidence),
			submission.SubmittedAt.UTC().Format(time.RFC3339),
			formatTime(submission.ProcessedAt),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', 2, 64)
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func normalizePhrase(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

// rankEntries returns the top n phrases by count, ties broken alphabetically
// so output is stable.
func rankEntries(counts map[string]int64, n int) []dto.RankedEntry {
	entries := make([]dto.RankedEntry, 0, len(counts))
	for text, count := range counts {
		if text == "" {
			continue
		}
		entries = append(entries, dto.RankedEntry{Text: text, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Text < entries[j].Text
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// buildRecommendations derives coarse guidance from the aggregate numbers.
func buildRecommendations(insights dto.InsightsResponse) []string {
	var recommendations []string

	if insights.GradedCount == 0 {
		return []string{"no completed submissions yet; insights will appear once grading finishes"}
	}

	switch {
	case insights.AverageScore < 50:
		recommendations = append(recommendations, "average score is below 50; consider revisiting the material or clarifying the question criteria")
	case insights.AverageScore < 70:
		recommendations = append(recommendations, "average score is moderate; review the most common differences for targeted feedback")
	default:
		recommendations = append(recommendations, "average score is strong; the cohort has a good grasp of this material")
	}

	if failed := insights.StatusCounts[models.SubmissionStatusFailed]; failed > 0 {
		recommendations = append(recommendations, fmt.Sprintf("%d submissions failed grading and may need reprocessing", failed))
	}

	if len(insights.TopDifferences) > 0 {
		recommendations = append(recommendations, fmt.Sprintf("most common gap: %s", insights.TopDifferences[0].Text))
	}

	return recommendations
}
