package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
)

func seedGradedSubmissions(t *testing.T, f *submissionFixture) {
	t.Helper()

	scores := []float64{90, 60, 30}
	diffs := [][]string{
		{"missing base case", "no complexity analysis"},
		{"missing base case"},
		{"wrong pivot choice"},
	}

	for i, score := range scores {
		comparison, err := json.Marshal(dto.ComparisonPayload{
			Similarities: []string{"partition step"},
			Differences:  diffs[i],
		})
		require.NoError(t, err)

		s := score
		processed := time.Now()
		submission := models.Submission{
			QuestionID:  f.question.ID,
			StudentID:   f.student.ID,
			Status:      models.SubmissionStatusCompleted,
			Score:       &s,
			Comparison:  datatypes.JSON(comparison),
			SubmittedAt: time.Now().Add(-time.Hour),
			ProcessedAt: &processed,
		}
		submission.SetContent(models.SubmissionContent{Kind: models.SubmissionKindText, Value: "answer"})
		require.NoError(t, f.submissions.Create(context.Background(), &submission))
	}

	pending := models.Submission{
		QuestionID:  f.question.ID,
		StudentID:   f.student.ID,
		Status:      models.SubmissionStatusPending,
		SubmittedAt: time.Now(),
	}
	pending.SetContent(models.SubmissionContent{Kind: models.SubmissionKindText, Value: "late answer"})
	require.NoError(t, f.submissions.Create(context.Background(), &pending))
}

func newResultService(t *testing.T, f *submissionFixture, cache *redis.Client) ResultService {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewResultService(f.submissions, f.questions, f.courses, cache, time.Minute, validate, testLogger())
}

func TestListResultsPagination(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)
	svc := newResultService(t, f, nil)

	page1, err := svc.ListResults(context.Background(), f.admin, dto.ResultFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(4), page1.Total)
	require.Len(t, page1.Items, 2)
	require.True(t, page1.HasMore)

	page2, err := svc.ListResults(context.Background(), f.admin, dto.ResultFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	require.False(t, page2.HasMore)
}

func TestListResultsScoreFilter(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)
	svc := newResultService(t, f, nil)

	min := 50.0
	results, err := svc.ListResults(context.Background(), f.admin, dto.ResultFilter{MinScore: &min})
	require.NoError(t, err)
	require.Equal(t, int64(2), results.Total)
	for _, item := range results.Items {
		require.NotNil(t, item.Score)
		require.GreaterOrEqual(t, *item.Score, min)
	}
}

func TestListResultsStudentSeesOnlyOwn(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)

	other := models.User{Name: "Other", Email: "other@example.com", Role: models.RoleStudent}
	require.NoError(t, f.users.Create(context.Background(), &other))

	svc := newResultService(t, f, nil)

	results, err := svc.ListResults(context.Background(), Identity{ID: other.ID, Role: models.RoleStudent}, dto.ResultFilter{})
	require.NoError(t, err)
	require.Zero(t, results.Total)
}

func TestInsightsAggregation(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)
	svc := newResultService(t, f, nil)

	insights, err := svc.Insights(context.Background(), f.admin, dto.InsightScope{})
	require.NoError(t, err)
	require.Equal(t, int64(3), insights.GradedCount)
	require.InDelta(t, 60.0, insights.AverageScore, 0.001)
	require.Equal(t, int64(3), insights.StatusCounts[models.SubmissionStatusCompleted])
	require.Equal(t, int64(1), insights.StatusCounts[models.SubmissionStatusPending])

	require.NotEmpty(t, insights.TopDifferences)
	require.Equal(t, "missing base case", insights.TopDifferences[0].Text)
	require.Equal(t, int64(2), insights.TopDifferences[0].Count)
	require.NotEmpty(t, insights.Recommendations)
	require.False(t, insights.CacheHit)
}

func TestInsightsForbiddenForStudents(t *testing.T) {
	f := newSubmissionFixture(t)
	svc := newResultService(t, f, nil)

	_, err := svc.Insights(context.Background(), f.student, dto.InsightScope{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestInsightsScopeOwnershipEnforced(t *testing.T) {
	f := newSubmissionFixture(t)

	otherAdmin := models.User{Name: "Rival", Email: "rival@example.com", Role: models.RoleCourseAdmin}
	require.NoError(t, f.users.Create(context.Background(), &otherAdmin))

	svc := newResultService(t, f, nil)

	courseID := f.question.CourseID
	_, err := svc.Insights(context.Background(), Identity{ID: otherAdmin.ID, Role: models.RoleCourseAdmin}, dto.InsightScope{CourseID: &courseID})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestInsightsCached(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	svc := newResultService(t, f, cache)

	first, err := svc.Insights(context.Background(), f.admin, dto.InsightScope{})
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := svc.Insights(context.Background(), f.admin, dto.InsightScope{})
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.GradedCount, second.GradedCount)
	require.InDelta(t, first.AverageScore, second.AverageScore, 0.001)
}

func TestExportCSV(t *testing.T) {
	f := newSubmissionFixture(t)
	seedGradedSubmissions(t, f)
	svc := newResultService(t, f, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), f.admin, dto.ResultFilter{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	require.Contains(t, lines[0], "submission_id")
	require.Contains(t, lines[0], "score")

	err := svc.ExportCSV(context.Background(), f.student, dto.ResultFilter{}, &buf)
	require.ErrorIs(t, err, ErrForbidden)
}
