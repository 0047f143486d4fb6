package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
)

type submissionFixture struct {
	users       *fakeUserRepo
	courses     *fakeCourseRepo
	questions   *fakeQuestionRepo
	submissions *fakeSubmissionRepo
	queue       *stubQueue
	service     SubmissionService

	admin    Identity
	student  Identity
	question models.Question
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()

	users := newFakeUserRepo()
	courses := newFakeCourseRepo()
	questions := newFakeQuestionRepo(courses)
	submissions := newFakeSubmissionRepo(questions, users)
	queue := &stubQueue{}

	admin := models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleCourseAdmin}
	require.NoError(t, users.Create(context.Background(), &admin))
	student := models.User{Name: "Student", Email: "student@example.com", Role: models.RoleStudent}
	require.NoError(t, users.Create(context.Background(), &student))

	course := models.Course{Name: "Algorithms", IsActive: true, AdminID: admin.ID}
	require.NoError(t, courses.Create(context.Background(), &course))

	require.NoError(t, courses.Enroll(context.Background(), &models.Enrollment{
		CourseID:  course.ID,
		StudentID: student.ID,
	}))

	question := models.Question{
		CourseID:       course.ID,
		Title:          "Explain quicksort",
		SubmissionKind: models.SubmissionKindText,
		IsActive:       true,
	}
	require.NoError(t, questions.Create(context.Background(), &question))

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewSubmissionService(submissions, questions, courses, queue, validate, testLogger())

	return &submissionFixture{
		users:       users,
		courses:     courses,
		questions:   questions,
		submissions: submissions,
		queue:       queue,
		service:     svc,
		admin:       Identity{ID: admin.ID, Role: models.RoleCourseAdmin},
		student:     Identity{ID: student.ID, Role: models.RoleStudent},
		question:    question,
	}
}

func strPtr(s string) *string { return &s }

func TestSubmissionCreateSchedulesGrading(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("pick a pivot, partition, recurse"),
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, created.Status)
	require.NotNil(t, created.Content)
	require.Nil(t, created.Score)
	require.Equal(t, []uint{created.ID}, f.queue.enqueued)
}

func TestSubmissionCreateRequiresEnrollment(t *testing.T) {
	f := newSubmissionFixture(t)

	outsider := models.User{Name: "Outsider", Email: "out@example.com", Role: models.RoleStudent}
	require.NoError(t, f.users.Create(context.Background(), &outsider))

	_, err := f.service.Create(context.Background(), Identity{ID: outsider.ID, Role: models.RoleStudent}, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("an answer"),
	})
	require.ErrorIs(t, err, ErrNotEnrolled)
	require.Empty(t, f.queue.enqueued)
}

func TestSubmissionCreateRejectsInactiveQuestion(t *testing.T) {
	f := newSubmissionFixture(t)

	question := f.questions.questions[f.question.ID]
	question.IsActive = false
	f.questions.questions[f.question.ID] = question

	_, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("an answer"),
	})
	require.ErrorIs(t, err, ErrQuestionInactive)
}

func TestSubmissionCreateRejectsKindMismatch(t *testing.T) {
	f := newSubmissionFixture(t)

	// Question expects text; only a github url is provided.
	_, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		GitHubURL:  strPtr("https://github.com/acme/solution"),
	})
	require.ErrorIs(t, err, ErrInvalidContent)
}

func TestSubmissionCreateForbiddenForAdmins(t *testing.T) {
	f := newSubmissionFixture(t)

	_, err := f.service.Create(context.Background(), f.admin, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("an answer"),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSubmissionUpdateRejectedWhileProcessing(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("first answer"),
	})
	require.NoError(t, err)

	swapped, err := f.submissions.UpdateStatusIf(context.Background(), created.ID, models.SubmissionStatusPending, models.SubmissionStatusProcessing)
	require.NoError(t, err)
	require.True(t, swapped)

	_, err = f.service.Update(context.Background(), f.student, created.ID, dto.SubmissionUpdateRequest{
		Content: strPtr("second answer"),
	})
	require.ErrorIs(t, err, ErrSubmissionLocked)
}

func TestSubmissionUpdateResetsGrading(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("first answer"),
	})
	require.NoError(t, err)

	// Simulate a completed grading pass.
	stored, err := f.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	score := 88.0
	stored.Status = models.SubmissionStatusCompleted
	stored.Score = &score
	require.NoError(t, f.submissions.Update(context.Background(), &stored))

	updated, err := f.service.Update(context.Background(), f.student, created.ID, dto.SubmissionUpdateRequest{
		Content: strPtr("revised answer"),
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, updated.Status)
	require.Nil(t, updated.Score)
	require.Nil(t, updated.ProcessedAt)
	require.Equal(t, "revised answer", *updated.Content)
	require.Len(t, f.queue.enqueued, 2)
}

func TestSubmissionUpdateSameContentIsNoOp(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("same answer"),
	})
	require.NoError(t, err)

	_, err = f.service.Update(context.Background(), f.student, created.ID, dto.SubmissionUpdateRequest{
		Content: strPtr("same answer"),
	})
	require.NoError(t, err)
	require.Len(t, f.queue.enqueued, 1)
}

func TestSubmissionUpdateForbiddenForOtherStudents(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("answer"),
	})
	require.NoError(t, err)

	other := models.User{Name: "Other", Email: "other@example.com", Role: models.RoleStudent}
	require.NoError(t, f.users.Create(context.Background(), &other))

	_, err = f.service.Update(context.Background(), Identity{ID: other.ID, Role: models.RoleStudent}, created.ID, dto.SubmissionUpdateRequest{
		Content: strPtr("hijacked"),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSubmissionListScopedByRole(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("answer"),
	})
	require.NoError(t, err)

	other := models.User{Name: "Other", Email: "other@example.com", Role: models.RoleStudent}
	require.NoError(t, f.users.Create(context.Background(), &other))

	mine, err := f.service.List(context.Background(), f.student, dto.SubmissionFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, created.ID, mine[0].ID)

	theirs, err := f.service.List(context.Background(), Identity{ID: other.ID, Role: models.RoleStudent}, dto.SubmissionFilter{})
	require.NoError(t, err)
	require.Empty(t, theirs)

	admins, err := f.service.List(context.Background(), f.admin, dto.SubmissionFilter{})
	require.NoError(t, err)
	require.Len(t, admins, 1)
}

func TestSubmissionReprocessAdminOnly(t *testing.T) {
	f := newSubmissionFixture(t)

	created, err := f.service.Create(context.Background(), f.student, dto.SubmissionCreateRequest{
		QuestionID: f.question.ID,
		Content:    strPtr("answer"),
	})
	require.NoError(t, err)

	_, err = f.service.Reprocess(context.Background(), f.student, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	reprocessed, err := f.service.Reprocess(context.Background(), f.admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, reprocessed.Status)
	require.Len(t, f.queue.enqueued, 2)
}
