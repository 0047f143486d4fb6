package service

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
	"github.com/assessly/assess-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeUserRepo struct {
	users  map[uint]models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint]models.User{}, nextID: 1}
}

func (f *fakeUserRepo) List(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uint) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, id uint, role string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.Role = role
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id uint) error {
	delete(f.users, id)
	return nil
}

type enrollmentKey struct {
	courseID  uint
	studentID uint
}

type fakeCourseRepo struct {
	courses     map[uint]models.Course
	enrollments map[enrollmentKey]models.Enrollment
	nextID      uint
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses:     map[uint]models.Course{},
		enrollments: map[enrollmentKey]models.Enrollment{},
		nextID:      1,
	}
}

func (f *fakeCourseRepo) List(ctx context.Context, filter repository.CourseFilter) ([]models.Course, error) {
	courses := make([]models.Course, 0, len(f.courses))
	for _, course := range f.courses {
		if filter.AdminID != nil && course.AdminID != *filter.AdminID {
			continue
		}
		if filter.IsActive != nil && course.IsActive != *filter.IsActive {
			continue
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func (f *fakeCourseRepo) GetByID(ctx context.Context, id uint) (models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = f.nextID
	f.nextID++
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeCourseRepo) Delete(ctx context.Context, id uint) error {
	delete(f.courses, id)
	return nil
}

func (f *fakeCourseRepo) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = f.nextID
	f.nextID++
	f.enrollments[enrollmentKey{enrollment.CourseID, enrollment.StudentID}] = *enrollment
	return nil
}

func (f *fakeCourseRepo) Unenroll(ctx context.Context, courseID, studentID uint) error {
	delete(f.enrollments, enrollmentKey{courseID, studentID})
	return nil
}

func (f *fakeCourseRepo) GetEnrollment(ctx context.Context, courseID, studentID uint) (models.Enrollment, error) {
	enrollment, ok := f.enrollments[enrollmentKey{courseID, studentID}]
	if !ok {
		return models.Enrollment{}, gorm.ErrRecordNotFound
	}
	return enrollment, nil
}

func (f *fakeCourseRepo) ListEnrollments(ctx context.Context, courseID uint) ([]models.Enrollment, error) {
	enrollments := make([]models.Enrollment, 0)
	for key, enrollment := range f.enrollments {
		if key.courseID == courseID {
			enrollments = append(enrollments, enrollment)
		}
	}
	return enrollments, nil
}

type fakeQuestionRepo struct {
	questions map[uint]models.Question
	examples  map[uint]models.BaseExample
	courses   *fakeCourseRepo
	nextID    uint
}

func newFakeQuestionRepo(courses *fakeCourseRepo) *fakeQuestionRepo {
	return &fakeQuestionRepo{
		questions: map[uint]models.Question{},
		examples:  map[uint]models.BaseExample{},
		courses:   courses,
		nextID:    1,
	}
}

// hydrate fills the associations the gorm repository would preload.
func (f *fakeQuestionRepo) hydrate(question models.Question) models.Question {
	if f.courses != nil {
		if course, ok := f.courses.courses[question.CourseID]; ok {
			question.Course = course
		}
	}
	if example, ok := f.examples[question.ID]; ok {
		copied := example
		question.BaseExample = &copied
	} else {
		question.BaseExample = nil
	}
	return question
}

func (f *fakeQuestionRepo) List(ctx context.Context, filter repository.QuestionFilter) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(f.questions))
	for _, question := range f.questions {
		if filter.CourseID != nil && question.CourseID != *filter.CourseID {
			continue
		}
		if filter.IsActive != nil && question.IsActive != *filter.IsActive {
			continue
		}
		questions = append(questions, f.hydrate(question))
	}
	return questions, nil
}

func (f *fakeQuestionRepo) GetByID(ctx context.Context, id uint) (models.Question, error) {
	question, ok := f.questions[id]
	if !ok {
		return models.Question{}, gorm.ErrRecordNotFound
	}
	return f.hydrate(question), nil
}

func (f *fakeQuestionRepo) Create(ctx context.Context, question *models.Question) error {
	question.ID = f.nextID
	f.nextID++
	f.questions[question.ID] = *question
	return nil
}

func (f *fakeQuestionRepo) Update(ctx context.Context, question *models.Question) error {
	stored := *question
	stored.BaseExample = nil
	f.questions[question.ID] = stored
	return nil
}

func (f *fakeQuestionRepo) Delete(ctx context.Context, id uint) error {
	delete(f.questions, id)
	delete(f.examples, id)
	return nil
}

func (f *fakeQuestionRepo) UpsertBaseExample(ctx context.Context, example *models.BaseExample) error {
	if existing, ok := f.examples[example.QuestionID]; ok {
		example.ID = existing.ID
	} else {
		example.ID = f.nextID
		f.nextID++
	}
	f.examples[example.QuestionID] = *example
	return nil
}

func (f *fakeQuestionRepo) GetBaseExample(ctx context.Context, questionID uint) (models.BaseExample, error) {
	example, ok := f.examples[questionID]
	if !ok {
		return models.BaseExample{}, gorm.ErrRecordNotFound
	}
	return example, nil
}

func (f *fakeQuestionRepo) DeleteBaseExample(ctx context.Context, questionID uint) error {
	delete(f.examples, questionID)
	return nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uint]models.Submission
	questions   *fakeQuestionRepo
	users       *fakeUserRepo
	nextID      uint
}

func newFakeSubmissionRepo(questions *fakeQuestionRepo, users *fakeUserRepo) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: map[uint]models.Submission{},
		questions:   questions,
		users:       users,
		nextID:      1,
	}
}

func (f *fakeSubmissionRepo) hydrate(submission models.Submission) models.Submission {
	if f.questions != nil {
		if question, ok := f.questions.questions[submission.QuestionID]; ok {
			submission.Question = f.questions.hydrate(question)
		}
	}
	if f.users != nil {
		if user, ok := f.users.users[submission.StudentID]; ok {
			submission.Student = user
		}
	}
	return submission
}

func (f *fakeSubmissionRepo) matches(submission models.Submission, filter repository.SubmissionFilter) bool {
	if filter.QuestionID != nil && submission.QuestionID != *filter.QuestionID {
		return false
	}
	if filter.StudentID != nil && submission.StudentID != *filter.StudentID {
		return false
	}
	if filter.Status != nil && submission.Status != *filter.Status {
		return false
	}
	if filter.MinScore != nil && (submission.Score == nil || *submission.Score < *filter.MinScore) {
		return false
	}
	if filter.MaxScore != nil && (submission.Score == nil || *submission.Score > *filter.MaxScore) {
		return false
	}
	if filter.SubmittedFrom != nil && submission.SubmittedAt.Before(*filter.SubmittedFrom) {
		return false
	}
	if filter.SubmittedTo != nil && submission.SubmittedAt.After(*filter.SubmittedTo) {
		return false
	}
	hydrated := f.hydrate(submission)
	if filter.CourseID != nil && hydrated.Question.CourseID != *filter.CourseID {
		return false
	}
	if filter.CourseAdminID != nil && hydrated.Question.Course.AdminID != *filter.CourseAdminID {
		return false
	}
	return true
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	submissions := make([]models.Submission, 0, len(f.submissions))
	for _, submission := range f.submissions {
		if f.matches(submission, filter) {
			submissions = append(submissions, f.hydrate(submission))
		}
	}

	sort.Slice(submissions, func(i, j int) bool { return submissions[i].ID < submissions[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(submissions) {
			return nil, nil
		}
		submissions = submissions[filter.Offset:]
	}
	if filter.Limit > 0 && len(submissions) > filter.Limit {
		submissions = submissions[:filter.Limit]
	}

	return submissions, nil
}

func (f *fakeSubmissionRepo) Count(ctx context.Context, filter repository.SubmissionFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var total int64
	for _, submission := range f.submissions {
		if f.matches(submission, filter) {
			total++
		}
	}
	return total, nil
}

func (f *fakeSubmissionRepo) CountByStatus(ctx context.Context, filter repository.SubmissionFilter) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	filter.Status = nil
	counts := map[string]int64{}
	for _, submission := range f.submissions {
		if f.matches(submission, filter) {
			counts[submission.Status]++
		}
	}
	return counts, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return f.hydrate(submission), nil
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission.ID = f.nextID
	f.nextID++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *submission
	stored.Question = models.Question{}
	stored.Student = models.User{}
	f.submissions[submission.ID] = stored
	return nil
}

func (f *fakeSubmissionRepo) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.submissions, id)
	return nil
}

func (f *fakeSubmissionRepo) UpdateStatusIf(ctx context.Context, id uint, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission, ok := f.submissions[id]
	if !ok || submission.Status != from {
		return false, nil
	}
	submission.Status = to
	f.submissions[id] = submission
	return true, nil
}

func (f *fakeSubmissionRepo) ResetGrading(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission, ok := f.submissions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	submission.Status = models.SubmissionStatusPending
	submission.Score = nil
	submission.Feedback = nil
	submission.Confidence = nil
	submission.Comparison = nil
	submission.ProcessedAt = nil
	f.submissions[id] = submission
	return nil
}

type stubQueue struct {
	enqueued []uint
}

func (q *stubQueue) Enqueue(ctx context.Context, submissionID uint) error {
	q.enqueued = append(q.enqueued, submissionID)
	return nil
}

type stubAssessor struct {
	mu     sync.Mutex
	result ai.AssessmentResult
	err    error
	inputs []ai.AssessmentInput
}

func (a *stubAssessor) Assess(ctx context.Context, input ai.AssessmentInput) (ai.AssessmentResult, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	a.mu.Unlock()

	if a.err != nil {
		return ai.AssessmentResult{}, a.err
	}
	return a.result, nil
}
