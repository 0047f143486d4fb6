package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
)

// ErrCourseNotFound indicates a course could not be located.
var ErrCourseNotFound = errors.New("course not found")

// ErrAlreadyEnrolled indicates the student already holds an enrollment.
var ErrAlreadyEnrolled = errors.New("student already enrolled")

// ErrEnrollmentNotFound indicates the enrollment pair does not exist.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// CourseService manages courses and their enrollments.
type CourseService interface {
	List(ctx context.Context, caller Identity) ([]dto.CourseResponse, error)
	Get(ctx context.Context, caller Identity, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, caller Identity, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, caller Identity, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, caller Identity, id uint) error

	Enroll(ctx context.Context, caller Identity, courseID uint, payload dto.EnrollRequest) (dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, caller Identity, courseID, studentID uint) error
	ListEnrollments(ctx context.Context, caller Identity, courseID uint) ([]dto.EnrollmentResponse, error)
}

type courseService struct {
	courses   repository.CourseRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(courses repository.CourseRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		courses:   courses,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

// canAdminister reports whether the caller administers the given course.
func canAdminister(caller Identity, course models.Course) bool {
	if caller.IsSuperAdmin() {
		return true
	}
	return caller.Role == models.RoleCourseAdmin && course.AdminID == caller.ID
}

func (s *courseService) List(ctx context.Context, caller Identity) ([]dto.CourseResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	filter := repository.CourseFilter{}
	switch caller.Role {
	case models.RoleCourseAdmin:
		filter.AdminID = &caller.ID
	case models.RoleStudent:
		active := true
		filter.IsActive = &active
	}

	courses, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) Get(ctx context.Context, caller Identity, id uint) (dto.CourseResponse, error) {
	if err := RequireAuthenticated(caller); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, caller Identity, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.CourseResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	// Course admins own what they create; super admins may assign another admin.
	adminID := caller.ID
	if payload.AdminID != 0 {
		if !caller.IsSuperAdmin() {
			return dto.CourseResponse{}, ErrForbidden
		}
		admin, err := s.users.GetByID(ctx, payload.AdminID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CourseResponse{}, ErrUserNotFound
			}
			return dto.CourseResponse{}, err
		}
		if !admin.IsAdmin() {
			return dto.CourseResponse{}, ErrForbidden
		}
		adminID = payload.AdminID
	}

	course := models.Course{
		Name:        payload.Name,
		Description: payload.Description,
		IsActive:    true,
		AdminID:     adminID,
		CreatedByID: caller.ID,
	}

	if err := s.courses.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	created, err := s.courses.GetByID(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("admin_id", adminID).Msg("course created")

	return dto.NewCourseResponse(created), nil
}

func (s *courseService) Update(ctx context.Context, caller Identity, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.CourseResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	if !canAdminister(caller, course) {
		return dto.CourseResponse{}, ErrForbidden
	}

	if payload.Name != nil {
		course.Name = *payload.Name
	}
	if payload.Description != nil {
		course.Description = *payload.Description
	}
	if payload.IsActive != nil {
		course.IsActive = *payload.IsActive
	}
	if payload.AdminID != nil {
		if !caller.IsSuperAdmin() {
			return dto.CourseResponse{}, ErrForbidden
		}
		course.AdminID = *payload.AdminID
	}

	if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	updated, err := s.courses.GetByID(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Msg("course updated")

	return dto.NewCourseResponse(updated), nil
}

func (s *courseService) Delete(ctx context.Context, caller Identity, id uint) error {
	if err := RequireAnyAdmin(caller); err != nil {
		return err
	}

	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	if !canAdminister(caller, course) {
		return ErrForbidden
	}

	return s.courses.Delete(ctx, id)
}

func (s *courseService) Enroll(ctx context.Context, caller Identity, courseID uint, payload dto.EnrollRequest) (dto.EnrollmentResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrCourseNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	if !canAdminister(caller, course) {
		return dto.EnrollmentResponse{}, ErrForbidden
	}

	student, err := s.users.GetByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrUserNotFound
		}
		return dto.EnrollmentResponse{}, err
	}
	if student.Role != models.RoleStudent {
		return dto.EnrollmentResponse{}, ErrForbidden
	}

	if _, err := s.courses.GetEnrollment(ctx, courseID, payload.StudentID); err == nil {
		return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollmentResponse{}, err
	}

	enrollment := models.Enrollment{
		CourseID:  courseID,
		StudentID: payload.StudentID,
	}

	if err := s.courses.Enroll(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	s.logger.Info().Uint("course_id", courseID).Uint("student_id", payload.StudentID).Msg("student enrolled")

	enrollment.Student = student
	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *courseService) Unenroll(ctx context.Context, caller Identity, courseID, studentID uint) error {
	if err := RequireAnyAdmin(caller); err != nil {
		return err
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	if !canAdminister(caller, course) {
		return ErrForbidden
	}

	if _, err := s.courses.GetEnrollment(ctx, courseID, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEnrollmentNotFound
		}
		return err
	}

	return s.courses.Unenroll(ctx, courseID, studentID)
}

func (s *courseService) ListEnrollments(ctx context.Context, caller Identity, courseID uint) ([]dto.EnrollmentResponse, error) {
	if err := RequireAnyAdmin(caller); err != nil {
		return nil, err
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	if !canAdminister(caller, course) {
		return nil, ErrForbidden
	}

	enrollments, err := s.courses.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewEnrollmentResponseSlice(enrollments), nil
}
