package dto

import (
	"time"

	"github.com/assessly/assess-api/internal/models"
)

// CourseCreateRequest creates a new course.
type CourseCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=4000"`
	AdminID     uint   `json:"admin_id" validate:"omitempty,gt=0"`
}

// CourseUpdateRequest updates course fields; nil fields are left unchanged.
type CourseUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	IsActive    *bool   `json:"is_active"`
	AdminID     *uint   `json:"admin_id" validate:"omitempty,gt=0"`
}

// EnrollRequest enrolls a student into a course.
type EnrollRequest struct {
	StudentID uint `json:"student_id" validate:"required,gt=0"`
}

// CourseResponse is returned to API clients when viewing courses.
type CourseResponse struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	AdminID     uint         `json:"admin_id"`
	Admin       UserResponse `json:"admin,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// EnrollmentResponse serializes a course enrollment.
type EnrollmentResponse struct {
	ID        uint         `json:"id"`
	CourseID  uint         `json:"course_id"`
	StudentID uint         `json:"student_id"`
	Student   UserResponse `json:"student,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewCourseResponse converts a Course model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	response := CourseResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		IsActive:    model.IsActive,
		AdminID:     model.AdminID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if model.Admin.ID != 0 {
		response.Admin = NewUserResponse(model.Admin)
	}

	return response
}

// NewCourseResponseSlice converts course models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, NewCourseResponse(course))
	}

	return responses
}

// NewEnrollmentResponse converts an Enrollment model into a DTO.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	response := EnrollmentResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		StudentID: model.StudentID,
		CreatedAt: model.CreatedAt,
	}

	if model.Student.ID != 0 {
		response.Student = NewUserResponse(model.Student)
	}

	return response
}

// NewEnrollmentResponseSlice converts enrollment models into DTOs.
func NewEnrollmentResponseSlice(enrollments []models.Enrollment) []EnrollmentResponse {
	responses := make([]EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, NewEnrollmentResponse(enrollment))
	}

	return responses
}
