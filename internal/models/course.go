package models

import "time"

// Course groups questions and enrollments under a single administering admin.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	AdminID     uint      `gorm:"not null;index" json:"admin_id"`
	CreatedByID uint      `gorm:"not null" json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Admin       User         `gorm:"foreignKey:AdminID" json:"admin"`
	Questions   []Question   `json:"questions,omitempty"`
	Enrollments []Enrollment `json:"enrollments,omitempty"`
}

// Enrollment links a student to a course. The pair is unique.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_course_student" json:"course_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_course_student" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`

	Course  Course `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Student User   `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
