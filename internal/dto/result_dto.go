package dto

import "time"

// ResultFilter narrows result listings. All fields are optional; role scoping
// is applied on top by the service.
type ResultFilter struct {
	QuestionID *uint      `query:"question_id"`
	CourseID   *uint      `query:"course_id"`
	Status     *string    `query:"status" validate:"omitempty,oneof=pending processing completed failed"`
	MinScore   *float64   `query:"min_score" validate:"omitempty,gte=0,lte=100"`
	MaxScore   *float64   `query:"max_score" validate:"omitempty,gte=0,lte=100"`
	From       *time.Time `query:"from"`
	To         *time.Time `query:"to"`
	Page       int        `query:"page" validate:"omitempty,gte=1"`
	PageSize   int        `query:"page_size" validate:"omitempty,gte=1,lte=200"`
}

// ResultListResponse pages through graded submissions.
type ResultListResponse struct {
	Items   []SubmissionResponse `json:"items"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	HasMore bool                 `json:"has_more"`
}

// InsightScope limits insight aggregation to a course or question.
type InsightScope struct {
	CourseID   *uint `query:"course_id"`
	QuestionID *uint `query:"question_id"`
}

// RankedEntry is a comparison phrase with its occurrence count.
type RankedEntry struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// InsightsResponse carries derived statistics over completed submissions.
type InsightsResponse struct {
	AverageScore    float64          `json:"average_score"`
	GradedCount     int64            `json:"graded_count"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	TopDifferences  []RankedEntry    `json:"top_differences"`
	TopSimilarities []RankedEntry    `json:"top_similarities"`
	Recommendations []string         `json:"recommendations"`
	CacheHit        bool             `json:"cache_hit,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
