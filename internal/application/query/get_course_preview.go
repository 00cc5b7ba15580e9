package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/shared"
	"github.com/medsenger/education-agent/pkg/plural"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE PREVIEW QUERY
// Отдаёт врачу содержание курса: список уроков с вопросами и баллами.
// Эталонные ответы видны - превью предназначено врачу, не пациенту.
// ══════════════════════════════════════════════════════════════════════════════

// GetCoursePreviewQuery contains the request parameters.
type GetCoursePreviewQuery struct {
	// CourseID is the course to preview.
	CourseID int64
}

// Validate validates the query.
func (q GetCoursePreviewQuery) Validate() error {
	if q.CourseID <= 0 {
		return errors.New("get_course_preview: course_id must be positive")
	}
	return nil
}

// PreviewQuestionDTO - вопрос с эталонным ответом для врача.
type PreviewQuestionDTO struct {
	// ID is the question ID.
	ID int64 `json:"id"`

	// Text is the question text.
	Text string `json:"text"`

	// Answer is the reference answer.
	Answer string `json:"answer"`

	// Points the question is worth.
	Points int `json:"points"`
}

// PreviewLessonDTO - урок в превью курса.
type PreviewLessonDTO struct {
	// ID is the lesson ID.
	ID int64 `json:"id"`

	// Ordinal is the lesson's position inside the course.
	Ordinal int `json:"ordinal"`

	// Title is the lesson title.
	Title string `json:"title"`

	// Text is the lesson material.
	Text string `json:"text"`

	// Questions with reference answers.
	Questions []PreviewQuestionDTO `json:"questions"`

	// MaxPoints is the sum over all questions.
	MaxPoints int `json:"max_points"`
}

// GetCoursePreviewResult contains the preview.
type GetCoursePreviewResult struct {
	// CourseID is the previewed course.
	CourseID int64 `json:"course_id"`

	// Title is the course title.
	Title string `json:"title"`

	// Description is the course description.
	Description string `json:"description,omitempty"`

	// Lessons in course order.
	Lessons []PreviewLessonDTO `json:"lessons"`

	// LessonCountFormatted, e.g. "5 уроков".
	LessonCountFormatted string `json:"lesson_count_formatted"`

	// TotalMaxPoints is the ceiling over the whole course.
	TotalMaxPoints int `json:"total_max_points"`

	// GeneratedAt is when the preview was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetCoursePreviewHandler обрабатывает запрос превью курса.
type GetCoursePreviewHandler struct {
	courseRepo course.Repository
}

// NewGetCoursePreviewHandler создаёт новый обработчик.
func NewGetCoursePreviewHandler(courseRepo course.Repository) *GetCoursePreviewHandler {
	return &GetCoursePreviewHandler{courseRepo: courseRepo}
}

// Handle выполняет запрос.
func (h *GetCoursePreviewHandler) Handle(ctx context.Context, q GetCoursePreviewQuery) (*GetCoursePreviewResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_course_preview: validation failed: %w", err)
	}

	courseID := course.ID(q.CourseID)

	c, err := h.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("get_course_preview: failed to load course: %w", err)
	}

	lessons, err := h.courseRepo.ListLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_preview: failed to list lessons: %w", err)
	}

	result := &GetCoursePreviewResult{
		CourseID:             q.CourseID,
		Title:                c.Title,
		Description:          c.Description,
		Lessons:              make([]PreviewLessonDTO, 0, len(lessons)),
		LessonCountFormatted: plural.Format(len(lessons), plural.Lessons),
		GeneratedAt:          time.Now().UTC(),
	}

	for _, lesson := range lessons {
		dto := PreviewLessonDTO{
			ID:        lesson.ID.Int64(),
			Ordinal:   lesson.Ordinal,
			Title:     lesson.Title,
			Text:      lesson.Text,
			Questions: make([]PreviewQuestionDTO, 0, len(lesson.Questions)),
			MaxPoints: lesson.MaxPoints(),
		}
		for _, question := range lesson.Questions {
			dto.Questions = append(dto.Questions, PreviewQuestionDTO{
				ID:     question.ID,
				Text:   question.Text,
				Answer: question.Answer,
				Points: question.Points,
			})
		}
		result.Lessons = append(result.Lessons, dto)
		result.TotalMaxPoints += dto.MaxPoints
	}

	return result, nil
}
