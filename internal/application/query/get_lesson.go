package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LESSON QUERY
// Отдаёт урок пациенту по ссылке из сообщения. Уже пройденный урок
// возвращается с пометкой: материал читается повторно, но форма
// ответов больше не показывается.
// ══════════════════════════════════════════════════════════════════════════════

// GetLessonQuery contains the request parameters.
type GetLessonQuery struct {
	// ContractID is the contract opening the lesson.
	ContractID int64

	// LessonID is the requested lesson.
	LessonID int64
}

// Validate validates the query.
func (q GetLessonQuery) Validate() error {
	if q.ContractID <= 0 {
		return errors.New("get_lesson: contract_id must be positive")
	}
	if q.LessonID <= 0 {
		return errors.New("get_lesson: lesson_id must be positive")
	}
	return nil
}

// LessonQuestionDTO - вопрос урока без эталонного ответа.
type LessonQuestionDTO struct {
	// ID is the question ID; the form posts answers keyed by it.
	ID int64 `json:"id"`

	// Text is the question text.
	Text string `json:"text"`

	// Points the question is worth.
	Points int `json:"points"`
}

// GetLessonResult contains the lesson view.
type GetLessonResult struct {
	// LessonID is the requested lesson.
	LessonID int64 `json:"lesson_id"`

	// CourseID is the course the lesson belongs to.
	CourseID int64 `json:"course_id"`

	// CourseTitle is the course title for the page header.
	CourseTitle string `json:"course_title"`

	// Ordinal is the lesson's position inside the course.
	Ordinal int `json:"ordinal"`

	// Title is the lesson title.
	Title string `json:"title"`

	// Text is the lesson material.
	Text string `json:"text"`

	// Questions are the check questions, reference answers stripped.
	Questions []LessonQuestionDTO `json:"questions"`

	// MaxPoints is the sum over all questions.
	MaxPoints int `json:"max_points"`

	// Completed is true when the contract already submitted this
	// lesson. The answer form must not be rendered.
	Completed bool `json:"completed"`

	// EarnedPoints are the points of the past submission (Completed only).
	EarnedPoints int `json:"earned_points,omitempty"`

	// GeneratedAt is when the view was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLessonHandler обрабатывает запрос урока.
type GetLessonHandler struct {
	courseRepo  course.Repository
	ledger      enrollment.Ledger
	completions enrollment.CompletionLedger
}

// NewGetLessonHandler создаёт новый обработчик.
func NewGetLessonHandler(
	courseRepo course.Repository,
	ledger enrollment.Ledger,
	completions enrollment.CompletionLedger,
) *GetLessonHandler {
	return &GetLessonHandler{
		courseRepo:  courseRepo,
		ledger:      ledger,
		completions: completions,
	}
}

// Handle выполняет запрос.
func (h *GetLessonHandler) Handle(ctx context.Context, q GetLessonQuery) (*GetLessonResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_lesson: validation failed: %w", err)
	}

	contractID := contract.ID(q.ContractID)
	lessonID := course.LessonID(q.LessonID)

	lesson, err := h.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, course.ErrLessonNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("get_lesson: failed to load lesson: %w", err)
	}

	// A lesson link only makes sense for an enrolled contract.
	enrolled, err := h.ledger.IsEnrolled(ctx, contractID, lesson.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson: failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, shared.ErrNotEnrolled
	}

	parent, err := h.courseRepo.GetByID(ctx, lesson.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson: failed to load course: %w", err)
	}

	result := &GetLessonResult{
		LessonID:    q.LessonID,
		CourseID:    lesson.CourseID.Int64(),
		CourseTitle: parent.Title,
		Ordinal:     lesson.Ordinal,
		Title:       lesson.Title,
		Text:        lesson.Text,
		Questions:   make([]LessonQuestionDTO, 0, len(lesson.Questions)),
		MaxPoints:   lesson.MaxPoints(),
		GeneratedAt: time.Now().UTC(),
	}
	for _, question := range lesson.Questions {
		result.Questions = append(result.Questions, LessonQuestionDTO{
			ID:     question.ID,
			Text:   question.Text,
			Points: question.Points,
		})
	}

	done, err := h.completions.HasCompleted(ctx, contractID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson: failed to check completion: %w", err)
	}
	if done {
		result.Completed = true
		// Show the past score next to the "already passed" marker.
		records, err := h.completions.ListByContract(ctx, contractID)
		if err == nil {
			for _, record := range records {
				if record.LessonID == lessonID {
					result.EarnedPoints = record.Points
					break
				}
			}
		}
	}

	return result, nil
}
