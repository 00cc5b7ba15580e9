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
	"github.com/medsenger/education-agent/pkg/plural"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CONTRACT COURSES QUERY
// Собирает данные для страницы настроек и страницы курсов пациента:
// весь каталог с пометками, на что контракт подписан и сколько
// баллов набрано.
// ══════════════════════════════════════════════════════════════════════════════

// GetContractCoursesQuery contains the request parameters.
type GetContractCoursesQuery struct {
	// ContractID is the contract whose view is being built.
	ContractID int64

	// EnrolledOnly limits the result to courses the contract is
	// enrolled in (the patient page). The settings page shows all.
	EnrolledOnly bool
}

// Validate validates the query.
func (q GetContractCoursesQuery) Validate() error {
	if q.ContractID <= 0 {
		return errors.New("get_contract_courses: contract_id must be positive")
	}
	return nil
}

// ContractCourseDTO - курс глазами конкретного контракта.
type ContractCourseDTO struct {
	// ID is the course ID.
	ID int64 `json:"id"`

	// Title is the course title.
	Title string `json:"title"`

	// Description is the course description.
	Description string `json:"description,omitempty"`

	// LessonCount is the number of lessons in the course.
	LessonCount int `json:"lesson_count"`

	// LessonCountFormatted, e.g. "5 уроков".
	LessonCountFormatted string `json:"lesson_count_formatted"`

	// Enrolled is true when the contract is subscribed to the course.
	Enrolled bool `json:"enrolled"`

	// Points earned by the contract in this course (enrolled only).
	Points int `json:"points"`

	// PointsFormatted, e.g. "3 балла" (enrolled only).
	PointsFormatted string `json:"points_formatted,omitempty"`
}

// GetContractCoursesResult contains the result of the query.
type GetContractCoursesResult struct {
	// ContractID is the requested contract.
	ContractID int64 `json:"contract_id"`

	// Courses is the catalog annotated with enrollment state.
	Courses []ContractCourseDTO `json:"courses"`

	// TotalPoints is the sum of points over all enrollments.
	TotalPoints int `json:"total_points"`

	// TotalPointsFormatted, e.g. "11 баллов".
	TotalPointsFormatted string `json:"total_points_formatted"`

	// GeneratedAt is when the view was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetContractCoursesHandler обрабатывает запрос курсов контракта.
type GetContractCoursesHandler struct {
	contractRepo contract.Repository
	courseRepo   course.Repository
	ledger       enrollment.Ledger
}

// NewGetContractCoursesHandler создаёт новый обработчик.
func NewGetContractCoursesHandler(
	contractRepo contract.Repository,
	courseRepo course.Repository,
	ledger enrollment.Ledger,
) *GetContractCoursesHandler {
	return &GetContractCoursesHandler{
		contractRepo: contractRepo,
		courseRepo:   courseRepo,
		ledger:       ledger,
	}
}

// Handle выполняет запрос.
func (h *GetContractCoursesHandler) Handle(ctx context.Context, q GetContractCoursesQuery) (*GetContractCoursesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_contract_courses: validation failed: %w", err)
	}

	contractID := contract.ID(q.ContractID)

	if _, err := h.contractRepo.GetByID(ctx, contractID); err != nil {
		if errors.Is(err, contract.ErrNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrContractNotFound
		}
		return nil, fmt.Errorf("get_contract_courses: failed to load contract: %w", err)
	}

	catalog, err := h.courseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_contract_courses: failed to list courses: %w", err)
	}

	enrollments, err := h.ledger.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("get_contract_courses: failed to list enrollments: %w", err)
	}

	pointsByCourse := make(map[course.ID]int, len(enrollments))
	for _, e := range enrollments {
		pointsByCourse[e.CourseID] = e.Points
	}

	result := &GetContractCoursesResult{
		ContractID:  q.ContractID,
		Courses:     make([]ContractCourseDTO, 0, len(catalog)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, c := range catalog {
		points, enrolled := pointsByCourse[c.ID]
		if q.EnrolledOnly && !enrolled {
			continue
		}

		lessons, err := h.courseRepo.ListLessons(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("get_contract_courses: failed to list lessons of course %d: %w", c.ID, err)
		}

		dto := ContractCourseDTO{
			ID:                   c.ID.Int64(),
			Title:                c.Title,
			Description:          c.Description,
			LessonCount:          len(lessons),
			LessonCountFormatted: plural.Format(len(lessons), plural.Lessons),
			Enrolled:             enrolled,
		}
		if enrolled {
			dto.Points = points
			dto.PointsFormatted = plural.Format(points, plural.Points)
			result.TotalPoints += points
		}

		result.Courses = append(result.Courses, dto)
	}

	result.TotalPointsFormatted = plural.Format(result.TotalPoints, plural.Points)

	return result, nil
}
