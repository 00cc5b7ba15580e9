// Package enrollment содержит модель подписки контракта на курс
// и журнал зачтённых уроков. Баллы живут в подписке; зачёт урока -
// отдельная запись с ограничением уникальности, гарантирующим,
// что урок оценивается не более одного раза.
package enrollment

import (
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - подписка контракта на курс с накопленными баллами.
type Enrollment struct {
	// ID - внутренний идентификатор записи (UUID в строковом формате).
	ID string

	// ContractID - контракт-подписчик.
	ContractID contract.ID

	// CourseID - курс, на который оформлена подписка.
	CourseID course.ID

	// Points - накопленные баллы. Начинаются с нуля, только растут.
	// Повторная подписка после отписки создаёт новую запись с нулём.
	Points int

	// EnrolledAt - время оформления подписки.
	EnrolledAt time.Time

	// UpdatedAt - время последнего изменения (начисления баллов).
	UpdatedAt time.Time
}

// Completion - запись о зачтённом уроке.
// Пара (ContractID, LessonID) уникальна: это и есть гарантия
// однократной оценки.
type Completion struct {
	// ID - внутренний идентификатор записи (UUID в строковом формате).
	ID string

	// ContractID - контракт, сдавший урок.
	ContractID contract.ID

	// LessonID - зачтённый урок.
	LessonID course.LessonID

	// Points - баллы, начисленные за этот урок.
	Points int

	// MaxPoints - максимум, который можно было набрать.
	MaxPoints int

	// CompletedAt - время зачёта.
	CompletedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotFound - подписка не найдена.
	ErrNotFound = errors.New("enrollment not found")

	// ErrNegativeDelta - начислять можно только неотрицательную дельту.
	ErrNegativeDelta = errors.New("points delta must be non-negative")

	// ErrAlreadyCompleted - урок уже зачтён по этому контракту.
	ErrAlreadyCompleted = errors.New("lesson already completed for contract")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт новую подписку с нулём баллов.
func New(id string, contractID contract.ID, courseID course.ID) (*Enrollment, error) {
	if id == "" {
		return nil, errors.New("enrollment id is required")
	}
	if !contractID.IsValid() {
		return nil, contract.ErrInvalidID
	}
	if !courseID.IsValid() {
		return nil, course.ErrInvalidID
	}

	now := time.Now().UTC()

	return &Enrollment{
		ID:         id,
		ContractID: contractID,
		CourseID:   courseID,
		Points:     0,
		EnrolledAt: now,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// AddPoints начисляет баллы. Отрицательная дельта запрещена:
// баллы монотонно растут за время жизни подписки.
func (e *Enrollment) AddPoints(delta int) error {
	if delta < 0 {
		return ErrNegativeDelta
	}
	e.Points += delta
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// String возвращает строковое представление подписки для логирования.
func (e *Enrollment) String() string {
	return fmt.Sprintf(
		"Enrollment{Contract: %d, Course: %d, Points: %d}",
		e.ContractID, e.CourseID, e.Points,
	)
}
