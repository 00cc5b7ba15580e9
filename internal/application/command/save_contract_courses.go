package command

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
// SAVE CONTRACT COURSES COMMAND
// Handles the settings form: the doctor adds or removes a single course
// for a contract. Both directions are idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// CourseAction is the requested change.
type CourseAction string

const (
	// ActionAddCourse - подписать контракт на курс.
	ActionAddCourse CourseAction = "add_course"
	// ActionRemoveCourse - отписать контракт от курса.
	ActionRemoveCourse CourseAction = "remove_course"
)

// IsValid проверяет, что действие поддерживается.
func (a CourseAction) IsValid() bool {
	return a == ActionAddCourse || a == ActionRemoveCourse
}

// SaveContractCoursesCommand contains the settings form data.
type SaveContractCoursesCommand struct {
	// ContractID is the contract being configured.
	ContractID int64

	// Action is add_course or remove_course.
	Action CourseAction

	// CourseID is the course to add or remove.
	CourseID int64

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c SaveContractCoursesCommand) Validate() error {
	if c.ContractID <= 0 {
		return errors.New("save_contract_courses: contract_id must be positive")
	}
	if !c.Action.IsValid() {
		return fmt.Errorf("save_contract_courses: unsupported action %q", c.Action)
	}
	if c.CourseID <= 0 {
		return errors.New("save_contract_courses: course_id must be positive")
	}
	return nil
}

// SaveContractCoursesResult contains the result of the change.
type SaveContractCoursesResult struct {
	// ContractID is the configured contract.
	ContractID int64

	// Changed is false when the action was a no-op
	// (already enrolled / already unenrolled).
	Changed bool

	// SavedAt is when the command completed.
	SavedAt time.Time
}

// SaveContractCoursesHandler handles the SaveContractCoursesCommand.
type SaveContractCoursesHandler struct {
	contractRepo   contract.Repository
	courseRepo     course.Repository
	ledger         enrollment.Ledger
	idGenerator    IDGenerator
	eventPublisher shared.EventPublisher
}

// NewSaveContractCoursesHandler creates a new SaveContractCoursesHandler.
func NewSaveContractCoursesHandler(
	contractRepo contract.Repository,
	courseRepo course.Repository,
	ledger enrollment.Ledger,
	idGenerator IDGenerator,
	eventPublisher shared.EventPublisher,
) *SaveContractCoursesHandler {
	return &SaveContractCoursesHandler{
		contractRepo:   contractRepo,
		courseRepo:     courseRepo,
		ledger:         ledger,
		idGenerator:    idGenerator,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the save contract courses command.
func (h *SaveContractCoursesHandler) Handle(ctx context.Context, cmd SaveContractCoursesCommand) (*SaveContractCoursesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("save_contract_courses: validation failed: %w", err)
	}

	contractID := contract.ID(cmd.ContractID)
	courseID := course.ID(cmd.CourseID)

	if _, err := h.contractRepo.GetByID(ctx, contractID); err != nil {
		if errors.Is(err, contract.ErrNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrContractNotFound
		}
		return nil, fmt.Errorf("save_contract_courses: failed to load contract: %w", err)
	}

	result := &SaveContractCoursesResult{
		ContractID: cmd.ContractID,
		SavedAt:    time.Now().UTC(),
	}

	switch cmd.Action {
	case ActionAddCourse:
		exists, err := h.courseRepo.Exists(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("save_contract_courses: failed to check course: %w", err)
		}
		if !exists {
			return nil, shared.ErrCourseNotFound
		}

		enrolled, err := h.ledger.IsEnrolled(ctx, contractID, courseID)
		if err != nil {
			return nil, fmt.Errorf("save_contract_courses: failed to check enrollment: %w", err)
		}
		if enrolled {
			return result, nil
		}

		e, err := enrollment.New(h.idGenerator.GenerateID(), contractID, courseID)
		if err != nil {
			return nil, fmt.Errorf("save_contract_courses: invalid enrollment: %w", err)
		}
		if err := h.ledger.Create(ctx, e); err != nil {
			return nil, fmt.Errorf("save_contract_courses: failed to enroll: %w", err)
		}

		result.Changed = true
		_ = h.eventPublisher.Publish(shared.NewEnrollmentCreatedEvent(cmd.ContractID, cmd.CourseID, shared.EnrollmentSourceSettings))

	case ActionRemoveCourse:
		enrolled, err := h.ledger.IsEnrolled(ctx, contractID, courseID)
		if err != nil {
			return nil, fmt.Errorf("save_contract_courses: failed to check enrollment: %w", err)
		}
		if !enrolled {
			return result, nil
		}

		if err := h.ledger.Delete(ctx, contractID, courseID); err != nil {
			return nil, fmt.Errorf("save_contract_courses: failed to unenroll: %w", err)
		}
		result.Changed = true
	}

	return result, nil
}
