package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/directive"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS ORDER COMMAND
// Handles the /order webhook: a free-text directive from the platform.
// Recognized directives enroll or unenroll a course; everything else
// is a no-op. An unknown contract is a hard rejection, an unknown
// course is silently skipped - the platform retries orders, but course
// sets differ between agent installations.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessOrderCommand contains the data of the order webhook.
type ProcessOrderCommand struct {
	// ContractID is the contract the order applies to.
	ContractID int64

	// Order is the raw directive text.
	Order string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c ProcessOrderCommand) Validate() error {
	if c.ContractID <= 0 {
		return errors.New("process_order: contract_id must be positive")
	}
	return nil
}

// OrderOutcome describes what the order did.
type OrderOutcome string

const (
	// OutcomeEnrolled - подписка оформлена.
	OutcomeEnrolled OrderOutcome = "enrolled"
	// OutcomeUnenrolled - подписка удалена.
	OutcomeUnenrolled OrderOutcome = "unenrolled"
	// OutcomeNoop - команда распознана, но делать нечего
	// (уже подписан, не был подписан, курса нет в каталоге).
	OutcomeNoop OrderOutcome = "noop"
	// OutcomeUnrecognized - команда не распознана.
	OutcomeUnrecognized OrderOutcome = "unrecognized"
)

// ProcessOrderResult contains the result of order processing.
type ProcessOrderResult struct {
	// ContractID is the contract the order applied to.
	ContractID int64

	// Outcome describes the effect of the order.
	Outcome OrderOutcome

	// CourseID is the parsed course, zero for unrecognized orders.
	CourseID int64

	// ProcessedAt is when the command completed.
	ProcessedAt time.Time
}

// ProcessOrderHandler handles the ProcessOrderCommand.
type ProcessOrderHandler struct {
	contractRepo   contract.Repository
	courseRepo     course.Repository
	ledger         enrollment.Ledger
	idGenerator    IDGenerator
	eventPublisher shared.EventPublisher
}

// NewProcessOrderHandler creates a new ProcessOrderHandler.
func NewProcessOrderHandler(
	contractRepo contract.Repository,
	courseRepo course.Repository,
	ledger enrollment.Ledger,
	idGenerator IDGenerator,
	eventPublisher shared.EventPublisher,
) *ProcessOrderHandler {
	return &ProcessOrderHandler{
		contractRepo:   contractRepo,
		courseRepo:     courseRepo,
		ledger:         ledger,
		idGenerator:    idGenerator,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the process order command.
func (h *ProcessOrderHandler) Handle(ctx context.Context, cmd ProcessOrderCommand) (*ProcessOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("process_order: validation failed: %w", err)
	}

	contractID := contract.ID(cmd.ContractID)

	// Orders for unknown contracts are rejected: the platform should
	// only route orders to connected agents. A deactivated mirror still
	// accepts orders - the platform may re-enable the contract before
	// the agent hears about it.
	if _, err := h.contractRepo.GetByID(ctx, contractID); err != nil {
		if errors.Is(err, contract.ErrNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrContractNotFound
		}
		return nil, fmt.Errorf("process_order: failed to load contract: %w", err)
	}

	result := &ProcessOrderResult{
		ContractID:  cmd.ContractID,
		Outcome:     OutcomeUnrecognized,
		ProcessedAt: time.Now().UTC(),
	}

	d := directive.Parse(cmd.Order)
	if !d.IsRecognized() {
		return result, nil
	}
	result.CourseID = d.CourseID.Int64()

	switch d.Kind {
	case directive.KindEnroll:
		outcome, err := h.enroll(ctx, contractID, d.CourseID)
		if err != nil {
			return nil, err
		}
		result.Outcome = outcome

	case directive.KindUnenroll:
		if err := h.ledger.Delete(ctx, contractID, d.CourseID); err != nil {
			return nil, fmt.Errorf("process_order: failed to unenroll: %w", err)
		}
		result.Outcome = OutcomeUnenrolled
	}

	return result, nil
}

// enroll оформляет подписку, если курс известен и подписки ещё нет.
func (h *ProcessOrderHandler) enroll(ctx context.Context, contractID contract.ID, courseID course.ID) (OrderOutcome, error) {
	exists, err := h.courseRepo.Exists(ctx, courseID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("process_order: failed to check course: %w", err)
	}
	if !exists {
		// Unknown course: silent no-op.
		return OutcomeNoop, nil
	}

	enrolled, err := h.ledger.IsEnrolled(ctx, contractID, courseID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("process_order: failed to check enrollment: %w", err)
	}
	if enrolled {
		return OutcomeNoop, nil
	}

	e, err := enrollment.New(h.idGenerator.GenerateID(), contractID, courseID)
	if err != nil {
		return OutcomeNoop, fmt.Errorf("process_order: invalid enrollment: %w", err)
	}
	if err := h.ledger.Create(ctx, e); err != nil {
		return OutcomeNoop, fmt.Errorf("process_order: failed to enroll: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewEnrollmentCreatedEvent(contractID.Int64(), courseID.Int64(), shared.EnrollmentSourceOrder))

	return OutcomeEnrolled, nil
}
