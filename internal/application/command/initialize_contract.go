// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
// Each webhook of the Medsenger agent protocol maps to one command.
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
// SHARED DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces identifiers for new records.
type IDGenerator interface {
	// GenerateID returns a new unique ID (UUID string).
	GenerateID() string
}

// TokenGenerator produces per-contract agent tokens.
type TokenGenerator interface {
	// GenerateToken returns a new random token.
	GenerateToken() (string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// INITIALIZE CONTRACT COMMAND
// Handles the /init webhook: the platform connected a contract to the agent.
// ══════════════════════════════════════════════════════════════════════════════

// InitializeContractCommand contains the data of the init webhook.
type InitializeContractCommand struct {
	// ContractID is the platform contract being connected.
	ContractID int64

	// CourseIDs are courses selected by the doctor during connection.
	// Unknown course IDs are skipped silently.
	CourseIDs []int64

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c InitializeContractCommand) Validate() error {
	if c.ContractID <= 0 {
		return errors.New("initialize_contract: contract_id must be positive")
	}
	return nil
}

// InitializeContractResult contains the result of initialization.
type InitializeContractResult struct {
	// ContractID is the initialized contract.
	ContractID int64

	// Reactivated is true when the contract existed before and was
	// re-enabled instead of created.
	Reactivated bool

	// EnrolledCourseIDs are courses that got a fresh enrollment.
	EnrolledCourseIDs []int64

	// InitializedAt is when the command completed.
	InitializedAt time.Time

	// Events contains domain events generated during initialization.
	Events []shared.Event
}

// InitializeContractHandler handles the InitializeContractCommand.
type InitializeContractHandler struct {
	contractRepo   contract.Repository
	courseRepo     course.Repository
	ledger         enrollment.Ledger
	idGenerator    IDGenerator
	tokenGenerator TokenGenerator
	eventPublisher shared.EventPublisher
}

// NewInitializeContractHandler creates a new InitializeContractHandler.
func NewInitializeContractHandler(
	contractRepo contract.Repository,
	courseRepo course.Repository,
	ledger enrollment.Ledger,
	idGenerator IDGenerator,
	tokenGenerator TokenGenerator,
	eventPublisher shared.EventPublisher,
) *InitializeContractHandler {
	return &InitializeContractHandler{
		contractRepo:   contractRepo,
		courseRepo:     courseRepo,
		ledger:         ledger,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the initialize contract command.
func (h *InitializeContractHandler) Handle(ctx context.Context, cmd InitializeContractCommand) (*InitializeContractResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("initialize_contract: validation failed: %w", err)
	}

	contractID := contract.ID(cmd.ContractID)

	result := &InitializeContractResult{
		ContractID:    cmd.ContractID,
		InitializedAt: time.Now().UTC(),
		Events:        make([]shared.Event, 0),
	}

	// Create or reactivate the contract mirror.
	existing, err := h.contractRepo.GetByID(ctx, contractID)
	switch {
	case err == nil:
		existing.Reactivate()
		if err := h.contractRepo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("initialize_contract: failed to reactivate: %w", err)
		}
		result.Reactivated = true

	case errors.Is(err, contract.ErrNotFound) || shared.IsNotFound(err):
		token, err := h.tokenGenerator.GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("initialize_contract: failed to generate token: %w", err)
		}

		fresh, err := contract.New(contractID, contract.AgentToken(token))
		if err != nil {
			return nil, fmt.Errorf("initialize_contract: invalid contract: %w", err)
		}
		if err := h.contractRepo.Create(ctx, fresh); err != nil {
			// Lost a race with a concurrent init: reactivate the winner's row.
			if shared.IsAlreadyExists(err) {
				raced, gerr := h.contractRepo.GetByID(ctx, contractID)
				if gerr != nil {
					return nil, fmt.Errorf("initialize_contract: failed to load raced contract: %w", gerr)
				}
				raced.Reactivate()
				if uerr := h.contractRepo.Update(ctx, raced); uerr != nil {
					return nil, fmt.Errorf("initialize_contract: failed to reactivate raced contract: %w", uerr)
				}
				result.Reactivated = true
			} else {
				return nil, fmt.Errorf("initialize_contract: failed to create: %w", err)
			}
		}

	default:
		return nil, fmt.Errorf("initialize_contract: failed to load contract: %w", err)
	}

	// Enroll into the requested courses. Unknown courses are skipped,
	// existing enrollments keep their points.
	for _, rawID := range cmd.CourseIDs {
		courseID := course.ID(rawID)
		if !courseID.IsValid() {
			continue
		}

		exists, err := h.courseRepo.Exists(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("initialize_contract: failed to check course %d: %w", rawID, err)
		}
		if !exists {
			continue
		}

		enrolled, err := h.ledger.IsEnrolled(ctx, contractID, courseID)
		if err != nil {
			return nil, fmt.Errorf("initialize_contract: failed to check enrollment: %w", err)
		}
		if enrolled {
			continue
		}

		e, err := enrollment.New(h.idGenerator.GenerateID(), contractID, courseID)
		if err != nil {
			return nil, fmt.Errorf("initialize_contract: invalid enrollment: %w", err)
		}
		if err := h.ledger.Create(ctx, e); err != nil {
			return nil, fmt.Errorf("initialize_contract: failed to enroll: %w", err)
		}

		result.EnrolledCourseIDs = append(result.EnrolledCourseIDs, rawID)
		result.Events = append(result.Events, shared.NewEnrollmentCreatedEvent(cmd.ContractID, rawID, shared.EnrollmentSourceInit))
	}

	initEvent := shared.NewContractInitializedEvent(cmd.ContractID, result.Reactivated, result.EnrolledCourseIDs)
	if cmd.CorrelationID != "" {
		initEvent.BaseEvent = initEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, initEvent)

	// Publish domain events. Delivery is best-effort: a failed publish
	// never rolls back the contract state.
	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
