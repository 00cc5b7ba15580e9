package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE CONTRACT COMMAND
// Handles the /remove webhook: the platform disconnected a contract.
// Deactivates the mirror and cascades into enrollments. The completion
// journal is kept: a lesson scored once stays scored, so a remove and
// re-init cycle cannot award the same lesson twice.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveContractCommand contains the data of the remove webhook.
type RemoveContractCommand struct {
	// ContractID is the platform contract being disconnected.
	ContractID int64

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RemoveContractCommand) Validate() error {
	if c.ContractID <= 0 {
		return errors.New("remove_contract: contract_id must be positive")
	}
	return nil
}

// RemoveContractResult contains the result of removal.
type RemoveContractResult struct {
	// ContractID is the removed contract.
	ContractID int64

	// WasActive is true when the contract was tracked before removal.
	// Removal of an unknown contract is a no-op per the agent protocol.
	WasActive bool

	// EnrollmentsDropped is the number of enrollments deleted.
	EnrollmentsDropped int

	// RemovedAt is when the command completed.
	RemovedAt time.Time
}

// RemoveContractHandler handles the RemoveContractCommand.
type RemoveContractHandler struct {
	contractRepo   contract.Repository
	ledger         enrollment.Ledger
	eventPublisher shared.EventPublisher
}

// NewRemoveContractHandler creates a new RemoveContractHandler.
func NewRemoveContractHandler(
	contractRepo contract.Repository,
	ledger enrollment.Ledger,
	eventPublisher shared.EventPublisher,
) *RemoveContractHandler {
	return &RemoveContractHandler{
		contractRepo:   contractRepo,
		ledger:         ledger,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the remove contract command.
func (h *RemoveContractHandler) Handle(ctx context.Context, cmd RemoveContractCommand) (*RemoveContractResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_contract: validation failed: %w", err)
	}

	contractID := contract.ID(cmd.ContractID)

	result := &RemoveContractResult{
		ContractID: cmd.ContractID,
		RemovedAt:  time.Now().UTC(),
	}

	existing, err := h.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) || shared.IsNotFound(err) {
			// Unknown contract: nothing to do.
			return result, nil
		}
		return nil, fmt.Errorf("remove_contract: failed to load contract: %w", err)
	}

	result.WasActive = existing.IsActive()

	existing.Deactivate()
	if err := h.contractRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("remove_contract: failed to deactivate: %w", err)
	}

	// Enrollments go, the completion journal stays.
	dropped, err := h.ledger.DeleteByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("remove_contract: failed to drop enrollments: %w", err)
	}
	result.EnrollmentsDropped = dropped

	event := shared.NewContractRemovedEvent(cmd.ContractID, dropped)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
