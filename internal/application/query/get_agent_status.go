// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET AGENT STATUS QUERY
// Отвечает на heartbeat платформы: какие контракты агент сейчас
// отслеживает. Платформа сверяет этот список со своим и чинит
// расхождения повторной инициализацией.
// ══════════════════════════════════════════════════════════════════════════════

// GetAgentStatusQuery has no parameters: the status covers the whole agent.
type GetAgentStatusQuery struct{}

// AgentStatusResult contains the data of the status response.
type AgentStatusResult struct {
	// IsTrackingData reports that the agent persists state.
	IsTrackingData bool `json:"is_tracking_data"`

	// SupportedScenarios is empty: courses are assigned explicitly,
	// not through platform scenarios.
	SupportedScenarios []string `json:"supported_scenarios"`

	// TrackedContracts are IDs of contracts the agent considers active.
	TrackedContracts []int64 `json:"tracked_contracts"`

	// CourseCount is the catalog size, for the agent description page.
	CourseCount int `json:"course_count"`

	// GeneratedAt is when the status was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetAgentStatusHandler обрабатывает запрос статуса агента.
type GetAgentStatusHandler struct {
	contractRepo contract.Repository
	courseRepo   course.Repository
}

// NewGetAgentStatusHandler создаёт новый обработчик.
func NewGetAgentStatusHandler(contractRepo contract.Repository, courseRepo course.Repository) *GetAgentStatusHandler {
	return &GetAgentStatusHandler{
		contractRepo: contractRepo,
		courseRepo:   courseRepo,
	}
}

// Handle выполняет запрос.
func (h *GetAgentStatusHandler) Handle(ctx context.Context, _ GetAgentStatusQuery) (*AgentStatusResult, error) {
	ids, err := h.contractRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_agent_status: failed to list contracts: %w", err)
	}

	courses, err := h.courseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_agent_status: failed to list courses: %w", err)
	}

	tracked := make([]int64, 0, len(ids))
	for _, id := range ids {
		tracked = append(tracked, id.Int64())
	}

	return &AgentStatusResult{
		IsTrackingData:     true,
		SupportedScenarios: []string{},
		TrackedContracts:   tracked,
		CourseCount:        len(courses),
		GeneratedAt:        time.Now().UTC(),
	}, nil
}
