// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Contract events
	EventContractInitialized EventType = "contract.initialized"
	EventContractReactivated EventType = "contract.reactivated"
	EventContractRemoved     EventType = "contract.removed"

	// Enrollment events
	EventEnrollmentCreated EventType = "enrollment.created"
	EventEnrollmentRemoved EventType = "enrollment.removed"
	EventPointsAwarded     EventType = "enrollment.points_awarded"

	// Lesson events
	EventLessonScored    EventType = "lesson.scored"
	EventLessonRequested EventType = "lesson.requested"

	// Notification events
	EventMessageSent   EventType = "notification.sent"
	EventMessageFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Contract Events
// ═══════════════════════════════════════════════════════════════════════════

// ContractInitializedEvent is emitted when the platform connects a contract
// to the agent, either for the first time or after a previous removal.
type ContractInitializedEvent struct {
	BaseEvent
	ContractID  int64   `json:"contract_id"`
	Reactivated bool    `json:"reactivated"`
	CourseIDs   []int64 `json:"course_ids,omitempty"` // courses enrolled during init
}

// Payload implements Event interface.
func (e ContractInitializedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"contract_id": e.ContractID,
		"reactivated": e.Reactivated,
		"course_ids":  e.CourseIDs,
	}
}

// NewContractInitializedEvent creates a new ContractInitializedEvent.
func NewContractInitializedEvent(contractID int64, reactivated bool, courseIDs []int64) ContractInitializedEvent {
	eventType := EventContractInitialized
	if reactivated {
		eventType = EventContractReactivated
	}
	return ContractInitializedEvent{
		BaseEvent:   NewBaseEvent(eventType, formatInt64(contractID)),
		ContractID:  contractID,
		Reactivated: reactivated,
		CourseIDs:   courseIDs,
	}
}

// ContractRemovedEvent is emitted when the platform disconnects a contract.
type ContractRemovedEvent struct {
	BaseEvent
	ContractID         int64 `json:"contract_id"`
	EnrollmentsDropped int   `json:"enrollments_dropped"`
}

// Payload implements Event interface.
func (e ContractRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"contract_id":         e.ContractID,
		"enrollments_dropped": e.EnrollmentsDropped,
	}
}

// NewContractRemovedEvent creates a new ContractRemovedEvent.
func NewContractRemovedEvent(contractID int64, enrollmentsDropped int) ContractRemovedEvent {
	return ContractRemovedEvent{
		BaseEvent:          NewBaseEvent(EventContractRemoved, formatInt64(contractID)),
		ContractID:         contractID,
		EnrollmentsDropped: enrollmentsDropped,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// Enrollment sources: where the enrollment was triggered from.
const (
	EnrollmentSourceInit     = "init"
	EnrollmentSourceOrder    = "order"
	EnrollmentSourceSettings = "settings"
)

// EnrollmentCreatedEvent is emitted when a contract is enrolled in a course.
type EnrollmentCreatedEvent struct {
	BaseEvent
	ContractID int64  `json:"contract_id"`
	CourseID   int64  `json:"course_id"`
	Source     string `json:"source"` // one of the EnrollmentSource constants
}

// Payload implements Event interface.
func (e EnrollmentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"contract_id": e.ContractID,
		"course_id":   e.CourseID,
		"source":      e.Source,
	}
}

// NewEnrollmentCreatedEvent creates a new EnrollmentCreatedEvent.
func NewEnrollmentCreatedEvent(contractID, courseID int64, source string) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		BaseEvent:  NewBaseEvent(EventEnrollmentCreated, formatInt64(contractID)),
		ContractID: contractID,
		CourseID:   courseID,
		Source:     source,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonScoredEvent is emitted exactly once per (contract, lesson) pair,
// after the completion claim and point award have been committed.
type LessonScoredEvent struct {
	BaseEvent
	ContractID  int64 `json:"contract_id"`
	CourseID    int64 `json:"course_id"`
	LessonID    int64 `json:"lesson_id"`
	Points      int   `json:"points"`
	MaxPoints   int   `json:"max_points"`
	TotalPoints int   `json:"total_points"` // course total after the award
}

// Payload implements Event interface.
func (e LessonScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"contract_id":  e.ContractID,
		"course_id":    e.CourseID,
		"lesson_id":    e.LessonID,
		"points":       e.Points,
		"max_points":   e.MaxPoints,
		"total_points": e.TotalPoints,
	}
}

// NewLessonScoredEvent creates a new LessonScoredEvent.
func NewLessonScoredEvent(contractID, courseID, lessonID int64, points, maxPoints, totalPoints int) LessonScoredEvent {
	return LessonScoredEvent{
		BaseEvent:   NewBaseEvent(EventLessonScored, formatInt64(contractID)),
		ContractID:  contractID,
		CourseID:    courseID,
		LessonID:    lessonID,
		Points:      points,
		MaxPoints:   maxPoints,
		TotalPoints: totalPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// MessageFailedEvent is emitted when an outbound platform message fails
// after retries. Delivery is best-effort, so this is informational only.
type MessageFailedEvent struct {
	BaseEvent
	ContractID int64  `json:"contract_id"`
	Reason     string `json:"reason"`
}

// Payload implements Event interface.
func (e MessageFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"contract_id": e.ContractID,
		"reason":      e.Reason,
	}
}

// NewMessageFailedEvent creates a new MessageFailedEvent.
func NewMessageFailedEvent(contractID int64, reason string) MessageFailedEvent {
	return MessageFailedEvent{
		BaseEvent:  NewBaseEvent(EventMessageFailed, formatInt64(contractID)),
		ContractID: contractID,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
