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
// SUBMIT LESSON COMMAND
// Handles a patient's answer submission. The completion claim and the
// point award commit in one transaction, so a lesson scores at most
// once per contract no matter how many submissions race.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitLessonCommand contains a lesson submission.
type SubmitLessonCommand struct {
	// ContractID is the submitting contract.
	ContractID int64

	// LessonID is the lesson being answered.
	LessonID int64

	// Answers maps question IDs (decimal strings, as the form sends
	// them) to submitted answers.
	Answers map[string]string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitLessonCommand) Validate() error {
	if c.ContractID <= 0 {
		return errors.New("submit_lesson: contract_id must be positive")
	}
	if c.LessonID <= 0 {
		return errors.New("submit_lesson: lesson_id must be positive")
	}
	return nil
}

// SubmitLessonResult contains the result of a submission.
type SubmitLessonResult struct {
	// ContractID is the submitting contract.
	ContractID int64

	// LessonID is the answered lesson.
	LessonID int64

	// First is true when this submission claimed the completion.
	// Repeat submissions return First=false and award nothing.
	First bool

	// Points earned by this submission (zero for repeats).
	Points int

	// MaxPoints possible for the lesson.
	MaxPoints int

	// TotalPoints is the course total after the award (only for First).
	TotalPoints int

	// SubmittedAt is when the command completed.
	SubmittedAt time.Time
}

// SubmitLessonHandler handles the SubmitLessonCommand.
// The enrollment check doubles as the contract check: an enrollment
// can only exist for a contract the agent tracks.
type SubmitLessonHandler struct {
	courseRepo     course.Repository
	ledger         enrollment.Ledger
	submissions    enrollment.SubmissionStore
	idGenerator    IDGenerator
	eventPublisher shared.EventPublisher
}

// NewSubmitLessonHandler creates a new SubmitLessonHandler.
func NewSubmitLessonHandler(
	courseRepo course.Repository,
	ledger enrollment.Ledger,
	submissions enrollment.SubmissionStore,
	idGenerator IDGenerator,
	eventPublisher shared.EventPublisher,
) *SubmitLessonHandler {
	return &SubmitLessonHandler{
		courseRepo:     courseRepo,
		ledger:         ledger,
		submissions:    submissions,
		idGenerator:    idGenerator,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the submit lesson command.
func (h *SubmitLessonHandler) Handle(ctx context.Context, cmd SubmitLessonCommand) (*SubmitLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_lesson: validation failed: %w", err)
	}

	contractID := contract.ID(cmd.ContractID)
	lessonID := course.LessonID(cmd.LessonID)

	lesson, err := h.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, course.ErrLessonNotFound) || shared.IsNotFound(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("submit_lesson: failed to load lesson: %w", err)
	}

	// A submission without an enrollment is a hard rejection: unlike
	// orders, it can only come from a stale or forged lesson link.
	enrolled, err := h.ledger.IsEnrolled(ctx, contractID, lesson.CourseID)
	if err != nil {
		return nil, fmt.Errorf("submit_lesson: failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, shared.ErrNotEnrolled
	}

	score := course.Score(lesson, cmd.Answers)

	completion := &enrollment.Completion{
		ID:          h.idGenerator.GenerateID(),
		ContractID:  contractID,
		LessonID:    lessonID,
		Points:      score.Points,
		MaxPoints:   score.MaxPoints,
		CompletedAt: time.Now().UTC(),
	}

	award, err := h.submissions.CompleteAndAward(ctx, completion, lesson.CourseID)
	if err != nil {
		return nil, fmt.Errorf("submit_lesson: failed to record completion: %w", err)
	}

	result := &SubmitLessonResult{
		ContractID:  cmd.ContractID,
		LessonID:    cmd.LessonID,
		First:       award.First,
		MaxPoints:   score.MaxPoints,
		SubmittedAt: completion.CompletedAt,
	}

	if !award.First {
		// Someone already claimed this lesson: no points, no message.
		return result, nil
	}

	result.Points = score.Points
	result.TotalPoints = award.TotalPoints

	event := shared.NewLessonScoredEvent(
		cmd.ContractID,
		lesson.CourseID.Int64(),
		cmd.LessonID,
		score.Points,
		score.MaxPoints,
		award.TotalPoints,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	// Published after the transaction committed: the result message is
	// best-effort and never rolls back the score.
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
