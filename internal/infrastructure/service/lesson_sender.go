package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/infrastructure/external/medsenger"
	"github.com/medsenger/education-agent/pkg/timeutil"
)

// MessageSender is the platform client surface the notifiers need.
// Implemented by *medsenger.Client.
type MessageSender interface {
	SendMessage(ctx context.Context, contractID int64, msg medsenger.Message) error
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON SENDER
// Implements eventhandler.LessonSender: composes the lesson message and
// delivers it into the contract's chat. With questions included, the
// message carries an action link to the test page with a 3-hour
// deadline.
// ══════════════════════════════════════════════════════════════════════════════

// LessonSenderService sends lessons through the Medsenger platform.
type LessonSenderService struct {
	client MessageSender
	logger *slog.Logger
}

// NewLessonSenderService creates a new LessonSenderService.
func NewLessonSenderService(client MessageSender, logger *slog.Logger) *LessonSenderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LessonSenderService{
		client: client,
		logger: logger.With("service", "lesson_sender"),
	}
}

// SendLesson delivers a lesson into the contract's chat.
// includeQuestions=false sends the material only (preview mode).
func (s *LessonSenderService) SendLesson(ctx context.Context, contractID int64, lesson *course.Lesson, includeQuestions bool) error {
	msg := medsenger.Message{
		Text:        composeLessonText(lesson),
		OnlyPatient: true,
	}

	if includeQuestions && lesson.HasQuestions() {
		msg.ActionLink = fmt.Sprintf("tasks/%d", lesson.ID.Int64())
		msg.ActionName = "Пройти тест"
		msg.ActionDeadline = timeutil.ActionDeadlineUnix(timeutil.Now())
	}

	if err := s.client.SendMessage(ctx, contractID, msg); err != nil {
		return fmt.Errorf("send lesson %d: %w", lesson.ID.Int64(), err)
	}

	s.logger.Debug("lesson sent",
		"contract_id", contractID,
		"lesson_id", lesson.ID.Int64(),
		"with_questions", includeQuestions && lesson.HasQuestions(),
	)

	return nil
}

// composeLessonText builds the chat message body of a lesson.
func composeLessonText(lesson *course.Lesson) string {
	var b strings.Builder
	if lesson.Title != "" {
		b.WriteString(lesson.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(lesson.Text)
	return b.String()
}
