// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ENROLLMENT CREATED HANDLER
// Обрабатывает событие подписки контракта на курс.
//
// Подписка может прийти из трёх мест (init, order, settings), но первый
// урок отправляется только при подключении контракта (init): врач,
// добавляющий курс приказом или через настройки, сам решает, когда
// начинать обучение. Отправка best-effort: сбой доставки никогда не
// откатывает подписку.
// ═══════════════════════════════════════════════════════════════════════════

// LessonSender отправляет урок пациенту через платформу.
// Реализуется в infrastructure/service.
type LessonSender interface {
	// SendLesson отправляет урок в чат контракта.
	// includeQuestions=false отправляет только материал (режим превью).
	SendLesson(ctx context.Context, contractID int64, lesson *course.Lesson, includeQuestions bool) error
}

// OnEnrollmentCreatedHandler отправляет первый урок нового курса.
type OnEnrollmentCreatedHandler struct {
	courseRepo course.Repository
	sender     LessonSender
	logger     *slog.Logger
}

// NewOnEnrollmentCreatedHandler создаёт новый обработчик.
func NewOnEnrollmentCreatedHandler(
	courseRepo course.Repository,
	sender LessonSender,
	logger *slog.Logger,
) *OnEnrollmentCreatedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnEnrollmentCreatedHandler{
		courseRepo: courseRepo,
		sender:     sender,
		logger:     logger.With("handler", "on_enrollment_created"),
	}
}

// Handle обрабатывает событие подписки.
// Реализует интерфейс shared.EventHandler.
func (h *OnEnrollmentCreatedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	enrollmentEvent, ok := event.(shared.EnrollmentCreatedEvent)
	if !ok {
		h.logger.Warn("received non-EnrollmentCreatedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.logger.Info("processing enrollment created event",
		"contract_id", enrollmentEvent.ContractID,
		"course_id", enrollmentEvent.CourseID,
		"source", enrollmentEvent.Source,
	)

	if enrollmentEvent.Source != shared.EnrollmentSourceInit {
		h.logger.Debug("skipping first lesson delivery",
			"source", enrollmentEvent.Source,
		)
		return nil
	}

	lesson, err := h.courseRepo.FirstLesson(ctx, course.ID(enrollmentEvent.CourseID))
	if err != nil {
		// Курс без уроков подпиской остаётся: слать нечего.
		if errors.Is(err, course.ErrLessonNotFound) || errors.Is(err, course.ErrNotFound) {
			h.logger.Warn("course has no lessons, nothing to send",
				"course_id", enrollmentEvent.CourseID,
			)
			return nil
		}
		return fmt.Errorf("load first lesson: %w", err)
	}

	if err := h.sender.SendLesson(ctx, enrollmentEvent.ContractID, lesson, true); err != nil {
		h.logger.Error("failed to send first lesson",
			"contract_id", enrollmentEvent.ContractID,
			"course_id", enrollmentEvent.CourseID,
			"lesson_id", lesson.ID,
			"error", err,
		)
		// Доставка best-effort: подписка уже состоялась.
		return nil
	}

	h.logger.Info("first lesson sent",
		"contract_id", enrollmentEvent.ContractID,
		"lesson_id", lesson.ID,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnEnrollmentCreatedHandler) EventType() shared.EventType {
	return shared.EventEnrollmentCreated
}
