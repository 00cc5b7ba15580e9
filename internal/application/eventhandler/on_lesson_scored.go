package eventhandler

import (
	"context"
	"log/slog"

	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LESSON SCORED HANDLER
// Обрабатывает событие оценки урока: отправляет пациенту сообщение с
// результатом. Событие публикуется после коммита транзакции начисления,
// поэтому сбой отправки никак не влияет на баллы.
// ═══════════════════════════════════════════════════════════════════════════

// ResultNotifier отправляет пациенту сообщение о результате урока.
// Реализуется в infrastructure/service: там живут русские шаблоны
// и дедлайн действия.
type ResultNotifier interface {
	// SendResult отправляет сообщение с результатом урока.
	SendResult(ctx context.Context, contractID int64, points, maxPoints, totalPoints int) error
}

// OnLessonScoredHandler отправляет сообщение о результате.
type OnLessonScoredHandler struct {
	notifier ResultNotifier
	logger   *slog.Logger
}

// NewOnLessonScoredHandler создаёт новый обработчик.
func NewOnLessonScoredHandler(notifier ResultNotifier, logger *slog.Logger) *OnLessonScoredHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnLessonScoredHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_lesson_scored"),
	}
}

// Handle обрабатывает событие оценки урока.
// Реализует интерфейс shared.EventHandler.
func (h *OnLessonScoredHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	scoredEvent, ok := event.(shared.LessonScoredEvent)
	if !ok {
		h.logger.Warn("received non-LessonScoredEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.logger.Info("processing lesson scored event",
		"contract_id", scoredEvent.ContractID,
		"lesson_id", scoredEvent.LessonID,
		"points", scoredEvent.Points,
		"max_points", scoredEvent.MaxPoints,
	)

	err := h.notifier.SendResult(
		ctx,
		scoredEvent.ContractID,
		scoredEvent.Points,
		scoredEvent.MaxPoints,
		scoredEvent.TotalPoints,
	)
	if err != nil {
		h.logger.Error("failed to send result message",
			"contract_id", scoredEvent.ContractID,
			"lesson_id", scoredEvent.LessonID,
			"error", err,
		)
		// Баллы уже начислены, сообщение best-effort.
		return nil
	}

	h.logger.Info("result message sent",
		"contract_id", scoredEvent.ContractID,
		"lesson_id", scoredEvent.LessonID,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnLessonScoredHandler) EventType() shared.EventType {
	return shared.EventLessonScored
}
