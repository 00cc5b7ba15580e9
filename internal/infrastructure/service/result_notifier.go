package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medsenger/education-agent/internal/domain/shared"
	"github.com/medsenger/education-agent/internal/infrastructure/external/medsenger"
	"github.com/medsenger/education-agent/pkg/plural"
	"github.com/medsenger/education-agent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT NOTIFIER
// Implements eventhandler.ResultNotifier: tells the patient how the
// test went. Three templates: no points, partial credit, full credit.
// The wording inflects «балл» by Russian plural rules.
// ══════════════════════════════════════════════════════════════════════════════

// ResultNotifierService sends scoring results through the Medsenger platform.
type ResultNotifierService struct {
	client    MessageSender
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewResultNotifierService creates a new ResultNotifierService.
// The publisher is optional; when set, delivery failures emit a
// MessageFailedEvent.
func NewResultNotifierService(client MessageSender, publisher shared.EventPublisher, logger *slog.Logger) *ResultNotifierService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultNotifierService{
		client:    client,
		publisher: publisher,
		logger:    logger.With("service", "result_notifier"),
	}
}

// SendResult sends the scoring outcome of a submission to the patient.
func (s *ResultNotifierService) SendResult(ctx context.Context, contractID int64, points, maxPoints, totalPoints int) error {
	msg := medsenger.Message{
		Text:           ResultText(points, maxPoints, totalPoints),
		ActionDeadline: timeutil.ActionDeadlineUnix(timeutil.Now()),
		OnlyPatient:    true,
	}

	if err := s.client.SendMessage(ctx, contractID, msg); err != nil {
		if s.publisher != nil {
			_ = s.publisher.Publish(shared.NewMessageFailedEvent(contractID, err.Error()))
		}
		return fmt.Errorf("send result: %w", err)
	}

	s.logger.Debug("result sent",
		"contract_id", contractID,
		"points", points,
		"max_points", maxPoints,
		"total_points", totalPoints,
	)

	return nil
}

// ResultText builds the Russian result message for a scored submission.
func ResultText(points, maxPoints, totalPoints int) string {
	total := plural.Format(totalPoints, plural.Points)

	switch {
	case points == 0:
		return fmt.Sprintf(
			"Спасибо за заполнение теста! Вы не заработали баллы за это задание. У Вас %s.",
			total,
		)
	case points < maxPoints:
		return fmt.Sprintf(
			"Спасибо за заполнение теста! Вы частично правильно ответили на вопросы и заработали %s. Теперь у Вас %s.",
			plural.Format(points, plural.Points), total,
		)
	default:
		return fmt.Sprintf(
			"Спасибо за заполнение теста! Вы ответили правильно на все вопросы и заработали %s. Теперь у Вас %s!",
			plural.Format(points, plural.Points), total,
		)
	}
}
