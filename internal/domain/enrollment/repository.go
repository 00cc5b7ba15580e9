package enrollment

import (
	"context"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger определяет операции над подписками контрактов на курсы.
type Ledger interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Enrollment Lifecycle
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт подписку. Повторная подписка на тот же курс -
	// no-op: существующая запись с её баллами остаётся нетронутой.
	Create(ctx context.Context, e *Enrollment) error

	// Delete удаляет подписку контракта на курс вместе с баллами.
	// Отсутствующая подписка - no-op.
	Delete(ctx context.Context, contractID contract.ID, courseID course.ID) error

	// DeleteByContract удаляет все подписки контракта.
	// Возвращает количество удалённых записей.
	DeleteByContract(ctx context.Context, contractID contract.ID) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// Get возвращает подписку контракта на курс.
	// Возвращает ErrNotFound, если подписки нет.
	Get(ctx context.Context, contractID contract.ID, courseID course.ID) (*Enrollment, error)

	// ListByContract возвращает подписки контракта в порядке оформления.
	ListByContract(ctx context.Context, contractID contract.ID) ([]*Enrollment, error)

	// IsEnrolled проверяет наличие подписки.
	IsEnrolled(ctx context.Context, contractID contract.ID, courseID course.ID) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Points
	// ─────────────────────────────────────────────────────────────────────────

	// AddPoints начисляет баллы существующей подписке и возвращает
	// новую сумму. Возвращает ErrNotFound, если подписки нет,
	// и ErrNegativeDelta при отрицательной дельте.
	AddPoints(ctx context.Context, contractID contract.ID, courseID course.ID, delta int) (int, error)
}

// CompletionLedger определяет журнал зачтённых уроков. Журнал
// append-only: записи никогда не обновляются и не удаляются, поэтому
// повторная сдача урока после отключения и переподключения контракта
// остаётся no-op.
type CompletionLedger interface {
	// TryComplete пытается зачесть урок. Возвращает true, если запись
	// создана (первый зачёт), и false, если урок уже был зачтён.
	// Атомарно при конкурентных вызовах.
	TryComplete(ctx context.Context, c *Completion) (bool, error)

	// HasCompleted проверяет, зачтён ли урок по контракту.
	HasCompleted(ctx context.Context, contractID contract.ID, lessonID course.LessonID) (bool, error)

	// ListByContract возвращает зачтённые уроки контракта.
	ListByContract(ctx context.Context, contractID contract.ID) ([]*Completion, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION STORE (транзакционный зачёт)
// ══════════════════════════════════════════════════════════════════════════════

// AwardResult - исход атомарного зачёта с начислением.
type AwardResult struct {
	// First - true, если это был первый зачёт урока по контракту.
	First bool

	// TotalPoints - сумма баллов подписки после начисления.
	// Заполняется только при First.
	TotalPoints int
}

// SubmissionStore объединяет зачёт урока и начисление баллов в одну
// транзакцию: либо фиксируются обе записи, либо ни одной. Ровно один
// из конкурентных вызовов по одной паре (контракт, урок) получает First.
type SubmissionStore interface {
	// CompleteAndAward зачитывает урок и начисляет дельту баллов подписке
	// контракта на курс. Возвращает ErrNotFound, если подписки нет.
	CompleteAndAward(ctx context.Context, c *Completion, courseID course.ID) (AwardResult, error)
}
