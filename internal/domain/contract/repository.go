package contract

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над локальным зеркалом контрактов.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт новый контракт.
	// Возвращает ошибку с shared.ErrAlreadyExists, если контракт уже существует.
	Create(ctx context.Context, c *Contract) error

	// GetByID возвращает контракт по идентификатору платформы.
	// Возвращает ErrNotFound, если контракт не найден.
	GetByID(ctx context.Context, id ID) (*Contract, error)

	// GetByAgentToken возвращает контракт по токену врача.
	// Возвращает ErrNotFound, если токен никому не принадлежит.
	GetByAgentToken(ctx context.Context, token AgentToken) (*Contract, error)

	// Update обновляет данные контракта.
	// Возвращает ErrNotFound, если контракт не найден.
	Update(ctx context.Context, c *Contract) error

	// ─────────────────────────────────────────────────────────────────────────
	// Listing
	// ─────────────────────────────────────────────────────────────────────────

	// ListActive возвращает идентификаторы всех активных контрактов.
	// Используется для heartbeat-ответа платформе.
	ListActive(ctx context.Context) ([]ID, error)

	// CountActive возвращает количество активных контрактов.
	CountActive(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет существование контракта.
	Exists(ctx context.Context, id ID) (bool, error)
}
