// Package contract содержит доменную модель контракта Medsenger.
// Контракт - это связь пациента и врача на платформе; агент хранит
// локальное зеркало подключённых контрактов. Внешних зависимостей нет.
package contract

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет идентификатор контракта, назначаемый платформой Medsenger.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Int64 возвращает числовое значение идентификатора.
func (id ID) Int64() int64 {
	return int64(id)
}

// AgentToken - токен врача для доступа к превью курсов по этому контракту.
// Генерируется агентом при создании контракта.
type AgentToken string

// IsValid проверяет, что токен непустой.
func (t AgentToken) IsValid() bool {
	return len(t) >= 16
}

// String возвращает строковое представление токена.
func (t AgentToken) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет состояние контракта в жизненном цикле агента.
type Status string

const (
	// StatusActive - контракт подключён к агенту, вебхуки обрабатываются.
	StatusActive Status = "active"
	// StatusInactive - контракт отключён; запись сохраняется для
	// возможной реактивации, но подписки на курсы удалены.
	StatusInactive Status = "inactive"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Contract - локальное зеркало контракта платформы.
// Жизненный цикл: неизвестен -> активен -> неактивен -> (реактивация) -> активен.
type Contract struct {
	// ID - идентификатор контракта, совпадает с идентификатором на платформе.
	ID ID

	// Status - текущее состояние контракта.
	Status Status

	// AgentToken - токен для авторизации превью-интерфейса врача.
	AgentToken AgentToken

	// ConnectedAt - время первого подключения контракта к агенту.
	ConnectedAt time.Time

	// DisconnectedAt - время последнего отключения (нулевое, если не отключался).
	DisconnectedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidID - невалидный идентификатор контракта.
	ErrInvalidID = errors.New("invalid contract id: must be positive")

	// ErrInvalidToken - невалидный токен агента.
	ErrInvalidToken = errors.New("invalid agent token")

	// ErrNotFound - контракт не найден.
	ErrNotFound = errors.New("contract not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт новый активный контракт с валидацией полей.
func New(id ID, token AgentToken) (*Contract, error) {
	if !id.IsValid() {
		return nil, ErrInvalidID
	}
	if !token.IsValid() {
		return nil, ErrInvalidToken
	}

	now := time.Now().UTC()

	return &Contract{
		ID:          id,
		Status:      StatusActive,
		AgentToken:  token,
		ConnectedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// IsActive возвращает true, если контракт подключён.
func (c *Contract) IsActive() bool {
	return c.Status == StatusActive
}

// Reactivate повторно подключает ранее отключённый контракт.
// Подписки при этом не восстанавливаются: прогресс начинается заново.
func (c *Contract) Reactivate() {
	now := time.Now().UTC()
	c.Status = StatusActive
	c.ConnectedAt = now
	c.UpdatedAt = now
}

// Deactivate отключает контракт. Повторное отключение - no-op.
func (c *Contract) Deactivate() {
	if c.Status == StatusInactive {
		return
	}
	now := time.Now().UTC()
	c.Status = StatusInactive
	c.DisconnectedAt = now
	c.UpdatedAt = now
}

// AuthorizeAgentToken проверяет токен врача для превью-интерфейса.
// Сравнение постоянным временем выполняется на транспортном уровне;
// здесь только доменная проверка наличия и совпадения.
func (c *Contract) AuthorizeAgentToken(token string) bool {
	return c.AgentToken.IsValid() && string(c.AgentToken) == token
}

// String возвращает строковое представление контракта для логирования.
func (c *Contract) String() string {
	return fmt.Sprintf("Contract{ID: %d, Status: %s}", c.ID, c.Status)
}

// Clone создаёт копию контракта.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}
