package course

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Каталог read-mostly: наполняется миграциями или админом,
// запросы идут на каждый вебхук. Реализации - в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции чтения каталога курсов.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Courses
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID возвращает курс по идентификатору.
	// Возвращает ErrNotFound, если курса нет в каталоге.
	GetByID(ctx context.Context, id ID) (*Course, error)

	// List возвращает все курсы каталога, отсортированные по ID.
	List(ctx context.Context) ([]*Course, error)

	// Exists проверяет наличие курса в каталоге.
	Exists(ctx context.Context, id ID) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Lessons
	// ─────────────────────────────────────────────────────────────────────────

	// GetLesson возвращает урок с вопросами.
	// Возвращает ErrLessonNotFound, если урока нет.
	GetLesson(ctx context.Context, id LessonID) (*Lesson, error)

	// ListLessons возвращает уроки курса в порядке Ordinal.
	ListLessons(ctx context.Context, courseID ID) ([]*Lesson, error)

	// FirstLesson возвращает первый урок курса.
	// Возвращает ErrLessonNotFound, если в курсе нет уроков.
	FirstLesson(ctx context.Context, courseID ID) (*Lesson, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// Каталог кешируется целиком по курсам (обычно реализуется через Redis).
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет операции кеширования каталога.
type Cache interface {
	// GetCourse получает курс из кеша.
	GetCourse(ctx context.Context, id ID) (*Course, error)

	// SetCourse сохраняет курс в кеш.
	SetCourse(ctx context.Context, c *Course, ttl time.Duration) error

	// GetLesson получает урок из кеша.
	GetLesson(ctx context.Context, id LessonID) (*Lesson, error)

	// SetLesson сохраняет урок в кеш.
	SetLesson(ctx context.Context, l *Lesson, ttl time.Duration) error

	// GetCourseList получает список курсов из кеша.
	GetCourseList(ctx context.Context) ([]*Course, error)

	// SetCourseList сохраняет список курсов в кеш.
	SetCourseList(ctx context.Context, courses []*Course, ttl time.Duration) error

	// Invalidate сбрасывает кеш каталога.
	Invalidate(ctx context.Context) error
}
