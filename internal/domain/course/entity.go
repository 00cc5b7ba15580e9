// Package course содержит каталог обучающих курсов агента.
// Курс состоит из уроков, урок - из материала и проверочных вопросов.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package course

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID представляет идентификатор курса в каталоге.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Int64 возвращает числовое значение идентификатора.
func (id ID) Int64() int64 {
	return int64(id)
}

// LessonID представляет идентификатор урока в каталоге.
type LessonID int64

// IsValid проверяет, что LessonID положительный.
func (id LessonID) IsValid() bool {
	return id > 0
}

// Int64 возвращает числовое значение идентификатора.
func (id LessonID) Int64() int64 {
	return int64(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - обучающий курс: упорядоченная последовательность уроков.
type Course struct {
	// ID - идентификатор курса.
	ID ID

	// Title - название курса, показывается пациенту и врачу.
	Title string

	// Description - краткое описание для страницы настроек.
	Description string

	// CreatedAt - время добавления курса в каталог.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// Lesson - урок курса: материал плюс проверочные вопросы.
type Lesson struct {
	// ID - идентификатор урока.
	ID LessonID

	// CourseID - курс, которому принадлежит урок.
	CourseID ID

	// Ordinal - порядковый номер урока внутри курса, начиная с 1.
	Ordinal int

	// Title - название урока.
	Title string

	// Text - материал урока (HTML или plain text, как хранится в каталоге).
	Text string

	// Questions - проверочные вопросы. Урок без вопросов допустим:
	// такой урок читается, но не оценивается.
	Questions []Question
}

// Question - проверочный вопрос урока с эталонным ответом.
type Question struct {
	// ID - идентификатор вопроса.
	ID int64

	// Text - текст вопроса.
	Text string

	// Answer - эталонный ответ.
	Answer string

	// Points - сколько баллов приносит верный ответ.
	Points int

	// StrictCase - сравнивать ответ с учётом регистра.
	// По умолчанию регистр не учитывается.
	StrictCase bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidID - невалидный идентификатор курса.
	ErrInvalidID = errors.New("invalid course id: must be positive")

	// ErrNotFound - курс не найден в каталоге.
	ErrNotFound = errors.New("course not found")

	// ErrLessonNotFound - урок не найден в каталоге.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrEmptyTitle - пустое название курса или урока.
	ErrEmptyTitle = errors.New("title must not be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// MaxPoints возвращает максимально возможную сумму баллов за урок.
func (l *Lesson) MaxPoints() int {
	total := 0
	for _, q := range l.Questions {
		total += q.Points
	}
	return total
}

// HasQuestions возвращает true, если урок оценивается.
func (l *Lesson) HasQuestions() bool {
	return len(l.Questions) > 0
}

// Matches проверяет, совпадает ли присланный ответ с эталонным.
// Пробелы по краям отбрасываются всегда; регистр учитывается только
// при установленном StrictCase.
func (q Question) Matches(submitted string) bool {
	got := strings.TrimSpace(submitted)
	want := strings.TrimSpace(q.Answer)
	if q.StrictCase {
		return got == want
	}
	return strings.EqualFold(got, want)
}

// String возвращает строковое представление курса для логирования.
func (c *Course) String() string {
	return fmt.Sprintf("Course{ID: %d, Title: %q}", c.ID, c.Title)
}
