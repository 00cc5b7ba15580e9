// Package directive разбирает текстовые команды платформы Medsenger.
// Платформа присылает команды свободным текстом в вебхуке order;
// агент распознаёт подписку и отписку от курса, всё остальное
// считается нераспознанным и никогда не является ошибкой разбора.
package directive

import (
	"strconv"
	"strings"

	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTIVE VARIANTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет вид распознанной команды.
type Kind int

const (
	// KindUnrecognized - команда не распознана. Обрабатывается как no-op.
	KindUnrecognized Kind = iota
	// KindEnroll - подписать контракт на курс.
	KindEnroll
	// KindUnenroll - отписать контракт от курса.
	KindUnenroll
)

// String возвращает строковое представление вида команды.
func (k Kind) String() string {
	switch k {
	case KindEnroll:
		return "enroll"
	case KindUnenroll:
		return "unenroll"
	default:
		return "unrecognized"
	}
}

// Directive - разобранная команда платформы.
// CourseID заполнен только для KindEnroll и KindUnenroll.
type Directive struct {
	Kind     Kind
	CourseID course.ID
}

// IsRecognized возвращает true для команд, требующих действия.
func (d Directive) IsRecognized() bool {
	return d.Kind != KindUnrecognized
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSER
// ══════════════════════════════════════════════════════════════════════════════

// Маркеры команд в тексте. Ищутся как подстроки: платформа может
// обернуть команду в кавычки или дописать служебный текст.
const (
	markerEnroll   = "add_course_"
	markerUnenroll = "remove_course_"
)

// Parse разбирает текст команды. Никогда не возвращает ошибку:
// всё, что не удалось разобрать, становится KindUnrecognized.
func Parse(raw string) Directive {
	text := strings.TrimSpace(raw)

	// remove_course_ проверяется первым: add_course_ не является его
	// подстрокой, но порядок фиксирует поведение на будущие маркеры.
	if idx := strings.Index(text, markerUnenroll); idx >= 0 {
		if id, ok := parseCourseID(text[idx+len(markerUnenroll):]); ok {
			return Directive{Kind: KindUnenroll, CourseID: id}
		}
		return Directive{Kind: KindUnrecognized}
	}

	if idx := strings.Index(text, markerEnroll); idx >= 0 {
		if id, ok := parseCourseID(text[idx+len(markerEnroll):]); ok {
			return Directive{Kind: KindEnroll, CourseID: id}
		}
		return Directive{Kind: KindUnrecognized}
	}

	return Directive{Kind: KindUnrecognized}
}

// parseCourseID извлекает идентификатор курса из хвоста команды.
// Хвост может нести кавычки и знаки препинания после числа.
func parseCourseID(tail string) (course.ID, bool) {
	end := 0
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	// После числа допустимы только кавычки, пробелы и пунктуация.
	rest := strings.TrimRight(tail[end:], "\"'`.,;:!?) \t\r\n")
	if rest != "" {
		return 0, false
	}

	id, err := strconv.ParseInt(tail[:end], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return course.ID(id), true
}
