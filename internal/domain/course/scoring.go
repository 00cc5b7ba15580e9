package course

import "strconv"

// ══════════════════════════════════════════════════════════════════════════════
// SCORING
// Чистая функция без побочных эффектов: урок и ответы на входе,
// набранные и максимальные баллы на выходе.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreResult - результат проверки ответов на урок.
type ScoreResult struct {
	// Points - набранные баллы.
	Points int

	// MaxPoints - максимально возможные баллы за урок.
	MaxPoints int

	// Correct - количество верных ответов.
	Correct int
}

// IsFull возвращает true, если набран максимум.
func (r ScoreResult) IsFull() bool {
	return r.MaxPoints > 0 && r.Points == r.MaxPoints
}

// IsZero возвращает true, если не набрано ни одного балла.
func (r ScoreResult) IsZero() bool {
	return r.Points == 0
}

// Score проверяет присланные ответы против вопросов урока.
// Ответы приходят картой "идентификатор вопроса -> ответ" в том виде,
// в каком их прислала форма. Вопрос без ответа оценивается в ноль,
// лишние ключи игнорируются. Урок без вопросов даёт (0, 0).
func Score(lesson *Lesson, answers map[string]string) ScoreResult {
	var result ScoreResult

	for _, q := range lesson.Questions {
		result.MaxPoints += q.Points

		submitted, ok := answers[strconv.FormatInt(q.ID, 10)]
		if !ok {
			continue
		}
		if q.Matches(submitted) {
			result.Points += q.Points
			result.Correct++
		}
	}

	return result
}
