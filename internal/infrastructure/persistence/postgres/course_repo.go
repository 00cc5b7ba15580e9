package postgres

import (
	"context"
	"fmt"

	"github.com/medsenger/education-agent/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// Read-mostly catalog. Lessons load with their questions in one pass:
// lessons are small and the catalog changes rarely.
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Course Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id course.ID) (*course.Course, error) {
	query := `
		SELECT id, title, description, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var c course.Course
	var rawID int64
	err := r.conn.QueryRow(ctx, query, id.Int64()).Scan(
		&rawID, &c.Title, &c.Description, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	c.ID = course.ID(rawID)

	return &c, nil
}

// List returns the whole catalog ordered by ID.
func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	query := `
		SELECT id, title, description, created_at, updated_at
		FROM courses
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var out []*course.Course
	for rows.Next() {
		var c course.Course
		var rawID int64
		if err := rows.Scan(&rawID, &c.Title, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		c.ID = course.ID(rawID)
		out = append(out, &c)
	}

	return out, rows.Err()
}

// Exists checks whether a course is in the catalog.
func (r *CourseRepository) Exists(ctx context.Context, id course.ID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, id.Int64(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check course existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lesson Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetLesson returns a lesson with its questions.
func (r *CourseRepository) GetLesson(ctx context.Context, id course.LessonID) (*course.Lesson, error) {
	query := `
		SELECT id, course_id, ordinal, title, text
		FROM lessons
		WHERE id = $1
	`

	var l course.Lesson
	var rawID, rawCourseID int64
	err := r.conn.QueryRow(ctx, query, id.Int64()).Scan(
		&rawID, &rawCourseID, &l.Ordinal, &l.Title, &l.Text,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	l.ID = course.LessonID(rawID)
	l.CourseID = course.ID(rawCourseID)

	if err := r.loadQuestions(ctx, &l); err != nil {
		return nil, err
	}

	return &l, nil
}

// ListLessons returns all lessons of a course in course order.
func (r *CourseRepository) ListLessons(ctx context.Context, courseID course.ID) ([]*course.Lesson, error) {
	query := `
		SELECT id, course_id, ordinal, title, text
		FROM lessons
		WHERE course_id = $1
		ORDER BY ordinal
	`

	rows, err := r.conn.Query(ctx, query, courseID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var out []*course.Lesson
	for rows.Next() {
		var l course.Lesson
		var rawID, rawCourseID int64
		if err := rows.Scan(&rawID, &rawCourseID, &l.Ordinal, &l.Title, &l.Text); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.ID = course.LessonID(rawID)
		l.CourseID = course.ID(rawCourseID)
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range out {
		if err := r.loadQuestions(ctx, l); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// FirstLesson returns the lesson with the lowest ordinal.
func (r *CourseRepository) FirstLesson(ctx context.Context, courseID course.ID) (*course.Lesson, error) {
	query := `
		SELECT id
		FROM lessons
		WHERE course_id = $1
		ORDER BY ordinal
		LIMIT 1
	`

	var rawID int64
	err := r.conn.QueryRow(ctx, query, courseID.Int64()).Scan(&rawID)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get first lesson: %w", err)
	}

	return r.GetLesson(ctx, course.LessonID(rawID))
}

// loadQuestions populates the questions of a lesson.
func (r *CourseRepository) loadQuestions(ctx context.Context, l *course.Lesson) error {
	query := `
		SELECT id, text, answer, points, strict_case
		FROM questions
		WHERE lesson_id = $1
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query, l.ID.Int64())
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q course.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer, &q.Points, &q.StrictCase); err != nil {
			return fmt.Errorf("failed to scan question: %w", err)
		}
		l.Questions = append(l.Questions, q)
	}

	return rows.Err()
}
