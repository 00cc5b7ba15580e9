package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// EnrollmentRepository covers the enrollment ledger and the combined
// submission store: the claim-and-award transaction needs both tables
// under one connection. CompletionRepository covers the completion
// journal on its own.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Ledger and
// enrollment.SubmissionStore for PostgreSQL.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment Ledger
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts an enrollment row. Idempotent: a duplicate
// (contract, course) pair is silently ignored, existing points stay.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, contract_id, course_id, points, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract_id, course_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.ContractID.Int64(),
		e.CourseID.Int64(),
		e.Points,
		e.EnrolledAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// Delete removes an enrollment row. Idempotent.
func (r *EnrollmentRepository) Delete(ctx context.Context, contractID contract.ID, courseID course.ID) error {
	query := `DELETE FROM enrollments WHERE contract_id = $1 AND course_id = $2`

	_, err := r.conn.Exec(ctx, query, contractID.Int64(), courseID.Int64())
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}

	return nil
}

// DeleteByContract removes all enrollments of a contract and returns the count.
func (r *EnrollmentRepository) DeleteByContract(ctx context.Context, contractID contract.ID) (int, error) {
	query := `DELETE FROM enrollments WHERE contract_id = $1`

	tag, err := r.conn.Exec(ctx, query, contractID.Int64())
	if err != nil {
		return 0, fmt.Errorf("failed to delete enrollments: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Get returns an enrollment by its (contract, course) pair.
func (r *EnrollmentRepository) Get(ctx context.Context, contractID contract.ID, courseID course.ID) (*enrollment.Enrollment, error) {
	query := `
		SELECT id, contract_id, course_id, points, enrolled_at, updated_at
		FROM enrollments
		WHERE contract_id = $1 AND course_id = $2
	`

	row := r.conn.QueryRow(ctx, query, contractID.Int64(), courseID.Int64())
	return scanEnrollment(row)
}

// ListByContract returns all enrollments of a contract ordered by course.
func (r *EnrollmentRepository) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Enrollment, error) {
	query := `
		SELECT id, contract_id, course_id, points, enrolled_at, updated_at
		FROM enrollments
		WHERE contract_id = $1
		ORDER BY course_id
	`

	rows, err := r.conn.Query(ctx, query, contractID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var out []*enrollment.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// IsEnrolled checks whether an enrollment row exists.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, contractID contract.ID, courseID course.ID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE contract_id = $1 AND course_id = $2)`,
		contractID.Int64(), courseID.Int64(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return exists, nil
}

// AddPoints increments the points of an enrollment and returns the new total.
func (r *EnrollmentRepository) AddPoints(ctx context.Context, contractID contract.ID, courseID course.ID, delta int) (int, error) {
	if delta < 0 {
		return 0, enrollment.ErrNegativeDelta
	}

	query := `
		UPDATE enrollments
		SET points = points + $3, updated_at = $4
		WHERE contract_id = $1 AND course_id = $2
		RETURNING points
	`

	var total int
	err := r.conn.QueryRow(ctx, query,
		contractID.Int64(), courseID.Int64(), delta, time.Now().UTC(),
	).Scan(&total)
	if err != nil {
		if IsNoRows(err) {
			return 0, enrollment.ErrNotFound
		}
		return 0, fmt.Errorf("failed to add points: %w", err)
	}

	return total, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Completion Ledger
// ─────────────────────────────────────────────────────────────────────────────

// CompletionRepository implements enrollment.CompletionLedger for
// PostgreSQL. The journal is append-only: nothing here deletes rows,
// so a lesson scored once stays scored across contract reconnects.
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

// TryComplete claims the (contract, lesson) completion slot.
// Returns false when the slot was already taken.
func (r *CompletionRepository) TryComplete(ctx context.Context, c *enrollment.Completion) (bool, error) {
	tag, err := r.conn.Exec(ctx, insertCompletionSQL,
		c.ID, c.ContractID.Int64(), c.LessonID.Int64(), c.Points, c.MaxPoints, c.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert completion: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// HasCompleted checks whether a contract already completed a lesson.
func (r *CompletionRepository) HasCompleted(ctx context.Context, contractID contract.ID, lessonID course.LessonID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM lesson_completions WHERE contract_id = $1 AND lesson_id = $2)`,
		contractID.Int64(), lessonID.Int64(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return exists, nil
}

// ListByContract returns all completions of a contract.
func (r *CompletionRepository) ListByContract(ctx context.Context, contractID contract.ID) ([]*enrollment.Completion, error) {
	query := `
		SELECT id, contract_id, lesson_id, points, max_points, completed_at
		FROM lesson_completions
		WHERE contract_id = $1
		ORDER BY completed_at
	`

	rows, err := r.conn.Query(ctx, query, contractID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	var out []*enrollment.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Submission Store
// ─────────────────────────────────────────────────────────────────────────────

const insertCompletionSQL = `
	INSERT INTO lesson_completions (id, contract_id, lesson_id, points, max_points, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (contract_id, lesson_id) DO NOTHING
`

// CompleteAndAward claims the completion and increments the course
// points in one transaction. Exactly one of two racing submissions
// observes First=true; the loser's transaction changes nothing.
func (r *EnrollmentRepository) CompleteAndAward(ctx context.Context, c *enrollment.Completion, courseID course.ID) (enrollment.AwardResult, error) {
	var result enrollment.AwardResult

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		// The award requires a live enrollment. FOR UPDATE pins the row
		// so the increment below cannot race a concurrent unenroll.
		var enrollmentID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM enrollments WHERE contract_id = $1 AND course_id = $2 FOR UPDATE`,
			c.ContractID.Int64(), courseID.Int64(),
		).Scan(&enrollmentID)
		if err != nil {
			if IsNoRows(err) {
				return enrollment.ErrNotFound
			}
			return fmt.Errorf("failed to check enrollment: %w", err)
		}

		tag, err := tx.Exec(ctx, insertCompletionSQL,
			c.ID, c.ContractID.Int64(), c.LessonID.Int64(), c.Points, c.MaxPoints, c.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert completion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Claim already taken: commit without touching points.
			result = enrollment.AwardResult{First: false}
			return nil
		}

		var total int
		err = tx.QueryRow(ctx,
			`UPDATE enrollments
			 SET points = points + $3, updated_at = $4
			 WHERE contract_id = $1 AND course_id = $2
			 RETURNING points`,
			c.ContractID.Int64(), courseID.Int64(), c.Points, time.Now().UTC(),
		).Scan(&total)
		if err != nil {
			return fmt.Errorf("failed to award points: %w", err)
		}

		result = enrollment.AwardResult{First: true, TotalPoints: total}
		return nil
	})
	if err != nil {
		return enrollment.AwardResult{}, err
	}

	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanEnrollment(row interface{ Scan(...interface{}) error }) (*enrollment.Enrollment, error) {
	var (
		e                      enrollment.Enrollment
		rawContract, rawCourse int64
	)

	err := row.Scan(&e.ID, &rawContract, &rawCourse, &e.Points, &e.EnrolledAt, &e.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, enrollment.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.ContractID = contract.ID(rawContract)
	e.CourseID = course.ID(rawCourse)
	return &e, nil
}

func scanCompletion(row interface{ Scan(...interface{}) error }) (*enrollment.Completion, error) {
	var (
		c                      enrollment.Completion
		rawContract, rawLesson int64
	)

	err := row.Scan(&c.ID, &rawContract, &rawLesson, &c.Points, &c.MaxPoints, &c.CompletedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, enrollment.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan completion: %w", err)
	}

	c.ContractID = contract.ID(rawContract)
	c.LessonID = course.LessonID(rawLesson)
	return &c, nil
}
