package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/examdrill/internal/model"
)

const sessionColumns = `id, wrong_question_ids, exams_taken, exams_passed, exams_failed`

// ExamSessionRepository handles exam session data access on PostgreSQL.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	var (
		s     model.ExamSession
		wrong string
	)
	err := row.Scan(&s.ID, &wrong, &s.ExamsTaken, &s.ExamsPassed, &s.ExamsFailed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.WrongQuestionIDs = model.ParseWrongIDs(wrong)
	return &s, nil
}

// GetByID retrieves a session by its uppercase id.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE id = $1`, id))
}

// Create inserts a new session seeded from its first result.
// Returns ErrDuplicateID when the id is taken, leaving the existing row untouched.
func (r *ExamSessionRepository) Create(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error) {
	taken, passed, failed := initialCounters(string(result))
	s, err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, wrong_question_ids, exams_taken, exams_passed, exams_failed)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING `+sessionColumns,
		id, wrong.Encode(), taken, passed, failed))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrDuplicateID
	}
	return s, err
}

// ReplaceWrongIDs overwrites the wrong-answer set, leaving counters untouched.
func (r *ExamSessionRepository) ReplaceWrongIDs(ctx context.Context, id string, wrong model.WrongIDs) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = $2, updated_at = NOW(), last_active_at = NOW()
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		id, wrong.Encode()))
}

// RecordResult overwrites the wrong-answer set and increments exams_taken plus
// the counter matching result, in one statement.
func (r *ExamSessionRepository) RecordResult(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = $2,
		     exams_taken  = exams_taken + 1,
		     exams_passed = exams_passed + CASE WHEN $3::text = 'pass' THEN 1 ELSE 0 END,
		     exams_failed = exams_failed + CASE WHEN $3::text = 'fail' THEN 1 ELSE 0 END,
		     updated_at = NOW(), last_active_at = NOW()
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		id, wrong.Encode(), string(result)))
}

// ClearWrongIDs empties the wrong-answer set.
func (r *ExamSessionRepository) ClearWrongIDs(ctx context.Context, id string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = '[]', updated_at = NOW(), last_active_at = NOW()
		 WHERE id = $1
		 RETURNING `+sessionColumns, id))
}

// TouchMany bulk-updates last_active_at using UNNEST. Returns the number of rows updated.
func (r *ExamSessionRepository) TouchMany(ctx context.Context, ids []string, seen []time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions AS es
		 SET last_active_at = GREATEST(es.last_active_at, data.seen)
		 FROM (
		   SELECT UNNEST($1::varchar[]) AS id, UNNEST($2::timestamptz[]) AS seen
		 ) AS data
		 WHERE es.id = data.id`,
		ids, seen)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Touch updates last_active_at of a single session.
func (r *ExamSessionRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET last_active_at = GREATEST(last_active_at, $2)
		 WHERE id = $1`, id, seen)
	return err
}
