package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stemsi/examdrill/internal/model"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLiteExamSessionRepository is the embedded-store variant of ExamSessionRepository.
type SQLiteExamSessionRepository struct {
	db *sql.DB
}

// NewSQLiteExamSessionRepository creates a new SQLiteExamSessionRepository.
func NewSQLiteExamSessionRepository(db *sql.DB) *SQLiteExamSessionRepository {
	return &SQLiteExamSessionRepository{db: db}
}

func scanSQLiteSession(row *sql.Row) (*model.ExamSession, error) {
	var (
		s     model.ExamSession
		wrong string
	)
	err := row.Scan(&s.ID, &wrong, &s.ExamsTaken, &s.ExamsPassed, &s.ExamsFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.WrongQuestionIDs = model.ParseWrongIDs(wrong)
	return &s, nil
}

func (r *SQLiteExamSessionRepository) GetByID(ctx context.Context, id string) (*model.ExamSession, error) {
	return scanSQLiteSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = ?`, id))
}

func (r *SQLiteExamSessionRepository) Create(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error) {
	taken, passed, failed := initialCounters(string(result))
	s, err := scanSQLiteSession(r.db.QueryRowContext(ctx,
		`INSERT INTO exam_sessions (id, wrong_question_ids, exams_taken, exams_passed, exams_failed)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING `+sessionColumns,
		id, wrong.Encode(), taken, passed, failed))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrDuplicateID
	}
	return s, err
}

func (r *SQLiteExamSessionRepository) ReplaceWrongIDs(ctx context.Context, id string, wrong model.WrongIDs) (*model.ExamSession, error) {
	return scanSQLiteSession(r.db.QueryRowContext(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = ?, updated_at = CURRENT_TIMESTAMP, last_active_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+sessionColumns,
		wrong.Encode(), id))
}

func (r *SQLiteExamSessionRepository) RecordResult(ctx context.Context, id string, wrong model.WrongIDs, result model.ExamResult) (*model.ExamSession, error) {
	return scanSQLiteSession(r.db.QueryRowContext(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = ?1,
		     exams_taken  = exams_taken + 1,
		     exams_passed = exams_passed + CASE WHEN ?2 = 'pass' THEN 1 ELSE 0 END,
		     exams_failed = exams_failed + CASE WHEN ?2 = 'fail' THEN 1 ELSE 0 END,
		     updated_at = CURRENT_TIMESTAMP, last_active_at = CURRENT_TIMESTAMP
		 WHERE id = ?3
		 RETURNING `+sessionColumns,
		wrong.Encode(), string(result), id))
}

func (r *SQLiteExamSessionRepository) ClearWrongIDs(ctx context.Context, id string) (*model.ExamSession, error) {
	return scanSQLiteSession(r.db.QueryRowContext(ctx,
		`UPDATE exam_sessions
		 SET wrong_question_ids = '[]', updated_at = CURRENT_TIMESTAMP, last_active_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+sessionColumns, id))
}

// TouchMany updates last_active_at for a batch inside one transaction.
func (r *SQLiteExamSessionRepository) TouchMany(ctx context.Context, ids []string, seen []time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE exam_sessions SET last_active_at = MAX(last_active_at, ?) WHERE id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for i, id := range ids {
		res, err := stmt.ExecContext(ctx, seen[i].UTC().Format(sqliteTimeLayout), id)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func (r *SQLiteExamSessionRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE exam_sessions SET last_active_at = MAX(last_active_at, ?) WHERE id = ?`,
		seen.UTC().Format(sqliteTimeLayout), id)
	return err
}

// LastActive returns when a session was last seen.
func (r *SQLiteExamSessionRepository) LastActive(ctx context.Context, id string) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_active_at FROM exam_sessions WHERE id = ?`, id).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return at, err
}
