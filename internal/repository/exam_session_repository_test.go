package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/database"
	"github.com/stemsi/examdrill/internal/model"
)

// Runs against a real PostgreSQL when TEST_DATABASE_URL is set.
func TestPostgresRecordResult(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	m, err := database.NewPostgresMigrator(dbURL)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.MigrateUp(m, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	const id = "TST01"
	_, _ = pool.Exec(ctx, `DELETE FROM exam_sessions WHERE id = $1`, id)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM exam_sessions WHERE id = $1`, id) })

	r := NewExamSessionRepository(pool)
	if _, err := r.Create(ctx, id, model.WrongIDs{"1"}, model.ExamResultFail); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(ctx, id, nil, ""); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE exam_sessions SET exams_taken = 2, exams_passed = 1, exams_failed = 1 WHERE id = $1`, id); err != nil {
		t.Fatal(err)
	}

	s, err := r.RecordResult(ctx, id, model.WrongIDs{"5"}, model.ExamResultPass)
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if s.ExamsTaken != 3 || s.ExamsPassed != 2 || s.ExamsFailed != 1 {
		t.Fatalf("unexpected counters %+v", s)
	}

	s, err = r.ClearWrongIDs(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.WrongQuestionIDs) != 0 || s.ExamsTaken != 3 {
		t.Fatalf("unexpected snapshot after clear %+v", s)
	}
}
