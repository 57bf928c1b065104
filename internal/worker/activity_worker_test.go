package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/cache"
	"github.com/stemsi/examdrill/internal/database"
	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/repository"
)

func newTestRepo(t *testing.T) *repository.SQLiteExamSessionRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLiteDB(ctx, ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	m, err := database.NewSQLiteMigrator(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.MigrateUp(m, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	return repository.NewSQLiteExamSessionRepository(db)
}

func TestCoalesceKeepsLatestMark(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids, seen := coalesce([]*model.SessionActivity{
		{SessionID: "A", SeenAt: t0},
		{SessionID: "B", SeenAt: t0},
		{SessionID: "A", SeenAt: t0.Add(time.Minute)},
		{SessionID: "A", SeenAt: t0.Add(-time.Minute)},
	})

	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if !seen[0].Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected latest mark for A, got %v", seen[0])
	}
}

func TestFlushTouchesSessions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.Create(ctx, "ACT01", model.WrongIDs{}, ""); err != nil {
		t.Fatal(err)
	}

	later := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	w := NewActivityWorker(repo, nil, zerolog.Nop())
	w.flushSafe(ctx, []*model.SessionActivity{
		{SessionID: "ACT01", SeenAt: later},
		{SessionID: "MISSING", SeenAt: later},
	})

	got, err := repo.LastActive(ctx, "ACT01")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(later) {
		t.Fatalf("expected last_active_at %v, got %v", later, got)
	}
}

// failingBulk forces the per-row fallback.
type failingBulk struct {
	touched []string
}

func (f *failingBulk) TouchMany(context.Context, []string, []time.Time) (int64, error) {
	return 0, errors.New("bulk unavailable")
}

func (f *failingBulk) Touch(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func TestFlushFallsBackToSingleTouches(t *testing.T) {
	store := &failingBulk{}
	w := NewActivityWorker(store, nil, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.SessionActivity{
		{SessionID: "A", SeenAt: time.Now()},
		{SessionID: "B", SeenAt: time.Now()},
		{SessionID: "A", SeenAt: time.Now()},
	})

	if len(store.touched) != 2 {
		t.Fatalf("expected 2 single touches, got %v", store.touched)
	}
}

func TestWorkerDrainsQueue(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	repo := newTestRepo(t)
	if _, err := repo.Create(ctx, "QUE01", model.WrongIDs{}, ""); err != nil {
		t.Fatal(err)
	}

	later := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	cache.NewSessionCache(rdb, time.Minute, zerolog.Nop()).QueueActivity(ctx, "QUE01", later)

	done := make(chan struct{})
	go func() {
		NewActivityWorker(repo, rdb, zerolog.Nop()).Start(ctx)
		close(done)
	}()

	time.Sleep(2 * ActivityPollTimeout)
	cancel()
	<-done

	got, err := repo.LastActive(context.Background(), "QUE01")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(later) {
		t.Fatalf("expected %v, got %v", later, got)
	}
}
