package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/config"
	"github.com/stemsi/examdrill/internal/metrics"
	"github.com/stemsi/examdrill/internal/model"
)

const (
	ActivityBatchSize    = 100
	ActivityBatchTimeout = 5 * time.Second
	ActivityPollTimeout  = 1 * time.Second
)

// ActivityStore persists last-seen marks.
type ActivityStore interface {
	TouchMany(ctx context.Context, ids []string, seen []time.Time) (int64, error)
	Touch(ctx context.Context, id string, seen time.Time) error
}

// ActivityWorker drains the session activity queue into last_active_at.
type ActivityWorker struct {
	store ActivityStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewActivityWorker(store ActivityStore, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	return &ActivityWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "activity_worker").Logger(),
	}
}

func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	batch := make([]*model.SessionActivity, 0, ActivityBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ActivityBatchSize || time.Since(lastFlush) >= ActivityBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ActivityPollTimeout, config.WorkerKey.SessionActivityQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var a model.SessionActivity
			if err := json.Unmarshal([]byte(item[1]), &a); err != nil || a.SessionID == "" {
				w.log.Error().Err(err).Msg("Invalid activity payload")
				continue
			}

			batch = append(batch, &a)
		}
	}
}

func (w *ActivityWorker) flushSafe(ctx context.Context, batch []*model.SessionActivity) {
	if len(batch) == 0 {
		return
	}

	ids, seen := coalesce(batch)
	n, err := w.store.TouchMany(ctx, ids, seen)
	if err == nil {
		metrics.ActivityFlushed.Add(float64(n))
		return
	}

	w.log.Warn().Err(err).Int("size", len(ids)).Msg("bulk activity update failed, using fallback")
	for i, id := range ids {
		if err := w.store.Touch(ctx, id, seen[i]); err != nil {
			w.log.Error().Err(err).Str("session_id", id).Msg("Touch failed, requeueing")
			w.requeue(ctx, model.SessionActivity{SessionID: id, SeenAt: seen[i]})
			continue
		}
		metrics.ActivityFlushed.Inc()
	}
}

func (w *ActivityWorker) requeue(ctx context.Context, a model.SessionActivity) {
	if w.rdb == nil {
		return
	}
	raw, _ := json.Marshal(a)
	w.rdb.RPush(ctx, config.WorkerKey.SessionActivityQueue, raw)
}

// coalesce keeps the latest mark per session, in first-seen order.
func coalesce(batch []*model.SessionActivity) ([]string, []time.Time) {
	ids := make([]string, 0, len(batch))
	seen := make([]time.Time, 0, len(batch))
	index := make(map[string]int, len(batch))

	for _, a := range batch {
		if i, ok := index[a.SessionID]; ok {
			if a.SeenAt.After(seen[i]) {
				seen[i] = a.SeenAt
			}
			continue
		}
		index[a.SessionID] = len(ids)
		ids = append(ids, a.SessionID)
		seen = append(seen, a.SeenAt)
	}
	return ids, seen
}
