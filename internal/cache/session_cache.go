// Package cache keeps session snapshots, live updates and activity marks in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/config"
	"github.com/stemsi/examdrill/internal/model"
)

// SessionCache is a Redis cache-aside layer in front of the session store.
// Every method is best effort: Redis failures are logged and never surface
// to the caller, which falls back to the database.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *SessionCache {
	return &SessionCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "session_cache").Logger(),
	}
}

// Get returns the cached snapshot of a session.
func (c *SessionCache) Get(ctx context.Context, id string) (*model.ExamSession, bool) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("session_id", id).Msg("Snapshot cache read failed")
		}
		return nil, false
	}

	var s model.ExamSession
	if err := json.Unmarshal(raw, &s); err != nil {
		c.log.Warn().Err(err).Str("session_id", id).Msg("Dropping undecodable snapshot")
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &s, true
}

// Set overwrites the snapshot of a session after a mutation. When the write
// fails the key is dropped so an older snapshot cannot outlive the change.
func (c *SessionCache) Set(ctx context.Context, s *model.ExamSession) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.Invalidate(ctx, s.ID)
		return
	}
	if err := c.rdb.Set(ctx, config.CacheKey.SessionSnapshotKey(s.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", s.ID).Msg("Snapshot cache write failed")
		c.Invalidate(ctx, s.ID)
	}
}

// SetNX fills the snapshot of a session only when none is cached, so a read
// that raced a mutation never replaces the newer write-through value.
func (c *SessionCache) SetNX(ctx context.Context, s *model.ExamSession) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	err = c.rdb.SetArgs(ctx, config.CacheKey.SessionSnapshotKey(s.ID), raw, redis.SetArgs{Mode: "NX", TTL: c.ttl}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("session_id", s.ID).Msg("Snapshot cache fill failed")
	}
}

// Invalidate drops the cached snapshot of a session.
func (c *SessionCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, config.CacheKey.SessionSnapshotKey(id)).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", id).Msg("Snapshot cache invalidation failed")
	}
}

// PublishUpdate broadcasts a mutation on the session's live feed.
func (c *SessionCache) PublishUpdate(ctx context.Context, u model.SessionUpdate) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.rdb.Publish(ctx, config.CacheKey.SessionUpdatesChannel(u.Session.ID), raw).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", u.Session.ID).Msg("Publish session update failed")
	}
}

// QueueActivity marks a session as used for the activity worker.
func (c *SessionCache) QueueActivity(ctx context.Context, id string, at time.Time) {
	raw, _ := json.Marshal(model.SessionActivity{SessionID: id, SeenAt: at})
	if err := c.rdb.RPush(ctx, config.WorkerKey.SessionActivityQueue, raw).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", id).Msg("Queue session activity failed")
	}
}

// Subscribe opens the live feed of a session. Callers must Close the result.
func (c *SessionCache) Subscribe(ctx context.Context, id string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, config.CacheKey.SessionUpdatesChannel(id))
}

// Watch streams the decoded updates of a session. The channel closes after
// stop is called or ctx ends.
func (c *SessionCache) Watch(ctx context.Context, id string) (<-chan model.SessionUpdate, func(), error) {
	sub := c.Subscribe(ctx, id)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	out := make(chan model.SessionUpdate, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var u model.SessionUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				c.log.Warn().Err(err).Str("session_id", id).Msg("Dropping undecodable session update")
				continue
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}

// Nop is the cache used when Redis is disabled.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.ExamSession, bool) { return nil, false }
func (Nop) Set(context.Context, *model.ExamSession) {}
func (Nop) SetNX(context.Context, *model.ExamSession) {}
func (Nop) Invalidate(context.Context, string) {}
func (Nop) PublishUpdate(context.Context, model.SessionUpdate) {}
func (Nop) QueueActivity(context.Context, string, time.Time) {}
