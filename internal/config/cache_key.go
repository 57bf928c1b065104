package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionSnapshotKey returns the cache key for a session's canonical snapshot
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// SessionUpdatesChannel returns the Redis PubSub channel name for a session's live feed
func (r *CacheKeyStruct) SessionUpdatesChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:updates", sessionID)
}

var CacheKey = NewCacheKeyStruct()
