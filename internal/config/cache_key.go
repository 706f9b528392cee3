package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptPaperKey returns the cache key for an attempt's frozen question paper
func (r *CacheKeyStruct) AttemptPaperKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:paper", attemptID)
}

// AttemptRemainingKey returns the cache key for an attempt's last authoritative remaining time
func (r *CacheKeyStruct) AttemptRemainingKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:remaining", attemptID)
}

// SessionMonitorChannel returns the Redis PubSub channel name for a session window's live monitor
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
