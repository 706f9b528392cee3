package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/provalab/examguard-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MonitorEventType enumerates the live events pushed to proctor dashboards.
type MonitorEventType string

const (
	MonitorEventViolation    MonitorEventType = "VIOLATION"
	MonitorEventWarning      MonitorEventType = "WARNING_REACHED"
	MonitorEventAutoSubmit   MonitorEventType = "AUTO_SUBMITTED"
	MonitorEventBlocked      MonitorEventType = "STUDENT_BLOCKED"
	MonitorEventCompleted    MonitorEventType = "ATTEMPT_COMPLETED"
	MonitorEventPaused       MonitorEventType = "ATTEMPT_PAUSED"
	MonitorEventResumed      MonitorEventType = "ATTEMPT_RESUMED"
	MonitorEventTimeExtended MonitorEventType = "TIME_EXTENDED"
)

// MonitorEvent is one live update on a session's monitor channel.
type MonitorEvent struct {
	Type           MonitorEventType `json:"type"`
	AttemptID      uuid.UUID        `json:"attempt_id"`
	StudentID      int              `json:"student_id"`
	ViolationType  string           `json:"violation_type,omitempty"`
	ViolationCount int              `json:"violation_count,omitempty"`
	Detail         string           `json:"detail,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// MonitorService fans live attempt events out to proctor dashboards over
// Redis pub/sub and serves the initial state snapshot from PostgreSQL.
type MonitorService struct {
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(attemptRepo *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		attemptRepo: attemptRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// Publish pushes an event to the session's monitor channel. Best-effort: a
// dropped event degrades the live view, never the exam itself.
func (s *MonitorService) Publish(ctx context.Context, sessionID uuid.UUID, ev MonitorEvent) {
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal monitor event")
		return
	}
	channel := config.CacheKey.SessionMonitorChannel(sessionID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("publish monitor event failed")
	}
}

// Subscribe opens a subscription on the session's monitor channel. The
// caller owns the returned PubSub and must Close it.
func (s *MonitorService) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	channel := config.CacheKey.SessionMonitorChannel(sessionID.String())
	return s.rdb.Subscribe(ctx, channel)
}

// SessionState returns the current monitor rows for every attempt in the
// session. Sent once when a proctor dashboard connects, before live events.
func (s *MonitorService) SessionState(ctx context.Context, sessionID uuid.UUID) ([]repository.MonitorRow, error) {
	rows, err := s.attemptRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repository.MonitorRow{}
	}
	return rows, nil
}
