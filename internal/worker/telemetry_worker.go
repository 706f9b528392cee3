package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// TelemetryWorker drains the advisory telemetry queue into PostgreSQL.
// Telemetry is the analytics copy of violation events; the authoritative
// rows and counters are written synchronously by the recording engine, so
// this lane can batch aggressively and tolerate delay.
type TelemetryWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewTelemetryWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *TelemetryWorker {
	return &TelemetryWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "telemetry_worker").Logger(),
	}
}

type telemetryRecord struct {
	AttemptID string          `json:"attempt_id"`
	StudentID int             `json:"student_id"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func (w *TelemetryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("TelemetryWorker started")

	buffer := make([]*telemetryRecord, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistTelemetryQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			// Real Redis error (e.g., connection lost)
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var rec telemetryRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &rec)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *TelemetryWorker) flushSafe(ctx context.Context, batch []*telemetryRecord) {
	// Try Fast Path: Bulk Insert
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

		// Fallback Path: Insert one by one
		w.fallbackInsert(ctx, batch)
	}
}

func (w *TelemetryWorker) bulkInsert(ctx context.Context, batch []*telemetryRecord) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, rec := range batch {
		attemptID, err := uuid.Parse(rec.AttemptID)
		if err != nil {
			// Return error to trigger fallback, which will handle the bad UUID individually
			return err
		}
		rows = append(rows, []interface{}{
			attemptID, rec.StudentID, rec.Type, []byte(rec.Metadata), time.Unix(rec.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_telemetry"},
		[]string{"attempt_id", "student_id", "signal_type", "metadata", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *TelemetryWorker) fallbackInsert(ctx context.Context, batch []*telemetryRecord) {
	requeueList := make([]*telemetryRecord, 0)

	for _, rec := range batch {
		attemptID, err := uuid.Parse(rec.AttemptID)
		if err != nil {
			w.log.Error().Str("attempt_id", rec.AttemptID).Msg("Dropping telemetry with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO attempt_telemetry (attempt_id, student_id, signal_type, metadata, recorded_at)
             VALUES ($1, $2, $3, $4::jsonb, $5)`,
			attemptID, rec.StudentID, rec.Type, []byte(rec.Metadata), time.Unix(rec.Timestamp, 0),
		)

		if err != nil {
			// Requeue everything that fails SQL insert so a DB outage
			// loses nothing; duplicates are acceptable in this lane.
			w.log.Error().Err(err).Int("student_id", rec.StudentID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, rec)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *TelemetryWorker) requeue(ctx context.Context, items []*telemetryRecord) {
	// Use a pipeline to push everything back quickly
	pipe := w.rdb.Pipeline()
	for _, rec := range items {
		data, _ := json.Marshal(rec)
		pipe.RPush(ctx, config.WorkerKey.PersistTelemetryQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *TelemetryWorker) shutdown(buffer []*telemetryRecord) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
