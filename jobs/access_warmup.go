package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-iam/meridian-iam/internal/access"
	jobmetrics "github.com/meridian-iam/meridian-iam/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AccessWarmupJob resolves access for a batch of users through the caching
// resolver so subsequent requests are served from Redis.
type AccessWarmupJob struct {
	Source  access.ResultSource
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAccessWarmupJob wires dependencies for the warmup handler.
func NewAccessWarmupJob(source access.ResultSource, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessWarmupJob {
	return &AccessWarmupJob{Source: source, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAccessWarmup tasks.
func (j *AccessWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("access warmup: handler not configured")
	}
	var payload AccessWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAccessWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()

	userIDs := payload.UserIDs
	if len(userIDs) == 0 {
		ids, err := j.activeUserIDs(ctx)
		if err != nil {
			resultErr = err
			logger.Error("load warmup users", slog.Any("error", err))
			return resultErr
		}
		userIDs = ids
	}
	if len(userIDs) == 0 {
		logger.Info("no users discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, userID := range userIDs {
		userCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Source.ResolveUserAccess(userCtx, userID)
		cancel()
		if err != nil {
			// A corrupted hierarchy fails every user the same way; stop
			// instead of burning through the rest of the batch.
			if errors.Is(err, access.ErrHierarchyCorrupted) {
				resultErr = err
				logger.Error("warmup aborted on corrupted hierarchy", slog.Any("error", err))
				return resultErr
			}
			logger.Warn("warm user access", slog.Int64("user_id", userID), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed access warmup",
		slog.Int("users", warmed),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *AccessWarmupJob) activeUserIDs(ctx context.Context) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("access warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT id FROM users
		WHERE deleted_at IS NULL AND is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *AccessWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAccessWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAccessWarmup))
}

func (j *AccessWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
