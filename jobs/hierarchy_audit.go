package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-iam/meridian-iam/internal/access"
	jobmetrics "github.com/meridian-iam/meridian-iam/internal/jobs"
)

// EdgeSource loads the stored role hierarchy. The access store satisfies it.
type EdgeSource interface {
	HierarchyEdges(ctx context.Context) ([]access.HierarchyEdge, error)
}

// CorruptionSink is notified when an audit finds cycles. The observability
// metrics satisfy it.
type CorruptionSink interface {
	CorruptionDetected()
}

// HierarchyAuditJob sweeps the stored hierarchy for cycles. Cycles cannot be
// created through the API, so a hit points at manual writes or partial
// restores and deserves an alert.
type HierarchyAuditJob struct {
	Edges   EdgeSource
	Sink    CorruptionSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewHierarchyAuditJob wires dependencies for the audit handler.
func NewHierarchyAuditJob(edges EdgeSource, sink CorruptionSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *HierarchyAuditJob {
	return &HierarchyAuditJob{Edges: edges, Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle processes TaskHierarchyAudit tasks.
func (j *HierarchyAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Edges == nil {
		return errors.New("hierarchy audit: handler not configured")
	}

	tracker := j.metrics().Track(TaskHierarchyAudit)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()

	edges, err := j.Edges.HierarchyEdges(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load hierarchy edges", slog.Any("error", err))
		return resultErr
	}

	hierarchy := access.NewHierarchy(edges)
	if err := hierarchy.Validate(); err != nil {
		corrupted := corruptedEdgeCount(hierarchy, edges)
		j.metrics().AddCorruptedEdges(TaskHierarchyAudit, corrupted)
		if j.Sink != nil {
			j.Sink.CorruptionDetected()
		}
		resultErr = err
		logger.Error("hierarchy audit found cycles",
			slog.Int("edges", len(edges)),
			slog.Int("corrupted_edges", corrupted))
		return resultErr
	}

	logger.Info("hierarchy audit clean",
		slog.Int("edges", len(edges)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

// corruptedEdgeCount counts edges that close a cycle: the edge parent is
// already reachable from its child through the remaining graph.
func corruptedEdgeCount(h *access.Hierarchy, edges []access.HierarchyEdge) int {
	count := 0
	for _, e := range edges {
		if h.WouldCreateCycle(e.ParentRoleID, e.ChildRoleID) {
			count++
		}
	}
	return count
}

func (j *HierarchyAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskHierarchyAudit))
	}
	return slog.Default().With(slog.String("job", TaskHierarchyAudit))
}

func (j *HierarchyAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
