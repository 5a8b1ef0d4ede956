package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessWarmup pre-resolves access for a set of users so their first
	// request after an invalidation hits the cache.
	TaskAccessWarmup = "access:warmup"
	// TaskHierarchyAudit sweeps the stored role hierarchy for cycles.
	TaskHierarchyAudit = "hierarchy:audit"
)

// AccessWarmupPayload selects the users to warm. An empty UserIDs slice
// means every active user.
type AccessWarmupPayload struct {
	UserIDs []int64 `json:"user_ids,omitempty"`
}

// NewAccessWarmupTask constructs an Asynq task.
func NewAccessWarmupTask(payload AccessWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessWarmup, data), nil
}

// NewHierarchyAuditTask constructs an Asynq task. The audit takes no
// parameters.
func NewHierarchyAuditTask() *asynq.Task {
	return asynq.NewTask(TaskHierarchyAudit, nil)
}
