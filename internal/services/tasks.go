package services

import (
	"context"
	"errors"
	"time"
)

// Names of the built-in background tasks
const (
	TaskCloseExpiredVotes  = "close-expired-votes"
	TaskCleanupSystemLogs  = "cleanup-system-logs"
	TaskRetryFailedWebhook = "retry-failed-webhooks"
)

// CloseExpiredVotesTask settles votes whose deadline passed, then repairs
// vote steps an earlier run could not finish
func CloseExpiredVotesTask(spec string, votes *VoteService, evaluations *EvaluationService) ScheduledTask {
	return ScheduledTask{
		Name: TaskCloseExpiredVotes,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, closeErr := votes.CloseExpired(ctx, time.Now())
			_, reconcileErr := evaluations.Reconcile(ctx)
			return errors.Join(closeErr, reconcileErr)
		},
	}
}

// CleanupSystemLogsTask applies the system log retention window
func CleanupSystemLogsTask(spec string, logs *SystemLogService) ScheduledTask {
	return ScheduledTask{
		Name: TaskCleanupSystemLogs,
		Spec: spec,
		Run:  logs.RunCleanup,
	}
}
