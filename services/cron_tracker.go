package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

// DefaultStaleAfter is how long a running record may sit before it counts as abandoned.
const DefaultStaleAfter = 2 * time.Hour

// CronTracker records every batch run and refuses overlapping runs of the same cron.
type CronTracker struct {
	store      ExecutionStore
	clock      *utils.DayClock
	staleAfter time.Duration
	log        *logrus.Logger
}

func NewCronTracker(store ExecutionStore, clock *utils.DayClock, staleAfter time.Duration, log *logrus.Logger) *CronTracker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &CronTracker{store: store, clock: clock, staleAfter: staleAfter, log: log}
}

func (t *CronTracker) StaleAfter() time.Duration {
	return t.staleAfter
}

// Begin inserts a running record for cronName. A fresh running record makes it fail
// with ErrAlreadyRunning; a stale one is closed as failed first.
func (t *CronTracker) Begin(ctx context.Context, cronName, triggeredBy string) (*models.CronExecution, error) {
	now := t.clock.Now()

	running, err := t.store.FindRunning(ctx, cronName)
	if err != nil {
		return nil, fmt.Errorf("find running %s execution: %w", cronName, err)
	}
	if running != nil {
		age := now.Sub(running.StartTime)
		if age < t.staleAfter {
			return nil, ErrAlreadyRunning
		}
		if err := t.abandon(ctx, running, now); err != nil {
			return nil, err
		}
	}

	exec := &models.CronExecution{
		ID:          primitive.NewObjectID(),
		CronName:    cronName,
		StartTime:   now,
		Status:      models.CronStatusRunning,
		TriggeredBy: triggeredBy,
	}
	if err := t.store.Insert(ctx, exec); err != nil {
		if errors.Is(err, ErrRunningExists) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("insert %s execution: %w", cronName, err)
	}

	t.log.WithFields(logrus.Fields{
		"cron_name":    cronName,
		"execution_id": exec.ID.Hex(),
		"triggered_by": triggeredBy,
	}).Info("cron execution started")
	return exec, nil
}

func (t *CronTracker) abandon(ctx context.Context, running *models.CronExecution, now time.Time) error {
	msg := fmt.Sprintf("abandoned: running since %s", running.StartTime.Format(time.RFC3339))
	stats := FinishStats{
		Status:          models.CronStatusFailed,
		ProcessedCount:  running.ProcessedCount,
		ErrorCount:      running.ErrorCount,
		TotalAmount:     running.TotalAmount,
		TotalCommission: running.TotalCommission,
		ErrorMessage:    msg,
	}
	duration := now.Sub(running.StartTime).Milliseconds()
	if _, err := t.store.Finalize(ctx, running.ID, stats, now, duration); err != nil {
		return fmt.Errorf("close stale execution %s: %w", running.ID.Hex(), err)
	}
	t.log.WithFields(logrus.Fields{
		"cron_name":    running.CronName,
		"execution_id": running.ID.Hex(),
		"started_at":   running.StartTime,
	}).Warn("stale running execution marked failed")
	return nil
}

// Finish moves a running execution to its terminal status.
func (t *CronTracker) Finish(ctx context.Context, id primitive.ObjectID, stats FinishStats) (*models.CronExecution, error) {
	if !models.IsTerminalCronStatus(stats.Status) {
		return nil, fmt.Errorf("%w: %q is not a terminal status", ErrInvalidExecutionState, stats.Status)
	}

	exec, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.Status != models.CronStatusRunning {
		return nil, ErrInvalidExecutionState
	}

	now := t.clock.Now()
	duration := now.Sub(exec.StartTime).Milliseconds()
	ok, err := t.store.Finalize(ctx, id, stats, now, duration)
	if err != nil {
		return nil, fmt.Errorf("finalize execution %s: %w", id.Hex(), err)
	}
	if !ok {
		return nil, ErrInvalidExecutionState
	}

	exec.Status = stats.Status
	exec.EndTime = &now
	exec.DurationMs = duration
	exec.ProcessedCount = stats.ProcessedCount
	exec.ErrorCount = stats.ErrorCount
	exec.TotalAmount = stats.TotalAmount
	exec.TotalCommission = stats.TotalCommission
	exec.ErrorMessage = stats.ErrorMessage
	return exec, nil
}

// HasSucceededToday reports a completed or partially successful run started today.
func (t *CronTracker) HasSucceededToday(ctx context.Context, cronName string) (bool, error) {
	from, to := t.clock.DayBounds(t.clock.Now())
	n, err := t.store.CountSucceededBetween(ctx, cronName, from, to)
	if err != nil {
		return false, fmt.Errorf("count successful %s executions: %w", cronName, err)
	}
	return n > 0, nil
}
