package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

// RecoveryOutcome is the terminal state of a recovery check.
type RecoveryOutcome string

const (
	RecoveryNotChecked      RecoveryOutcome = "not_checked"
	RecoveryChecking        RecoveryOutcome = "checking"
	RecoveryAlreadyRan      RecoveryOutcome = "skipped_already_ran"
	RecoveryTooEarly        RecoveryOutcome = "skipped_too_early"
	RecoveryNothingPending  RecoveryOutcome = "skipped_nothing_pending"
	RecoveryLocked          RecoveryOutcome = "skipped_locked"
	RecoveryReplayedSuccess RecoveryOutcome = "replayed_success"
	RecoveryReplayedFailure RecoveryOutcome = "replayed_failure"
)

// Skipped reports an outcome where no replay was made. RecoveryLocked is the case
// where a run lock or a fresh running record blocked it.
func (o RecoveryOutcome) Skipped() bool {
	switch o {
	case RecoveryAlreadyRan, RecoveryTooEarly, RecoveryNothingPending, RecoveryLocked:
		return true
	}
	return false
}

// ProfitRunner is the part of the engine recovery drives.
type ProfitRunner interface {
	Run(ctx context.Context, triggeredBy string) (*RunResult, error)
	PendingCount(ctx context.Context) (int, error)
}

// Recovery replays today's daily profit run when the process missed it.
type Recovery struct {
	runner   ProfitRunner
	tracker  *CronTracker
	schedule cron.Schedule
	clock    *utils.DayClock
	log      *logrus.Logger

	mu     sync.Mutex
	state  RecoveryOutcome
	result *RunResult
}

func NewRecovery(runner ProfitRunner, tracker *CronTracker, schedule cron.Schedule, clock *utils.DayClock, log *logrus.Logger) *Recovery {
	return &Recovery{
		runner:   runner,
		tracker:  tracker,
		schedule: schedule,
		clock:    clock,
		log:      log,
		state:    RecoveryNotChecked,
	}
}

// State returns the current outcome; RecoveryNotChecked before Check ran.
func (r *Recovery) State() RecoveryOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result is the run result of a replay, nil when recovery skipped.
func (r *Recovery) Result() *RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// ScheduledToday returns the first time the schedule fires on today's canonical date.
func (r *Recovery) ScheduledToday() time.Time {
	return ScheduledOn(r.schedule, r.clock, r.clock.Now())
}

// ScheduledOn returns the first fire of schedule on the canonical day containing t.
func ScheduledOn(schedule cron.Schedule, clock *utils.DayClock, t time.Time) time.Time {
	start := clock.StartOfDay(t)
	return schedule.Next(start.Add(-time.Second))
}

// Check runs once. Errors are infrastructure failures the caller should treat as fatal.
func (r *Recovery) Check(ctx context.Context) (RecoveryOutcome, error) {
	r.mu.Lock()
	if r.state != RecoveryNotChecked {
		state := r.state
		r.mu.Unlock()
		return state, nil
	}
	r.state = RecoveryChecking
	r.mu.Unlock()

	outcome, result, err := r.check(ctx)

	r.mu.Lock()
	r.state = outcome
	r.result = result
	r.mu.Unlock()

	entry := r.log.WithFields(logrus.Fields{
		"cron_name": models.CronDailyProfit,
		"outcome":   string(outcome),
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("daily profit recovery failed")
	case outcome == RecoveryLocked:
		entry.Warn("daily profit run is held elsewhere, recovery skipped")
	case outcome.Skipped():
		entry.Info("daily profit recovery not needed")
	default:
		entry.WithFields(logrus.Fields{
			"execution_id": result.ExecutionID.Hex(),
			"status":       result.Status,
			"processed":    result.ProcessedCount,
			"errors":       result.ErrorCount,
		}).Info("daily profit recovery replayed")
	}
	return outcome, err
}

func (r *Recovery) check(ctx context.Context) (RecoveryOutcome, *RunResult, error) {
	ran, err := r.tracker.HasSucceededToday(ctx, models.CronDailyProfit)
	if err != nil {
		return RecoveryReplayedFailure, nil, err
	}
	if ran {
		return RecoveryAlreadyRan, nil, nil
	}

	if now := r.clock.Now(); now.Before(r.ScheduledToday()) {
		return RecoveryTooEarly, nil, nil
	}

	pending, err := r.runner.PendingCount(ctx)
	if err != nil {
		return RecoveryReplayedFailure, nil, fmt.Errorf("count pending investments: %w", err)
	}
	if pending == 0 {
		return RecoveryNothingPending, nil, nil
	}

	r.log.WithField("pending", pending).Warn("daily profit run missed, replaying")
	result, err := r.runner.Run(ctx, models.TriggeredByRecovery)
	if errors.Is(err, ErrAlreadyRunning) {
		return RecoveryLocked, nil, nil
	}
	if err != nil {
		return RecoveryReplayedFailure, result, err
	}
	if result.Status == models.CronStatusFailed {
		return RecoveryReplayedFailure, result, nil
	}
	return RecoveryReplayedSuccess, result, nil
}
