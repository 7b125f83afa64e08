package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HSouheill/herbreserve_backend/models"
)

func newTestTracker(t *testing.T) (*memStore, *testClock, *CronTracker) {
	t.Helper()
	store := newMemStore()
	clock, day := newTestClock(runDay)
	return store, clock, NewCronTracker(store, day, 0, quietLogger())
}

func TestTrackerLifecycle(t *testing.T) {
	store, clock, tracker := newTestTracker(t)
	ctx := context.Background()

	if tracker.StaleAfter() != DefaultStaleAfter {
		t.Errorf("StaleAfter() = %v, want default", tracker.StaleAfter())
	}

	exec, err := tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredByManual)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if exec.Status != models.CronStatusRunning || !exec.StartTime.Equal(runDay) {
		t.Errorf("exec = %+v", exec)
	}

	if _, err := tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredBySchedule); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Begin() error = %v, want ErrAlreadyRunning", err)
	}

	clock.Advance(1500 * time.Millisecond)
	done, err := tracker.Finish(ctx, exec.ID, FinishStats{Status: models.CronStatusPartialSuccess, ProcessedCount: 4, ErrorCount: 1})
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if done.DurationMs != 1500 || done.EndTime == nil {
		t.Errorf("finished exec = %+v", done)
	}

	if _, err := tracker.Finish(ctx, exec.ID, FinishStats{Status: models.CronStatusCompleted}); !errors.Is(err, ErrInvalidExecutionState) {
		t.Errorf("Finish() on terminal record error = %v, want ErrInvalidExecutionState", err)
	}

	ran, err := tracker.HasSucceededToday(ctx, models.CronDailyProfit)
	if err != nil || !ran {
		t.Errorf("HasSucceededToday() = %v, %v; want true", ran, err)
	}
	if got := store.executionsByStatus(models.CronStatusPartialSuccess); len(got) != 1 {
		t.Errorf("partial executions = %d, want 1", len(got))
	}
}

func TestTrackerFinishRejectsNonTerminalStatus(t *testing.T) {
	_, _, tracker := newTestTracker(t)
	exec, err := tracker.Begin(context.Background(), models.CronDailyProfit, models.TriggeredBySchedule)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_, err = tracker.Finish(context.Background(), exec.ID, FinishStats{Status: models.CronStatusRunning})
	if !errors.Is(err, ErrInvalidExecutionState) {
		t.Errorf("Finish(running) error = %v, want ErrInvalidExecutionState", err)
	}
}

func TestTrackerFinishUnknownExecution(t *testing.T) {
	store, _, tracker := newTestTracker(t)
	exec, _ := tracker.Begin(context.Background(), models.CronDailyProfit, models.TriggeredBySchedule)
	delete(store.executions, exec.ID)

	_, err := tracker.Finish(context.Background(), exec.ID, FinishStats{Status: models.CronStatusCompleted})
	if !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("Finish() error = %v, want ErrExecutionNotFound", err)
	}
}

func TestTrackerAbandonsStaleRun(t *testing.T) {
	store, clock, tracker := newTestTracker(t)
	ctx := context.Background()

	stale, err := tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredBySchedule)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	clock.Advance(DefaultStaleAfter + time.Minute)

	fresh, err := tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredByRecovery)
	if err != nil {
		t.Fatalf("Begin() after stale error = %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatal("Begin() reused the stale record")
	}
	old, _ := store.Get(ctx, stale.ID)
	if old.Status != models.CronStatusFailed || old.ErrorMessage == "" || old.EndTime == nil {
		t.Errorf("stale record = %+v, want failed with message", old)
	}
}

func TestHasSucceededTodayIgnoresFailedAndOtherDays(t *testing.T) {
	_, clock, tracker := newTestTracker(t)
	ctx := context.Background()

	exec, _ := tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredBySchedule)
	if _, err := tracker.Finish(ctx, exec.ID, FinishStats{Status: models.CronStatusFailed}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if ran, _ := tracker.HasSucceededToday(ctx, models.CronDailyProfit); ran {
		t.Error("a failed run should not count as success")
	}

	exec, _ = tracker.Begin(ctx, models.CronDailyProfit, models.TriggeredBySchedule)
	if _, err := tracker.Finish(ctx, exec.ID, FinishStats{Status: models.CronStatusCompleted}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	clock.Advance(24 * time.Hour)
	if ran, _ := tracker.HasSucceededToday(ctx, models.CronDailyProfit); ran {
		t.Error("yesterday's run should not count for today")
	}
}
