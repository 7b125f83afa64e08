package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrAlreadyRunning is returned when a run of the same cron is in progress.
	// The caller skips the run, it is never queued.
	ErrAlreadyRunning        = errors.New("cron execution already running")
	ErrExecutionNotFound     = errors.New("cron execution not found")
	ErrInvalidExecutionState = errors.New("cron execution is not in running state")
	ErrRunningExists         = errors.New("a running execution already exists for this cron")
	ErrPlanNotFound          = errors.New("investment plan not found")
	ErrInvalidPlan           = errors.New("investment plan misconfigured")
	ErrUplineNotFound        = errors.New("upline user not found")
	ErrReferralCycle         = errors.New("referral chain loops back on itself")
	ErrUserNotFound          = errors.New("user not found")
	ErrActivationExists      = errors.New("trade activation already exists for this day")
	ErrLockHeld              = errors.New("run lock held by another process")
)

// InvestmentProcessingError isolates the failure of one investment inside a batch.
type InvestmentProcessingError struct {
	InvestmentID primitive.ObjectID
	UserID       primitive.ObjectID
	Err          error
}

func (e *InvestmentProcessingError) Error() string {
	return fmt.Sprintf("investment %s (user %s): %v", e.InvestmentID.Hex(), e.UserID.Hex(), e.Err)
}

func (e *InvestmentProcessingError) Unwrap() error { return e.Err }

// CascadeLookupError stops a commission walk at Level. Levels below it stay credited.
type CascadeLookupError struct {
	Level    int
	UserID   primitive.ObjectID
	UplineID primitive.ObjectID
	Err      error
}

func (e *CascadeLookupError) Error() string {
	return fmt.Sprintf("cascade level %d: resolve upline %s of %s: %v",
		e.Level, e.UplineID.Hex(), e.UserID.Hex(), e.Err)
}

func (e *CascadeLookupError) Unwrap() error { return e.Err }
