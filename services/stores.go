package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

// UserStore is the slice of the users collection the engine needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListReferralLinks(ctx context.Context) ([]models.ReferralLink, error)
	ListActivatedUserIDs(ctx context.Context) ([]primitive.ObjectID, error)
	// Credit increments wallet and the given extra.* counter by amount.
	Credit(ctx context.Context, id primitive.ObjectID, amount float64, incomeField string) error
	ActivateDailyProfit(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.User, error)
	// ResetDailyActivation clears the opt-in of users activated before the given time.
	ResetDailyActivation(ctx context.Context, ids []primitive.ObjectID, activatedBefore time.Time) error
}

type InvestmentStore interface {
	// ListDue returns active investments of the given owners not yet credited for dayStart,
	// ordered by owner.
	ListDue(ctx context.Context, userIDs []primitive.ObjectID, dayStart time.Time) ([]models.Investment, error)
	// ClaimDay sets last_profit_date to dayStart only if it is still null or earlier.
	ClaimDay(ctx context.Context, id primitive.ObjectID, dayStart time.Time) (bool, error)
	// RestoreClaim undoes ClaimDay when the credit could not be applied.
	RestoreClaim(ctx context.Context, id primitive.ObjectID, dayStart time.Time, previous *time.Time) error
}

type PlanStore interface {
	ListPlans(ctx context.Context) ([]models.InvestmentPlan, error)
}

type IncomeStore interface {
	Append(ctx context.Context, income *models.Income) error
	// SetStatus moves a pending entry to credited or failed.
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

// FinishStats is what a run writes into its execution record when it ends.
type FinishStats struct {
	Status          string
	ProcessedCount  int
	ErrorCount      int
	TotalAmount     float64
	TotalCommission float64
	ErrorMessage    string
}

type ExecutionStore interface {
	// Insert fails with ErrRunningExists when a running record exists for the cron.
	Insert(ctx context.Context, exec *models.CronExecution) error
	FindRunning(ctx context.Context, cronName string) (*models.CronExecution, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.CronExecution, error)
	// Finalize moves a running record to a terminal state; false if it was not running.
	Finalize(ctx context.Context, id primitive.ObjectID, stats FinishStats, endTime time.Time, durationMs int64) (bool, error)
	CountSucceededBetween(ctx context.Context, cronName string, from, to time.Time) (int64, error)
}

type ActivationStore interface {
	FindForDay(ctx context.Context, userID primitive.ObjectID, day time.Time) (*models.TradeActivation, error)
	Create(ctx context.Context, activation *models.TradeActivation) error
	ListPendingUserIDs(ctx context.Context, createdBefore time.Time) ([]primitive.ObjectID, error)
	MarkProcessed(ctx context.Context, userID, executionID primitive.ObjectID, amount float64, at time.Time) error
	MarkFailed(ctx context.Context, userID, executionID primitive.ObjectID, amount float64, reason string, at time.Time) error
	MarkSkipped(ctx context.Context, userIDs []primitive.ObjectID, executionID primitive.ObjectID, createdBefore, at time.Time) (int64, error)
}

// TxRunner applies fn as one unit. When Transactional is false fn runs without a
// session and callers compensate on failure themselves.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

// EventSink receives credit and run events after they are committed.
type EventSink interface {
	IncomeCredited(income models.Income)
	ExecutionFinished(exec models.CronExecution)
}

type nopSink struct{}

func (nopSink) IncomeCredited(models.Income)          {}
func (nopSink) ExecutionFinished(models.CronExecution) {}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

func (m MultiSink) IncomeCredited(income models.Income) {
	for _, s := range m {
		s.IncomeCredited(income)
	}
}

func (m MultiSink) ExecutionFinished(exec models.CronExecution) {
	for _, s := range m {
		s.ExecutionFinished(exec)
	}
}

// DirectTx runs fn with no transaction.
type DirectTx struct{}

func (DirectTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (DirectTx) Transactional() bool { return false }
