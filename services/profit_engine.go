package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

const maxErrorSamples = 20

// ProfitEngineDeps wires the engine to its stores and collaborators.
type ProfitEngineDeps struct {
	Users       UserStore
	Investments InvestmentStore
	Plans       PlanStore
	Incomes     IncomeStore
	Activations ActivationStore
	Executions  ExecutionStore
	Tx          TxRunner
	Lock        RunLock
	Events      EventSink
	Clock       *utils.DayClock
	Log         *logrus.Logger

	StaleAfter time.Duration
	// ResetActivation clears dailyProfitActivated once a user's opt-in has been consumed.
	ResetActivation bool
}

// ProfitEngine is the daily batch that credits profit on every eligible investment
// and cascades team commission up the referral tree.
type ProfitEngine struct {
	users       UserStore
	investments InvestmentStore
	plans       PlanStore
	activations ActivationStore
	tx          TxRunner
	lock        RunLock
	events      EventSink
	clock       *utils.DayClock
	log         *logrus.Logger

	ledger  *Ledger
	cascade *CommissionCascade
	tracker *CronTracker

	resetActivation bool
}

func NewProfitEngine(d ProfitEngineDeps) *ProfitEngine {
	if d.Tx == nil {
		d.Tx = DirectTx{}
	}
	if d.Lock == nil {
		d.Lock = NoopRunLock{}
	}
	if d.Events == nil {
		d.Events = nopSink{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	ledger := NewLedger(d.Incomes, d.Users, d.Tx, d.Log)
	return &ProfitEngine{
		users:           d.Users,
		investments:     d.Investments,
		plans:           d.Plans,
		activations:     d.Activations,
		tx:              d.Tx,
		lock:            d.Lock,
		events:          d.Events,
		clock:           d.Clock,
		log:             d.Log,
		ledger:          ledger,
		cascade:         NewCommissionCascade(ledger, d.Log),
		tracker:         NewCronTracker(d.Executions, d.Clock, d.StaleAfter, d.Log),
		resetActivation: d.ResetActivation,
	}
}

// Tracker exposes the execution tracker the engine runs under.
func (e *ProfitEngine) Tracker() *CronTracker {
	return e.tracker
}

// RunResult is the aggregate outcome of one run.
type RunResult struct {
	ExecutionID        primitive.ObjectID `json:"execution_id"`
	Status             string             `json:"status"`
	TriggeredBy        string             `json:"triggered_by"`
	ProcessedCount     int                `json:"processed_count"`
	ErrorCount         int                `json:"error_count"`
	SkippedActivations int64              `json:"skipped_activations"`
	TotalProfit        float64            `json:"total_profit"`
	TotalCommission    float64            `json:"total_commission"`
	Errors             []string           `json:"errors,omitempty"`
}

type runState struct {
	exec     *models.CronExecution
	today    time.Time
	tree     *ReferralTree
	plans    map[primitive.ObjectID]models.InvestmentPlan
	planErrs map[primitive.ObjectID]error
	consumed []primitive.ObjectID

	profit     decimal.Decimal
	commission decimal.Decimal
	result     RunResult
	log        *logrus.Entry
}

func (r *runState) plan(id primitive.ObjectID) (models.InvestmentPlan, error) {
	if err, bad := r.planErrs[id]; bad {
		return models.InvestmentPlan{}, err
	}
	p, ok := r.plans[id]
	if !ok {
		return models.InvestmentPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id.Hex())
	}
	return p, nil
}

func (r *runState) recordError(err error) {
	r.result.ErrorCount++
	if len(r.result.Errors) < maxErrorSamples {
		r.result.Errors = append(r.result.Errors, err.Error())
	}
}

// Run executes the daily profit batch once. It returns ErrAlreadyRunning when another
// run holds the lock. Any other error means the batch itself could not run; per
// investment failures are counted in the result instead.
func (e *ProfitEngine) Run(ctx context.Context, triggeredBy string) (*RunResult, error) {
	release, err := e.lock.Acquire(ctx, models.CronDailyProfit, e.tracker.StaleAfter())
	switch {
	case errors.Is(err, ErrLockHeld):
		return nil, ErrAlreadyRunning
	case err != nil:
		e.log.WithError(err).Warn("run lock unavailable, relying on execution record only")
		release = nil
	}
	if release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.log.WithError(err).Warn("failed to release run lock")
			}
		}()
	}

	exec, err := e.tracker.Begin(ctx, models.CronDailyProfit, triggeredBy)
	if err != nil {
		return nil, err
	}

	run := &runState{
		exec:       exec,
		today:      e.clock.StartOfDay(exec.StartTime),
		profit:     decimal.Zero,
		commission: decimal.Zero,
		result: RunResult{
			ExecutionID: exec.ID,
			TriggeredBy: triggeredBy,
		},
		log: e.log.WithFields(logrus.Fields{
			"cron_name":    models.CronDailyProfit,
			"execution_id": exec.ID.Hex(),
			"run_id":       uuid.NewString(),
			"day":          e.clock.DayKey(exec.StartTime),
		}),
	}

	due, err := e.prepare(ctx, run)
	if err != nil {
		return e.abort(ctx, run, err)
	}
	run.log.WithField("due", len(due)).Info("daily profit run selected investments")

	if err := e.processAll(ctx, run, due); err != nil {
		return e.abort(ctx, run, err)
	}
	e.settleActivations(ctx, run)
	return e.finish(ctx, run)
}

// PendingCount returns how many investments the next run would credit today.
func (e *ProfitEngine) PendingCount(ctx context.Context) (int, error) {
	activated, err := e.users.ListActivatedUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list activated users: %w", err)
	}
	if len(activated) == 0 {
		return 0, nil
	}
	due, err := e.investments.ListDue(ctx, activated, e.clock.Today())
	if err != nil {
		return 0, fmt.Errorf("list due investments: %w", err)
	}
	return len(due), nil
}

func (e *ProfitEngine) prepare(ctx context.Context, run *runState) ([]models.Investment, error) {
	plans, err := e.plans.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("load investment plans: %w", err)
	}
	run.plans = make(map[primitive.ObjectID]models.InvestmentPlan, len(plans))
	run.planErrs = make(map[primitive.ObjectID]error)
	for _, p := range plans {
		if err := validatePlan(p); err != nil {
			run.planErrs[p.ID] = err
			run.log.WithError(err).WithField("plan_id", p.ID.Hex()).Error("investment plan rejected")
			continue
		}
		run.plans[p.ID] = p
	}

	links, err := e.users.ListReferralLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load referral tree: %w", err)
	}
	run.tree = NewReferralTree(links)

	activated, err := e.users.ListActivatedUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activated users: %w", err)
	}
	if len(activated) == 0 {
		return nil, nil
	}
	due, err := e.investments.ListDue(ctx, activated, run.today)
	if err != nil {
		return nil, fmt.Errorf("list due investments: %w", err)
	}
	return due, nil
}

// validatePlan rejects a plan whose level rates could pay out more than the profit.
func validatePlan(p models.InvestmentPlan) error {
	if p.Percentage <= 0 {
		return fmt.Errorf("%w: %s has percentage %v", ErrInvalidPlan, p.ID.Hex(), p.Percentage)
	}
	rates := p.TeamCommission.Rates()
	for i, r := range rates {
		if r < 0 {
			return fmt.Errorf("%w: %s level%d rate %v is negative", ErrInvalidPlan, p.ID.Hex(), i+1, r)
		}
	}
	if SumPlanRates(p).GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: %s team commission exceeds 100%%", ErrInvalidPlan, p.ID.Hex())
	}
	return nil
}

// SumPlanRates is the total team commission percent of a plan across all levels.
func SumPlanRates(p models.InvestmentPlan) decimal.Decimal {
	rates := p.TeamCommission.Rates()
	return utils.SumPercents(rates[:]...)
}

// processAll walks investments grouped by owner; ListDue returns them ordered by owner.
func (e *ProfitEngine) processAll(ctx context.Context, run *runState, due []models.Investment) error {
	for start := 0; start < len(due); {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted after %d investments: %w", start, err)
		}
		end := start + 1
		for end < len(due) && due[end].UserID == due[start].UserID {
			end++
		}
		e.processUser(ctx, run, due[start:end])
		start = end
	}
	return nil
}

type creditOutcome struct {
	profit      decimal.Decimal
	income      models.Income
	commissions []Commission
}

func (e *ProfitEngine) processUser(ctx context.Context, run *runState, investments []models.Investment) {
	userID := investments[0].UserID
	userProfit := decimal.Zero
	credited := 0
	var failures []string

	for _, inv := range investments {
		out, err := e.processInvestment(ctx, run, inv)
		if err != nil {
			run.recordError(err)
			failures = append(failures, err.Error())
			run.log.WithError(err).WithFields(logrus.Fields{
				"investment_id": inv.ID.Hex(),
				"user_id":       userID.Hex(),
			}).Error("investment profit failed")
			continue
		}
		if out == nil {
			run.log.WithField("investment_id", inv.ID.Hex()).Debug("investment already credited today")
			continue
		}

		credited++
		run.result.ProcessedCount++
		userProfit = userProfit.Add(out.profit)
		run.profit = run.profit.Add(out.profit)
		run.commission = run.commission.Add(TotalCommission(out.commissions))

		e.events.IncomeCredited(out.income)
		for _, c := range out.commissions {
			e.events.IncomeCredited(c.Income)
		}
	}

	now := e.clock.Now()
	amount := utils.ToAmount(userProfit)
	switch {
	case len(failures) > 0:
		if err := e.activations.MarkFailed(ctx, userID, run.exec.ID, amount, strings.Join(failures, "; "), now); err != nil {
			run.log.WithError(err).WithField("user_id", userID.Hex()).Warn("failed to record activation failure")
		}
	case credited > 0:
		if err := e.activations.MarkProcessed(ctx, userID, run.exec.ID, amount, now); err != nil {
			run.log.WithError(err).WithField("user_id", userID.Hex()).Warn("failed to mark activation processed")
		}
		run.consumed = append(run.consumed, userID)
	}
}

// processInvestment applies claim, ledger credit and cascade for one investment as a
// unit. A nil outcome with nil error means another run already claimed it today.
func (e *ProfitEngine) processInvestment(ctx context.Context, run *runState, inv models.Investment) (*creditOutcome, error) {
	fail := func(err error) error {
		return &InvestmentProcessingError{InvestmentID: inv.ID, UserID: inv.UserID, Err: err}
	}

	plan, err := run.plan(inv.InvestmentPlanID)
	if err != nil {
		return nil, fail(err)
	}
	profit := utils.PercentOf(inv.Amount, plan.Percentage)
	if !profit.IsPositive() {
		return nil, fail(fmt.Errorf("profit %s for amount %v is not positive", profit.String(), inv.Amount))
	}
	rates := plan.TeamCommission.Rates()

	var out *creditOutcome
	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		out = nil
		claimed, err := e.investments.ClaimDay(txCtx, inv.ID, run.today)
		if err != nil {
			return fmt.Errorf("claim investment: %w", err)
		}
		if !claimed {
			return nil
		}
		o, err := e.credit(txCtx, run, inv, profit, rates)
		if err != nil {
			if !e.tx.Transactional() {
				if rerr := e.investments.RestoreClaim(txCtx, inv.ID, run.today, inv.LastProfitDate); rerr != nil {
					run.log.WithError(rerr).WithField("investment_id", inv.ID.Hex()).Error("failed to restore investment claim")
				}
			}
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}
	return out, nil
}

func (e *ProfitEngine) credit(ctx context.Context, run *runState, inv models.Investment, profit decimal.Decimal, rates [models.MaxCommissionLevels]float64) (*creditOutcome, error) {
	invID := inv.ID
	execID := run.exec.ID
	now := e.clock.Now()

	income := models.Income{
		UserID:          inv.UserID,
		Amount:          utils.ToAmount(profit),
		Type:            models.IncomeTypeDailyProfit,
		InvestmentID:    &invID,
		CronExecutionID: &execID,
		CreatedAt:       now,
	}
	if err := e.ledger.Credit(ctx, &income, models.ExtraDailyIncome); err != nil {
		return nil, err
	}

	paid, err := e.cascade.Distribute(ctx, run.tree, rates, ProfitEvent{
		SourceUserID: inv.UserID,
		InvestmentID: inv.ID,
		ExecutionID:  execID,
		Profit:       profit,
		At:           now,
	})
	if err != nil {
		// Inside a transaction a failed write poisons the session, so the unit aborts.
		// Lookup failures and writes outside a transaction keep the levels already paid.
		if !IsLookupError(err) && e.tx.Transactional() {
			return nil, fmt.Errorf("commission cascade: %w", err)
		}
		run.log.WithError(err).WithFields(logrus.Fields{
			"investment_id": inv.ID.Hex(),
			"levels_paid":   len(paid),
		}).Warn("commission cascade stopped early")
	}

	return &creditOutcome{profit: profit, income: income, commissions: paid}, nil
}

// settleActivations skips opt-ins that had nothing to credit and resets consumed ones.
func (e *ProfitEngine) settleActivations(ctx context.Context, run *runState) {
	now := e.clock.Now()
	pending, err := e.activations.ListPendingUserIDs(ctx, run.exec.StartTime)
	if err != nil {
		run.log.WithError(err).Warn("failed to list pending activations")
	}
	if len(pending) > 0 {
		n, err := e.activations.MarkSkipped(ctx, pending, run.exec.ID, run.exec.StartTime, now)
		if err != nil {
			run.log.WithError(err).Warn("failed to mark activations skipped")
		}
		run.result.SkippedActivations = n
	}

	if !e.resetActivation {
		return
	}
	reset := append(append([]primitive.ObjectID{}, run.consumed...), pending...)
	if len(reset) == 0 {
		return
	}
	if err := e.users.ResetDailyActivation(ctx, reset, run.exec.StartTime); err != nil {
		run.log.WithError(err).Warn("failed to reset daily profit activation")
	}
}

func (e *ProfitEngine) terminalStatus(run *runState) string {
	switch {
	case run.result.ErrorCount == 0:
		return models.CronStatusCompleted
	case run.result.ProcessedCount > 0:
		return models.CronStatusPartialSuccess
	default:
		return models.CronStatusFailed
	}
}

func (e *ProfitEngine) finish(ctx context.Context, run *runState) (*RunResult, error) {
	run.result.Status = e.terminalStatus(run)
	run.result.TotalProfit = utils.ToAmount(run.profit)
	run.result.TotalCommission = utils.ToAmount(run.commission)

	stats := FinishStats{
		Status:          run.result.Status,
		ProcessedCount:  run.result.ProcessedCount,
		ErrorCount:      run.result.ErrorCount,
		TotalAmount:     run.result.TotalProfit,
		TotalCommission: run.result.TotalCommission,
	}
	if len(run.result.Errors) > 0 {
		stats.ErrorMessage = run.result.Errors[0]
	}

	exec, err := e.tracker.Finish(context.WithoutCancel(ctx), run.exec.ID, stats)
	if err != nil {
		return &run.result, fmt.Errorf("finalize daily profit execution: %w", err)
	}
	e.events.ExecutionFinished(*exec)

	run.log.WithFields(logrus.Fields{
		"status":           run.result.Status,
		"processed":        run.result.ProcessedCount,
		"errors":           run.result.ErrorCount,
		"skipped":          run.result.SkippedActivations,
		"total_profit":     run.result.TotalProfit,
		"total_commission": run.result.TotalCommission,
		"duration_ms":      exec.DurationMs,
	}).Info("daily profit run finished")
	return &run.result, nil
}

// abort closes the execution as failed and returns the infrastructure error.
func (e *ProfitEngine) abort(ctx context.Context, run *runState, cause error) (*RunResult, error) {
	run.result.Status = models.CronStatusFailed
	run.result.TotalProfit = utils.ToAmount(run.profit)
	run.result.TotalCommission = utils.ToAmount(run.commission)

	stats := FinishStats{
		Status:          models.CronStatusFailed,
		ProcessedCount:  run.result.ProcessedCount,
		ErrorCount:      run.result.ErrorCount,
		TotalAmount:     run.result.TotalProfit,
		TotalCommission: run.result.TotalCommission,
		ErrorMessage:    cause.Error(),
	}
	exec, err := e.tracker.Finish(context.WithoutCancel(ctx), run.exec.ID, stats)
	if err != nil {
		run.log.WithError(err).Error("failed to close aborted execution")
	} else {
		e.events.ExecutionFinished(*exec)
	}
	run.log.WithError(cause).Error("daily profit run aborted")
	return &run.result, fmt.Errorf("daily profit run aborted: %w", cause)
}
