package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestClock(t time.Time) (*testClock, *utils.DayClock) {
	tc := &testClock{now: t}
	return tc, utils.NewFixedDayClock(ist, tc.Now)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// memStore implements every store interface over in-memory maps.
type memStore struct {
	mu          sync.Mutex
	users       map[primitive.ObjectID]*models.User
	investments map[primitive.ObjectID]*models.Investment
	plans       []models.InvestmentPlan
	incomes     map[primitive.ObjectID]*models.Income
	executions  map[primitive.ObjectID]*models.CronExecution
	activations []*models.TradeActivation

	creditErr   map[primitive.ObjectID]error
	listDueErr  error
	listDueHook func()
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[primitive.ObjectID]*models.User),
		investments: make(map[primitive.ObjectID]*models.Investment),
		incomes:     make(map[primitive.ObjectID]*models.Income),
		executions:  make(map[primitive.ObjectID]*models.CronExecution),
		creditErr:   make(map[primitive.ObjectID]error),
	}
}

func (s *memStore) addUser(referrer *primitive.ObjectID, activated bool) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	var ref *primitive.ObjectID
	if referrer != nil {
		r := *referrer
		ref = &r
	}
	s.users[id] = &models.User{ID: id, ReferID: ref, DailyProfitActivated: activated}
	return id
}

func (s *memStore) addPlan(percentage float64) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.plans = append(s.plans, models.InvestmentPlan{ID: id, Name: "plan", Percentage: percentage, Status: "active"})
	return id
}

func (s *memStore) addInvestment(userID, planID primitive.ObjectID, amount float64) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.investments[id] = &models.Investment{
		ID:               id,
		UserID:           userID,
		Amount:           amount,
		InvestmentPlanID: planID,
		Status:           models.InvestmentStatusActive,
	}
	return id
}

func (s *memStore) addActivation(userID primitive.ObjectID, day, created time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations = append(s.activations, &models.TradeActivation{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		ActivationDate: day,
		Status:         models.ActivationStatusActive,
		ProfitStatus:   models.ProfitStatusPending,
		CreatedAt:      created,
	})
}

func (s *memStore) user(id primitive.ObjectID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) investment(id primitive.ObjectID) models.Investment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.investments[id]
}

func (s *memStore) incomesOf(userID primitive.ObjectID, typ string) []models.Income {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Income
	for _, in := range s.incomes {
		if in.UserID == userID && in.Type == typ {
			out = append(out, *in)
		}
	}
	return out
}

func (s *memStore) incomeCount(typ, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.incomes {
		if in.Type == typ && in.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) executionsByStatus(status string) []models.CronExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CronExecution
	for _, e := range s.executions {
		if e.Status == status {
			out = append(out, *e)
		}
	}
	return out
}

func (s *memStore) activationOf(userID primitive.ObjectID) *models.TradeActivation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.activations {
		if a.UserID == userID {
			cp := *a
			return &cp
		}
	}
	return nil
}

// UserStore

func (s *memStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) ListReferralLinks(context.Context) ([]models.ReferralLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := make([]models.ReferralLink, 0, len(s.users))
	for _, u := range s.users {
		links = append(links, models.ReferralLink{ID: u.ID, ReferID: u.ReferID})
	}
	return links, nil
}

func (s *memStore) ListActivatedUserIDs(context.Context) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []primitive.ObjectID
	for _, u := range s.users {
		if u.DailyProfitActivated {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (s *memStore) Credit(_ context.Context, id primitive.ObjectID, amount float64, incomeField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.creditErr[id]; err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Wallet += amount
	switch incomeField {
	case models.ExtraDailyIncome:
		u.Extra.DailyIncome += amount
	case models.ExtraLevelIncome:
		u.Extra.LevelIncome += amount
	case models.ExtraDirectIncome:
		u.Extra.DirectIncome += amount
	}
	return nil
}

func (s *memStore) ActivateDailyProfit(_ context.Context, id primitive.ObjectID, at time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.DailyProfitActivated = true
	t := at
	u.LastDailyProfitActivation = &t
	cp := *u
	return &cp, nil
}

func (s *memStore) ResetDailyActivation(_ context.Context, ids []primitive.ObjectID, activatedBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok || !u.DailyProfitActivated {
			continue
		}
		if u.LastDailyProfitActivation == nil || u.LastDailyProfitActivation.Before(activatedBefore) {
			u.DailyProfitActivated = false
		}
	}
	return nil
}

// InvestmentStore

func (s *memStore) ListDue(_ context.Context, userIDs []primitive.ObjectID, dayStart time.Time) ([]models.Investment, error) {
	if s.listDueHook != nil {
		s.listDueHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listDueErr != nil {
		return nil, s.listDueErr
	}
	owners := make(map[primitive.ObjectID]bool, len(userIDs))
	for _, id := range userIDs {
		owners[id] = true
	}
	var due []models.Investment
	for _, inv := range s.investments {
		if owners[inv.UserID] && inv.DueOn(dayStart) {
			due = append(due, *inv)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].UserID != due[j].UserID {
			return due[i].UserID.Hex() < due[j].UserID.Hex()
		}
		return due[i].ID.Hex() < due[j].ID.Hex()
	})
	return due, nil
}

func (s *memStore) ClaimDay(_ context.Context, id primitive.ObjectID, dayStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[id]
	if !ok || !inv.DueOn(dayStart) {
		return false, nil
	}
	d := dayStart
	inv.LastProfitDate = &d
	return true, nil
}

func (s *memStore) RestoreClaim(_ context.Context, id primitive.ObjectID, dayStart time.Time, previous *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[id]
	if !ok || inv.LastProfitDate == nil || !inv.LastProfitDate.Equal(dayStart) {
		return nil
	}
	inv.LastProfitDate = previous
	return nil
}

// PlanStore

func (s *memStore) ListPlans(context.Context) ([]models.InvestmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InvestmentPlan(nil), s.plans...), nil
}

// IncomeStore

func (s *memStore) Append(_ context.Context, income *models.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *income
	s.incomes[income.ID] = &cp
	return nil
}

func (s *memStore) SetStatus(_ context.Context, id primitive.ObjectID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.incomes[id]; ok && in.Status == models.IncomeStatusPending {
		in.Status = status
	}
	return nil
}

// ExecutionStore

func (s *memStore) Insert(_ context.Context, exec *models.CronExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.executions {
		if e.CronName == exec.CronName && e.Status == models.CronStatusRunning {
			return ErrRunningExists
		}
	}
	cp := *exec
	s.executions[exec.ID] = &cp
	return nil
}

func (s *memStore) FindRunning(_ context.Context, cronName string) (*models.CronExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.executions {
		if e.CronName == cronName && e.Status == models.CronStatusRunning {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) Get(_ context.Context, id primitive.ObjectID) (*models.CronExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) Finalize(_ context.Context, id primitive.ObjectID, stats FinishStats, endTime time.Time, durationMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok || e.Status != models.CronStatusRunning {
		return false, nil
	}
	end := endTime
	e.Status = stats.Status
	e.EndTime = &end
	e.DurationMs = durationMs
	e.ProcessedCount = stats.ProcessedCount
	e.ErrorCount = stats.ErrorCount
	e.TotalAmount = stats.TotalAmount
	e.TotalCommission = stats.TotalCommission
	e.ErrorMessage = stats.ErrorMessage
	return true, nil
}

func (s *memStore) CountSucceededBetween(_ context.Context, cronName string, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.executions {
		if e.CronName != cronName {
			continue
		}
		if e.Status != models.CronStatusCompleted && e.Status != models.CronStatusPartialSuccess {
			continue
		}
		if !e.StartTime.Before(from) && e.StartTime.Before(to) {
			n++
		}
	}
	return n, nil
}

// ActivationStore

func (s *memStore) FindForDay(_ context.Context, userID primitive.ObjectID, day time.Time) (*models.TradeActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.activations {
		if a.UserID == userID && a.ActivationDate.Equal(day) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) Create(_ context.Context, activation *models.TradeActivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.activations {
		if a.UserID == activation.UserID && a.ActivationDate.Equal(activation.ActivationDate) {
			return ErrActivationExists
		}
	}
	cp := *activation
	s.activations = append(s.activations, &cp)
	return nil
}

func (s *memStore) ListPendingUserIDs(_ context.Context, createdBefore time.Time) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, a := range s.activations {
		if a.ProfitStatus == models.ProfitStatusPending && a.CreatedAt.Before(createdBefore) && !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	return ids, nil
}

func (s *memStore) latestPending(userID primitive.ObjectID) *models.TradeActivation {
	var latest *models.TradeActivation
	for _, a := range s.activations {
		if a.UserID == userID && a.ProfitStatus == models.ProfitStatusPending {
			if latest == nil || a.ActivationDate.After(latest.ActivationDate) {
				latest = a
			}
		}
	}
	return latest
}

func (s *memStore) MarkProcessed(_ context.Context, userID, executionID primitive.ObjectID, amount float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.latestPending(userID); a != nil {
		exec, t := executionID, at
		a.ProfitStatus = models.ProfitStatusProcessed
		a.ProfitAmount = amount
		a.CronExecutionID = &exec
		a.ProcessedAt = &t
	}
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, userID, executionID primitive.ObjectID, amount float64, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.latestPending(userID); a != nil {
		exec, t := executionID, at
		a.ProfitStatus = models.ProfitStatusFailed
		a.ProfitAmount = amount
		a.ProfitError = reason
		a.CronExecutionID = &exec
		a.ProcessedAt = &t
	}
	return nil
}

func (s *memStore) MarkSkipped(_ context.Context, userIDs []primitive.ObjectID, executionID primitive.ObjectID, createdBefore, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[primitive.ObjectID]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	var n int64
	for _, a := range s.activations {
		if want[a.UserID] && a.ProfitStatus == models.ProfitStatusPending && a.CreatedAt.Before(createdBefore) {
			exec, t := executionID, at
			a.ProfitStatus = models.ProfitStatusSkipped
			a.CronExecutionID = &exec
			a.ProcessedAt = &t
			n++
		}
	}
	return n, nil
}

// recordingSink captures emitted events.
type recordingSink struct {
	mu       sync.Mutex
	incomes  []models.Income
	finished []models.CronExecution
}

func (r *recordingSink) IncomeCredited(income models.Income) {
	r.mu.Lock()
	r.incomes = append(r.incomes, income)
	r.mu.Unlock()
}

func (r *recordingSink) ExecutionFinished(exec models.CronExecution) {
	r.mu.Lock()
	r.finished = append(r.finished, exec)
	r.mu.Unlock()
}

type engineFixture struct {
	store  *memStore
	clock  *testClock
	day    *utils.DayClock
	sink   *recordingSink
	engine *ProfitEngine
}

// runDay is 2026-03-10 01:00 IST, after the default 00:30 schedule.
var runDay = time.Date(2026, 3, 10, 1, 0, 0, 0, ist)

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := newMemStore()
	clock, day := newTestClock(runDay)
	sink := &recordingSink{}
	engine := NewProfitEngine(ProfitEngineDeps{
		Users:           store,
		Investments:     store,
		Plans:           store,
		Incomes:         store,
		Activations:     store,
		Executions:      store,
		Events:          sink,
		Clock:           day,
		Log:             quietLogger(),
		ResetActivation: true,
	})
	return &engineFixture{store: store, clock: clock, day: day, sink: sink, engine: engine}
}

func (f *engineFixture) run(t *testing.T) *RunResult {
	t.Helper()
	res, err := f.engine.Run(context.Background(), models.TriggeredBySchedule)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

var errBoom = errors.New("boom")
