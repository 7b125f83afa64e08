package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		directs, level int
		want           bool
	}{
		{0, 1, false},
		{1, 1, true},
		{1, 2, false},
		{2, 2, true},
		{5, 3, true},
		{9, 10, false},
		{10, 10, true},
		{50, 11, false},
		{3, 0, false},
	}
	for _, tt := range tests {
		if got := Eligible(tt.directs, tt.level); got != tt.want {
			t.Errorf("Eligible(%d, %d) = %v, want %v", tt.directs, tt.level, got, tt.want)
		}
	}
}

func TestReferralTree(t *testing.T) {
	root := primitive.NewObjectID()
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	self := primitive.NewObjectID()
	zero := primitive.NilObjectID

	tree := NewReferralTree([]models.ReferralLink{
		{ID: root},
		{ID: a, ReferID: &root},
		{ID: b, ReferID: &root},
		{ID: self, ReferID: &self},
		{ID: primitive.NewObjectID(), ReferID: &zero},
	})

	if tree.Size() != 5 {
		t.Errorf("Size() = %d, want 5", tree.Size())
	}
	if got := tree.DirectReferrals(root); got != 2 {
		t.Errorf("DirectReferrals(root) = %d, want 2", got)
	}
	if up, ok := tree.Upline(a); !ok || up != root {
		t.Errorf("Upline(a) = %v, %v", up, ok)
	}
	if _, ok := tree.Upline(root); ok {
		t.Error("root should have no upline")
	}
	if _, ok := tree.Upline(self); ok {
		t.Error("self referral should be ignored")
	}
	if tree.DirectReferrals(self) != 0 {
		t.Error("self referral should not count as a direct")
	}
	if tree.Has(primitive.NewObjectID()) {
		t.Error("Has() reported an unknown user")
	}
}

func newTestCascade(store *memStore) *CommissionCascade {
	log := quietLogger()
	return NewCommissionCascade(NewLedger(store, store, DirectTx{}, log), log)
}

func TestDistributeUnknownSource(t *testing.T) {
	store := newMemStore()
	tree := NewReferralTree(nil)
	paid, err := newTestCascade(store).Distribute(context.Background(), tree, models.DefaultTeamCommission, ProfitEvent{
		SourceUserID: primitive.NewObjectID(),
		Profit:       decimal.NewFromInt(10),
		At:           time.Now(),
	})
	if len(paid) != 0 {
		t.Errorf("paid = %d levels, want 0", len(paid))
	}
	var lookup *CascadeLookupError
	if !errors.As(err, &lookup) || !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want lookup error wrapping ErrUserNotFound", err)
	}
	if lookup.Level != 1 {
		t.Errorf("lookup level = %d, want 1", lookup.Level)
	}
}

func TestDistributeSkipsNonPositiveProfit(t *testing.T) {
	store := newMemStore()
	root := store.addUser(nil, false)
	u := store.addUser(&root, false)
	links, _ := store.ListReferralLinks(context.Background())

	paid, err := newTestCascade(store).Distribute(context.Background(), NewReferralTree(links), models.DefaultTeamCommission, ProfitEvent{
		SourceUserID: u,
		Profit:       decimal.Zero,
	})
	if err != nil || len(paid) != 0 {
		t.Errorf("Distribute() = %d levels, %v; want none", len(paid), err)
	}
}

func TestDistributeUsesPlanRates(t *testing.T) {
	store := newMemStore()
	root := store.addUser(nil, false)
	u := store.addUser(&root, false)
	links, _ := store.ListReferralLinks(context.Background())

	rates := models.DefaultTeamCommission
	rates[0] = 12.5
	paid, err := newTestCascade(store).Distribute(context.Background(), NewReferralTree(links), rates, ProfitEvent{
		SourceUserID: u,
		Profit:       decimal.RequireFromString("7.333333"),
	})
	if err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}
	if len(paid) != 1 {
		t.Fatalf("paid = %d levels, want 1", len(paid))
	}
	// 7.333333 * 12.5% = 0.916666625, rounded to six places.
	if want := decimal.RequireFromString("0.916667"); !paid[0].Amount.Equal(want) {
		t.Errorf("amount = %s, want %s", paid[0].Amount, want)
	}
	if !TotalCommission(paid).Equal(paid[0].Amount) {
		t.Errorf("TotalCommission() = %s", TotalCommission(paid))
	}
}

func TestLedgerTransactionalWritesCredited(t *testing.T) {
	store := newMemStore()
	u := store.addUser(nil, false)
	ledger := NewLedger(store, store, passthroughTx{}, quietLogger())

	income := &models.Income{UserID: u, Amount: 5, Type: models.IncomeTypeDailyProfit}
	if err := ledger.Credit(context.Background(), income, models.ExtraDailyIncome); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if income.ID.IsZero() || income.Status != models.IncomeStatusCredited {
		t.Errorf("income = %+v, want id assigned and credited", income)
	}
	if got := store.user(u); got.Wallet != 5 || got.Extra.DailyIncome != 5 {
		t.Errorf("user = %+v", got)
	}
}

func TestLedgerMarksFailedWhenWalletWriteFails(t *testing.T) {
	store := newMemStore()
	u := store.addUser(nil, false)
	store.creditErr[u] = errBoom
	ledger := NewLedger(store, store, DirectTx{}, quietLogger())

	income := &models.Income{UserID: u, Amount: 5, Type: models.IncomeTypeTeamCommission}
	err := ledger.Credit(context.Background(), income, models.ExtraLevelIncome)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Credit() error = %v, want errBoom", err)
	}
	if income.Status != models.IncomeStatusFailed {
		t.Errorf("status = %s, want failed", income.Status)
	}
	if n := store.incomeCount(models.IncomeTypeTeamCommission, models.IncomeStatusFailed); n != 1 {
		t.Errorf("stored failed incomes = %d, want 1", n)
	}
}
