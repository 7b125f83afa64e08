package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

func TestActivateCreatesOneActivationPerDay(t *testing.T) {
	store := newMemStore()
	clock, day := newTestClock(runDay)
	svc := NewActivationService(store, store, day, quietLogger())
	u := store.addUser(nil, false)

	first, err := svc.Activate(context.Background(), u)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if !first.Created || first.Today == nil {
		t.Fatalf("first activation = %+v, want created", first)
	}
	if !first.User.DailyProfitActivated {
		t.Error("user flag not set")
	}
	wantDay := time.Date(2026, 3, 10, 0, 0, 0, 0, ist)
	if !first.Today.ActivationDate.Equal(wantDay) || first.Today.ProfitStatus != models.ProfitStatusPending {
		t.Errorf("activation = %+v", first.Today)
	}

	clock.Advance(2 * time.Hour)
	second, err := svc.Activate(context.Background(), u)
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if second.Created || second.Today.ID != first.Today.ID {
		t.Errorf("second activation = %+v, want the existing one", second.Today)
	}
	if len(store.activations) != 1 {
		t.Errorf("activations = %d, want 1", len(store.activations))
	}

	clock.Advance(24 * time.Hour)
	next, err := svc.Activate(context.Background(), u)
	if err != nil || !next.Created {
		t.Errorf("next day Activate() = %+v, %v; want created", next, err)
	}
}

func TestActivateUnknownUser(t *testing.T) {
	store := newMemStore()
	_, day := newTestClock(runDay)
	svc := NewActivationService(store, store, day, quietLogger())

	_, err := svc.Activate(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Activate() error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.Status(context.Background(), primitive.NewObjectID()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Status() error = %v, want ErrUserNotFound", err)
	}
}

func TestActivationConsumedByRun(t *testing.T) {
	f := newEngineFixture(t)
	svc := NewActivationService(f.store, f.store, f.day, quietLogger())
	plan := f.store.addPlan(2)
	u := f.store.addUser(nil, false)
	f.store.addInvestment(u, plan, 1000)

	if _, err := svc.Activate(context.Background(), u); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	f.clock.Advance(time.Minute)
	f.run(t)

	status, err := svc.Status(context.Background(), u)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.User.DailyProfitActivated {
		t.Error("flag should be reset after the run consumed it")
	}
	if status.Today == nil || status.Today.ProfitStatus != models.ProfitStatusProcessed || !almostEqual(status.Today.ProfitAmount, 20) {
		t.Errorf("today's activation = %+v, want processed 20", status.Today)
	}
}

func TestActivationWithNothingDueIsSkipped(t *testing.T) {
	f := newEngineFixture(t)
	svc := NewActivationService(f.store, f.store, f.day, quietLogger())
	u := f.store.addUser(nil, false)

	f.run(t)
	f.clock.Advance(time.Minute)
	if _, err := svc.Activate(context.Background(), u); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	f.clock.Advance(time.Minute)
	f.run(t)

	// The second run started after the activation, the user had nothing due.
	if a := f.store.activationOf(u); a.ProfitStatus != models.ProfitStatusSkipped {
		t.Errorf("activation status = %s, want skipped", a.ProfitStatus)
	}
}
