package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

// ActivationStatus is a user's daily profit opt-in state for today.
type ActivationStatus struct {
	User    *models.User            `json:"user"`
	Today   *models.TradeActivation `json:"today,omitempty"`
	Created bool                    `json:"created"`
}

// ActivationService handles the daily opt-in that makes a user's investments eligible.
type ActivationService struct {
	users       UserStore
	activations ActivationStore
	clock       *utils.DayClock
	log         *logrus.Logger
}

func NewActivationService(users UserStore, activations ActivationStore, clock *utils.DayClock, log *logrus.Logger) *ActivationService {
	return &ActivationService{users: users, activations: activations, clock: clock, log: log}
}

// Activate sets the opt-in flag and opens today's TradeActivation if there is none.
func (s *ActivationService) Activate(ctx context.Context, userID primitive.ObjectID) (*ActivationStatus, error) {
	now := s.clock.Now()
	user, err := s.users.ActivateDailyProfit(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	today := s.clock.StartOfDay(now)
	existing, err := s.activations.FindForDay(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("find today's activation: %w", err)
	}
	if existing != nil {
		return &ActivationStatus{User: user, Today: existing}, nil
	}

	activation := &models.TradeActivation{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		ActivationDate: today,
		Status:         models.ActivationStatusActive,
		ProfitStatus:   models.ProfitStatusPending,
		CreatedAt:      now,
	}
	if err := s.activations.Create(ctx, activation); err != nil {
		if !errors.Is(err, ErrActivationExists) {
			return nil, fmt.Errorf("create activation: %w", err)
		}
		// Lost a race with a concurrent request for the same day.
		existing, err := s.activations.FindForDay(ctx, userID, today)
		if err != nil {
			return nil, fmt.Errorf("find today's activation: %w", err)
		}
		return &ActivationStatus{User: user, Today: existing}, nil
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID.Hex(),
		"day":     s.clock.DayKey(today),
	}).Info("daily profit activated")
	return &ActivationStatus{User: user, Today: activation, Created: true}, nil
}

// Status returns the user's flag and today's activation, if any.
func (s *ActivationService) Status(ctx context.Context, userID primitive.ObjectID) (*ActivationStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	today, err := s.activations.FindForDay(ctx, userID, s.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("find today's activation: %w", err)
	}
	return &ActivationStatus{User: user, Today: today}, nil
}
