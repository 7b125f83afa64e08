package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	InvestmentStatusActive    = "active"
	InvestmentStatusCompleted = "completed"
	InvestmentStatusCancelled = "cancelled"
)

// Investment is a user's principal placed in a plan.
type Investment struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID           primitive.ObjectID `json:"user_id" bson:"user_id"`
	Amount           float64            `json:"amount" bson:"amount"`
	InvestmentPlanID primitive.ObjectID `json:"investment_plan_id" bson:"investment_plan_id"`
	Status           string             `json:"status" bson:"status"`
	LastProfitDate   *time.Time         `json:"last_profit_date,omitempty" bson:"last_profit_date"`
	PackageType      string             `json:"package_type,omitempty" bson:"package_type,omitempty"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
}

// DueOn reports whether the investment has not been credited for the day starting at dayStart.
func (i *Investment) DueOn(dayStart time.Time) bool {
	if i.Status != InvestmentStatusActive {
		return false
	}
	return i.LastProfitDate == nil || i.LastProfitDate.Before(dayStart)
}
