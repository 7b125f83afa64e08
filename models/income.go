package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	IncomeTypeDailyProfit    = "daily_profit"
	IncomeTypeReferralBonus  = "referral_bonus"
	IncomeTypeTeamCommission = "team_commission"
)

const (
	IncomeStatusCredited = "credited"
	IncomeStatusPending  = "pending"
	IncomeStatusFailed   = "failed"
)

// Income is an append-only ledger entry.
type Income struct {
	ID              primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Amount          float64             `json:"amount" bson:"amount"`
	Type            string              `json:"type" bson:"type"`
	Status          string              `json:"status" bson:"status"`
	SourceUserID    *primitive.ObjectID `json:"source_user_id,omitempty" bson:"source_user_id,omitempty"`
	InvestmentID    *primitive.ObjectID `json:"investment_id,omitempty" bson:"investment_id,omitempty"`
	Level           int                 `json:"level,omitempty" bson:"level,omitempty"`
	CronExecutionID *primitive.ObjectID `json:"cron_execution_id,omitempty" bson:"cron_execution_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
}
