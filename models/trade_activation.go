package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ActivationStatusActive    = "active"
	ActivationStatusExpired   = "expired"
	ActivationStatusCancelled = "cancelled"
)

const (
	ProfitStatusPending   = "pending"
	ProfitStatusProcessed = "processed"
	ProfitStatusFailed    = "failed"
	ProfitStatusSkipped   = "skipped"
)

// TradeActivation is a user's opt-in for one canonical day.
type TradeActivation struct {
	ID              primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          primitive.ObjectID  `json:"user_id" bson:"user_id"`
	ActivationDate  time.Time           `json:"activation_date" bson:"activation_date"`
	Status          string              `json:"status" bson:"status"`
	ProfitStatus    string              `json:"profit_status" bson:"profit_status"`
	ProfitAmount    float64             `json:"profit_amount" bson:"profit_amount"`
	CronExecutionID *primitive.ObjectID `json:"cron_execution_id,omitempty" bson:"cron_execution_id,omitempty"`
	ProfitError     string              `json:"profit_error,omitempty" bson:"profit_error,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}
