// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. refer_id points at the upline; downlines are found by querying it.
type User struct {
	ID                        primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	Name                      string              `json:"name" bson:"name"`
	Email                     string              `json:"email" bson:"email"`
	UserType                  string              `json:"userType" bson:"userType"`
	ReferID                   *primitive.ObjectID `json:"refer_id,omitempty" bson:"refer_id,omitempty"`
	Wallet                    float64             `json:"wallet" bson:"wallet"`
	TotalInvestment           float64             `json:"total_investment" bson:"total_investment"`
	Extra                     UserExtra           `json:"extra" bson:"extra"`
	DailyProfitActivated      bool                `json:"dailyProfitActivated" bson:"dailyProfitActivated"`
	LastDailyProfitActivation *time.Time          `json:"lastDailyProfitActivation,omitempty" bson:"lastDailyProfitActivation,omitempty"`
	CreatedAt                 time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt                 time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// UserExtra holds denormalized running income totals.
type UserExtra struct {
	DirectIncome float64 `json:"directIncome" bson:"directIncome"`
	DailyIncome  float64 `json:"dailyIncome" bson:"dailyIncome"`
	LevelIncome  float64 `json:"levelIncome" bson:"levelIncome"`
}

// Income counters updated alongside the wallet.
const (
	ExtraDirectIncome = "extra.directIncome"
	ExtraDailyIncome  = "extra.dailyIncome"
	ExtraLevelIncome  = "extra.levelIncome"
)

// ReferralLink is the projection used to build the referral tree.
type ReferralLink struct {
	ID      primitive.ObjectID  `bson:"_id"`
	ReferID *primitive.ObjectID `bson:"refer_id,omitempty"`
}
