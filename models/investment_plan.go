package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxCommissionLevels is the depth of the upline walk.
const MaxCommissionLevels = 10

// DefaultTeamCommission is used for any level a plan leaves unset.
var DefaultTeamCommission = [MaxCommissionLevels]float64{15, 10, 8, 6, 5, 4, 3, 3, 2, 2}

// InvestmentPlan carries the daily rate and per-level team commission, both in percent.
type InvestmentPlan struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Percentage     float64            `json:"percentage" bson:"percentage"`
	TeamCommission TeamCommission     `json:"team_commission" bson:"team_commission"`
	Status         string             `json:"status" bson:"status"`
}

type TeamCommission struct {
	Level1  *float64 `json:"level1,omitempty" bson:"level1,omitempty"`
	Level2  *float64 `json:"level2,omitempty" bson:"level2,omitempty"`
	Level3  *float64 `json:"level3,omitempty" bson:"level3,omitempty"`
	Level4  *float64 `json:"level4,omitempty" bson:"level4,omitempty"`
	Level5  *float64 `json:"level5,omitempty" bson:"level5,omitempty"`
	Level6  *float64 `json:"level6,omitempty" bson:"level6,omitempty"`
	Level7  *float64 `json:"level7,omitempty" bson:"level7,omitempty"`
	Level8  *float64 `json:"level8,omitempty" bson:"level8,omitempty"`
	Level9  *float64 `json:"level9,omitempty" bson:"level9,omitempty"`
	Level10 *float64 `json:"level10,omitempty" bson:"level10,omitempty"`
}

// Rates returns the level 1..10 rate table, index 0 is level 1.
func (t TeamCommission) Rates() [MaxCommissionLevels]float64 {
	set := []*float64{t.Level1, t.Level2, t.Level3, t.Level4, t.Level5,
		t.Level6, t.Level7, t.Level8, t.Level9, t.Level10}
	rates := DefaultTeamCommission
	for i, v := range set {
		if v != nil {
			rates[i] = *v
		}
	}
	return rates
}
