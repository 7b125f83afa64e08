package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

// ProfitEvent is one daily profit credit the cascade distributes upward.
type ProfitEvent struct {
	SourceUserID primitive.ObjectID
	InvestmentID primitive.ObjectID
	ExecutionID  primitive.ObjectID
	Profit       decimal.Decimal
	At           time.Time
}

// Commission is one level paid by the cascade.
type Commission struct {
	Level  int
	UserID primitive.ObjectID
	Amount decimal.Decimal
	Income models.Income
}

// CommissionCascade walks up to MaxCommissionLevels uplines of the profit earner
// and pays each eligible one its level's share of the profit.
type CommissionCascade struct {
	ledger *Ledger
	log    *logrus.Logger
}

func NewCommissionCascade(ledger *Ledger, log *logrus.Logger) *CommissionCascade {
	return &CommissionCascade{ledger: ledger, log: log}
}

// Distribute pays commissions for ev. It returns the paid levels and, when the walk
// ended early, the error that stopped it. A *CascadeLookupError leaves earlier
// levels credited; any other error comes from a ledger write.
func (c *CommissionCascade) Distribute(ctx context.Context, tree *ReferralTree, rates [models.MaxCommissionLevels]float64, ev ProfitEvent) ([]Commission, error) {
	var paid []Commission
	if !ev.Profit.IsPositive() {
		return paid, nil
	}
	if !tree.Has(ev.SourceUserID) {
		return paid, &CascadeLookupError{Level: 1, UserID: ev.SourceUserID, Err: ErrUserNotFound}
	}

	current := ev.SourceUserID
	visited := map[primitive.ObjectID]struct{}{current: {}}
	source := ev.SourceUserID
	investment := ev.InvestmentID
	execution := ev.ExecutionID

	for level := 1; level <= models.MaxCommissionLevels; level++ {
		uplineID, ok := tree.Upline(current)
		if !ok {
			break
		}
		if !tree.Has(uplineID) {
			return paid, &CascadeLookupError{Level: level, UserID: current, UplineID: uplineID, Err: ErrUplineNotFound}
		}
		if _, seen := visited[uplineID]; seen {
			return paid, &CascadeLookupError{Level: level, UserID: current, UplineID: uplineID, Err: ErrReferralCycle}
		}
		visited[uplineID] = struct{}{}

		directs := tree.DirectReferrals(uplineID)
		if Eligible(directs, level) {
			amount := utils.PercentOfAmount(ev.Profit, rates[level-1])
			if amount.IsPositive() {
				income := models.Income{
					UserID:          uplineID,
					Amount:          utils.ToAmount(amount),
					Type:            models.IncomeTypeTeamCommission,
					SourceUserID:    &source,
					InvestmentID:    &investment,
					Level:           level,
					CronExecutionID: &execution,
					CreatedAt:       ev.At,
				}
				if err := c.ledger.Credit(ctx, &income, models.ExtraLevelIncome); err != nil {
					return paid, err
				}
				paid = append(paid, Commission{Level: level, UserID: uplineID, Amount: amount, Income: income})
			}
		} else {
			c.log.WithFields(logrus.Fields{
				"level":     level,
				"upline_id": uplineID.Hex(),
				"directs":   directs,
				"source_id": ev.SourceUserID.Hex(),
			}).Debug("upline not eligible for level commission")
		}
		current = uplineID
	}
	return paid, nil
}

// IsLookupError reports whether err stopped the cascade on an unresolved upline.
func IsLookupError(err error) bool {
	var lookup *CascadeLookupError
	return errors.As(err, &lookup)
}

// TotalCommission sums the amounts paid by one cascade.
func TotalCommission(paid []Commission) decimal.Decimal {
	total := decimal.Zero
	for _, p := range paid {
		total = total.Add(p.Amount)
	}
	return total
}
