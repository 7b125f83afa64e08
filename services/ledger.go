package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

// Ledger appends income records and moves the matching amount into the wallet.
type Ledger struct {
	incomes IncomeStore
	users   UserStore
	tx      TxRunner
	log     *logrus.Logger
}

func NewLedger(incomes IncomeStore, users UserStore, tx TxRunner, log *logrus.Logger) *Ledger {
	return &Ledger{incomes: incomes, users: users, tx: tx, log: log}
}

// Credit writes income and increments wallet plus incomeField by income.Amount.
// Inside a transaction the entry is written as credited directly. Without one it is
// written pending first and settled after the wallet moved, so a failed wallet write
// leaves a failed entry rather than an unbacked credited one.
func (l *Ledger) Credit(ctx context.Context, income *models.Income, incomeField string) error {
	if income.ID.IsZero() {
		income.ID = primitive.NewObjectID()
	}
	if l.tx.Transactional() {
		income.Status = models.IncomeStatusCredited
		if err := l.incomes.Append(ctx, income); err != nil {
			return fmt.Errorf("append %s income: %w", income.Type, err)
		}
		if err := l.users.Credit(ctx, income.UserID, income.Amount, incomeField); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		return nil
	}

	income.Status = models.IncomeStatusPending
	if err := l.incomes.Append(ctx, income); err != nil {
		return fmt.Errorf("append %s income: %w", income.Type, err)
	}
	if err := l.users.Credit(ctx, income.UserID, income.Amount, incomeField); err != nil {
		if serr := l.incomes.SetStatus(ctx, income.ID, models.IncomeStatusFailed); serr != nil {
			l.log.WithError(serr).WithField("income_id", income.ID.Hex()).Error("failed to mark income as failed")
		}
		income.Status = models.IncomeStatusFailed
		return fmt.Errorf("credit wallet: %w", err)
	}
	// The wallet has moved; a failure here is reported but must not undo the credit.
	if err := l.incomes.SetStatus(ctx, income.ID, models.IncomeStatusCredited); err != nil {
		l.log.WithError(err).WithField("income_id", income.ID.Hex()).Warn("income left pending after wallet credit")
		return nil
	}
	income.Status = models.IncomeStatusCredited
	return nil
}
