package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/herbreserve_backend/models"
)

type PlanRepository struct {
	collection *mongo.Collection
}

func NewPlanRepository(db *mongo.Database) *PlanRepository {
	return &PlanRepository{collection: db.Collection(InvestmentPlansCollection)}
}

// ListPlans returns every plan, inactive ones included, since running investments may still reference them.
func (r *PlanRepository) ListPlans(ctx context.Context) ([]models.InvestmentPlan, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []models.InvestmentPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
