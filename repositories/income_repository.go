package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/herbreserve_backend/models"
)

// IncomeRepository is append-only apart from settling pending entries.
type IncomeRepository struct {
	collection *mongo.Collection
}

func NewIncomeRepository(db *mongo.Database) *IncomeRepository {
	return &IncomeRepository{collection: db.Collection(IncomesCollection)}
}

func (r *IncomeRepository) Append(ctx context.Context, income *models.Income) error {
	if income.ID.IsZero() {
		income.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, income)
	return err
}

func (r *IncomeRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	filter := bson.M{"_id": id, "status": models.IncomeStatusPending}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status}})
	return err
}
