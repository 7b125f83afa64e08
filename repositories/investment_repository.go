package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/herbreserve_backend/models"
)

type InvestmentRepository struct {
	collection *mongo.Collection
}

func NewInvestmentRepository(db *mongo.Database) *InvestmentRepository {
	return &InvestmentRepository{collection: db.Collection(InvestmentsCollection)}
}

// ListDue returns active, uncredited investments of the given owners ordered by owner.
func (r *InvestmentRepository) ListDue(ctx context.Context, userIDs []primitive.ObjectID, dayStart time.Time) ([]models.Investment, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, dueInvestmentsFilter(userIDs, dayStart), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var investments []models.Investment
	if err := cursor.All(ctx, &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

// ClaimDay stamps last_profit_date only if no other run stamped it for dayStart.
func (r *InvestmentRepository) ClaimDay(ctx context.Context, id primitive.ObjectID, dayStart time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{"last_profit_date": dayStart}}
	res, err := r.collection.UpdateOne(ctx, claimFilter(id, dayStart), update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *InvestmentRepository) RestoreClaim(ctx context.Context, id primitive.ObjectID, dayStart time.Time, previous *time.Time) error {
	filter := bson.M{"_id": id, "last_profit_date": dayStart}
	update := bson.M{"$set": bson.M{"last_profit_date": previous}}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

func notCreditedSince(dayStart time.Time) bson.A {
	return bson.A{
		bson.M{"last_profit_date": nil},
		bson.M{"last_profit_date": bson.M{"$lt": dayStart}},
	}
}

func dueInvestmentsFilter(userIDs []primitive.ObjectID, dayStart time.Time) bson.M {
	return bson.M{
		"status":  models.InvestmentStatusActive,
		"user_id": bson.M{"$in": userIDs},
		"$or":     notCreditedSince(dayStart),
	}
}

func claimFilter(id primitive.ObjectID, dayStart time.Time) bson.M {
	return bson.M{
		"_id":    id,
		"status": models.InvestmentStatusActive,
		"$or":    notCreditedSince(dayStart),
	}
}
