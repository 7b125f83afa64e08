package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/services"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListReferralLinks loads the _id/refer_id pair of every user.
func (r *UserRepository) ListReferralLinks(ctx context.Context) ([]models.ReferralLink, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "refer_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var links []models.ReferralLink
	if err := cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *UserRepository) ListActivatedUserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, activatedUsersFilter(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

// Credit increments wallet and one extra.* income counter.
func (r *UserRepository) Credit(ctx context.Context, id primitive.ObjectID, amount float64, incomeField string) error {
	update := bson.M{
		"$inc": bson.M{
			"wallet":    amount,
			incomeField: amount,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", services.ErrUserNotFound, id.Hex())
	}
	return nil
}

func (r *UserRepository) ActivateDailyProfit(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.User, error) {
	update := bson.M{
		"$set": bson.M{
			"dailyProfitActivated":      true,
			"lastDailyProfitActivation": at,
			"updatedAt":                 at,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ResetDailyActivation(ctx context.Context, ids []primitive.ObjectID, activatedBefore time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	update := bson.M{"$set": bson.M{"dailyProfitActivated": false, "updatedAt": time.Now()}}
	_, err := r.collection.UpdateMany(ctx, resetActivationFilter(ids, activatedBefore), update)
	return err
}

func activatedUsersFilter() bson.M {
	return bson.M{"dailyProfitActivated": true}
}

// resetActivationFilter leaves users who re-activated after the run began untouched.
func resetActivationFilter(ids []primitive.ObjectID, activatedBefore time.Time) bson.M {
	return bson.M{
		"_id":                  bson.M{"$in": ids},
		"dailyProfitActivated": true,
		"$or": bson.A{
			bson.M{"lastDailyProfitActivation": bson.M{"$lt": activatedBefore}},
			bson.M{"lastDailyProfitActivation": bson.M{"$exists": false}},
		},
	}
}
