package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/services"
)

type TradeActivationRepository struct {
	collection *mongo.Collection
}

func NewTradeActivationRepository(db *mongo.Database) *TradeActivationRepository {
	return &TradeActivationRepository{collection: db.Collection(TradeActivationsCollection)}
}

func (r *TradeActivationRepository) FindForDay(ctx context.Context, userID primitive.ObjectID, day time.Time) (*models.TradeActivation, error) {
	var activation models.TradeActivation
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "activation_date": day}).Decode(&activation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activation, nil
}

func (r *TradeActivationRepository) Create(ctx context.Context, activation *models.TradeActivation) error {
	if activation.ID.IsZero() {
		activation.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, activation)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrActivationExists
	}
	return err
}

func (r *TradeActivationRepository) ListPendingUserIDs(ctx context.Context, createdBefore time.Time) ([]primitive.ObjectID, error) {
	values, err := r.collection.Distinct(ctx, "user_id", pendingActivationsFilter(nil, createdBefore))
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *TradeActivationRepository) MarkProcessed(ctx context.Context, userID, executionID primitive.ObjectID, amount float64, at time.Time) error {
	return r.settleLatest(ctx, userID, bson.M{
		"profit_status":     models.ProfitStatusProcessed,
		"profit_amount":     amount,
		"cron_execution_id": executionID,
		"processed_at":      at,
	})
}

func (r *TradeActivationRepository) MarkFailed(ctx context.Context, userID, executionID primitive.ObjectID, amount float64, reason string, at time.Time) error {
	return r.settleLatest(ctx, userID, bson.M{
		"profit_status":     models.ProfitStatusFailed,
		"profit_amount":     amount,
		"profit_error":      reason,
		"cron_execution_id": executionID,
		"processed_at":      at,
	})
}

// settleLatest updates the user's newest pending activation. Users credited without
// an activation record (flag set by an admin) have nothing to settle.
func (r *TradeActivationRepository) settleLatest(ctx context.Context, userID primitive.ObjectID, set bson.M) error {
	filter := bson.M{"user_id": userID, "profit_status": models.ProfitStatusPending}
	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "activation_date", Value: -1}})
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func (r *TradeActivationRepository) MarkSkipped(ctx context.Context, userIDs []primitive.ObjectID, executionID primitive.ObjectID, createdBefore, at time.Time) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	update := bson.M{"$set": bson.M{
		"profit_status":     models.ProfitStatusSkipped,
		"cron_execution_id": executionID,
		"processed_at":      at,
	}}
	res, err := r.collection.UpdateMany(ctx, pendingActivationsFilter(userIDs, createdBefore), update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ActivationStats counts activations of one execution by profit_status.
func (r *TradeActivationRepository) ActivationStats(ctx context.Context, executionID primitive.ObjectID) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"cron_execution_id": executionID}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$profit_status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$profit_amount"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := map[string]int64{
		models.ProfitStatusProcessed: 0,
		models.ProfitStatusFailed:    0,
		models.ProfitStatusSkipped:   0,
	}
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		stats[row.Status] = row.Count
	}
	return stats, cursor.Err()
}

// ListByExecution returns one page of the activations an execution settled.
func (r *TradeActivationRepository) ListByExecution(ctx context.Context, executionID primitive.ObjectID, status string, page, limit int) ([]models.TradeActivation, int64, error) {
	filter := executionActivationsFilter(executionID, status)
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := pageOptions(page, limit, bson.D{{Key: "processed_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	activations := []models.TradeActivation{}
	if err := cursor.All(ctx, &activations); err != nil {
		return nil, 0, err
	}
	return activations, total, nil
}

func pendingActivationsFilter(userIDs []primitive.ObjectID, createdBefore time.Time) bson.M {
	filter := bson.M{
		"status":        models.ActivationStatusActive,
		"profit_status": models.ProfitStatusPending,
		"created_at":    bson.M{"$lt": createdBefore},
	}
	if userIDs != nil {
		filter["user_id"] = bson.M{"$in": userIDs}
	}
	return filter
}

func executionActivationsFilter(executionID primitive.ObjectID, status string) bson.M {
	filter := bson.M{"cron_execution_id": executionID}
	if status != "" {
		filter["profit_status"] = status
	}
	return filter
}
