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

// ExecutionQuery filters the admin execution listing. From/To bound start_time.
type ExecutionQuery struct {
	CronName string
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

type CronExecutionRepository struct {
	collection *mongo.Collection
}

func NewCronExecutionRepository(db *mongo.Database) *CronExecutionRepository {
	return &CronExecutionRepository{collection: db.Collection(CronExecutionsCollection)}
}

// Insert relies on the unique partial index on running records to reject a second runner.
func (r *CronExecutionRepository) Insert(ctx context.Context, exec *models.CronExecution) error {
	if exec.ID.IsZero() {
		exec.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, exec)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrRunningExists
	}
	return err
}

func (r *CronExecutionRepository) FindRunning(ctx context.Context, cronName string) (*models.CronExecution, error) {
	var exec models.CronExecution
	filter := bson.M{"cron_name": cronName, "status": models.CronStatusRunning}
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})
	err := r.collection.FindOne(ctx, filter, opts).Decode(&exec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

func (r *CronExecutionRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.CronExecution, error) {
	var exec models.CronExecution
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// Finalize is a compare-and-set from running to the terminal status in stats.
func (r *CronExecutionRepository) Finalize(ctx context.Context, id primitive.ObjectID, stats services.FinishStats, endTime time.Time, durationMs int64) (bool, error) {
	set := bson.M{
		"status":           stats.Status,
		"end_time":         endTime,
		"duration_ms":      durationMs,
		"processed_count":  stats.ProcessedCount,
		"error_count":      stats.ErrorCount,
		"total_amount":     stats.TotalAmount,
		"total_commission": stats.TotalCommission,
	}
	if stats.ErrorMessage != "" {
		set["error_message"] = stats.ErrorMessage
	}
	filter := bson.M{"_id": id, "status": models.CronStatusRunning}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *CronExecutionRepository) CountSucceededBetween(ctx context.Context, cronName string, from, to time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, succeededBetweenFilter(cronName, from, to))
}

// List returns one page of executions, newest first, and the total match count.
func (r *CronExecutionRepository) List(ctx context.Context, q ExecutionQuery) ([]models.CronExecution, int64, error) {
	filter := executionListFilter(q)
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := pageOptions(q.Page, q.Limit, bson.D{{Key: "start_time", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	executions := []models.CronExecution{}
	if err := cursor.All(ctx, &executions); err != nil {
		return nil, 0, err
	}
	return executions, total, nil
}

// DailySummary groups daily profit executions by canonical day of start_time.
func (r *CronExecutionRepository) DailySummary(ctx context.Context, from, to time.Time, timezone string) ([]models.DailyProfitSummary, error) {
	cursor, err := r.collection.Aggregate(ctx, dailySummaryPipeline(from, to, timezone))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	summary := []models.DailyProfitSummary{}
	if err := cursor.All(ctx, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func succeededBetweenFilter(cronName string, from, to time.Time) bson.M {
	return bson.M{
		"cron_name":  cronName,
		"status":     bson.M{"$in": bson.A{models.CronStatusCompleted, models.CronStatusPartialSuccess}},
		"start_time": bson.M{"$gte": from, "$lt": to},
	}
}

func executionListFilter(q ExecutionQuery) bson.M {
	filter := bson.M{}
	if q.CronName != "" {
		filter["cron_name"] = q.CronName
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.From != nil || q.To != nil {
		rng := bson.M{}
		if q.From != nil {
			rng["$gte"] = *q.From
		}
		if q.To != nil {
			rng["$lt"] = *q.To
		}
		filter["start_time"] = rng
	}
	return filter
}

func countIf(status string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", status}}, 1, 0}}}
}

func dailySummaryPipeline(from, to time.Time, timezone string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"cron_name":  models.CronDailyProfit,
			"start_time": bson.M{"$gte": from, "$lt": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$start_time",
				"timezone": timezone,
			}},
			"executions":      bson.M{"$sum": 1},
			"successful":      countIf(models.CronStatusCompleted),
			"failed":          countIf(models.CronStatusFailed),
			"partial":         countIf(models.CronStatusPartialSuccess),
			"total_profit":    bson.M{"$sum": "$total_amount"},
			"processed_count": bson.M{"$sum": "$processed_count"},
			"error_count":     bson.M{"$sum": "$error_count"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": -1}}},
	}
}
