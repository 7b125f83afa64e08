package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTxRunner runs each unit in a session transaction. Requires a replica set.
type MongoTxRunner struct {
	client *mongo.Client
}

func NewMongoTxRunner(client *mongo.Client) *MongoTxRunner {
	return &MongoTxRunner{client: client}
}

func (t *MongoTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (t *MongoTxRunner) Transactional() bool { return true }
