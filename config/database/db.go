package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Yamemik/casher/config"
	"github.com/Yamemik/casher/pkg/logger"
)

// Connect builds the pooled Mongo client from config and verifies the
// connection with a ping-retry loop before handing it out. The returned
// client owns the connection pool; callers must Disconnect it on shutdown.
func Connect(cfg config.Config) *mongo.Client {
	opts := options.Client().
		ApplyURI(cfg.StoreURI).
		SetMinPoolSize(cfg.PoolMinSize).
		SetMaxPoolSize(cfg.PoolMaxSize).
		SetServerSelectionTimeout(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Sugar.Fatalf("Failed to construct store client: %v", err)
	}

	for i := 0; i < 5; i++ {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(pingCtx, readpref.Primary())
		pingCancel()
		if err == nil {
			logger.Sugar.Info("Successfully connected to the document store")
			return client
		}
		logger.Sugar.Infof("Store connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	logger.Sugar.Fatalf("Could not connect to the document store after retries: %v", err)
	return nil
}
