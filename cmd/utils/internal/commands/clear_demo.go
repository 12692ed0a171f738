package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/demo"
	"go.mongodb.org/mongo-driver/bson"
)

// ClearDemo removes demo notices and the seed record so seed-demo can run again.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	db := client.Database(databaseName(config))

	result, err := db.Collection("notices").DeleteMany(ctx, bson.M{"user_id": demo.UserID})
	if err != nil {
		return fmt.Errorf("delete demo notices: %w", err)
	}
	logger.Info("Deleted demo notices", "count", result.DeletedCount)

	trackerResult, err := db.Collection("_seeds").DeleteOne(ctx, bson.M{"_id": demo.SeedID})
	if err != nil {
		return fmt.Errorf("delete notice seed tracker: %w", err)
	}
	logger.Info("Cleared notice seed tracker", "deleted", trackerResult.DeletedCount)

	return nil
}
