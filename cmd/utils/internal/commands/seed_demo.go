package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/demo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SeedDemo writes the demo notices for every configured restaurant.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process...")

	client, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	db := client.Database(databaseName(config))

	seedsCollection := db.Collection("_seeds")
	count, err := seedsCollection.CountDocuments(ctx, bson.M{"_id": demo.SeedID})
	if err != nil {
		return fmt.Errorf("check seed status: %w", err)
	}

	if count > 0 {
		logger.Info("Notice demo seeds already applied, skipping")
		return nil
	}

	if err := seedNotices(ctx, db.Collection("notices"), restaurants(config), time.Now(), logger); err != nil {
		return fmt.Errorf("seed notices: %w", err)
	}

	_, err = seedsCollection.InsertOne(ctx, bson.M{
		"_id":         demo.SeedID,
		"description": "Create demo allergy notices in every stage of the handoff",
		"applied_at":  time.Now().UTC(),
	})
	if err != nil {
		logger.Infof("⚠️  Failed to mark seed as applied: %v", err)
	}

	logger.Info("Notice demo seeds applied successfully")
	return nil
}

func seedNotices(ctx context.Context, collection *mongo.Collection, restaurantIDs []string, now time.Time, logger apt.Logger) error {
	for _, rid := range restaurantIDs {
		list, err := demo.Notices(rid, now)
		if err != nil {
			return err
		}

		inserted := 0
		for i := range list {
			if _, err := collection.InsertOne(ctx, &list[i]); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					continue
				}
				return fmt.Errorf("insert demo notice: %w", err)
			}
			inserted++
		}
		logger.Info("Seeded demo notices", "restaurant_id", rid, "count", inserted)
	}
	return nil
}
