package notices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/appetiteclub/notices/pkg/demo"
	"github.com/appetiteclub/notices/pkg/notice"
	"go.mongodb.org/mongo-driver/mongo"
)

const demoSeedApplication = "notice_demo"

// DemoSeeds creates a handful of notices per restaurant in different stages
// so the tablet panels have something to show.
func DemoSeeds(repo NoticeRepo, restaurantIDs []string, logger apt.Logger) []seed.Seed {
	return []seed.Seed{
		{
			ID:          demo.SeedID,
			Description: "Create demo allergy notices in every stage of the handoff",
			Run: func(ctx context.Context) error {
				return seedDemoNotices(ctx, repo, restaurantIDs, time.Now(), logger)
			},
		},
	}
}

// ApplyDemoSeeds runs the demo seeds once. With a Mongo database the run is
// tracked; otherwise notices that already exist are skipped.
func ApplyDemoSeeds(ctx context.Context, repo NoticeRepo, db *mongo.Database, restaurantIDs []string, logger apt.Logger) error {
	if repo == nil {
		return errors.New("notice repository is required for demo seeding")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	seeds := DemoSeeds(repo, restaurantIDs, logger)
	if db == nil {
		for _, s := range seeds {
			if err := s.Run(ctx); err != nil {
				return fmt.Errorf("seed %s: %w", s.ID, err)
			}
		}
		logger.Info("Demo notice seeds applied without tracking")
		return nil
	}

	tracker := seed.NewMongoTracker(db)
	logger.Info("Applying demo notice seeds")
	if err := seed.Apply(ctx, tracker, seeds, demoSeedApplication); err != nil {
		return err
	}
	logger.Info("Demo notice seeds applied successfully")
	return nil
}

// DemoSeedingFunc adapts ApplyDemoSeeds to a lifecycle start hook.
func DemoSeedingFunc(repo NoticeRepo, dbFn func() *mongo.Database, restaurantIDs []string, logger apt.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var db *mongo.Database
		if dbFn != nil {
			db = dbFn()
		}
		if err := ApplyDemoSeeds(ctx, repo, db, restaurantIDs, logger); err != nil {
			logger.Errorf("Demo seeding failed (non-fatal): %v", err)
		}
		return nil
	}
}

func seedDemoNotices(ctx context.Context, repo NoticeRepo, restaurantIDs []string, now time.Time, logger apt.Logger) error {
	for _, rid := range restaurantIDs {
		list, err := demo.Notices(rid, now)
		if err != nil {
			return err
		}
		for i := range list {
			n := list[i]
			if _, err := repo.Get(ctx, n.ID); err == nil {
				continue
			} else if !errors.Is(err, notice.ErrNotFound) {
				return fmt.Errorf("cannot check demo notice: %w", err)
			}
			if _, err := repo.Save(ctx, &n); err != nil {
				return fmt.Errorf("cannot save demo notice: %w", err)
			}
		}
		logger.Info("Seeded demo notices", "restaurant_id", rid, "count", len(list))
	}
	return nil
}
