package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/appetiteclub/notices/services/notice/internal/notices"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NoticeRepo keeps one document per notice. Writes are conditional on
// updated_at so an older copy never replaces a newer one.
type NoticeRepo struct {
	collection *mongo.Collection
}

func NewNoticeRepo(db *mongo.Database) *NoticeRepo {
	return &NoticeRepo{
		collection: db.Collection("notices"),
	}
}

func (r *NoticeRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create notice indexes: %w", err)
	}
	return nil
}

func (r *NoticeRepo) Get(ctx context.Context, id uuid.UUID) (*notice.OrderNotice, error) {
	var n notice.OrderNotice
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("notice %s: %w", id, notice.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot get notice: %w", err)
	}
	return &n, nil
}

func (r *NoticeRepo) List(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"restaurant_id": bson.M{"$in": restaurantIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list notices: %w", err)
	}
	defer cursor.Close(ctx)

	result := []notice.OrderNotice{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode notices: %w", err)
	}

	return result, nil
}

func (r *NoticeRepo) Save(ctx context.Context, n *notice.OrderNotice) (notices.SaveResult, error) {
	if n == nil {
		return notices.SaveResult{}, fmt.Errorf("notice is nil")
	}

	previous, err := r.Get(ctx, n.ID)
	switch {
	case errors.Is(err, notice.ErrNotFound):
		if _, err := r.collection.InsertOne(ctx, n); err != nil {
			if !mongo.IsDuplicateKeyError(err) {
				return notices.SaveResult{}, fmt.Errorf("cannot create notice: %w", err)
			}
			// Lost an insert race; fall through to the conditional replace.
			if previous, err = r.Get(ctx, n.ID); err != nil {
				return notices.SaveResult{}, err
			}
			return r.replace(ctx, n, previous)
		}
		return notices.SaveResult{Applied: true, Current: *n}, nil
	case err != nil:
		return notices.SaveResult{}, err
	}

	return r.replace(ctx, n, previous)
}

func (r *NoticeRepo) replace(ctx context.Context, n, previous *notice.OrderNotice) (notices.SaveResult, error) {
	if previous.UpdatedAt.After(n.UpdatedAt) {
		return notices.SaveResult{Previous: previous, Current: *previous}, nil
	}

	filter := bson.M{"_id": n.ID, "updated_at": bson.M{"$lte": n.UpdatedAt}}
	result, err := r.collection.ReplaceOne(ctx, filter, n)
	if err != nil {
		return notices.SaveResult{}, fmt.Errorf("cannot update notice: %w", err)
	}

	if result.MatchedCount == 0 {
		current, err := r.Get(ctx, n.ID)
		if err != nil {
			return notices.SaveResult{}, err
		}
		return notices.SaveResult{Previous: previous, Current: *current}, nil
	}

	return notices.SaveResult{Applied: true, Previous: previous, Current: *n}, nil
}

func (r *NoticeRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("cannot delete notices: %w", err)
	}
	return result.DeletedCount, nil
}
