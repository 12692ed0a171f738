package notices

import (
	"context"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

// SaveResult reports whether a save replaced the stored record. Current is
// the record as stored after the call; Previous is nil for a first save.
type SaveResult struct {
	Applied  bool
	Previous *notice.OrderNotice
	Current  notice.OrderNotice
}

// NoticeRepo stores whole notices. Save is last-writer-wins on updated_at: a
// record older than the stored one is ignored.
type NoticeRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*notice.OrderNotice, error)
	List(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error)
	Save(ctx context.Context, n *notice.OrderNotice) (SaveResult, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
