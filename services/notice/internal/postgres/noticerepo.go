package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/appetiteclub/notices/services/notice/internal/notices"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS notices (
    id            uuid PRIMARY KEY,
    restaurant_id text NOT NULL,
    user_id       text NOT NULL DEFAULT '',
    updated_at    timestamptz NOT NULL,
    doc           jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS notices_restaurant_updated_idx ON notices (restaurant_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS notices_user_idx ON notices (user_id);
`

// NoticeRepo stores each notice as a jsonb document next to the columns used
// for filtering and for the updated_at guard.
type NoticeRepo struct {
	pool   *pgxpool.Pool
	config *apt.Config
	logger apt.Logger
}

func NewNoticeRepo(config *apt.Config, logger apt.Logger) *NoticeRepo {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &NoticeRepo{
		config: config,
		logger: logger,
	}
}

func (r *NoticeRepo) Start(ctx context.Context) error {
	url := r.config.GetStringOrDef("db.postgres.url", "postgres://localhost:5432/notices?sslmode=disable")

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("cannot connect to PostgreSQL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("cannot ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return fmt.Errorf("cannot create notices table: %w", err)
	}

	r.pool = pool
	r.logger.Info("Connected to PostgreSQL")
	return nil
}

func (r *NoticeRepo) Stop(ctx context.Context) error {
	if r.pool != nil {
		r.pool.Close()
		r.logger.Info("Disconnected from PostgreSQL")
	}
	return nil
}

func (r *NoticeRepo) Get(ctx context.Context, id uuid.UUID) (*notice.OrderNotice, error) {
	return r.get(ctx, r.pool, id, "")
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *NoticeRepo) get(ctx context.Context, q querier, id uuid.UUID, suffix string) (*notice.OrderNotice, error) {
	var doc []byte
	err := q.QueryRow(ctx, `SELECT doc FROM notices WHERE id = $1`+suffix, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notice %s: %w", id, notice.ErrNotFound)
		}
		return nil, fmt.Errorf("cannot get notice: %w", err)
	}
	return decode(doc)
}

func (r *NoticeRepo) List(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT doc FROM notices WHERE restaurant_id = ANY($1) ORDER BY updated_at DESC`,
		restaurantIDs)
	if err != nil {
		return nil, fmt.Errorf("cannot list notices: %w", err)
	}
	defer rows.Close()

	result := []notice.OrderNotice{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("cannot scan notice: %w", err)
		}
		n, err := decode(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot list notices: %w", err)
	}

	return result, nil
}

func (r *NoticeRepo) Save(ctx context.Context, n *notice.OrderNotice) (notices.SaveResult, error) {
	if n == nil {
		return notices.SaveResult{}, fmt.Errorf("notice is nil")
	}

	doc, err := json.Marshal(n)
	if err != nil {
		return notices.SaveResult{}, fmt.Errorf("cannot encode notice: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return notices.SaveResult{}, fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	previous, err := r.get(ctx, tx, n.ID, " FOR UPDATE")
	if err != nil && !errors.Is(err, notice.ErrNotFound) {
		return notices.SaveResult{}, err
	}

	tag, err := tx.Exec(ctx, `
        INSERT INTO notices (id, restaurant_id, user_id, updated_at, doc)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            restaurant_id = EXCLUDED.restaurant_id,
            user_id = EXCLUDED.user_id,
            updated_at = EXCLUDED.updated_at,
            doc = EXCLUDED.doc
        WHERE notices.updated_at <= EXCLUDED.updated_at
    `, n.ID, n.RestaurantID, n.UserID, n.UpdatedAt, doc)
	if err != nil {
		return notices.SaveResult{}, fmt.Errorf("cannot save notice: %w", err)
	}

	result := notices.SaveResult{Previous: previous, Current: *n, Applied: tag.RowsAffected() > 0}
	if !result.Applied {
		current, err := r.get(ctx, tx, n.ID, "")
		if err != nil {
			return notices.SaveResult{}, err
		}
		result.Current = *current
	}

	if err := tx.Commit(ctx); err != nil {
		return notices.SaveResult{}, fmt.Errorf("cannot commit notice: %w", err)
	}
	return result, nil
}

func (r *NoticeRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notices WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("cannot delete notices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func decode(doc []byte) (*notice.OrderNotice, error) {
	var n notice.OrderNotice
	if err := json.Unmarshal(doc, &n); err != nil {
		return nil, fmt.Errorf("cannot decode notice: %w", err)
	}
	return &n, nil
}
