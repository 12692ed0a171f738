package mongo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultURL      = "mongodb://localhost:27017"
	defaultDatabase = "notices"
)

// Conn owns the MongoDB client of the notice service. Start must succeed
// before Database returns a usable handle.
type Conn struct {
	client *mongo.Client
	db     *mongo.Database
	config *apt.Config
	logger apt.Logger
}

func NewConn(config *apt.Config, logger apt.Logger) *Conn {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Conn{
		config: config,
		logger: logger,
	}
}

func (c *Conn) Start(ctx context.Context) error {
	url := c.config.GetStringOrDef("db.mongo.url", defaultURL)
	dbName := c.config.GetStringOrDef("db.mongo.name", defaultDatabase)

	opts := options.Client().ApplyURI(url).
		SetAppName("notice").
		SetRetryWrites(true).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	if raw := c.config.GetStringOrDef("db.mongo.pool.size", ""); raw != "" {
		size, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid db.mongo.pool.size %q: %w", raw, err)
		}
		opts.SetMaxPoolSize(size)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	c.client = client
	c.db = client.Database(dbName)

	c.logger.Info("Connected to MongoDB", "database", dbName)
	return nil
}

func (c *Conn) Stop(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}

func (c *Conn) Database() *mongo.Database {
	return c.db
}
