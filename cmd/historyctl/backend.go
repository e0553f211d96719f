package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gogotex/gogotex/backend/go-history/internal/config"
	"github.com/gogotex/gogotex/backend/go-history/internal/database"
	"github.com/gogotex/gogotex/backend/go-history/internal/document/service"
	"github.com/gogotex/gogotex/backend/go-history/internal/timeline"
	"github.com/gogotex/gogotex/backend/go-history/internal/users"
	"github.com/gogotex/gogotex/backend/go-history/pkg/logger"
)

// backend is what a command runs against.
type backend struct {
	docs  service.Service
	users *users.Service
	close func(context.Context)
}

// connector opens a backend for cfg.
type connector func(ctx context.Context, cfg *config.Config) (*backend, error)

const maxAttempts = 5

var retryBackoff = time.Second

func connectMongo(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.MongoDB.URI == "" {
		return nil, config.ErrMissingMongoURI
	}

	// Retry/backoff when connecting to MongoDB to tolerate startup races
	backoff := retryBackoff
	var client *mongo.Client
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDB.Database)
	version, err := database.CheckServerVersion(ctx, db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Debugf("connected to MongoDB %s (database=%s)", version, cfg.MongoDB.Database)

	var opts []service.Option
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; timelines are not cached", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			opts = append(opts, service.WithCache(timeline.NewRedisCache(rdb, "", cfg.History.CacheTTL)))
		}
	}

	return &backend{
		docs:  service.NewMongoService(db.Collection(cfg.MongoDB.Collection), opts...),
		users: users.NewService(users.NewMongoUserRepository(db.Collection(cfg.MongoDB.UsersCollection))),
		close: func(ctx context.Context) {
			if rdb != nil {
				_ = rdb.Close()
			}
			_ = client.Disconnect(ctx)
		},
	}, nil
}
