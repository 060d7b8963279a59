package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisConn dials the queue backend, retrying with a fixed interval until
// a ping succeeds. The connection is closed when ctx is cancelled.
func NewRedisConn(ctx context.Context, cfg *Redis) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	operation := func() (*redis.Client, error) {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Pass,
			DB:       cfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to connect to Redis. Retrying...")
			client.Close()
			return nil, err
		}

		return client, nil
	}

	bo := backoff.NewConstantBackOff(5 * time.Second)
	maxRetries := uint(5)
	client, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(maxRetries))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("addr", addr).Int("db", cfg.DB).Msg("Successfully connected to Redis")
	go func() {
		<-ctx.Done()
		if err := client.Close(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to close Redis connection")
		}
		zerolog.Ctx(ctx).Info().Msg("Redis connection closed")
	}()

	return client, nil
}
