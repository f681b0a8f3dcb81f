package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusTTL = time.Hour

type RedisRepo struct {
	Client *redis.Client
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{Client: client}
}

// SetStatus stores the lifecycle state under eventKey. A bucket key always
// holds the state of the latest event opened in that bucket; finalized events
// are additionally recorded under their event ID.
func (r *RedisRepo) SetStatus(ctx context.Context, eventKey, status string) error {
	return r.Client.Set(ctx, "event_status:"+eventKey, status, statusTTL).Err()
}

func (r *RedisRepo) GetStatus(ctx context.Context, eventKey string) (string, error) {
	return r.Client.Get(ctx, "event_status:"+eventKey).Result()
}
