package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisStore keeps session state in Redis so multiple bot replicas share
// one view of reporter context.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis returns a Redis-backed session store. The connection is
// verified before use.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisStore{client: client, ttl: ttl, prefix: "firewatch:session:"}, nil
}

func (r *redisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *redisStore) Get(ctx context.Context, userID int64) (State, bool, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("get session: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt state is discarded rather than poisoning intake.
		return State{}, false, nil
	}
	return st, true, nil
}

func (r *redisStore) Put(ctx context.Context, userID int64, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
