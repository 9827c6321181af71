package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session snapshots in Redis with a TTL, so an abandoned
// conversation ages out on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func transcriptKey(userID string) string {
	return fmt.Sprintf("shopmate:session:%s:transcript", userID)
}

func stateKey(userID string) string {
	return fmt.Sprintf("shopmate:session:%s:state", userID)
}

func (s *RedisStore) Save(ctx context.Context, userID string, rec Record) error {
	if s == nil || s.client == nil {
		return nil
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return errors.New("user id is required")
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	entries, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, transcriptKey(id), entries, s.ttl)
	if len(rec.State) > 0 {
		pipe.Set(ctx, stateKey(id), []byte(rec.State), s.ttl)
	} else {
		pipe.Del(ctx, stateKey(id))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, userID string) (Record, bool, error) {
	if s == nil || s.client == nil {
		return Record{}, false, nil
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return Record{}, false, errors.New("user id is required")
	}
	data, err := s.client.Get(ctx, transcriptKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode session: %w", err)
	}
	state, err := s.client.Get(ctx, stateKey(id)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Record{}, false, err
	}
	if len(state) > 0 {
		rec.State = json.RawMessage(state)
	}
	return rec, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, transcriptKey(id), stateKey(id)).Err()
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
