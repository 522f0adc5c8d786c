package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/techagentng/rentchat/models"
)

// TypingTTL bounds how long a typing flag survives without a refresh.
const TypingTTL = 5 * time.Second

// TypingStore holds the latest TypingState per (conversation, user). States
// are ephemeral and vanish after TypingTTL.
type TypingStore interface {
	SetTyping(ctx context.Context, st models.TypingState) error
	ListTyping(ctx context.Context, conversationID uuid.UUID) ([]models.TypingState, error)
}

func typingKey(conversationID, userID uuid.UUID) string {
	return fmt.Sprintf("typing:conv:%s:user:%s", conversationID, userID)
}

type redisTypingStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses a redis URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func NewRedisTypingStore(client *redis.Client) TypingStore {
	return &redisTypingStore{client: client, ttl: TypingTTL}
}

func (s *redisTypingStore) SetTyping(ctx context.Context, st models.TypingState) error {
	key := typingKey(st.ConversationID, st.UserID)
	if !st.IsTyping {
		return errors.Wrap(s.client.Del(ctx, key).Err(), "clear typing")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Set(ctx, key, raw, s.ttl).Err(), "set typing")
}

func (s *redisTypingStore) ListTyping(ctx context.Context, conversationID uuid.UUID) ([]models.TypingState, error) {
	pattern := fmt.Sprintf("typing:conv:%s:user:*", conversationID)
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan typing")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read typing")
	}
	out := make([]models.TypingState, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var st models.TypingState
		if err := json.Unmarshal([]byte(str), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

type memoryTypingStore struct {
	clock clockwork.Clock
	ttl   time.Duration
	cache *ttlcache.Cache[string, models.TypingState]
}

// NewMemoryTypingStore keeps typing state in process. It is used when no
// redis URL is configured and in tests. The cache drops entries on wall
// time; reads also judge staleness by clock so a fake clock can drive it.
func NewMemoryTypingStore(clock clockwork.Clock) TypingStore {
	return &memoryTypingStore{
		clock: clock,
		ttl:   TypingTTL,
		cache: ttlcache.New[string, models.TypingState](
			ttlcache.WithTTL[string, models.TypingState](TypingTTL),
			ttlcache.WithDisableTouchOnHit[string, models.TypingState](),
		),
	}
}

func (s *memoryTypingStore) SetTyping(_ context.Context, st models.TypingState) error {
	key := typingKey(st.ConversationID, st.UserID)
	if !st.IsTyping {
		s.cache.Delete(key)
		return nil
	}
	s.cache.Set(key, st, ttlcache.DefaultTTL)
	return nil
}

func (s *memoryTypingStore) ListTyping(_ context.Context, conversationID uuid.UUID) ([]models.TypingState, error) {
	s.cache.DeleteExpired()

	now := s.clock.Now()
	var (
		out   []models.TypingState
		stale []string
	)
	s.cache.Range(func(item *ttlcache.Item[string, models.TypingState]) bool {
		st := item.Value()
		switch {
		case now.Sub(st.UpdatedAt) >= s.ttl:
			stale = append(stale, item.Key())
		case st.ConversationID == conversationID:
			out = append(out, st)
		}
		return true
	})
	for _, key := range stale {
		s.cache.Delete(key)
	}
	return out, nil
}
