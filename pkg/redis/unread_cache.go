package redis

import (
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Per-(user, conversation) unread counter cache. The database read cursor
// stays authoritative; a cache miss falls back to a count query.
const (
	unreadKeyPrefix = "msg:unread:"
	unreadTTL       = 24 * time.Hour
)

// ErrCacheMiss is returned when no counter is cached for the pair.
var ErrCacheMiss = errors.New("unread count not cached")

func unreadKey(userID, conversationID uint) string {
	return fmt.Sprintf("%s%d:%d", unreadKeyPrefix, userID, conversationID)
}

// IncrementUnread bumps the cached counter for one recipient.
func IncrementUnread(userID, conversationID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	key := unreadKey(userID, conversationID)
	if err := client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("increment unread failed: %w", err)
	}
	return client.Expire(ctx, key, unreadTTL).Err()
}

// IncrementUnreadBatch bumps the counter for many recipients in one
// pipeline round trip.
func IncrementUnreadBatch(userIDs []uint, conversationID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	pipe := client.Pipeline()
	for _, userID := range userIDs {
		key := unreadKey(userID, conversationID)
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, unreadTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetUnread reads the cached counter; ErrCacheMiss when absent.
func GetUnread(userID, conversationID uint) (int64, error) {
	if client == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}
	count, err := client.Get(ctx, unreadKey(userID, conversationID)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("get unread failed: %w", err)
	}
	return count, nil
}

// SetUnread overwrites the cached counter (after a DB recount).
func SetUnread(userID, conversationID uint, count int64) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return client.Set(ctx, unreadKey(userID, conversationID), count, unreadTTL).Err()
}

// ResetUnread drops the counter when the user reads the conversation.
func ResetUnread(userID, conversationID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return client.Del(ctx, unreadKey(userID, conversationID)).Err()
}
