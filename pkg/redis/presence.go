package redis

import (
	"fmt"
	"time"
)

// Online-presence tracking for the push dispatcher: a per-user key with TTL
// plus a set of online user ids.
const (
	presenceKeyPrefix = "msg:presence:user:"
	onlineUsersKey    = "msg:online:users"
	presenceTTL       = 2 * time.Minute
)

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}

// SetUserOnline marks a user online.
func SetUserOnline(userID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := client.Set(ctx, presenceKey(userID), time.Now().Unix(), presenceTTL).Err(); err != nil {
		return fmt.Errorf("set presence failed: %w", err)
	}
	return client.SAdd(ctx, onlineUsersKey, userID).Err()
}

// SetUserOffline clears a user's presence.
func SetUserOffline(userID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if err := client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear presence failed: %w", err)
	}
	return client.SRem(ctx, onlineUsersKey, userID).Err()
}

// RefreshUserPresence extends the presence TTL on heartbeat.
func RefreshUserPresence(userID uint) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	exists, err := client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("check presence failed: %w", err)
	}
	if exists == 0 {
		return SetUserOnline(userID)
	}
	return client.Expire(ctx, presenceKey(userID), presenceTTL).Err()
}

// IsUserOnline reports whether a user has live presence.
func IsUserOnline(userID uint) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("redis client not initialized")
	}
	exists, err := client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check presence failed: %w", err)
	}
	return exists > 0, nil
}

// GetOnlineUsers lists ids from the online set, dropping entries whose
// presence key has expired.
func GetOnlineUsers() ([]uint, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}
	members, err := client.SMembers(ctx, onlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get online users failed: %w", err)
	}

	var userIDs []uint
	for _, member := range members {
		var userID uint
		if _, err := fmt.Sscanf(member, "%d", &userID); err != nil {
			continue
		}
		online, err := IsUserOnline(userID)
		if err == nil && !online {
			client.SRem(ctx, onlineUsersKey, userID)
			continue
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}
