package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenKey = "presence:last_seen"

// SetLastSeen stores the last-seen timestamp of userID in a Redis hash.
func (s *Service) SetLastSeen(ctx context.Context, userID string, at time.Time) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.HSet(ctx, lastSeenKey, userID, at.UnixMilli()).Err()
}

// GetLastSeen returns ErrNotFound if userID was never seen.
func (s *Service) GetLastSeen(ctx context.Context, userID string) (time.Time, error) {
	if s.Redis == nil {
		return time.Time{}, ErrNotFound
	}
	raw, err := s.Redis.HGet(ctx, lastSeenKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
