package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OrderHistoryCache は注文履歴のJSONをユーザー単位で持つ。
// 中身は解釈しない（encode/decodeはusecase側）。
type OrderHistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderHistoryCache(rdb *redis.Client, ttl time.Duration) *OrderHistoryCache {
	if ttl <= 0 {
		ttl = TTLOrderHistory
	}
	return &OrderHistoryCache{rdb: rdb, ttl: ttl}
}

func orderHistoryKey(userID int64) string {
	return fmt.Sprintf(KeyOrderHistory, userID)
}

// 無ければ (nil, false, nil)
func (c *OrderHistoryCache) Get(ctx context.Context, userID int64) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, orderHistoryKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *OrderHistoryCache) Set(ctx context.Context, userID int64, payload []byte) error {
	return c.rdb.Set(ctx, orderHistoryKey(userID), payload, c.ttl).Err()
}

// 注文確定後に呼ぶ
func (c *OrderHistoryCache) Invalidate(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, orderHistoryKey(userID)).Err()
}
