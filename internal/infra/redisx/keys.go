package redisx

import "time"

const (
	// 注文履歴キャッシュ: orders:user:{user_id} -> GET /orders/user のJSON
	KeyOrderHistory = "orders:user:%d"
)

var (
	TTLOrderHistory = 5 * time.Minute
)
