package repository

import (
	"context"

	"minishop/internal/domain/model"
)

type OrderRepository interface {
	// 新しい順（created_at desc, id desc）
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
