package repository

import (
	"context"

	"minishop/internal/domain/model"
)

type CartItemRepository interface {
	// ユーザーのカート明細（id昇順）
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)
	// 同一商品は数量をプラス
	UpsertByUserAndProduct(ctx context.Context, userID int64, productID int64, addQty int64) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	// ユーザーの明細を全削除し、削除件数を返す
	ClearByUserID(ctx context.Context, userID int64) (int64, error)
}
