package repository

import (
	"context"
	"errors"

	"minishop/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品の取得だけを約束（CRUDは管理画面側）。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// トランザクション内で行ロック（SELECT ... FOR UPDATE）して取得。
	// id昇順でロックする。存在しないidは結果に含まれない。
	LockByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}
