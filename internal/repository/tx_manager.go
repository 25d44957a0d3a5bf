package repository

import (
	"context"
	"errors"
)

// 同じ(user, idempotency key)の注文が既にある（ユニーク制約違反）
var ErrDuplicateKey = errors.New("duplicate key")

// トランザクション内で使う約束。
// ここから取ったrepoは全部同じtxに乗る。
type TxRepos interface {
	Users() UserRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	CartItems() CartItemRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがerrorを返したらrollback、nilならcommit。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
