package repository

import "context"

type UserRepository interface {
	Exists(ctx context.Context, userID int64) (bool, error)

	// トランザクション内でユーザー行をロック（SELECT ... FOR UPDATE）。
	// 同じユーザーの注文確定を1本ずつにする。false=ユーザーがいない
	LockByID(ctx context.Context, userID int64) (bool, error)
}
