package usecase

import (
	"context"
	"errors"
	"fmt"

	"minishop/internal/logger"
	repo "minishop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartUsecase は /cart の業務ロジックです。
// 在庫チェックと書き込みは同じトランザクションで行います。
type CartUsecase struct {
	tx    repo.TransactionManager
	users repo.UserRepository
	log   *zap.Logger
}

func NewCartUsecase(tx repo.TransactionManager, users repo.UserRepository, log *zap.Logger) *CartUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartUsecase{
		tx:    tx,
		users: users,
		log:   log,
	}
}

// price/stockは現在の商品の値（注文時に確定する）
type CartItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Stock     int64  `json:"stock"`
	Quantity  int64  `json:"quantity"`
	LineTotal Money  `json:"lineTotal"`
}

type CartOutput struct {
	UserID int64            `json:"userId"`
	Items  []CartItemOutput `json:"items"`
	Total  Money            `json:"total"`
}

type AddCartInput struct {
	UserID    int64
	ProductID int64
	Quantity  int64
}

// GetCart はカートを現在の価格で返す。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return CartOutput{}, err
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = buildCart(ctx, r, userID)
		return err
	})
	if err != nil {
		return CartOutput{}, u.fail(ctx, err)
	}
	return out, nil
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, in AddCartInput) (CartOutput, error) {
	if in.Quantity <= 0 {
		return CartOutput{}, invalidState("quantity must be greater than zero")
	}
	if err := u.ensureUser(ctx, in.UserID); err != nil {
		return CartOutput{}, err
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 商品をロックしてから既存数量と合わせてチェック
		products, err := r.Products().LockByIDs(ctx, []int64{in.ProductID})
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		if len(products) == 0 {
			return notFound("product %d not found", in.ProductID)
		}
		p := products[0]

		items, err := r.CartItems().ListByUserID(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("list cart: %w", err)
		}
		var existingQty int64
		for _, it := range items {
			if it.ProductID == in.ProductID {
				existingQty = it.Quantity
				break
			}
		}

		if existingQty+in.Quantity > p.Stock {
			return conflict("insufficient stock. available: %d", p.Stock)
		}

		if err := r.CartItems().UpsertByUserAndProduct(ctx, in.UserID, in.ProductID, in.Quantity); err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		out, err = buildCart(ctx, r, in.UserID)
		return err
	})
	if err != nil {
		return CartOutput{}, u.fail(ctx, err)
	}
	return out, nil
}

// 数量変更（在庫チェックあり）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, cartItemID int64, qty int64) (CartOutput, error) {
	if qty <= 0 {
		return CartOutput{}, invalidState("quantity must be greater than zero")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := r.CartItems().FindByID(ctx, cartItemID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("cart item %d not found", cartItemID)
		}
		if err != nil {
			return fmt.Errorf("find cart item: %w", err)
		}

		products, err := r.Products().LockByIDs(ctx, []int64{item.ProductID})
		if err != nil {
			return fmt.Errorf("lock product: %w", err)
		}
		if len(products) == 0 {
			return notFound("product %d not found", item.ProductID)
		}
		if qty > products[0].Stock {
			return conflict("insufficient stock. available: %d", products[0].Stock)
		}

		if err := r.CartItems().UpdateQuantity(ctx, cartItemID, qty); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("cart item %d not found", cartItemID)
			}
			return fmt.Errorf("update cart item: %w", err)
		}

		out, err = buildCart(ctx, r, item.UserID)
		return err
	})
	if err != nil {
		return CartOutput{}, u.fail(ctx, err)
	}
	return out, nil
}

// 明細削除
func (u *CartUsecase) RemoveCartItem(ctx context.Context, cartItemID int64) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.CartItems().DeleteByID(ctx, cartItemID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("cart item %d not found", cartItemID)
		}
		if err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return u.fail(ctx, err)
	}
	return nil
}

// ClearCart はユーザーの明細を全部消して、消した件数を返す。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (int64, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return 0, err
	}

	var n int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.CartItems().ClearByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, u.fail(ctx, err)
	}
	return n, nil
}

func (u *CartUsecase) ensureUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return notFound("user %d not found", userID)
	}
	exists, err := u.users.Exists(ctx, userID)
	if err != nil {
		return u.fail(ctx, fmt.Errorf("check user: %w", err))
	}
	if !exists {
		return notFound("user %d not found", userID)
	}
	return nil
}

func (u *CartUsecase) fail(ctx context.Context, err error) error {
	if e, ok := AsError(err); ok {
		return e
	}
	ie := internalError(err)
	logger.Ctx(ctx, u.log).Error("cart operation failed",
		zap.String("correlation_id", ie.CorrelationID),
		zap.Error(err),
	)
	return ie
}

// ユーザーの明細をまとめてCartOutputを作る。
// 商品が消えている明細は表示しない（注文時にInvalidStateになる）。
func buildCart(ctx context.Context, r repo.TxRepos, userID int64) (CartOutput, error) {
	items, err := r.CartItems().ListByUserID(ctx, userID)
	if err != nil {
		return CartOutput{}, fmt.Errorf("list cart: %w", err)
	}

	out := CartOutput{
		UserID: userID,
		Items:  make([]CartItemOutput, 0, len(items)),
	}
	total := decimal.Zero

	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartOutput{}, fmt.Errorf("find product %d: %w", it.ProductID, err)
		}

		line := ResolvedLine{Item: it, Product: p}
		out.Items = append(out.Items, CartItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     NewMoney(p.Price),
			Stock:     p.Stock,
			Quantity:  it.Quantity,
			LineTotal: NewMoney(line.LineTotal()),
		})
		total = total.Add(line.LineTotal())
	}

	out.Total = NewMoney(total)
	return out, nil
}
