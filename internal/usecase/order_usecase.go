package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"minishop/internal/domain/event"
	"minishop/internal/domain/model"
	"minishop/internal/logger"
	repo "minishop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 注文履歴のキャッシュ（一覧表示用。多少古くてもよい）
type OrderHistoryCache interface {
	Get(ctx context.Context, userID int64) ([]byte, bool, error)
	Set(ctx context.Context, userID int64, payload []byte) error
	Invalidate(ctx context.Context, userID int64) error
}

// 注文確定イベントの送信先
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, e event.OrderPlaced) error
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	cache     OrderHistoryCache
	events    OrderEventPublisher
	log       *zap.Logger
	txTimeout time.Duration

	// 注文確定のたびに進める。DBを読む前と値が違えばキャッシュに書かない
	placedGen atomic.Uint64
}

// cache/eventsはnilなら使わない
func NewOrderUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	cache OrderHistoryCache,
	events OrderEventPublisher,
	log *zap.Logger,
	txTimeout time.Duration,
) *OrderUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{
		tx:        tx,
		users:     users,
		cache:     cache,
		events:    events,
		log:       log,
		txTimeout: txTimeout,
	}
}

// 時刻と操作者は呼び出し側が決める（usecaseでは時計もヘッダーも見ない）
type PlaceOrderInput struct {
	UserID         int64
	Actor          string
	At             time.Time
	IdempotencyKey string
}

type OrderSummary struct {
	OrderID    int64     `json:"orderId"`
	CreatedAt  time.Time `json:"createdAt"`
	ItemsCount int       `json:"itemsCount"`
	Total      Money     `json:"total"`
}

type OrderItemOutput struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     Money `json:"price"`
}

type OrderOutput struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"userId"`
	CreatedAt time.Time         `json:"createdAt"`
	Total     Money             `json:"total"`
	Items     []OrderItemOutput `json:"items"`
}

// PlaceOrder はカートを1つのトランザクションで注文に変える。
// 失敗したら注文・明細・在庫・カート・監査ログのどれも残らない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (OrderSummary, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderSummary{}, invalidState("invalid idempotency key")
	}
	actor := strings.TrimSpace(in.Actor)
	if actor == "" {
		actor = strconv.FormatInt(in.UserID, 10)
	}
	createdAt := in.At.UTC()

	if u.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.txTimeout)
		defer cancel()
	}

	if err := u.ensureUser(ctx, in.UserID); err != nil {
		return OrderSummary{}, err
	}

	var (
		out      OrderSummary
		replayed bool
		placed   event.OrderPlaced
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// ユーザー行ロックで同じユーザーの確定を直列化（同じカートを2回注文しない）
		ok, err := r.Users().LockByID(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if !ok {
			return notFound("user %d not found", in.UserID)
		}

		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, in.UserID, key)
			if err != nil {
				return fmt.Errorf("find order by idempotency key: %w", err)
			}
			if found {
				items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return fmt.Errorf("list order items: %w", err)
				}
				out = toOrderSummary(existing, items)
				replayed = true
				return nil
			}
		}

		//カートを読み直す
		cartItems, err := r.CartItems().ListByUserID(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("list cart: %w", err)
		}
		if len(cartItems) == 0 {
			return invalidState("cart is empty")
		}

		//商品は行ロックしてから検証（同時注文で同じ在庫を取り合わない）
		products, err := r.Products().LockByIDs(ctx, distinctProductIDs(cartItems))
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		lines := resolveCartLines(cartItems, products)
		if err := validateCartLines(lines); err != nil {
			return err
		}

		orderItems, total := snapshotOrderItems(lines, createdAt)

		// 注文作成
		order := model.Order{
			UserID:    in.UserID,
			Total:     total,
			CreatedAt: createdAt,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}

		//在庫減算（カート順）。条件付きUPDATEで0件なら在庫不足
		for _, line := range lines {
			l := line.(ResolvedLine)
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.Product.ID, l.Item.Quantity)
			if err != nil {
				return fmt.Errorf("decrease stock of product %d: %w", l.Product.ID, err)
			}
			if !ok {
				return conflict("insufficient stock for product %q (id=%d)", l.Product.Name, l.Product.ID)
			}
		}

		//カートを空にする（再注文防止）。読んだ明細と件数が違えば途中で変わっている
		cleared, err := r.CartItems().ClearByUserID(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if cleared != int64(len(cartItems)) {
			return invalidState("cart changed during checkout")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       fmt.Sprintf("placed order #%d with %d item(s)", orderID, len(orderItems)),
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			CreatedAt:    createdAt,
		}); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}

		out = OrderSummary{
			OrderID:    orderID,
			CreatedAt:  createdAt,
			ItemsCount: len(orderItems),
			Total:      NewMoney(total),
		}
		placed = toOrderPlacedEvent(orderID, in.UserID, actor, createdAt, total, orderItems)
		return nil
	})

	//同時に同じキーで来て負けた側は、勝った方の注文を返す
	if errors.Is(err, repo.ErrDuplicateKey) && key != "" {
		return u.replayByKey(ctx, in.UserID, key)
	}
	if err != nil {
		return OrderSummary{}, u.fail(ctx, err)
	}
	if replayed {
		return out, nil
	}

	u.afterPlaced(ctx, placed)
	return out, nil
}

// GetOrdersForUser は注文履歴を新しい順で返す。
// ユーザーがいなければNotFound、注文0件なら空配列。
func (u *OrderUsecase) GetOrdersForUser(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if err := u.ensureUser(ctx, userID); err != nil {
		return []OrderOutput{}, err
	}

	// 読み込み中に確定した注文のInvalidateを古い一覧で上書きしない。
	// 別プロセスの確定はTTLまで古いまま残りうる（一覧は結果整合でよい）
	gen := u.placedGen.Load()

	if outs, ok := u.cachedOrders(ctx, userID); ok {
		return outs, nil
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}

		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		itemsByOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o, itemsByOrder[o.ID]))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, u.fail(ctx, err)
	}

	if u.placedGen.Load() == gen {
		u.storeOrders(ctx, userID, outs)
	}
	return outs, nil
}

func (u *OrderUsecase) ensureUser(ctx context.Context, userID int64) error {
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

func (u *OrderUsecase) replayByKey(ctx context.Context, userID int64, key string) (OrderSummary, error) {
	var out OrderSummary
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return fmt.Errorf("find order by idempotency key: %w", err)
		}
		if !found {
			return fmt.Errorf("idempotency key %q conflicted but no order found", key)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		out = toOrderSummary(existing, items)
		return nil
	})
	if err != nil {
		return OrderSummary{}, u.fail(ctx, err)
	}
	return out, nil
}

// 業務エラーはそのまま、それ以外はInternalにしてログに残す
func (u *OrderUsecase) fail(ctx context.Context, err error) error {
	if e, ok := AsError(err); ok {
		return e
	}
	ie := internalError(err)
	logger.Ctx(ctx, u.log).Error("order operation failed",
		zap.String("correlation_id", ie.CorrelationID),
		zap.Error(err),
	)
	return ie
}

// commit後の副作用。失敗しても注文は確定しているのでwarnだけ
func (u *OrderUsecase) afterPlaced(ctx context.Context, e event.OrderPlaced) {
	ctx = context.WithoutCancel(ctx)
	l := logger.Ctx(ctx, u.log).With(zap.Int64("order_id", e.OrderID), zap.Int64("user_id", e.UserID))

	u.placedGen.Add(1)
	if u.cache != nil {
		if err := u.cache.Invalidate(ctx, e.UserID); err != nil {
			l.Warn("order history cache invalidate failed", zap.Error(err))
		}
	}
	if u.events != nil {
		if err := u.events.PublishOrderPlaced(ctx, e); err != nil {
			l.Warn("order placed event publish failed", zap.Error(err))
		}
	}
	l.Info("order placed", zap.Int("items_count", e.ItemsCount), zap.String("total", e.Total))
}

func (u *OrderUsecase) cachedOrders(ctx context.Context, userID int64) ([]OrderOutput, bool) {
	if u.cache == nil {
		return nil, false
	}
	b, ok, err := u.cache.Get(ctx, userID)
	if err != nil {
		logger.Ctx(ctx, u.log).Warn("order history cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var outs []OrderOutput
	if err := json.Unmarshal(b, &outs); err != nil {
		logger.Ctx(ctx, u.log).Warn("order history cache decode failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	if outs == nil {
		outs = []OrderOutput{}
	}
	return outs, true
}

func (u *OrderUsecase) storeOrders(ctx context.Context, userID int64, outs []OrderOutput) {
	if u.cache == nil {
		return
	}
	b, err := json.Marshal(outs)
	if err != nil {
		logger.Ctx(ctx, u.log).Warn("order history cache encode failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := u.cache.Set(ctx, userID, b); err != nil {
		logger.Ctx(ctx, u.log).Warn("order history cache set failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// 検証済みの明細から注文明細（価格スナップショット）と合計を作る
func snapshotOrderItems(lines []CartLine, at time.Time) ([]model.OrderItem, decimal.Decimal) {
	items := make([]model.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		l, ok := line.(ResolvedLine)
		if !ok {
			continue
		}
		total = total.Add(l.LineTotal())
		items = append(items, model.OrderItem{
			ProductID: l.Product.ID,
			Quantity:  l.Item.Quantity,
			UnitPrice: l.Product.Price,
			CreatedAt: at,
		})
	}
	return items, total
}

func toOrderSummary(o model.Order, items []model.OrderItem) OrderSummary {
	return OrderSummary{
		OrderID:    o.ID,
		CreatedAt:  o.CreatedAt,
		ItemsCount: len(items),
		Total:      NewMoney(o.Total),
	}
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     NewMoney(it.UnitPrice),
		})
	}

	return OrderOutput{
		ID:        o.ID,
		UserID:    o.UserID,
		CreatedAt: o.CreatedAt,
		Total:     NewMoney(o.Total),
		Items:     outItems,
	}
}

func toOrderPlacedEvent(orderID, userID int64, actor string, at time.Time, total decimal.Decimal, items []model.OrderItem) event.OrderPlaced {
	evItems := make([]event.OrderPlacedItem, 0, len(items))
	for _, it := range items {
		evItems = append(evItems, event.OrderPlacedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	return event.OrderPlaced{
		OrderID:    orderID,
		UserID:     userID,
		Actor:      actor,
		ItemsCount: len(items),
		Total:      total.StringFixed(2),
		Items:      evItems,
		PlacedAt:   at,
	}
}
