package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"minishop/internal/domain/model"
	repo "minishop/internal/repository"
)

// テスト用のインメモリDB。
// WithinTxは1本ずつ直列に流し、fnがerrorを返したらスナップショットに戻す。
type memStore struct {
	mu sync.Mutex

	users      map[int64]model.User
	products   map[int64]model.Product
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	audits     []model.AuditLog

	nextID int64

	// 操作名 -> 返すエラー（"orders.create" など）
	failOn map[string]error
	// trueなら条件付き減算が0件扱い
	denyDecrease bool
	// 設定されていればカート一覧はこれを返す（別txが消す前に読んだ内容）
	staleCart map[int64][]model.CartItem
	// WithinTxが呼ばれた回数
	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]model.User{},
		products:   map[int64]model.Product{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
		failOn:     map[string]error{},
		nextID:     100,
	}
}

type memSnapshot struct {
	users      map[int64]model.User
	products   map[int64]model.Product
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	audits     []model.AuditLog
	nextID     int64
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		users:      copyMap(s.users),
		products:   copyMap(s.products),
		cartItems:  copyMap(s.cartItems),
		orders:     copyMap(s.orders),
		orderItems: copyMap(s.orderItems),
		audits:     append([]model.AuditLog(nil), s.audits...),
		nextID:     s.nextID,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.products = snap.products
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.audits = snap.audits
	s.nextID = snap.nextID
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

// ---- seed helpers ----

func (s *memStore) addUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = model.User{ID: id, Username: "user"}
}

func (s *memStore) addProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memStore) addCartItem(userID, productID, qty int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.cartItems[id] = model.CartItem{ID: id, UserID: userID, ProductID: productID, Quantity: qty}
	return id
}

func (s *memStore) stock(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

func (s *memStore) cartOf(userID int64) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCart(userID)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) orderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderItems)
}

func (s *memStore) auditRows() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audits...)
}

func (s *memStore) listCart(userID int64) []model.CartItem {
	items := []model.CartItem{}
	for _, it := range s.cartItems {
		if it.UserID == userID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *memStore) itemsOf(orderID int64) []model.OrderItem {
	items := []model.OrderItem{}
	for _, it := range s.orderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// ---- TransactionManager ----

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fail("tx.begin"); err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(memRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// トランザクション外のユーザー存在チェック用
type memUsers struct{ s *memStore }

func (u memUsers) LockByID(_ context.Context, userID int64) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	_, ok := u.s.users[userID]
	return ok, nil
}

func (u memUsers) Exists(_ context.Context, userID int64) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if err := u.s.fail("users.exists"); err != nil {
		return false, err
	}
	_, ok := u.s.users[userID]
	return ok, nil
}

// tx内のrepo。ロックはWithinTx側で取っている
type memRepos struct{ s *memStore }

func (r memRepos) Users() repo.UserRepository           { return memTxUsers(r) }
func (r memRepos) Products() repo.ProductRepository     { return memProducts(r) }
func (r memRepos) Inventory() repo.InventoryRepository  { return memInventory(r) }
func (r memRepos) CartItems() repo.CartItemRepository   { return memCart(r) }
func (r memRepos) Orders() repo.OrderRepository         { return memOrders(r) }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems(r) }
func (r memRepos) AuditLogs() repo.AuditLogRepository   { return memAudit(r) }

type memTxUsers struct{ s *memStore }

// txはWithinTxで直列なので存在確認だけ
func (u memTxUsers) LockByID(_ context.Context, userID int64) (bool, error) {
	if err := u.s.fail("users.lock"); err != nil {
		return false, err
	}
	_, ok := u.s.users[userID]
	return ok, nil
}

func (u memTxUsers) Exists(_ context.Context, userID int64) (bool, error) {
	_, ok := u.s.users[userID]
	return ok, nil
}

type memProducts struct{ s *memStore }

func (p memProducts) FindByID(_ context.Context, id int64) (model.Product, error) {
	prod, ok := p.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return prod, nil
}

func (p memProducts) LockByIDs(_ context.Context, ids []int64) ([]model.Product, error) {
	if err := p.s.fail("products.lock"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, id := range ids {
		if prod, ok := p.s.products[id]; ok {
			out = append(out, prod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memInventory struct{ s *memStore }

func (i memInventory) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	if err := i.s.fail("inventory.decrease"); err != nil {
		return false, err
	}
	if i.s.denyDecrease {
		return false, nil
	}
	p, ok := i.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	i.s.products[productID] = p
	return true, nil
}

type memCart struct{ s *memStore }

func (c memCart) ListByUserID(_ context.Context, userID int64) ([]model.CartItem, error) {
	if err := c.s.fail("cart.list"); err != nil {
		return nil, err
	}
	if stale, ok := c.s.staleCart[userID]; ok {
		return append([]model.CartItem(nil), stale...), nil
	}
	return c.s.listCart(userID), nil
}

func (c memCart) UpsertByUserAndProduct(_ context.Context, userID, productID, addQty int64) error {
	if err := c.s.fail("cart.upsert"); err != nil {
		return err
	}
	for id, it := range c.s.cartItems {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity += addQty
			c.s.cartItems[id] = it
			return nil
		}
	}
	id := c.s.id()
	c.s.cartItems[id] = model.CartItem{ID: id, UserID: userID, ProductID: productID, Quantity: addQty}
	return nil
}

func (c memCart) UpdateQuantity(_ context.Context, cartItemID, qty int64) error {
	it, ok := c.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	c.s.cartItems[cartItemID] = it
	return nil
}

func (c memCart) DeleteByID(_ context.Context, cartItemID int64) error {
	if _, ok := c.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(c.s.cartItems, cartItemID)
	return nil
}

func (c memCart) FindByID(_ context.Context, cartItemID int64) (model.CartItem, error) {
	it, ok := c.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (c memCart) ClearByUserID(_ context.Context, userID int64) (int64, error) {
	if err := c.s.fail("cart.clear"); err != nil {
		return 0, err
	}
	var n int64
	for id, it := range c.s.cartItems {
		if it.UserID == userID {
			delete(c.s.cartItems, id)
			n++
		}
	}
	return n, nil
}

type memOrders struct{ s *memStore }

func (o memOrders) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	if err := o.s.fail("orders.list"); err != nil {
		return nil, err
	}
	out := []model.Order{}
	for _, ord := range o.s.orders {
		if ord.UserID == userID {
			out = append(out, ord)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (o memOrders) Create(_ context.Context, order model.Order) (int64, error) {
	if err := o.s.fail("orders.create"); err != nil {
		return 0, err
	}
	if order.IdempotencyKey != nil {
		for _, ord := range o.s.orders {
			if ord.UserID == order.UserID && ord.IdempotencyKey != nil && *ord.IdempotencyKey == *order.IdempotencyKey {
				return 0, repo.ErrDuplicateKey
			}
		}
	}
	order.ID = o.s.id()
	order.Items = nil
	o.s.orders[order.ID] = order
	return order.ID, nil
}

func (o memOrders) FindByIdempotencyKey(_ context.Context, userID int64, key string) (model.Order, bool, error) {
	if err := o.s.fail("orders.find_key"); err != nil {
		return model.Order{}, false, err
	}
	for _, ord := range o.s.orders {
		if ord.UserID == userID && ord.IdempotencyKey != nil && *ord.IdempotencyKey == key {
			return ord, true, nil
		}
	}
	return model.Order{}, false, nil
}

type memOrderItems struct{ s *memStore }

func (oi memOrderItems) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	if err := oi.s.fail("order_items.create"); err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.New("no items")
	}
	for _, it := range items {
		it.ID = oi.s.id()
		it.OrderID = orderID
		oi.s.orderItems[it.ID] = it
	}
	return nil
}

func (oi memOrderItems) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	return oi.s.itemsOf(orderID), nil
}

func (oi memOrderItems) ListByOrderIDs(_ context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		out[id] = oi.s.itemsOf(id)
	}
	return out, nil
}

type memAudit struct{ s *memStore }

func (a memAudit) Create(_ context.Context, log model.AuditLog) error {
	if err := a.s.fail("audit.create"); err != nil {
		return err
	}
	log.ID = a.s.id()
	a.s.audits = append(a.s.audits, log)
	return nil
}
