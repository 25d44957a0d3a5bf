package usecase

import (
	"context"
	"errors"
	"testing"

	"minishop/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCartFixture(t *testing.T) (*memStore, *CartUsecase) {
	t.Helper()

	s := newMemStore()
	s.addUser(testUserID)
	s.addProduct(model.Product{ID: productMouse, Name: "Mouse", Price: dec("10.00"), Stock: 5})
	s.addProduct(model.Product{ID: productKeybrd, Name: "Keyboard", Price: dec("49.99"), Stock: 20})
	return s, NewCartUsecase(s, memUsers{s}, zap.NewNop())
}

func TestAddToCart_NewAndExistingLine(t *testing.T) {
	s, uc := newCartFixture(t)
	ctx := context.Background()

	out, err := uc.AddToCart(ctx, AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "20.00", out.Total.StringFixed(2))

	// 同一商品は数量加算
	out, err = uc.AddToCart(ctx, AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(5), out.Items[0].Quantity)
	assert.Equal(t, "Mouse", out.Items[0].Name)
	assert.Equal(t, "50.00", out.Total.StringFixed(2))

	// カートに入れても在庫は減らない
	assert.Equal(t, int64(5), s.stock(productMouse))
}

func TestAddToCart_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   AddCartInput
		kind ErrorKind
		msg  string
	}{
		{"zero quantity", AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 0}, KindInvalidState, ""},
		{"negative quantity", AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: -1}, KindInvalidState, ""},
		{"unknown user", AddCartInput{UserID: 999, ProductID: productMouse, Quantity: 1}, KindNotFound, ""},
		{"unknown product", AddCartInput{UserID: testUserID, ProductID: 404, Quantity: 1}, KindNotFound, ""},
		{"over stock", AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 6}, KindConflict, "insufficient stock. available: 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, uc := newCartFixture(t)

			_, err := uc.AddToCart(context.Background(), tt.in)
			e := requireKind(t, err, tt.kind)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, e.Message)
			}
			assert.Empty(t, s.cartOf(testUserID))
		})
	}
}

func TestAddToCart_ExistingPlusNewOverStock_Conflict(t *testing.T) {
	s, uc := newCartFixture(t)
	s.addCartItem(testUserID, productMouse, 4)

	_, err := uc.AddToCart(context.Background(), AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 2})
	requireKind(t, err, KindConflict)

	items := s.cartOf(testUserID)
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].Quantity)
}

func TestGetCart(t *testing.T) {
	s, uc := newCartFixture(t)
	s.addCartItem(testUserID, productMouse, 1)
	s.addCartItem(testUserID, productKeybrd, 2)

	out, err := uc.GetCart(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, productMouse, out.Items[0].ProductID)
	assert.Equal(t, int64(5), out.Items[0].Stock)
	assert.Equal(t, "99.98", out.Items[1].LineTotal.StringFixed(2))
	assert.Equal(t, "109.98", out.Total.StringFixed(2))

	_, err = uc.GetCart(context.Background(), 999)
	requireKind(t, err, KindNotFound)
}

func TestGetCart_EmptyCart(t *testing.T) {
	_, uc := newCartFixture(t)

	out, err := uc.GetCart(context.Background(), testUserID)
	require.NoError(t, err)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
	assert.Equal(t, "0.00", out.Total.StringFixed(2))
}

func TestUpdateCartItem(t *testing.T) {
	s, uc := newCartFixture(t)
	id := s.addCartItem(testUserID, productMouse, 1)

	out, err := uc.UpdateCartItem(context.Background(), id, 4)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(4), out.Items[0].Quantity)

	_, err = uc.UpdateCartItem(context.Background(), id, 6)
	requireKind(t, err, KindConflict)

	_, err = uc.UpdateCartItem(context.Background(), id, 0)
	requireKind(t, err, KindInvalidState)

	_, err = uc.UpdateCartItem(context.Background(), 12345, 1)
	requireKind(t, err, KindNotFound)

	assert.Equal(t, int64(4), s.cartOf(testUserID)[0].Quantity)
}

func TestRemoveCartItem(t *testing.T) {
	s, uc := newCartFixture(t)
	id := s.addCartItem(testUserID, productMouse, 1)

	require.NoError(t, uc.RemoveCartItem(context.Background(), id))
	assert.Empty(t, s.cartOf(testUserID))

	err := uc.RemoveCartItem(context.Background(), id)
	requireKind(t, err, KindNotFound)
}

func TestClearCart(t *testing.T) {
	s, uc := newCartFixture(t)
	s.addCartItem(testUserID, productMouse, 1)
	s.addCartItem(testUserID, productKeybrd, 1)

	n, err := uc.ClearCart(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, s.cartOf(testUserID))

	_, err = uc.ClearCart(context.Background(), 999)
	requireKind(t, err, KindNotFound)
}

func TestCart_StorageFailure_Internal(t *testing.T) {
	s, uc := newCartFixture(t)
	s.failOn["cart.upsert"] = errors.New("connection refused")

	_, err := uc.AddToCart(context.Background(), AddCartInput{UserID: testUserID, ProductID: productMouse, Quantity: 1})
	e := requireKind(t, err, KindInternal)
	assert.NotEmpty(t, e.CorrelationID)
	assert.Empty(t, s.cartOf(testUserID))
}
