package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"minishop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) (usecase.OrderSummary, error)
	GetOrdersForUser(ctx context.Context, userID int64) ([]usecase.OrderOutput, error)
}

// 現在時刻（テストで固定する）
type Clock func() time.Time

type OrderHandler struct {
	uc  OrderService
	now Clock
}

func NewOrderHandler(uc OrderService, now Clock) *OrderHandler {
	if now == nil {
		now = time.Now
	}
	return &OrderHandler{uc: uc, now: now}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/orders")
	g.POST("/place/:userId", h.place)
	g.GET("/user/:userId", h.listByUser)
}

func (h *OrderHandler) place(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
	}

	// 操作者と二重送信防止キーはヘッダーから（無ければ注文ユーザー本人）
	req := c.Request()
	actor := strings.TrimSpace(req.Header.Get("X-User-Id"))
	idemKey := strings.TrimSpace(req.Header.Get("X-Idempotency-Key"))

	out, err := h.uc.PlaceOrder(req.Context(), usecase.PlaceOrderInput{
		UserID:         userID,
		Actor:          actor,
		At:             h.now().UTC(),
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) listByUser(c echo.Context) error {
	userID, ok := pathID(c, "userId")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
	}

	out, err := h.uc.GetOrdersForUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
