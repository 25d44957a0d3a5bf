package server

import (
	"minishop/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Orders *handler.OrderHandler
	Cart   *handler.CartHandler
	Health *handler.HealthHandler
}

// nilのハンドラは登録しない
func RegisterRoutes(e *echo.Echo, h Handlers) {
	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}
	if h.Orders != nil {
		h.Orders.RegisterRoutes(e)
	}
	if h.Cart != nil {
		h.Cart.RegisterRoutes(e)
	}
}
