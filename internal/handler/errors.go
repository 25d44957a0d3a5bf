package handler

import (
	"net/http"
	"strconv"

	"minishop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// エラー時のbody。correlation_idは500のときだけ。
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := usecase.AsError(err); ok {
		return c.JSON(e.Status(), ErrorResponse{Error: e.Message, CorrelationID: e.CorrelationID})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// パスの:name を正のint64として読む
func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
