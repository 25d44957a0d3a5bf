package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// エラーの種類。handlerでHTTPステータスに変換する。
type ErrorKind string

const (
	// ユーザー・商品・明細が存在しない
	KindNotFound ErrorKind = "NOT_FOUND"
	// 空カート、数量不正、壊れたカート明細
	KindInvalidState ErrorKind = "INVALID_STATE"
	// 在庫不足（数量を減らせば再試行できる）
	KindConflict ErrorKind = "CONFLICT"
	// DBなどの障害。詳細は返さずログに残す
	KindInternal ErrorKind = "INTERNAL"
)

type Error struct {
	Kind    ErrorKind
	Message string
	// Internalのときだけ入る。ログと突き合わせる用
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewError(kind ErrorKind, message string) error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func notFound(format string, args ...any) error {
	return NewError(KindNotFound, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return NewError(KindInvalidState, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return NewError(KindConflict, fmt.Sprintf(format, args...))
}

// 原因はErrに持たせ、Messageは固定文言にする
func internalError(err error) *Error {
	return &Error{
		Kind:          KindInternal,
		Message:       "internal error",
		CorrelationID: uuid.NewString(),
		Err:           err,
	}
}
