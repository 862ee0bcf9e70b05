package usecase

import (
	"errors"
	"fmt"

	"foodrescue/internal/domain/model"
)

// エラーの種類。呼び出し側は文字列ではなくKindとCodeで分岐する
type ErrorKind string

const (
	//入力を直せば通る
	KindValidation ErrorKind = "validation"
	//所有者・操作者ではない。自動リトライしない
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	//リクエストは正しいが今の状態では受け付けない。再取得して判断する
	KindConflict ErrorKind = "conflict"
	//決済代行の障害。バックオフしてリトライ可
	KindGateway  ErrorKind = "gateway"
	KindInternal ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errors.Is はCodeで比較する（メッセージが違っても同じエラー）
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Retryable() bool {
	return e.Kind == KindGateway
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

var (
	ErrEmptyCart                 = &Error{Kind: KindValidation, Code: "EMPTY_CART", Message: "cart is empty"}
	ErrInvalidQuantity           = &Error{Kind: KindValidation, Code: "INVALID_QUANTITY", Message: "quantity must be a positive integer"}
	ErrItemUnavailable           = &Error{Kind: KindValidation, Code: "ITEM_UNAVAILABLE", Message: "item unavailable"}
	ErrMixedRestaurants          = &Error{Kind: KindValidation, Code: "MIXED_RESTAURANTS", Message: "all items must come from one restaurant"}
	ErrValidation                = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "invalid input"}
	ErrNotAuthorized             = &Error{Kind: KindAuthorization, Code: "NOT_AUTHORIZED", Message: "not authorized"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrPaymentNotFound           = &Error{Kind: KindNotFound, Code: "PAYMENT_NOT_FOUND", Message: "payment not found"}
	ErrCodeNotFound              = &Error{Kind: KindNotFound, Code: "CODE_NOT_FOUND", Message: "pickup code not found"}
	ErrInvalidTransition         = &Error{Kind: KindConflict, Code: "INVALID_TRANSITION", Message: "invalid transition"}
	ErrOrderNotPayable           = &Error{Kind: KindConflict, Code: "ORDER_NOT_PAYABLE", Message: "order is not payable"}
	ErrOrderNotReady             = &Error{Kind: KindConflict, Code: "ORDER_NOT_READY", Message: "order is not ready"}
	ErrCancellationWindowExpired = &Error{Kind: KindConflict, Code: "CANCELLATION_WINDOW_EXPIRED", Message: "cancellation window expired"}
	ErrPaymentInProgress         = &Error{Kind: KindConflict, Code: "PAYMENT_IN_PROGRESS", Message: "payment session is being created"}
	ErrCodeAlreadyIssued         = &Error{Kind: KindConflict, Code: "CODE_ALREADY_ISSUED", Message: "pickup code already issued"}
	ErrGatewayUnavailable        = &Error{Kind: KindGateway, Code: "GATEWAY_UNAVAILABLE", Message: "payment gateway unavailable, try again"}
	ErrInternal                  = &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error"}
)

// withMessage はsentinelと同じKind/Codeでメッセージだけ差し替える
func withMessage(base *Error, format string, args ...interface{}) error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(from, to model.OrderStatus) error {
	return withMessage(ErrInvalidTransition, "cannot change order from %s to %s", from, to)
}

func itemUnavailable(foodID int64, reason string) error {
	return withMessage(ErrItemUnavailable, "food %d %s", foodID, reason)
}

// DBなど想定外の失敗。中身は外に出さない
func internal(cause error) error {
	return &Error{Kind: KindInternal, Code: ErrInternal.Code, Message: ErrInternal.Message, cause: cause}
}

// tx内で返した *Error はそのまま、それ以外は internal にそろえる
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return internal(err)
}
