package loans

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "PERMISSION_DENIED"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string       { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError  { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError  { return &APIError{Code: CodeConflict, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrInternal(msg string) *APIError  { return &APIError{Code: CodeInternal, Message: msg} }

// ErrCopyTaken は store が一意制約違反を返した時（同じ ejemplar に生きている貸出がある）
var ErrCopyTaken = errors.New("copy already has a live loan")

// よく使うメッセージ
const (
	msgLoanNotFound   = "préstamo no encontrado"
	msgBookNotFound   = "libro no encontrado"
	msgCopyNotFound   = "ejemplar no encontrado"
	msgPatronNotFound = "usuario no encontrado"
	msgNoCopies       = "no hay ejemplares disponibles"
	msgCopyTaken      = "ya existe un préstamo activo para este ejemplar"
	msgStaleState     = "el préstamo cambió de estado, vuelva a intentarlo"
)

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		case CodeForbidden:
			return http.StatusForbidden
		}
	}
	return http.StatusInternalServerError
}
