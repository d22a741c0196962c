// Package apperr is the failure taxonomy for the API. Domain code returns
// typed (code, message) values instead of raising; handlers translate them
// into RFC 7807 style problem payloads.
package apperr

import "fmt"

type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindDuplicate
	KindBusinessRule
	KindTransaction
	KindUnhandled
)

type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindTransaction, KindUnhandled:
		return 500
	default:
		return 400
	}
}

func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicate, Code: code, Message: fmt.Sprintf(format, args...)}
}

func BusinessRule(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Transaction wraps a storage failure that aborted a multi-step write.
func Transaction(code string, cause error) *Error {
	return &Error{
		Kind:    KindTransaction,
		Code:    code,
		Message: fmt.Sprintf("An error occurred while processing the transaction: %v", cause),
		cause:   cause,
	}
}
