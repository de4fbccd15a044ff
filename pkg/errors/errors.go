// Package errors defines the typed errors that handlers translate into HTTP
// responses. Each Code maps to a status, a public message and a retry hint.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeProductNotFound     Code = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodePaymentNotCompleted Code = "PAYMENT_NOT_COMPLETED"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeStateConflict       Code = "STATE_CONFLICT"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a Code is rendered. DetailsAllowed gates whether
// Error.Details reaches the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func caller(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details}
}

func server(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, Retryable: true}
}

var registry = map[Code]Metadata{
	CodeValidation:          caller(http.StatusBadRequest, "validation failed", true),
	CodeProductNotFound:     caller(http.StatusBadRequest, "product not found", true),
	CodeInsufficientStock:   caller(http.StatusBadRequest, "insufficient stock", true),
	CodePaymentNotCompleted: caller(http.StatusBadRequest, "payment not completed", false),
	CodeUnauthorized:        caller(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:           caller(http.StatusForbidden, "access denied", false),
	CodeNotFound:            caller(http.StatusNotFound, "resource not found", false),
	CodeConflict:            caller(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:       caller(http.StatusConflict, "state transition disallowed", true),
	CodeIdempotency:         caller(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:           caller(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodeInternal:            server(http.StatusInternalServerError, "internal server error", false),
	CodeDependency:          server(http.StatusServiceUnavailable, "dependency unavailable", true),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := registry[code]; ok {
		return meta
	}
	return registry[CodeInternal]
}

// Error carries a Code, a human readable message and optional structured
// details. The cause, if any, is reachable through errors.Unwrap.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap is New with a cause. A nil err yields the same value as New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails attaches details and returns the receiver for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return string(e.code) + ": " + e.message
	}
	return string(e.code) + ": " + e.message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf reports the Code of err. Untyped errors count as CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

// Retryable reports whether the caller may retry the failed operation.
// Untyped errors are treated as retryable.
func Retryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}
