package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy: validation and
// not-found abort before any mutation, conflict is reserved for
// duplicate-key races, connectivity is the only kind eligible for a
// retry against the fallback connection.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindConnectivity
)

// Machine-usable error codes carried in API responses.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeProductNotFound = "PRODUCT_NOT_FOUND"
	CodeVariantNotFound = "VARIANT_NOT_FOUND"
	CodeInvalidVariant  = "INVALID_VARIANT"
	CodeLineNotFound    = "LINE_NOT_FOUND"
	CodeCartCreate      = "CART_CREATE_FAILED"
	CodeConflict        = "CONFLICT"
	CodeConnectivity    = "CONNECTIVITY"
	CodeInternal        = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func E(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapE(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: err}
}

// KindOf extracts the taxonomy kind, defaulting to internal for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf extracts the machine code, defaulting to INTERNAL.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

func IsConnectivity(err error) bool {
	return KindOf(err) == KindConnectivity
}
