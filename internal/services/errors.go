package services

import (
	"fmt"

	"github.com/pkg/errors"

	"example.com/albaranes/internal/repositories"
)

// Kind classifies a service failure so transports can map it to a status
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindForbidden     Kind = "forbidden"
	KindUnauthorized  Kind = "unauthorized"
	KindConflict      Kind = "conflict"
	KindRenderOrStore Kind = "render_or_store"
	KindUnavailable   Kind = "unavailable"
	KindInternal      Kind = "internal"
)

// Error is a typed service failure
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ValidationError reports a malformed request
func ValidationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

// NotFoundError reports a missing referenced entity
func NotFoundError(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

// ForbiddenError reports a caller without rights over an entity
func ForbiddenError(format string, args ...interface{}) *Error {
	return newError(KindForbidden, nil, format, args...)
}

// UnauthorizedError reports bad credentials
func UnauthorizedError(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, nil, format, args...)
}

// ConflictError reports a state or uniqueness conflict
func ConflictError(err error, format string, args ...interface{}) *Error {
	return newError(KindConflict, err, format, args...)
}

// RenderOrStoreError reports a failure of the PDF or artifact pipeline
func RenderOrStoreError(err error, format string, args ...interface{}) *Error {
	return newError(KindRenderOrStore, err, format, args...)
}

// UnavailableError reports a disabled or unreachable optional backend
func UnavailableError(err error, format string, args ...interface{}) *Error {
	return newError(KindUnavailable, err, format, args...)
}

// InternalError wraps an unexpected infrastructure failure
func InternalError(err error, format string, args ...interface{}) *Error {
	return newError(KindInternal, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// fromRepository turns repository sentinels into typed errors
func fromRepository(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return NotFoundError("%s not found", entity)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return ConflictError(err, "%s already exists", entity)
	case errors.Is(err, repositories.ErrConditionFailed):
		return ConflictError(err, "%s was modified concurrently", entity)
	}
	return InternalError(err, "failed to access %s", entity)
}
