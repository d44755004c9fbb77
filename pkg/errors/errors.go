// Package errors provides the error taxonomy shared by stores, the lock
// manager, the mutation engine and the HTTP layer. It is a leaf package so
// every layer can import it without cycles.
//
// Import graph: errors <- store <- lock <- engine <- webdav
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrConflict indicates a missing intermediate collection or an existing
	// destination that may not be overwritten below the operation root.
	ErrConflict

	// ErrPreconditionFailed indicates an Overwrite, If or If-None-Match
	// condition did not hold.
	ErrPreconditionFailed

	// ErrForbidden indicates the operation is refused, or wraps a store
	// failure during a single node mutation.
	ErrForbidden

	// ErrMethodNotAllowed indicates a node type mismatch, e.g. PUT onto a
	// collection.
	ErrMethodNotAllowed

	// ErrLocked indicates a conflicting lock is held.
	ErrLocked

	// ErrLockNotFound indicates the lock token is unknown.
	ErrLockNotFound

	// ErrAlreadyExists indicates the node already exists.
	ErrAlreadyExists

	// ErrNotCollection indicates a collection was required.
	ErrNotCollection

	// ErrIsCollection indicates a document was required.
	ErrIsCollection

	// ErrNotEmpty indicates a collection still has members.
	ErrNotEmpty

	// ErrBadRequest indicates malformed headers or a truncated body.
	ErrBadRequest

	// ErrUnsupportedMediaType indicates a request body that is not accepted.
	ErrUnsupportedMediaType

	// ErrBadGateway indicates a destination on a server we cannot reach.
	ErrBadGateway

	// ErrNotImplemented indicates a feature that is not configured.
	ErrNotImplemented

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed

	// ErrIOError indicates an I/O error occurred.
	ErrIOError
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrConflict:
		return "Conflict"
	case ErrPreconditionFailed:
		return "PreconditionFailed"
	case ErrForbidden:
		return "Forbidden"
	case ErrMethodNotAllowed:
		return "MethodNotAllowed"
	case ErrLocked:
		return "Locked"
	case ErrLockNotFound:
		return "LockNotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotCollection:
		return "NotCollection"
	case ErrIsCollection:
		return "IsCollection"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrBadRequest:
		return "BadRequest"
	case ErrUnsupportedMediaType:
		return "UnsupportedMediaType"
	case ErrBadGateway:
		return "BadGateway"
	case ErrNotImplemented:
		return "NotImplemented"
	case ErrStoreClosed:
		return "StoreClosed"
	case ErrIOError:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// Status maps the code to an HTTP status.
func (e ErrorCode) Status() int {
	switch e {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrNotCollection, ErrNotEmpty, ErrLockNotFound:
		return http.StatusConflict
	case ErrPreconditionFailed:
		return http.StatusPreconditionFailed
	case ErrForbidden, ErrAlreadyExists:
		return http.StatusForbidden
	case ErrMethodNotAllowed, ErrIsCollection:
		return http.StatusMethodNotAllowed
	case ErrLocked:
		return http.StatusLocked
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ErrBadGateway:
		return http.StatusBadGateway
	case ErrNotImplemented:
		return http.StatusNotImplemented
	case ErrStoreClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DavError is an error carrying an ErrorCode and the path it applies to.
type DavError struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error
}

// Error implements the error interface.
func (e *DavError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path: %s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the cause, if any.
func (e *DavError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error.
func (e *DavError) Status() int {
	return e.Code.Status()
}

// ============================================================================
// Factory Functions
// ============================================================================

// New creates a DavError with the given code.
func New(code ErrorCode, path, message string) *DavError {
	return &DavError{Code: code, Message: message, Path: path}
}

// Wrap creates a DavError with a cause.
func Wrap(code ErrorCode, path string, cause error) *DavError {
	return &DavError{Code: code, Message: "operation failed", Path: path, Err: cause}
}

func NewNotFoundError(path string) *DavError {
	return &DavError{Code: ErrNotFound, Message: "resource not found", Path: path}
}

func NewConflictError(path, reason string) *DavError {
	return &DavError{Code: ErrConflict, Message: reason, Path: path}
}

func NewPreconditionFailedError(path, reason string) *DavError {
	return &DavError{Code: ErrPreconditionFailed, Message: reason, Path: path}
}

func NewForbiddenError(path, reason string) *DavError {
	return &DavError{Code: ErrForbidden, Message: reason, Path: path}
}

func NewMethodNotAllowedError(path, reason string) *DavError {
	return &DavError{Code: ErrMethodNotAllowed, Message: reason, Path: path}
}

func NewLockedError(path, token string) *DavError {
	msg := "resource is locked"
	if token != "" {
		msg = fmt.Sprintf("resource is locked by %s", token)
	}
	return &DavError{Code: ErrLocked, Message: msg, Path: path}
}

func NewAlreadyExistsError(path string) *DavError {
	return &DavError{Code: ErrAlreadyExists, Message: "already exists", Path: path}
}

func NewNotCollectionError(path string) *DavError {
	return &DavError{Code: ErrNotCollection, Message: "not a collection", Path: path}
}

func NewIsCollectionError(path string) *DavError {
	return &DavError{Code: ErrIsCollection, Message: "is a collection", Path: path}
}

func NewNotEmptyError(path string) *DavError {
	return &DavError{Code: ErrNotEmpty, Message: "collection not empty", Path: path}
}

func NewBadRequestError(reason string) *DavError {
	return &DavError{Code: ErrBadRequest, Message: reason}
}

func NewStoreClosedError() *DavError {
	return &DavError{Code: ErrStoreClosed, Message: "store is closed"}
}

// ============================================================================
// Classification Helpers
// ============================================================================

// CodeOf returns the ErrorCode carried by err, or 0 when err has none.
func CodeOf(err error) ErrorCode {
	var davErr *DavError
	if goerrors.As(err, &davErr) {
		return davErr.Code
	}
	return 0
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// StatusOf returns the HTTP status for err; unclassified errors map to 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return CodeOf(err).Status()
}

// IsNotFoundError returns true if the error is a NotFound error.
func IsNotFoundError(err error) bool {
	return HasCode(err, ErrNotFound)
}

// IsLockedError returns true if the error is a lock conflict.
func IsLockedError(err error) bool {
	return HasCode(err, ErrLocked)
}

// ForbiddenWithCause wraps an unclassified store failure as Forbidden. Errors
// that already carry a code are returned unchanged.
func ForbiddenWithCause(path string, err error) error {
	if err == nil || CodeOf(err) != 0 {
		return err
	}
	return &DavError{Code: ErrForbidden, Message: "store operation failed", Path: path, Err: err}
}
