package sn

import (
	"context"
	"errors"
	"fmt"

	"sn-go/internal/model"
)

// Error taxonomy shared by the service layer and its storage adapters.
// Callers match with errors.Is; NotFound, InvalidInput and Conflict are never
// retried internally.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service failure")

	// ErrNoUpdate is returned when an update request carries no changes.
	ErrNoUpdate = fmt.Errorf("%w: nothing to update", ErrInvalidInput)

	// ErrOrphanAsset marks log entries and findings for stored media that
	// no document references. It is never returned to callers.
	ErrOrphanAsset = errors.New("orphan asset")
)

// ExternalError reports a failure of the object store or document store.
// Transient failures (timeouts, unavailable backends) may succeed on retry;
// permanent ones (bad credentials, rejected input) will not.
type ExternalError struct {
	Service   string // "media" or "store"
	Op        string
	Transient bool
	Err       error
}

func (e *ExternalError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Service, e.Op, kind, e.Err)
}

func (e *ExternalError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

// OrphanedUploadError is returned by a MediaStore that stored an asset,
// rejected it after the fact and then failed to delete it. Err is the
// rejection; the lifecycle reports Asset as an orphan and returns Err.
type OrphanedUploadError struct {
	Asset     model.MediaRef
	Err       error
	DeleteErr error
}

func (e *OrphanedUploadError) Error() string {
	return fmt.Sprintf("%v (asset %s left behind: %v)", e.Err, e.Asset.Handle, e.DeleteErr)
}

func (e *OrphanedUploadError) Unwrap() error { return e.Err }

// NewExternalError wraps err as an ExternalError. A context deadline or
// cancellation is always transient, whatever the caller passed.
func NewExternalError(service, op string, transient bool, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		transient = true
	}
	return &ExternalError{Service: service, Op: op, Transient: transient, Err: err}
}

// IsTransient reports whether err is an ExternalError worth retrying.
func IsTransient(err error) bool {
	var ext *ExternalError
	if errors.As(err, &ext) {
		return ext.Transient
	}
	return false
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// storeErr annotates a document store error with the operation that failed.
// Errors the store did not classify are treated as external failures.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrExternalService) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return NewExternalError("store", op, false, err)
}

// mediaErr is storeErr for the media store.
func mediaErr(op string, err error) error {
	if errors.Is(err, ErrExternalService) || errors.Is(err, ErrInvalidInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return NewExternalError("media", op, false, err)
}
