package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is matched by every InvalidInputError
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransportFailure is matched by every TransportError
	ErrTransportFailure = errors.New("backend transport failure")

	// ErrUnclassifiedBackend is matched by every BackendStatusError
	ErrUnclassifiedBackend = errors.New("unclassified backend error")

	// ErrInvalidProductID is matched by every InvalidProductIDError
	ErrInvalidProductID = errors.New("invalid productId")
)

// InvalidProductIDError is returned before any backend call when the
// requested product identifier is not positive
type InvalidProductIDError struct {
	ProductID int
}

func (e *InvalidProductIDError) Error() string {
	return fmt.Sprintf("Invalid productId: %d", e.ProductID)
}

// Is reports whether target is ErrInvalidProductID
func (e *InvalidProductIDError) Is(target error) bool { return target == ErrInvalidProductID }

// NotFoundError is returned when the product backend answers 404.
// Message is the text extracted from the backend's error body.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// Is reports whether target is ErrNotFound
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidInputError is returned when the product backend answers 422
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidInput
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// TransportError covers failures where no usable backend answer was obtained:
// connection errors, timeouts, malformed bodies, and for the recommendation and
// review backends any non-2xx status. StatusCode is 0 when no response was seen.
type TransportError struct {
	Service    string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransportFailure
func (e *TransportError) Is(target error) bool { return target == ErrTransportFailure }

// BackendStatusError is returned by the product lookup for any error status
// other than 404 and 422. The raw status and body are kept for diagnostics.
type BackendStatusError struct {
	Service    string
	URL        string
	StatusCode int
	Body       string
}

func (e *BackendStatusError) Error() string {
	return fmt.Sprintf("%s service: unexpected status %d", e.Service, e.StatusCode)
}

// Is reports whether target is ErrUnclassifiedBackend
func (e *BackendStatusError) Is(target error) bool { return target == ErrUnclassifiedBackend }
