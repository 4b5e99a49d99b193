package till

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("till: not found")
	ErrAlreadyExists = errors.New("till: already exists")
	ErrValidation    = errors.New("till: validation failed")

	// Customer errors
	ErrCustomerNotFound    = errors.New("till: customer not found")
	ErrNoCustomerSelected  = errors.New("till: no customer selected")
	ErrInsufficientLoyalty = errors.New("till: insufficient loyalty points")

	// Cart errors
	ErrEmptyCart     = errors.New("till: cart is empty")
	ErrInvalidItem   = errors.New("till: invalid cart item")
	ErrSplitMismatch = errors.New("till: split amounts do not match total")

	// Bill errors
	ErrBillNotFound    = errors.New("till: bill not found")
	ErrBillMismatch    = errors.New("till: bill changed since it was read")
	ErrInvalidPayment  = errors.New("till: invalid payment method")
	ErrNothingToRevise = errors.New("till: revision has no items")

	// Store errors
	ErrStoreNotReady     = errors.New("till: store not ready")
	ErrStoreClosed       = errors.New("till: store is closed")
	ErrTransactionFailed = errors.New("till: transaction failed")
	ErrMigrationFailed   = errors.New("till: migration failed")
)

// ValidationError represents a validation failure with details.
// It unwraps to ErrValidation and, when set, to a more specific cause.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("till: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

func invalid(field string, cause error, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "till: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("till: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns nil when empty, the single error when there is one, and the
// multi-error otherwise.
func (e MultiError) Err() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrBillNotFound)
}

// IsValidation returns true if the request was rejected before anything
// was applied.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the operation lost a race with a concurrent
// writer or targeted a stale bill.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBillMismatch) || errors.Is(err, ErrAlreadyExists)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
