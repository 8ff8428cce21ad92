package checkout

import (
	"errors"

	"pos-terminal/internal/apiclient"
)

var (
	ErrCheckoutFailed     = errors.New("checkout failed")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrDetached           = errors.New("checkout view closed")
)

// Error is a failed submission. Reason is what the operator is shown; Err is
// the underlying cause.
type Error struct {
	Reason string
	Err    error
}

func newError(err error) *Error {
	return &Error{
		Reason: apiclient.UserMessage(err, apiclient.FallbackCheckoutMessage),
		Err:    err,
	}
}

func (e *Error) Error() string {
	return "checkout failed: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrCheckoutFailed
}
