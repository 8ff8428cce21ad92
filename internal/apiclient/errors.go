package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	FallbackProductsMessage = "Error fetching products"
	FallbackCheckoutMessage = "Checkout Failed"
	FallbackLoginMessage    = "Login failed"
)

var (
	ErrCatalogUnavailable = errors.New("catalog endpoint temporarily unavailable")
	ErrInvalidResponse    = errors.New("invalid response from pos api")
)

// APIError is a non-2xx answer from the POS API. Message is the server's msg
// when it sent one, otherwise an operation specific fallback.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pos api returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

// UserMessage extracts the message to show an operator for err
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type errorBody struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newAPIError(status int, body []byte, fallback string) *APIError {
	apiErr := &APIError{StatusCode: status, Message: fallback}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	for _, m := range []string{eb.Msg, eb.Message, eb.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}
