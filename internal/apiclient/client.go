package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pos-terminal/internal/config"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/session"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the remote POS API
type Client struct {
	baseURL    string
	authScheme string
	httpClient *http.Client
	catalogCB  *gobreaker.CircuitBreaker[[]domain.Product]
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new POS API client
func New(api config.APIConfig, breaker config.BreakerConfig, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    api.BaseURL,
		authScheme: api.AuthScheme,
		httpClient: &http.Client{Timeout: api.Timeout},
		logger:     logger.Named("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.catalogCB = gobreaker.NewCircuitBreaker[[]domain.Product](gobreaker.Settings{
		Name:    "catalog",
		Timeout: breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.MaxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

// Login authenticates an operator and returns the resulting session
func (c *Client) Login(ctx context.Context, username, password string) (*session.Session, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/users/login", nil, loginRequest{username, password}, &resp, FallbackLoginMessage)
	if err != nil {
		return nil, err
	}

	if resp.Username == "" {
		resp.Username = username
	}
	sess, err := session.New(resp.Token, resp.Username, resp.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return sess, nil
}

type productsResponse struct {
	Products []domain.Product `json:"products"`
}

// ListProducts fetches the full catalog. Calls go through the catalog circuit
// breaker so a dead API is not polled on every tick.
func (c *Client) ListProducts(ctx context.Context, sess *session.Session) ([]domain.Product, error) {
	products, err := c.catalogCB.Execute(func() ([]domain.Product, error) {
		var resp productsResponse
		if err := c.do(ctx, http.MethodGet, "/products", sess, nil, &resp, FallbackProductsMessage); err != nil {
			return nil, err
		}
		// An empty list is a valid catalog, a missing one is not.
		if resp.Products == nil {
			return nil, fmt.Errorf("%w: missing products list", ErrInvalidResponse)
		}
		return resp.Products, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return products, err
}

type saleResponse struct {
	Sale *domain.Sale `json:"sale"`
}

// CreateSale submits a completed cart to POST /sales
func (c *Client) CreateSale(ctx context.Context, sess *session.Session, req domain.SaleRequest) (*domain.Sale, error) {
	var resp saleResponse
	if err := c.do(ctx, http.MethodPost, "/sales", sess, req, &resp, FallbackCheckoutMessage); err != nil {
		return nil, err
	}
	if resp.Sale == nil {
		return nil, fmt.Errorf("%w: missing sale record", ErrInvalidResponse)
	}
	return resp.Sale, nil
}

func (c *Client) do(ctx context.Context, method, path string, sess *session.Session, body, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.Header.Set("Authorization", sess.AuthorizationHeader(c.authScheme))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("POS API request failed",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("POS API request completed",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data, fallback)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// countsAsHealthy decides what the breaker counts as a failure: transport
// errors and 5xx trip it, client errors and caller cancellation do not.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}
