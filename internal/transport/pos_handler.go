package transport

import (
	"errors"
	"net/http"
	"time"

	"pos-terminal/internal/apiclient"
	"pos-terminal/internal/cart"
	"pos-terminal/internal/catalog"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/middleware"
	"pos-terminal/internal/session"
	"pos-terminal/internal/terminal"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required"`
}

// AddItemRequest adds one unit of a product to the cart
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// AdjustItemRequest changes a cart line quantity by Delta
type AdjustItemRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// SessionResponse describes the logged in operator
type SessionResponse struct {
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	CashierID string     `json:"cashier_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ProductsResponse is the filtered catalog with its freshness
type ProductsResponse struct {
	Products []terminal.ProductView `json:"products"`
	Status   catalog.Status         `json:"status"`
}

// CartResponse is the cart as shown in the order panel
type CartResponse struct {
	Items []domain.CartLine `json:"items"`
	Total string            `json:"total"`
	Count int               `json:"count"`
}

// CheckoutResponse is the checkout state with the last receipt or failure
type CheckoutResponse struct {
	State   checkout.State  `json:"state"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// POSHandler serves the presentation surface of the open terminal
type POSHandler struct {
	manager *terminal.Manager
	logger  *zap.Logger
}

// NewPOSHandler creates a new POSHandler
func NewPOSHandler(manager *terminal.Manager, logger *zap.Logger) *POSHandler {
	return &POSHandler{
		manager: manager,
		logger:  logger,
	}
}

// RegisterRoutes registers all POS routes
func (h *POSHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/session", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionMiddleware(h.manager, h.logger))
			r.Use(middleware.RequireRole(session.POSRoles, h.logger))

			r.Get("/session", h.GetSession)
			r.Delete("/session", h.Logout)

			r.Get("/products", h.ListProducts)
			r.Post("/products/refresh", h.RefreshProducts)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddItem)
			r.Patch("/cart/items/{productID}", h.AdjustItem)
			r.Delete("/cart/items/{productID}", h.RemoveItem)

			r.Post("/checkout", h.Checkout)
			r.Get("/checkout", h.GetCheckout)
			r.Delete("/checkout/receipt", h.DismissReceipt)
		})
	})
}

// Login authenticates against the POS API and opens a fresh terminal
func (h *POSHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.HandleDecodeError(w, err)
		return
	}

	t, err := h.manager.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, terminal.ErrRoleNotAllowed) {
			middleware.RespondWithError(w, http.StatusForbidden, "role may not operate the POS")
			return
		}

		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			middleware.RespondWithError(w, http.StatusUnauthorized, apiErr.Message)
			return
		}

		h.logger.Error("Login failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, apiclient.UserMessage(err, apiclient.FallbackLoginMessage))
		return
	}

	h.logger.Info("Operator logged in", zap.String("username", t.Session().Username))
	middleware.RespondWithJSON(w, http.StatusOK, newSessionResponse(t.Session()))
}

// GetSession returns the logged in operator
func (h *POSHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSession(r.Context())
	middleware.RespondWithJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Logout closes the open terminal and discards its cart
func (h *POSHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout()
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// ListProducts returns the catalog filtered by the q query parameter
func (h *POSHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductsResponse{
		Products: t.Products(r.URL.Query().Get("q")),
		Status:   t.Catalog().Status(),
	})
}

// RefreshProducts reloads the catalog now. A failed reload keeps the previous
// catalog and is reported alongside it.
func (h *POSHandler) RefreshProducts(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	if err := t.Catalog().Refresh(r.Context()); err != nil {
		h.logger.Warn("Manual catalog refresh failed", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusBadGateway,
			apiclient.UserMessage(err, apiclient.FallbackProductsMessage),
			map[string]interface{}{"stale": t.Catalog().Status().Stale},
		)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductsResponse{
		Products: t.Products(""),
		Status:   t.Catalog().Status(),
	})
}

// GetCart returns the cart lines and total
func (h *POSHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}
	h.respondWithCart(w, http.StatusOK, t)
}

// AddItem adds one unit of a product to the cart
func (h *POSHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.HandleDecodeError(w, err)
		return
	}

	if err := t.AddItem(req.ProductID); err != nil {
		h.respondWithCartError(w, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, t)
}

// AdjustItem changes a cart line quantity
func (h *POSHandler) AdjustItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	var req AdjustItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.HandleDecodeError(w, err)
		return
	}

	if err := t.AdjustQuantity(chi.URLParam(r, "productID"), req.Delta); err != nil {
		h.respondWithCartError(w, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, t)
}

// RemoveItem drops a cart line
func (h *POSHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	t.RemoveItem(chi.URLParam(r, "productID"))
	h.respondWithCart(w, http.StatusOK, t)
}

// Checkout submits the cart as a sale
func (h *POSHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	receipt, err := t.Checkout().Checkout(r.Context())
	if err != nil {
		var checkoutErr *checkout.Error
		switch {
		case errors.As(err, &checkoutErr):
			middleware.RespondWithError(w, http.StatusBadGateway, checkoutErr.Reason)
		case errors.Is(err, checkout.ErrCheckoutInProgress):
			middleware.RespondWithError(w, http.StatusConflict, "checkout already in progress")
		case errors.Is(err, checkout.ErrEmptyCart):
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, checkout.ErrDetached):
			middleware.RespondWithError(w, http.StatusConflict, "terminal closed during checkout")
		default:
			h.logger.Error("Unexpected checkout error", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, apiclient.FallbackCheckoutMessage)
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CheckoutResponse{
		State:   checkout.StateCompleted,
		Receipt: receipt,
	})
}

// GetCheckout returns the checkout state with the last receipt or failure
func (h *POSHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	c := t.Checkout()
	resp := CheckoutResponse{
		State:   c.State(),
		Receipt: c.Receipt(),
	}
	if lastErr := c.LastError(); lastErr != nil {
		resp.Error = lastErr.Reason
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// DismissReceipt closes the invoice view
func (h *POSHandler) DismissReceipt(w http.ResponseWriter, r *http.Request) {
	t, ok := h.terminal(w)
	if !ok {
		return
	}

	t.Checkout().DismissReceipt()
	middleware.RespondWithJSON(w, http.StatusOK, CheckoutResponse{State: t.Checkout().State()})
}

func (h *POSHandler) terminal(w http.ResponseWriter) (*terminal.Terminal, bool) {
	t, err := h.manager.Current()
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "not logged in")
		return nil, false
	}
	return t, true
}

func (h *POSHandler) respondWithCart(w http.ResponseWriter, status int, t *terminal.Terminal) {
	lines, total := t.Cart().Snapshot()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	middleware.RespondWithJSON(w, status, CartResponse{
		Items: lines,
		Total: total.StringFixed(2),
		Count: count,
	})
}

func (h *POSHandler) respondWithCartError(w http.ResponseWriter, err error) {
	var limitErr *cart.StockLimitError
	switch {
	case errors.As(err, &limitErr):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "Cannot exceed available stock!", map[string]interface{}{
			"product_id": limitErr.ProductID,
			"requested":  limitErr.Requested,
			"available":  limitErr.Available,
		})
	case errors.Is(err, cart.ErrOutOfStock):
		middleware.RespondWithError(w, http.StatusConflict, "Out of stock!")
	case errors.Is(err, terminal.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	default:
		h.logger.Error("Unexpected cart error", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update cart")
	}
}

func newSessionResponse(sess *session.Session) SessionResponse {
	resp := SessionResponse{
		Username:  sess.Username,
		Role:      sess.Role,
		CashierID: sess.CashierID,
	}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}
