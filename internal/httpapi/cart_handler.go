package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cart-sync-service/internal/backend"
	"cart-sync-service/internal/domain"
	"cart-sync-service/internal/session"
	"cart-sync-service/internal/store"
)

// CartHandler exposes session-scoped cart operations over HTTP.
type CartHandler struct {
	registry *session.Registry
	catalog  backend.Catalog
	logger   *slog.Logger
}

func NewCartHandler(registry *session.Registry, catalog backend.Catalog, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartView struct {
	Items    []domain.CartLine `json:"items"`
	Count    int               `json:"count"`
	Subtotal int64             `json:"subtotal"`
}

func viewOf(s *store.CartStore) cartView {
	lines := s.Lines()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return cartView{
		Items:    lines,
		Count:    s.Count(),
		Subtotal: s.Subtotal(),
	}
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sid := sessionIDFromContext(r.Context())
	if sid == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return nil
	}
	sess, err := h.registry.Get(r.Context(), sid)
	if err != nil {
		h.logger.Error("failed to load session cart", "session_id", sid, "error", err)
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart storage unavailable")
		return nil
	}
	return sess
}

// GetCart returns the full cart view for the session.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sess.Store))
}

// AddItem adds a product to the cart. The handler owns the stock clamp: it
// computes maxAddable = stock - alreadyInCart from the catalog and clamps
// the requested quantity before the store sees it. The store itself
// enforces no upper bound.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if errors.Is(err, backend.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "unknown product")
		return
	}
	if err != nil {
		h.logger.Error("catalog lookup failed", "product_id", req.ProductID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog unavailable")
		return
	}

	inCart := sess.Store.Quantity(product.ID)
	maxAddable := product.Stock - inCart
	if maxAddable <= 0 {
		respondError(w, http.StatusConflict, "insufficient_stock", "no more stock available for this product")
		return
	}
	qty := req.Quantity
	if qty > maxAddable {
		qty = maxAddable
	}

	sess.Store.Add(domain.CartLine{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.PriceCents,
		Quantity:  qty,
	})
	respondJSON(w, http.StatusCreated, viewOf(sess.Store))
}

// UpdateQuantity sets an existing line's quantity. Values below 1 are
// clamped to 1 by the store.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if sess.Store.Quantity(productID) == 0 {
		respondError(w, http.StatusNotFound, "not_found", "product not in cart")
		return
	}
	sess.Store.SetQty(productID, req.Quantity)
	respondJSON(w, http.StatusOK, viewOf(sess.Store))
}

// RemoveItem deletes a line. Removing an absent product succeeds.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	sess.Store.Remove(productID)
	respondJSON(w, http.StatusOK, viewOf(sess.Store))
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}

	sess.Store.Clear()
	respondJSON(w, http.StatusOK, viewOf(sess.Store))
}
