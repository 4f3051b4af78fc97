package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/service"
)

// CartService is what the handler needs from the service layer.
type CartService interface {
	AddToCart(ctx context.Context, ownerID string, req service.AddRequest) (domain.AddLineResult, error)
	RemoveFromCart(ctx context.Context, ownerID string, lineID int64) (domain.RemoveLineResult, error)
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
}

// NewCartHandler builds the cart HTTP surface. The timeout bounds the
// whole storage interaction of one request, including a possible
// retry against the pooled endpoint.
func NewCartHandler(svc CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		svc:     svc,
		timeout: timeout,
	}
}

func (h *CartHandler) Routes(r chi.Router) {
	r.Get("/cart", h.GetCart)
	r.Post("/cart/add", h.AddItem)
	r.Post("/cart/remove", h.RemoveItem)
}

type addRequestDTO struct {
	ProductID int64  `json:"productId"`
	VariantID *int64 `json:"variantId"`
	Qty       *int   `json:"qty"`
	Quantity  *int   `json:"quantity"` // legacy alias, used only when the qty key is absent
}

type totalsDTO struct {
	TotalItems  int     `json:"totalItems"`
	TotalAmount float64 `json:"totalAmount"`
}

type lineDTO struct {
	ID        int64   `json:"id"`
	Quantity  int     `json:"quantity"`
	ProductID int64   `json:"productId"`
	VariantID *int64  `json:"variantId"`
	UnitPrice float64 `json:"unitPrice"`
}

type addResponseDTO struct {
	OK     bool      `json:"ok"`
	Totals totalsDTO `json:"totals"`
	Line   lineDTO   `json:"line"`
	Meta   struct {
		WasNewLine bool `json:"wasNewLine"`
	} `json:"meta"`
}

type removeRequestDTO struct {
	LineID int64 `json:"lineId"`
}

type removeResponseDTO struct {
	Totals  totalsDTO `json:"totals"`
	Removed int64     `json:"removed"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := sessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	var req addRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.CodeValidation, "invalid JSON body")
		return
	}

	var qty int
	switch {
	case req.Qty != nil:
		qty = *req.Qty
	case req.Quantity != nil:
		qty = *req.Quantity
	}

	result, err := h.svc.AddToCart(ctx, session.ID, service.AddRequest{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Qty:       qty,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := addResponseDTO{
		OK:     true,
		Totals: newTotalsDTO(result.Totals),
		Line: lineDTO{
			ID:        result.Line.ID,
			Quantity:  result.Line.Quantity,
			ProductID: result.Line.ProductID,
			VariantID: result.Line.VariantID,
			UnitPrice: result.Line.UnitPrice.Amount.InexactFloat64(),
		},
	}
	resp.Meta.WasNewLine = result.WasNewLine

	respondJSON(w, http.StatusCreated, resp)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := sessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	var req removeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, domain.CodeValidation, "invalid JSON body")
		return
	}

	result, err := h.svc.RemoveFromCart(ctx, session.ID, req.LineID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, removeResponseDTO{
		Totals:  newTotalsDTO(result.Totals),
		Removed: result.RemovedLineID,
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := sessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user authentication")
		return
	}

	cart, err := h.svc.GetCart(ctx, session.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	lines := make([]lineDTO, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, lineDTO{
			ID:        l.ID,
			Quantity:  l.Quantity,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			UnitPrice: l.UnitPrice.Amount.InexactFloat64(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"totals": newTotalsDTO(cart.Totals),
		"lines":  lines,
	})
}

func newTotalsDTO(t domain.Totals) totalsDTO {
	return totalsDTO{
		TotalItems:  t.TotalItems,
		TotalAmount: t.TotalAmount.InexactFloat64(),
	}
}
