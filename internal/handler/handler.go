// Package handler exposes the pricing and checkout operations over HTTP with
// JSON bodies.
package handler

import (
	"net/http"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/coupon"
	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Handler serves the shop API.
type Handler struct {
	products product.Repository
	coupons  *coupon.Table
	carts    *cart.Aggregator
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	coupons *coupon.Table,
	carts *cart.Aggregator,
	orders *order.Service,
) *Handler {
	return &Handler{
		products: products,
		coupons:  coupons,
		carts:    carts,
		orders:   orders,
	}
}

// Register mounts the API routes on mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/cart", h.DefaultCart)
	mux.HandleFunc("POST /api/cart/quote", h.QuoteCart)
	mux.HandleFunc("POST /api/coupon", h.ApplyCoupon)
	mux.HandleFunc("GET /api/checkout", h.OpenCheckout)
	mux.HandleFunc("POST /api/checkout/start", h.StartCheckout)
	mux.HandleFunc("POST /api/checkout/complete", h.CompleteCheckout)
}
