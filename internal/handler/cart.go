package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
)

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	products := h.products.List()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// DefaultCart returns the cart a first visit opens with. A valid code in the
// coupon (or kupon) query parameter is pre-applied.
func (h *Handler) DefaultCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("coupon")
	if raw == "" {
		raw = q.Get("kupon")
	}
	code, err := h.coupons.Apply(raw)
	if err != nil {
		zctx.From(r.Context()).Debug("Ignoring coupon from link", zap.String("coupon", raw))
		code = ""
	}

	h.summarize(w, r, h.carts.DefaultLines(), code)
}

// QuoteCart prices the posted cart. Without lines the default cart is priced.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeBody(w, r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			ok, err := req.decodeField(d, key)
			if ok {
				return err
			}
			return d.Skip()
		})
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.summarize(w, r, h.lines(&req), req.Coupon)
}

// ApplyCoupon validates a code typed by the shopper and returns its canonical
// form.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := decodeBody(w, r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "code" {
				return d.Skip()
			}
			v, err := d.Str()
			raw = v
			return err
		})
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	code, err := h.coupons.Apply(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(code)
		e.ObjEnd()
	})
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request, lines []cart.LineState, code string) {
	s, err := h.carts.Summarize(lines, code)
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "summarize cart"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSummary(e, s)
	})
}

func (h *Handler) lines(req *cartRequest) []cart.LineState {
	if !req.HasLines {
		return h.carts.DefaultLines()
	}
	return req.Lines
}
