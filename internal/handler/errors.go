package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/coupon"
	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/domain/pricing"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// apiError is the JSON error body: {"code", "message", "field"?}.
type apiError struct {
	Code    int
	Message string
	Field   string
}

func (a apiError) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(a.Code)
	e.FieldStart("message")
	e.Str(a.Message)
	if a.Field != "" {
		e.FieldStart("field")
		e.Str(a.Field)
	}
	e.ObjEnd()
}

// mapError converts domain errors to API errors. Unknown errors become a 500
// with a generic message.
func mapError(err error) apiError {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		return apiError{Code: http.StatusUnprocessableEntity, Message: vErr.Message, Field: vErr.Field}
	}

	var rErr *order.RejectedError
	if errors.As(err, &rErr) {
		return apiError{Code: http.StatusBadGateway, Message: rErr.Error()}
	}

	var nfErr *product.NotFoundError
	if errors.As(err, &nfErr) {
		return apiError{Code: http.StatusUnprocessableEntity, Message: nfErr.Error()}
	}

	switch {
	case errors.Is(err, errBadRequest):
		return apiError{Code: http.StatusBadRequest, Message: errBadRequest.Error()}
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return apiError{Code: http.StatusUnprocessableEntity, Message: coupon.InvalidMessage}
	case errors.Is(err, order.ErrEmptyCart):
		return apiError{Code: http.StatusUnprocessableEntity, Message: order.ErrEmptyCart.Error()}
	case errors.Is(err, cart.ErrDuplicateLine):
		return apiError{Code: http.StatusUnprocessableEntity, Message: cart.ErrDuplicateLine.Error()}
	case errors.Is(err, pricing.ErrQuantityTooLarge):
		return apiError{Code: http.StatusUnprocessableEntity, Message: pricing.ErrQuantityTooLarge.Error(), Field: "qty"}
	case errors.Is(err, order.ErrDuplicateSubmission):
		return apiError{Code: http.StatusConflict, Message: order.ErrDuplicateSubmission.Error()}
	}
	return apiError{Code: http.StatusInternalServerError, Message: order.FallbackMessage}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	a := mapError(err)
	lg := zctx.From(r.Context())
	if a.Code >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Int("status", a.Code), zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", a.Code), zap.Error(err))
	}
	writeJSON(w, a.Code, a.Encode)
}
