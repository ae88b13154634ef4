package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/pkg/httpmiddleware"
)

type startRequest struct {
	cartRequest
	originFields

	Email            string
	ConsentAbandoned bool
}

func (s *startRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if ok, err := s.cartRequest.decodeField(d, key); ok {
			return err
		}
		if ok, err := s.originFields.decodeField(d, key); ok {
			return err
		}
		var err error
		switch key {
		case "email":
			s.Email, err = d.Str()
		case "consentAbandoned":
			s.ConsentAbandoned, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

type completeRequest struct {
	cartRequest
	originFields

	Form order.Form
}

func (c *completeRequest) Decode(d *jx.Decoder) error {
	f := &c.Form
	return d.Obj(func(d *jx.Decoder, key string) error {
		if ok, err := c.cartRequest.decodeField(d, key); ok {
			return err
		}
		if ok, err := c.originFields.decodeField(d, key); ok {
			return err
		}
		var err error
		switch key {
		case "email":
			f.Email, err = d.Str()
		case "phone":
			f.Phone, err = d.Str()
		case "firstName":
			f.FirstName, err = d.Str()
		case "lastName":
			f.LastName, err = d.Str()
		case "address":
			f.Address, err = d.Str()
		case "postalCode":
			f.PostalCode, err = d.Str()
		case "city":
			f.City, err = d.Str()
		case "note":
			f.Note, err = d.Str()
		case "consentShipping":
			f.ConsentShipping, err = d.Bool()
		case "consentAbandoned":
			f.ConsentAbandoned, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

// OpenCheckout returns the saved contact and a fresh submission token.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	session := httpmiddleware.SessionFromContext(r.Context())
	c, err := h.orders.Open(r.Context(), session)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("contact")
		encodeContact(e, c.Contact)
		e.FieldStart("token")
		e.Str(c.Token)
		e.ObjEnd()
	})
}

// StartCheckout sends the draft notification. The response carries the
// submission token, empty when the email was not valid yet.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.carts.Summarize(h.lines(&req.cartRequest), req.Coupon)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session := httpmiddleware.SessionFromContext(r.Context())
	token, err := h.orders.StartDraft(r.Context(), session, req.Email, req.ConsentAbandoned, summary, req.Origin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(token)
		e.ObjEnd()
	})
}

// CompleteCheckout validates the form and submits the order.
func (h *Handler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(w, r, req.Decode); err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.carts.Summarize(h.lines(&req.cartRequest), req.Coupon)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session := httpmiddleware.SessionFromContext(r.Context())
	receipt, err := h.orders.Complete(r.Context(), session, &req.Form, summary, req.Origin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(receipt.Token)
		e.FieldStart("message")
		e.Str(receipt.Message)
		e.ObjEnd()
	})
}
