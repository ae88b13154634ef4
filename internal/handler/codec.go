package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/money"
	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/domain/pricing"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads the request body and hands a decoder to decode. An empty
// body is not an error and leaves the target untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Invalid {
		return nil
	}
	if err := decode(d); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// cartRequest is the part shared by every request carrying a cart.
type cartRequest struct {
	Lines    []cart.LineState
	HasLines bool
	Coupon   string
}

// decodeField decodes the cart fields. It reports whether key was one of
// them.
func (c *cartRequest) decodeField(d *jx.Decoder, key string) (bool, error) {
	switch key {
	case "coupon":
		v, err := d.Str()
		c.Coupon = v
		return true, err
	case "lines":
		c.HasLines = true
		return true, d.Arr(func(d *jx.Decoder) error {
			var l cart.LineState
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "productId":
					v, err := d.Str()
					l.ProductID = product.ID(v)
					return err
				case "variantId":
					v, err := d.Str()
					l.VariantID = v
					return err
				case "qty":
					v, err := d.Int()
					l.Quantity = v
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			c.Lines = append(c.Lines, l)
			return nil
		})
	}
	return false, nil
}

type originFields struct {
	Origin order.Origin
}

func (o *originFields) decodeField(d *jx.Decoder, key string) (bool, error) {
	var err error
	switch key {
	case "source":
		o.Origin.Source, err = d.Str()
	case "utm":
		o.Origin.UTM, err = d.Str()
	default:
		return false, nil
	}
	return true, err
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(string(p.ID))
	e.FieldStart("title")
	e.Str(p.Title)
	if p.Subtitle != "" {
		e.FieldStart("subtitle")
		e.Str(p.Subtitle)
	}
	e.FieldStart("shippingFlat")
	e.Int64(p.ShippingFlat)
	e.FieldStart("freeShippingThreshold")
	if p.FreeShippingThreshold != nil {
		e.Int64(*p.FreeShippingThreshold)
	} else {
		e.Null()
	}
	e.FieldStart("defaultVariantId")
	e.Str(p.DefaultVariantID)
	e.FieldStart("variants")
	e.ArrStart()
	for _, v := range p.Variants {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(v.ID)
		e.FieldStart("label")
		e.Str(v.Label)
		e.FieldStart("price")
		e.Int64(v.Price)
		if v.CompareAt > 0 {
			e.FieldStart("compareAt")
			e.Int64(v.CompareAt)
		}
		e.FieldStart("sku")
		e.Str(v.SKUOrID())
		e.FieldStart("inStock")
		e.Bool(v.Available())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l *pricing.Line) {
	e.ObjStart()
	str := func(k, v string) {
		e.FieldStart(k)
		e.Str(v)
	}
	num := func(k string, v int64) {
		e.FieldStart(k)
		e.Int64(v)
	}
	str("productId", string(l.ProductID))
	str("productTitle", l.ProductTitle)
	str("variantId", l.VariantID)
	str("variantLabel", l.VariantLabel)
	str("sku", l.SKU)
	num("listUnitPrice", l.ListUnitPrice)
	num("unitPrice", l.UnitPrice)
	if l.CompareAt > 0 {
		num("compareAt", l.CompareAt)
	}
	num("qty", int64(l.Quantity))
	num("freebies", int64(l.Freebies))
	if l.Freebies > 0 {
		str("freebiesLabel", l.FreebiesLabel)
	}
	num("freebiesValue", l.FreebiesValue)
	num("listSubtotal", l.ListSubtotal)
	num("subtotal", l.Subtotal)
	num("discount", l.Discount)
	num("shipping", l.Shipping)
	e.FieldStart("freeShipping")
	e.Bool(l.FreeShipping)
	num("total", l.Total)
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *cart.Summary) {
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for i := range s.Lines {
		encodeLine(e, &s.Lines[i])
	}
	e.ArrEnd()

	num := func(k string, v int64) {
		e.FieldStart(k)
		e.Int64(v)
	}
	num("qty", int64(s.Quantity))
	num("freebies", int64(s.Freebies))
	num("freebiesValue", s.FreebiesValue)
	num("listSubtotal", s.ListSubtotal)
	num("netSubtotal", s.NetSubtotal)
	num("discount", s.Discount)
	num("shipping", s.Shipping)
	num("total", s.Total)
	num("amountUntilFreeShipping", s.AmountUntilFreeShipping)
	num("amountUntilGift", s.AmountUntilGift)
	e.FieldStart("gift")
	e.Bool(s.Gift)
	e.FieldStart("coupon")
	e.Str(s.Coupon)
	e.FieldStart("composition")
	e.Str(s.Composition)
	e.FieldStart("title")
	e.Str(s.Title)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range s.Items {
		order.Item(it).Encode(e)
	}
	e.ArrEnd()

	e.FieldStart("display")
	e.ObjStart()
	for _, f := range []struct {
		k string
		v int64
	}{
		{"netSubtotal", s.NetSubtotal},
		{"discount", s.Discount},
		{"shipping", s.Shipping},
		{"total", s.Total},
	} {
		e.FieldStart(f.k)
		e.Str(money.Format(f.v))
	}
	e.ObjEnd()

	e.ObjEnd()
}

func encodeContact(e *jx.Encoder, c order.Contact) {
	e.ObjStart()
	for _, f := range []struct{ k, v string }{
		{"email", c.Email},
		{"phone", c.Phone},
		{"firstName", c.FirstName},
		{"lastName", c.LastName},
		{"address", c.Address},
		{"postalCode", c.PostalCode},
		{"city", c.City},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
}
