package order

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// Kind distinguishes the draft notification from the final order.
type Kind string

const (
	KindStart    Kind = "start"
	KindComplete Kind = "complete"
)

// Item is an order line in the payload.
type Item struct {
	SKU       string
	Title     string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// Payload is the flat document posted to the order endpoint.
type Payload struct {
	Type  Kind
	Token string

	Email      string
	Phone      string
	FirstName  string
	LastName   string
	Address    string
	PostalCode string
	City       string
	Note       string

	ConsentShipping  bool
	ConsentAbandoned bool

	Source string
	UTM    string

	// Product is the cart title, Price its net subtotal.
	Product      string
	Price        int64
	Qty          int
	Subtotal     int64
	Discount     int64
	Shipping     int64
	Total        int64
	Coupon       string
	StarterQty   int
	RefillQty    int
	Freebies     int
	FreebiesVal  int64
	ShippingCost int64

	Items []Item
}

// NewStartPayload builds the abandoned-cart draft sent once a valid email is
// known.
func NewStartPayload(token, email string, consentAbandoned bool, s *cart.Summary, o Origin) *Payload {
	return &Payload{
		Type:             KindStart,
		Token:            token,
		Email:            email,
		ConsentAbandoned: consentAbandoned,
		Source:           o.Source,
		UTM:              o.UTM,
		Product:          s.Title,
		Subtotal:         s.NetSubtotal,
		Discount:         s.Discount,
		Total:            s.Total,
		Coupon:           s.Coupon,
		Items:            items(s),
	}
}

// NewCompletePayload builds the final order. The phone is sent normalized.
func NewCompletePayload(token string, f *Form, s *cart.Summary, o Origin) *Payload {
	return &Payload{
		Type:             KindComplete,
		Token:            token,
		Email:            f.Email,
		Phone:            NormalizePhone(f.Phone),
		FirstName:        f.FirstName,
		LastName:         f.LastName,
		Address:          f.Address,
		PostalCode:       f.PostalCode,
		City:             f.City,
		Note:             f.Note,
		ConsentShipping:  f.ConsentShipping,
		ConsentAbandoned: f.ConsentAbandoned,
		Source:           o.Source,
		UTM:              o.UTM,
		Product:          s.Title,
		Price:            s.NetSubtotal,
		Qty:              s.Quantity,
		Subtotal:         s.NetSubtotal,
		Discount:         s.Discount,
		Shipping:         s.Shipping,
		Total:            s.Total,
		Coupon:           s.Coupon,
		StarterQty:       s.QuantityOf(product.Starter),
		RefillQty:        s.QuantityOf(product.Refill),
		Freebies:         s.Freebies,
		FreebiesVal:      s.FreebiesValue,
		ShippingCost:     s.Shipping,
		Items:            items(s),
	}
}

func items(s *cart.Summary) []Item {
	out := make([]Item, len(s.Items))
	for i, it := range s.Items {
		out[i] = Item(it)
	}
	return out
}

// Encode writes the payload as a JSON object. A start payload carries only
// the draft fields.
func (p *Payload) Encode(e *jx.Encoder) {
	e.ObjStart()
	str := func(k, v string) {
		e.FieldStart(k)
		e.Str(v)
	}
	num := func(k string, v int64) {
		e.FieldStart(k)
		e.Int64(v)
	}
	flag := func(k string, v bool) {
		e.FieldStart(k)
		e.Bool(v)
	}

	str("type", string(p.Type))
	str("token", p.Token)
	str("email", p.Email)
	flag("consentAbandoned", p.ConsentAbandoned)
	str("source", p.Source)
	str("utm", p.UTM)
	str("product", p.Product)

	if p.Type == KindComplete {
		str("phone", p.Phone)
		str("firstName", p.FirstName)
		str("lastName", p.LastName)
		str("address", p.Address)
		str("postalCode", p.PostalCode)
		str("city", p.City)
		str("note", p.Note)
		flag("consentShipping", p.ConsentShipping)
		num("price", p.Price)
		num("qty", int64(p.Qty))
		num("shipping", p.Shipping)
		num("starter30Qty", int64(p.StarterQty))
		num("refill30Qty", int64(p.RefillQty))
		num("freebies", int64(p.Freebies))
		num("freebiesValue", p.FreebiesVal)
		num("shippingCost", p.ShippingCost)
	}

	num("subtotal", p.Subtotal)
	num("discount", p.Discount)
	num("total", p.Total)
	str("coupon", p.Coupon)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range p.Items {
		it.Encode(e)
	}
	e.ArrEnd()

	e.ObjEnd()
}

// Decode reads a payload written by Encode. Unknown fields are skipped.
func (p *Payload) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			var s string
			s, err = d.Str()
			p.Type = Kind(s)
		case "token":
			p.Token, err = d.Str()
		case "email":
			p.Email, err = d.Str()
		case "phone":
			p.Phone, err = d.Str()
		case "firstName":
			p.FirstName, err = d.Str()
		case "lastName":
			p.LastName, err = d.Str()
		case "address":
			p.Address, err = d.Str()
		case "postalCode":
			p.PostalCode, err = d.Str()
		case "city":
			p.City, err = d.Str()
		case "note":
			p.Note, err = d.Str()
		case "consentShipping":
			p.ConsentShipping, err = d.Bool()
		case "consentAbandoned":
			p.ConsentAbandoned, err = d.Bool()
		case "source":
			p.Source, err = d.Str()
		case "utm":
			p.UTM, err = d.Str()
		case "product":
			p.Product, err = d.Str()
		case "price":
			p.Price, err = d.Int64()
		case "qty":
			p.Qty, err = d.Int()
		case "subtotal":
			p.Subtotal, err = d.Int64()
		case "discount":
			p.Discount, err = d.Int64()
		case "shipping":
			p.Shipping, err = d.Int64()
		case "total":
			p.Total, err = d.Int64()
		case "coupon":
			p.Coupon, err = d.Str()
		case "starter30Qty":
			p.StarterQty, err = d.Int()
		case "refill30Qty":
			p.RefillQty, err = d.Int()
		case "freebies":
			p.Freebies, err = d.Int()
		case "freebiesValue":
			p.FreebiesVal, err = d.Int64()
		case "shippingCost":
			p.ShippingCost, err = d.Int64()
		case "items":
			p.Items = p.Items[:0]
			err = d.Arr(func(d *jx.Decoder) error {
				var it Item
				if err := it.Decode(d); err != nil {
					return err
				}
				p.Items = append(p.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "decode %q", key)
	})
}

// Encode writes the item as a JSON object.
func (it Item) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(it.SKU)
	e.FieldStart("title")
	e.Str(it.Title)
	e.FieldStart("qty")
	e.Int(it.Quantity)
	e.FieldStart("unitPrice")
	e.Int64(it.UnitPrice)
	e.FieldStart("lineTotal")
	e.Int64(it.LineTotal)
	e.ObjEnd()
}

// Decode reads an item written by Encode.
func (it *Item) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			it.SKU, err = d.Str()
		case "title":
			it.Title, err = d.Str()
		case "qty":
			it.Quantity, err = d.Int()
		case "unitPrice":
			it.UnitPrice, err = d.Int64()
		case "lineTotal":
			it.LineTotal, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
}
