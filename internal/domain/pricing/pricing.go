// Package pricing resolves a single cart line into a full price, discount,
// freebie and shipping breakdown. Everything here is pure and safe for
// concurrent use.
package pricing

import (
	"github.com/go-faster/errors"

	"github.com/prodishi/dishi-shop/internal/domain/coupon"
	"github.com/prodishi/dishi-shop/internal/domain/money"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// MaxQuantity is the largest quantity a single line accepts.
const MaxQuantity = 999

// ErrQuantityTooLarge is returned for a line quantity above MaxQuantity.
var ErrQuantityTooLarge = errors.New("quantity too large")

// CheckQuantity rejects quantities above MaxQuantity.
func CheckQuantity(id product.ID, qty int) error {
	if qty > MaxQuantity {
		return errors.Wrapf(ErrQuantityTooLarge, "product %s: %d > %d", id, qty, MaxQuantity)
	}
	return nil
}

// Policy holds the order-level thresholds.
type Policy struct {
	// GiftThreshold is the total at which a surprise gift is promised.
	GiftThreshold int64
	// FreeShippingThreshold is the order-level net subtotal for free shipping.
	FreeShippingThreshold int64
}

// DefaultPolicy is the storefront's standing policy.
var DefaultPolicy = Policy{
	GiftThreshold:         5000,
	FreeShippingThreshold: 3000,
}

// LineInput selects a product variant, a quantity and an optional coupon.
type LineInput struct {
	ProductID product.ID
	VariantID string
	Quantity  int
	Coupon    string
}

// Line is the computed breakdown for one cart line.
type Line struct {
	ProductID    product.ID
	ProductTitle string
	VariantID    string
	VariantLabel string
	SKU          string

	ListUnitPrice int64
	UnitPrice     int64
	CompareAt     int64
	Quantity      int

	Freebies      int
	FreebiesLabel string
	FreebiesValue int64

	ListSubtotal int64
	Subtotal     int64
	Discount     int64

	ShippingFlat int64
	Shipping     int64
	FreeShipping bool

	Total  int64
	Coupon string
	Gift   bool
}

// Calculator prices cart lines against a catalog and a coupon table.
type Calculator struct {
	products   product.Repository
	coupons    *coupon.Table
	policy     Policy
	promotions map[product.ID]Promotion
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithPromotions replaces the default promotion policy.
func WithPromotions(p map[product.ID]Promotion) Option {
	return func(c *Calculator) { c.promotions = p }
}

// NewCalculator creates a Calculator.
func NewCalculator(products product.Repository, coupons *coupon.Table, policy Policy, opts ...Option) *Calculator {
	c := &Calculator{
		products:   products,
		coupons:    coupons,
		policy:     policy,
		promotions: DefaultPromotions(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Policy returns the calculator's order-level policy.
func (c *Calculator) Policy() Policy { return c.policy }

// Coupons returns the coupon table used to resolve codes.
func (c *Calculator) Coupons() *coupon.Table { return c.coupons }

// Products returns the catalog backing the calculator.
func (c *Calculator) Products() product.Repository { return c.products }

// Calculate resolves a single line. The quantity is coerced to at least 1 and
// an unknown coupon is treated exactly like no coupon. Unknown product or
// variant ids yield a *product.NotFoundError, quantities above MaxQuantity
// ErrQuantityTooLarge.
func (c *Calculator) Calculate(in LineInput) (*Line, error) {
	if err := CheckQuantity(in.ProductID, in.Quantity); err != nil {
		return nil, err
	}
	p, v, err := c.products.Variant(in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}
	line := c.Price(p, v, max(1, in.Quantity), c.coupons.Resolve(in.Coupon))
	return &line, nil
}

// Price computes the line for an already resolved product, variant and coupon
// rule. qty is used as given and must not exceed MaxQuantity.
func (c *Calculator) Price(p product.Product, v product.Variant, qty int, rule *coupon.Rule) Line {
	unit := rule.UnitPrice(v.Price)
	q := int64(qty)

	listSubtotal := unit.List * q
	discount := unit.Savings * q
	subtotal := money.NonNegative(listSubtotal - discount)

	var free Freebie
	if promo, ok := c.promotions[p.ID]; ok {
		free = promo.Freebie(v, qty, unit.Discounted)
	}

	shipping := p.ShippingFlat
	freeShipping := p.FreeShippingAt(subtotal) || (free.WaivesShipping && free.Count > 0)
	if freeShipping {
		shipping = 0
	}

	total := subtotal + shipping

	return Line{
		ProductID:     p.ID,
		ProductTitle:  p.Title,
		VariantID:     v.ID,
		VariantLabel:  v.Label,
		SKU:           v.SKUOrID(),
		ListUnitPrice: unit.List,
		UnitPrice:     unit.Discounted,
		CompareAt:     v.CompareAt,
		Quantity:      qty,
		Freebies:      free.Count,
		FreebiesLabel: free.Label,
		FreebiesValue: free.Value,
		ListSubtotal:  listSubtotal,
		Subtotal:      subtotal,
		Discount:      discount,
		ShippingFlat:  p.ShippingFlat,
		Shipping:      shipping,
		FreeShipping:  shipping == 0,
		Total:         total,
		Coupon:        unit.Applied,
		Gift:          total >= c.policy.GiftThreshold,
	}
}
