package product

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product or variant does not exist.
var ErrNotFound = errors.New("product not found")

// ID identifies a product in the closed storefront catalog.
type ID string

const (
	// Starter is the starter kit: dilators plus a sticker pack.
	Starter ID = "starter"
	// Refill is the sticker-only refill pack.
	Refill ID = "refill"
)

// NotFoundError indicates an unknown product id, or an unknown variant id
// under a known product.
type NotFoundError struct {
	ProductID ID
	VariantID string
}

func (e *NotFoundError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("variant %s/%s not found", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Is reports ErrNotFound equivalence for errors.Is.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Variant is a purchasable option of a product, e.g. a specific pack size.
type Variant struct {
	ID        string
	Label     string
	Price     int64
	CompareAt int64
	SKU       string
	InStock   *bool
}

// SKUOrID returns the stock-keeping identifier, falling back to the variant id.
func (v Variant) SKUOrID() string {
	if v.SKU != "" {
		return v.SKU
	}
	return v.ID
}

// Available reports whether the variant can be selected. Variants without an
// explicit stock flag are available.
func (v Variant) Available() bool {
	return v.InStock == nil || *v.InStock
}

// Product is an immutable catalog entry.
type Product struct {
	ID                    ID
	Title                 string
	Subtitle              string
	Variants              []Variant
	DefaultVariantID      string
	ShippingFlat          int64
	FreeShippingThreshold *int64
}

// Variant returns the variant with the given id.
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// DefaultVariant returns the product's default variant.
func (p Product) DefaultVariant() Variant {
	v, _ := p.Variant(p.DefaultVariantID)
	return v
}

// FreeShippingAt reports whether net reaches the product's free-shipping
// threshold. Products without a threshold never ship for free on value alone.
func (p Product) FreeShippingAt(net int64) bool {
	return p.FreeShippingThreshold != nil && net >= *p.FreeShippingThreshold
}

// ParsePackSize extracts the pack size from a variant label by concatenating
// all of its digits, so "30 stikera" yields 30. Labels without digits yield 0.
func ParsePackSize(label string) int {
	var b strings.Builder
	for _, r := range label {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List() []Product
	Get(id ID) (Product, error)
	Variant(id ID, variantID string) (Product, Variant, error)
}
