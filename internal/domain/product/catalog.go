package product

import (
	"slices"

	"github.com/go-faster/errors"
)

var _ Repository = (*Catalog)(nil)

// Catalog is a read-only product lookup built once at startup. It has no
// mutation API; every accessor returns copies.
type Catalog struct {
	order []ID
	byID  map[ID]Product
}

// NewCatalog validates products and indexes them by id. Products keep the
// order in which they were given.
func NewCatalog(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{
		order: make([]ID, 0, len(products)),
		byID:  make(map[ID]Product, len(products)),
	}
	for _, p := range products {
		if err := validate(p); err != nil {
			return nil, errors.Wrapf(err, "product %q", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, errors.Errorf("duplicate product %q", p.ID)
		}
		c.order = append(c.order, p.ID)
		c.byID[p.ID] = clone(p)
	}
	return c, nil
}

func validate(p Product) error {
	if p.ID == "" {
		return errors.New("empty id")
	}
	if len(p.Variants) == 0 {
		return errors.New("no variants")
	}
	if p.ShippingFlat < 0 {
		return errors.New("negative shipping fee")
	}
	if p.FreeShippingThreshold != nil && *p.FreeShippingThreshold < 0 {
		return errors.New("negative free shipping threshold")
	}

	seen := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if v.ID == "" {
			return errors.New("variant with empty id")
		}
		if _, dup := seen[v.ID]; dup {
			return errors.Errorf("duplicate variant %q", v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.Price < 0 || v.CompareAt < 0 {
			return errors.Errorf("variant %q: negative price", v.ID)
		}
	}
	if _, ok := seen[p.DefaultVariantID]; !ok {
		return errors.Errorf("default variant %q not found", p.DefaultVariantID)
	}
	return nil
}

func clone(p Product) Product {
	p.Variants = slices.Clone(p.Variants)
	if p.FreeShippingThreshold != nil {
		v := *p.FreeShippingThreshold
		p.FreeShippingThreshold = &v
	}
	return p
}

// List returns all products in catalog order.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(c.byID[id]))
	}
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id ID) (Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return Product{}, &NotFoundError{ProductID: id}
	}
	return clone(p), nil
}

// Variant resolves a product/variant pair. An empty variant id selects the
// product's default variant.
func (c *Catalog) Variant(id ID, variantID string) (Product, Variant, error) {
	p, err := c.Get(id)
	if err != nil {
		return Product{}, Variant{}, err
	}
	if variantID == "" {
		variantID = p.DefaultVariantID
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return Product{}, Variant{}, &NotFoundError{ProductID: id, VariantID: variantID}
	}
	return p, v, nil
}
