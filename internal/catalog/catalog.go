// Package catalog loads the static product catalog, coupon table and order
// policy from YAML. The storefront's own catalog is embedded.
package catalog

import (
	"bytes"
	_ "embed"
	"os"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/prodishi/dishi-shop/internal/domain/coupon"
	"github.com/prodishi/dishi-shop/internal/domain/pricing"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

//go:embed catalog.yaml
var embedded []byte

// Catalog is the validated, immutable pricing configuration.
type Catalog struct {
	Products *product.Catalog
	Coupons  *coupon.Table
	Policy   pricing.Policy
}

// Calculator returns a pricing calculator over the catalog.
func (c *Catalog) Calculator(opts ...pricing.Option) *pricing.Calculator {
	return pricing.NewCalculator(c.Products, c.Coupons, c.Policy, opts...)
}

// Default returns the embedded storefront catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Parse(data)
}

type fileVariant struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	Price     int64  `yaml:"price"`
	CompareAt int64  `yaml:"compare_at"`
	SKU       string `yaml:"sku"`
	InStock   *bool  `yaml:"in_stock"`
}

type fileProduct struct {
	ID                    string        `yaml:"id"`
	Title                 string        `yaml:"title"`
	Subtitle              string        `yaml:"subtitle"`
	ShippingFlat          int64         `yaml:"shipping_flat"`
	FreeShippingThreshold *int64        `yaml:"free_shipping_threshold"`
	DefaultVariant        string        `yaml:"default_variant"`
	Variants              []fileVariant `yaml:"variants"`
}

type fileCoupon struct {
	Code        string `yaml:"code"`
	Type        string `yaml:"type"`
	Value       int64  `yaml:"value"`
	Description string `yaml:"description"`
}

type file struct {
	Policy struct {
		GiftThreshold         int64 `yaml:"gift_threshold"`
		FreeShippingThreshold int64 `yaml:"free_shipping_threshold"`
	} `yaml:"policy"`
	Products []fileProduct `yaml:"products"`
	Coupons  []fileCoupon  `yaml:"coupons"`
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected and
// missing policy thresholds fall back to pricing.DefaultPolicy.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	products := make([]product.Product, 0, len(f.Products))
	for _, fp := range f.Products {
		p := product.Product{
			ID:                    product.ID(fp.ID),
			Title:                 fp.Title,
			Subtitle:              fp.Subtitle,
			ShippingFlat:          fp.ShippingFlat,
			FreeShippingThreshold: fp.FreeShippingThreshold,
			DefaultVariantID:      fp.DefaultVariant,
		}
		for _, fv := range fp.Variants {
			p.Variants = append(p.Variants, product.Variant(fv))
		}
		products = append(products, p)
	}
	pc, err := product.NewCatalog(products)
	if err != nil {
		return nil, errors.Wrap(err, "products")
	}

	rules := make([]coupon.Rule, 0, len(f.Coupons))
	for _, fc := range f.Coupons {
		rules = append(rules, coupon.Rule{
			Code:         coupon.Normalize(fc.Code),
			DiscountType: coupon.DiscountType(fc.Type),
			Value:        fc.Value,
			Description:  fc.Description,
		})
	}
	ct, err := coupon.NewTable(rules)
	if err != nil {
		return nil, errors.Wrap(err, "coupons")
	}

	policy := pricing.DefaultPolicy
	if v := f.Policy.GiftThreshold; v > 0 {
		policy.GiftThreshold = v
	}
	if v := f.Policy.FreeShippingThreshold; v > 0 {
		policy.FreeShippingThreshold = v
	}

	return &Catalog{Products: pc, Coupons: ct, Policy: policy}, nil
}
