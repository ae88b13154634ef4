package pricing

import (
	"github.com/prodishi/dishi-shop/internal/domain/money"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// Freebie is a bonus granted by a promotion. It is shown to the shopper but
// never charged and never reduces the subtotal.
type Freebie struct {
	Count int
	Label string
	// Value is the marketing value of the bonus.
	Value int64
	// WaivesShipping makes the line ship for free.
	WaivesShipping bool
}

// Promotion computes the freebie for one cart line. unitPrice is the
// discounted unit price.
type Promotion interface {
	Freebie(v product.Variant, qty int, unitPrice int64) Freebie
}

// BundlePromotion grants one bonus unit for every complete group of Every
// units.
type BundlePromotion struct {
	Every          int
	Label          string
	WaivesShipping bool
}

func (p BundlePromotion) Freebie(_ product.Variant, qty int, unitPrice int64) Freebie {
	if p.Every <= 0 || qty < p.Every {
		return Freebie{}
	}
	n := qty / p.Every
	return Freebie{
		Count:          n,
		Label:          p.Label,
		Value:          int64(n) * unitPrice,
		WaivesShipping: p.WaivesShipping,
	}
}

// StickerPromotion grants Bonus extra stickers once the line holds at least
// Threshold stickers. The pack size is read from the variant label.
type StickerPromotion struct {
	Threshold int
	Bonus     int
	Label     string
}

func (p StickerPromotion) Freebie(v product.Variant, qty int, unitPrice int64) Freebie {
	pack := product.ParsePackSize(v.Label)
	if pack*qty < p.Threshold || p.Bonus <= 0 {
		return Freebie{}
	}
	return Freebie{
		Count: p.Bonus,
		Label: p.Label,
		Value: money.Share(unitPrice, pack, p.Bonus),
	}
}

// DefaultPromotions is the fixed storefront promotion policy.
func DefaultPromotions() map[product.ID]Promotion {
	return map[product.ID]Promotion{
		product.Starter: BundlePromotion{Every: 3, Label: "paket", WaivesShipping: true},
		product.Refill:  StickerPromotion{Threshold: 90, Bonus: 30, Label: "nalepnica"},
	}
}
