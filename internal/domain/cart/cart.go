// Package cart combines per-product line calculations into one order-level
// summary.
package cart

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/prodishi/dishi-shop/internal/domain/money"
	"github.com/prodishi/dishi-shop/internal/domain/pricing"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// ErrDuplicateLine is returned when the same product appears on two lines.
var ErrDuplicateLine = errors.New("duplicate cart line")

// EmptyTitle names an order whose cart has no active lines.
const EmptyTitle = "PRO.DISHI porudžbina"

// LineState is the shopper's selection for one product. Quantity zero means
// the product is not in the cart.
type LineState struct {
	ProductID product.ID
	VariantID string
	Quantity  int
}

// Item is an order line as it is sent with the order.
type Item struct {
	SKU       string
	Title     string
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// Summary is the order-level view of the cart.
type Summary struct {
	// Lines holds the active lines only, in catalog order.
	Lines []pricing.Line

	Quantity      int
	Freebies      int
	FreebiesValue int64
	ListSubtotal  int64
	NetSubtotal   int64
	Discount      int64
	Shipping      int64
	Total         int64
	Gift          bool

	// Coupon is the applied code, empty when none applies.
	Coupon string

	AmountUntilFreeShipping int64
	AmountUntilGift         int64

	Items       []Item
	Composition string
	Title       string
}

// Empty reports whether no line is active.
func (s *Summary) Empty() bool { return len(s.Lines) == 0 }

// QuantityOf returns the quantity of the given product, zero if absent.
func (s *Summary) QuantityOf(id product.ID) int {
	for _, l := range s.Lines {
		if l.ProductID == id {
			return l.Quantity
		}
	}
	return 0
}

// Aggregator builds summaries. It has no state beyond its immutable inputs.
type Aggregator struct {
	calc *pricing.Calculator
}

// NewAggregator creates an Aggregator over the given calculator.
func NewAggregator(calc *pricing.Calculator) *Aggregator {
	return &Aggregator{calc: calc}
}

// DefaultLines is the initial cart: one starter kit, everything else absent.
func (a *Aggregator) DefaultLines() []LineState {
	products := a.calc.Products().List()
	out := make([]LineState, 0, len(products))
	for _, p := range products {
		qty := 0
		if p.ID == product.Starter {
			qty = 1
		}
		out = append(out, LineState{ProductID: p.ID, VariantID: p.DefaultVariantID, Quantity: qty})
	}
	return out
}

// Summarize prices every active line with the single order-level coupon and
// folds the results. The coupon applies to the whole order; an unknown code is
// ignored.
func (a *Aggregator) Summarize(states []LineState, couponCode string) (*Summary, error) {
	selected, err := a.resolve(states)
	if err != nil {
		return nil, err
	}

	rule := a.calc.Coupons().Resolve(couponCode)
	policy := a.calc.Policy()

	s := &Summary{}
	var (
		anyFree bool
		maxFee  int64
	)
	for _, sel := range selected {
		line := a.calc.Price(sel.product, sel.variant, sel.qty, rule)
		s.Lines = append(s.Lines, line)

		s.Quantity += line.Quantity
		s.Freebies += line.Freebies
		s.FreebiesValue += line.FreebiesValue
		s.ListSubtotal += line.ListSubtotal
		s.NetSubtotal += line.Subtotal
		s.Discount += line.Discount

		if line.Shipping == 0 {
			anyFree = true
		}
		maxFee = max(maxFee, line.Shipping)

		s.Items = append(s.Items, Item{
			SKU:       line.SKU,
			Title:     line.ProductTitle + " – " + line.VariantLabel,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.Subtotal,
		})
	}

	if !s.Empty() {
		if rule != nil {
			s.Coupon = rule.Code
		}
		if !anyFree && s.NetSubtotal < policy.FreeShippingThreshold {
			s.Shipping = maxFee
		}
	}

	s.Total = s.NetSubtotal + s.Shipping
	s.Gift = s.Total >= policy.GiftThreshold
	if s.Shipping > 0 {
		s.AmountUntilFreeShipping = money.Gap(policy.FreeShippingThreshold, s.NetSubtotal)
	}
	s.AmountUntilGift = money.Gap(policy.GiftThreshold, s.Total)
	s.Composition = composition(s.Lines)
	s.Title = title(s.Lines)

	return s, nil
}

type selection struct {
	product product.Product
	variant product.Variant
	qty     int
}

// resolve validates the states and returns the active selections in catalog
// order.
func (a *Aggregator) resolve(states []LineState) ([]selection, error) {
	byProduct := make(map[product.ID]selection, len(states))
	for _, st := range states {
		if _, dup := byProduct[st.ProductID]; dup {
			return nil, errors.Wrapf(ErrDuplicateLine, "product %s", st.ProductID)
		}
		if err := pricing.CheckQuantity(st.ProductID, st.Quantity); err != nil {
			return nil, err
		}
		p, v, err := a.calc.Products().Variant(st.ProductID, st.VariantID)
		if err != nil {
			return nil, err
		}
		byProduct[st.ProductID] = selection{product: p, variant: v, qty: max(0, st.Quantity)}
	}

	var out []selection
	for _, p := range a.calc.Products().List() {
		if sel, ok := byProduct[p.ID]; ok && sel.qty > 0 {
			out = append(out, sel)
		}
	}
	return out, nil
}

func composition(lines []pricing.Line) string {
	if len(lines) == 0 {
		return "Korpa je prazna"
	}

	var hasStarter, hasRefill bool
	for _, l := range lines {
		switch l.ProductID {
		case product.Starter:
			hasStarter = true
		case product.Refill:
			hasRefill = true
		}
	}
	switch {
	case len(lines) == 2 && hasStarter && hasRefill:
		return "Starter kit + Dopuna stikera"
	case len(lines) == 1 && hasStarter:
		return "Samo starter kit"
	case len(lines) == 1 && hasRefill:
		return "Samo dopuna stikera"
	}

	titles := make([]string, len(lines))
	for i, l := range lines {
		titles[i] = l.ProductTitle
	}
	return strings.Join(titles, " + ")
}

func title(lines []pricing.Line) string {
	if len(lines) == 0 {
		return EmptyTitle
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%s — %s × %d", l.ProductTitle, l.VariantLabel, l.Quantity)
	}
	return strings.Join(parts, " + ")
}
