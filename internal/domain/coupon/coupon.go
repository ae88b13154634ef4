package coupon

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/prodishi/dishi-shop/internal/domain/money"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off every unit.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off every unit, floored at zero.
	DiscountFixed DiscountType = "fixed"
)

// ErrInvalidCoupon is returned when a shopper explicitly applies a code that
// is not in the coupon table.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// InvalidMessage is shown to the shopper when an applied code is rejected.
const InvalidMessage = "Kupon nije važeći."

// Rule defines a coupon's discount behaviour.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        int64
	Description  string
}

// UnitPrice is a list price after a coupon rule has been applied to it.
type UnitPrice struct {
	List       int64
	Discounted int64
	Savings    int64
	// Applied is the normalized code, empty when no rule was applied.
	Applied string
}

// Normalize trims and upper-cases a user-entered code.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// UnitPrice applies the rule to a single unit. A nil rule leaves the price
// untouched.
//
// Percentage savings are rounded half-up on the savings amount, so a .5 tie
// goes to the shopper.
func (r *Rule) UnitPrice(list int64) UnitPrice {
	if r == nil {
		return UnitPrice{List: list, Discounted: list}
	}

	var discounted int64
	switch r.DiscountType {
	case DiscountPercentage:
		discounted = list - money.Percent(list, r.Value)
	case DiscountFixed:
		discounted = list - r.Value
	default:
		return UnitPrice{List: list, Discounted: list}
	}
	discounted = money.NonNegative(discounted)

	return UnitPrice{
		List:       list,
		Discounted: discounted,
		Savings:    list - discounted,
		Applied:    r.Code,
	}
}
