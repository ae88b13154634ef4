package coupon

import (
	"github.com/go-faster/errors"
)

// Table is the static coupon configuration, keyed by normalized code. It is
// built once and never mutated.
type Table struct {
	rules map[string]Rule
	codes []string
}

// NewTable validates rules and indexes them by code.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		rules: make(map[string]Rule, len(rules)),
		codes: make([]string, 0, len(rules)),
	}
	for _, r := range rules {
		if r.Code == "" || Normalize(r.Code) != r.Code {
			return nil, errors.Errorf("coupon %q: code must be non-empty and normalized", r.Code)
		}
		if _, dup := t.rules[r.Code]; dup {
			return nil, errors.Errorf("duplicate coupon %q", r.Code)
		}
		switch r.DiscountType {
		case DiscountPercentage:
			if r.Value <= 0 || r.Value > 100 {
				return nil, errors.Errorf("coupon %q: percentage must be in (0, 100]", r.Code)
			}
		case DiscountFixed:
			if r.Value <= 0 {
				return nil, errors.Errorf("coupon %q: fixed amount must be positive", r.Code)
			}
		default:
			return nil, errors.Errorf("coupon %q: unsupported discount type %q", r.Code, r.DiscountType)
		}
		t.rules[r.Code] = r
		t.codes = append(t.codes, r.Code)
	}
	return t, nil
}

// Lookup normalizes raw and returns the matching rule. Unknown codes are not
// an error, they simply do not resolve.
func (t *Table) Lookup(raw string) (Rule, bool) {
	code := Normalize(raw)
	if code == "" {
		return Rule{}, false
	}
	r, ok := t.rules[code]
	return r, ok
}

// Resolve is Lookup returning a pointer, nil when the code does not resolve.
func (t *Table) Resolve(raw string) *Rule {
	r, ok := t.Lookup(raw)
	if !ok {
		return nil
	}
	return &r
}

// Apply implements the explicit "apply coupon" action. A blank input clears
// the coupon, an unknown one yields ErrInvalidCoupon.
func (t *Table) Apply(raw string) (string, error) {
	if Normalize(raw) == "" {
		return "", nil
	}
	r, ok := t.Lookup(raw)
	if !ok {
		return "", ErrInvalidCoupon
	}
	return r.Code, nil
}

// Codes returns the configured codes in definition order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}
