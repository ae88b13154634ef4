// Command quote prices a cart from the command line and prints the summary
// the storefront would show.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/prodishi/dishi-shop/internal/catalog"
	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/money"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

func main() {
	var (
		catalogFile string
		starter     int
		refill      int
		couponCode  string
	)

	flag.StringVar(&catalogFile, "catalog", "", "catalog YAML file (default: embedded catalog)")
	flag.IntVar(&starter, "starter", 1, "starter kit quantity")
	flag.IntVar(&refill, "refill", 0, "sticker refill quantity")
	flag.StringVar(&couponCode, "coupon", "", "coupon code")
	flag.Parse()

	if err := run(os.Stdout, catalogFile, starter, refill, couponCode); err != nil {
		slog.Error("quote failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(out io.Writer, catalogFile string, starter, refill int, couponCode string) error {
	cat, err := catalog.Load(catalogFile)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	if couponCode != "" {
		if _, ok := cat.Coupons.Lookup(couponCode); !ok {
			slog.Warn("unknown coupon ignored", slog.String("coupon", couponCode))
		}
	}

	s, err := cart.NewAggregator(cat.Calculator()).Summarize([]cart.LineState{
		{ProductID: product.Starter, Quantity: starter},
		{ProductID: product.Refill, Quantity: refill},
	}, couponCode)
	if err != nil {
		return errors.Wrap(err, "summarize")
	}
	return printSummary(out, s)
}

func printSummary(out io.Writer, s *cart.Summary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, s.Title)
	fmt.Fprintln(w, s.Composition)
	fmt.Fprintln(w)

	for _, l := range s.Lines {
		fmt.Fprintf(w, "%s\t%d ×\t%s\t%s\n", l.ProductTitle+" – "+l.VariantLabel, l.Quantity,
			money.Format(l.UnitPrice), money.Format(l.Subtotal))
		if l.Freebies > 0 {
			fmt.Fprintf(w, "  + %d %s gratis\t\t\t(%s)\n", l.Freebies, l.FreebiesLabel, money.Format(l.FreebiesValue))
		}
	}
	fmt.Fprintln(w)

	rows := []struct {
		label string
		value int64
	}{
		{"Međuzbir", s.ListSubtotal},
		{"Popust", s.Discount},
		{"Dostava", s.Shipping},
		{"Ukupno", s.Total},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t\t\t%s\n", r.label, money.Format(r.value))
	}
	if s.Coupon != "" {
		fmt.Fprintf(w, "Kupon\t\t\t%s\n", s.Coupon)
	}
	if s.AmountUntilFreeShipping > 0 {
		fmt.Fprintf(w, "Do besplatne dostave\t\t\t%s\n", money.Format(s.AmountUntilFreeShipping))
	}
	if s.Gift {
		fmt.Fprintln(w, "Poklon iznenađenja uključen")
	} else {
		fmt.Fprintf(w, "Do poklona\t\t\t%s\n", money.Format(s.AmountUntilGift))
	}
	return w.Flush()
}
