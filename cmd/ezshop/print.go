package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (a *app) printSale(ctx context.Context, sale domain.Sale) {
	barcodes := make([]string, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		barcodes = append(barcodes, line.ProductBarcode)
	}
	a.details.Prefetch(ctx, barcodes)

	fmt.Fprintf(a.out, "Sale #%d  %s  discount %s\n", sale.ID, sale.Status, cart.Percent(sale.DiscountRate))
	tw := newTable(a.out)
	for _, line := range sale.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%d x %s\t-%s\t%s\n",
			line.ProductBarcode,
			a.details.Describe(ctx, line.ProductBarcode),
			line.Quantity,
			cart.Format(line.PricePerUnit),
			cart.Percent(line.DiscountRate),
			cart.Format(cart.SaleLineTotal(line)),
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "Items: %d  Total: %s\n", cart.ItemCount(sale.Lines), cart.Format(cart.Total(sale)))
}

func (a *app) printReturn(ctx context.Context, ret domain.Return, sale domain.Sale) {
	barcodes := make([]string, 0, len(ret.Lines))
	for _, line := range ret.Lines {
		barcodes = append(barcodes, line.ProductBarcode)
	}
	a.details.Prefetch(ctx, barcodes)

	fmt.Fprintf(a.out, "Return #%d  %s  for sale #%d (%s)\n", ret.ID, ret.Status, ret.SaleID, sale.Status)
	tw := newTable(a.out)
	for _, line := range ret.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%d x %s\t%s\n",
			line.ProductBarcode,
			a.details.Describe(ctx, line.ProductBarcode),
			line.Quantity,
			cart.Format(line.PricePerUnit),
			cart.Format(cart.ReturnLineTotal(line)),
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "Total refund: %s\n", cart.Format(cart.RefundTotal(ret)))
}

func (a *app) printProducts(products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(a.out, "No products found")
		return
	}
	tw := newTable(a.out)
	fmt.Fprintln(tw, "BARCODE\tDESCRIPTION\tPRICE\tQTY\tPOSITION")
	for _, p := range products {
		position := p.Position
		if position == "" {
			position = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.Barcode, p.Description, cart.Format(p.PricePerUnit), p.Quantity, position)
	}
	_ = tw.Flush()
}
