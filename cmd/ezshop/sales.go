package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/form"
	"ezshop/terminal/internal/txsync"
)

func (a *app) salesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sales",
		Usage: "list and edit sales",
		Before: func(c *cli.Context) error {
			_, err := a.requireUser()
			return err
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every sale",
				Action: func(c *cli.Context) error {
					sales, err := a.client.Sales.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					tw := newTable(a.out)
					fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tDISCOUNT\tITEMS\tTOTAL")
					for _, s := range sales {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", s.ID, stamp(s.CreatedAt), s.Status, cart.Percent(s.DiscountRate), cart.ItemCount(s.Lines), cart.Format(cart.Total(s)))
					}
					return tw.Flush()
				},
			},
			{
				Name:      "show",
				Usage:     "show one sale",
				ArgsUsage: "SALE_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "sale id")
					if err != nil {
						return err
					}
					sale, err := a.client.Sales.Get(c.Context, id)
					if err != nil {
						return apiError(err)
					}
					a.printSale(c.Context, sale)
					return nil
				},
			},
			{
				Name:  "new",
				Usage: "open a new sale",
				Action: func(c *cli.Context) error {
					sale, err := a.client.Sales.Create(c.Context)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Opened sale #%d\n", sale.ID)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "add units of a product",
				ArgsUsage: "SALE_ID BARCODE",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Value: 1}},
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					barcode, err := argString(c, 1, "barcode")
					if err != nil {
						return err
					}
					if c.Int("qty") < 1 {
						return fmt.Errorf("qty must be at least 1")
					}
					return view.UpdateQuantity(ctx, barcode, c.Int("qty"))
				}),
			},
			{
				Name:      "remove",
				Usage:     "remove units of a product",
				ArgsUsage: "SALE_ID BARCODE",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Value: 1}},
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					barcode, err := argString(c, 1, "barcode")
					if err != nil {
						return err
					}
					if c.Int("qty") < 1 {
						return fmt.Errorf("qty must be at least 1")
					}
					return view.UpdateQuantity(ctx, barcode, -c.Int("qty"))
				}),
			},
			{
				Name:      "discount",
				Usage:     "set the sale-wide discount rate",
				ArgsUsage: "SALE_ID RATE",
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					rate, err := form.Discount{Rate: c.Args().Get(1)}.Value()
					if err != nil {
						return err
					}
					return view.ApplyDiscount(ctx, rate)
				}),
			},
			{
				Name:      "line-discount",
				Usage:     "set the discount rate of one line",
				ArgsUsage: "SALE_ID BARCODE RATE",
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					barcode, err := argString(c, 1, "barcode")
					if err != nil {
						return err
					}
					rate, err := form.Discount{Rate: c.Args().Get(2)}.Value()
					if err != nil {
						return err
					}
					return view.ApplyLineDiscount(ctx, barcode, rate)
				}),
			},
			{
				Name:      "close",
				Usage:     "close a sale for payment",
				ArgsUsage: "SALE_ID",
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					return view.CloseSale(ctx)
				}),
			},
			{
				Name:      "pay",
				Usage:     "pay a sale in cash",
				ArgsUsage: "SALE_ID CASH",
				Action: a.withSale(func(ctx context.Context, c *cli.Context, view *txsync.SaleView) error {
					cash, err := form.Payment{Cash: c.Args().Get(1)}.Value()
					if err != nil {
						return err
					}
					view.OnDone(func() {
						fmt.Fprintf(a.out, "Paid. Change: %s\n", cart.Format(view.Change(cash)))
					})
					return view.Pay(ctx, cash)
				}),
			},
		},
	}
}

// withSale loads the sale named by the first argument into a view, runs fn
// and prints the sale as the view last saw it.
func (a *app) withSale(fn func(context.Context, *cli.Context, *txsync.SaleView) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := argInt(c, 0, "sale id")
		if err != nil {
			return err
		}
		sale, err := a.client.Sales.Get(c.Context, id)
		if err != nil {
			return apiError(err)
		}
		view := txsync.NewSaleView(a.client.Sales, sale, nil, a.syncOptions()...)
		defer view.Close()

		if err := fn(c.Context, c, view); err != nil {
			return viewError(err, view.Snapshot())
		}
		a.printSale(c.Context, view.Sale())
		return nil
	}
}
