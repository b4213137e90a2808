package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/txsync"
)

func (a *app) returnsCommand() *cli.Command {
	return &cli.Command{
		Name:  "returns",
		Usage: "list and process returns",
		Before: func(c *cli.Context) error {
			_, err := a.requireUser()
			return err
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every return",
				Action: func(c *cli.Context) error {
					returns, err := a.client.Returns.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					tw := newTable(a.out)
					fmt.Fprintln(tw, "ID\tSALE\tDATE\tSTATUS\tREFUND")
					for _, r := range returns {
						fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.ID, r.SaleID, stamp(r.CreatedAt), r.Status, cart.Format(cart.RefundTotal(r)))
					}
					return tw.Flush()
				},
			},
			{
				Name:      "show",
				Usage:     "show one return with its sale",
				ArgsUsage: "RETURN_ID",
				Action: a.withReturn(func(ctx context.Context, c *cli.Context, view *txsync.ReturnView) error {
					return nil
				}),
			},
			{
				Name:      "new",
				Usage:     "open a return against a paid sale",
				ArgsUsage: "SALE_ID",
				Action: func(c *cli.Context) error {
					saleID, err := argInt(c, 0, "sale id")
					if err != nil {
						return err
					}
					ret, err := a.client.Returns.Create(c.Context, saleID)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Opened return #%d for sale #%d\n", ret.ID, saleID)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "return one more unit of a product",
				ArgsUsage: "RETURN_ID BARCODE",
				Action: a.withReturn(func(ctx context.Context, c *cli.Context, view *txsync.ReturnView) error {
					barcode, err := argString(c, 1, "barcode")
					if err != nil {
						return err
					}
					return view.AddItem(ctx, barcode)
				}),
			},
			{
				Name:      "remove",
				Usage:     "take one unit of a product off the return",
				ArgsUsage: "RETURN_ID BARCODE",
				Action: a.withReturn(func(ctx context.Context, c *cli.Context, view *txsync.ReturnView) error {
					barcode, err := argString(c, 1, "barcode")
					if err != nil {
						return err
					}
					return view.RemoveItem(ctx, barcode)
				}),
			},
			{
				Name:      "close",
				Usage:     "close a return and restock its items",
				ArgsUsage: "RETURN_ID",
				Action: a.withReturn(func(ctx context.Context, c *cli.Context, view *txsync.ReturnView) error {
					view.OnDone(func() { fmt.Fprintln(a.out, "Return closed") })
					return view.CloseReturn(ctx)
				}),
			},
			{
				Name:      "reimburse",
				Usage:     "pay the refund of a closed return",
				ArgsUsage: "RETURN_ID",
				Action: a.withReturn(func(ctx context.Context, c *cli.Context, view *txsync.ReturnView) error {
					view.OnDone(func() {
						fmt.Fprintf(a.out, "Reimbursed %s\n", cart.Format(view.RefundTotal()))
					})
					return view.Reimburse(ctx)
				}),
			},
		},
	}
}

func (a *app) withReturn(fn func(context.Context, *cli.Context, *txsync.ReturnView) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := argInt(c, 0, "return id")
		if err != nil {
			return err
		}
		ret, err := a.client.Returns.Get(c.Context, id)
		if err != nil {
			return apiError(err)
		}
		view := txsync.NewReturnView(a.client.Returns, a.client.Sales, ret, a.syncOptions()...)
		defer view.Close()

		if err := view.Reload(c.Context); err != nil {
			return viewError(err, view.Snapshot())
		}
		if err := fn(c.Context, c, view); err != nil {
			return viewError(err, view.Snapshot())
		}
		details := view.Details()
		a.printReturn(c.Context, details.Return, details.Sale)
		return nil
	}
}
