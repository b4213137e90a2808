package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
	"ezshop/terminal/internal/form"
	"ezshop/terminal/internal/report"
)

func (a *app) ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "restock orders",
		Before: func(c *cli.Context) error {
			return a.requireRole(backOffice...)
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every order",
				Flags: []cli.Flag{&cli.StringFlag{Name: "status", Usage: "ISSUED, PAID or COMPLETED"}},
				Action: func(c *cli.Context) error {
					orders, err := a.client.Orders.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					status := domain.OrderStatus(strings.ToUpper(c.String("status")))
					tw := newTable(a.out)
					fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tSTATUS\tTOTAL\tISSUED")
					for _, o := range orders {
						if status != "" && o.Status != status {
							continue
						}
						fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", o.ID, o.ProductBarcode, o.Quantity, o.Status, cart.Format(cart.OrderTotal(o)), o.IssueDate)
					}
					return tw.Flush()
				},
			},
			{
				Name:      "show",
				Usage:     "show one order",
				ArgsUsage: "ORDER_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "order id")
					if err != nil {
						return err
					}
					o, err := a.client.Orders.Get(c.Context, id)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Order #%d (%s)\n  product:  %s\n  quantity: %d x %s\n  total:    %s\n  issued:   %s\n",
						o.ID, o.Status, o.ProductBarcode, o.Quantity, cart.Format(o.PricePerUnit), cart.Format(cart.OrderTotal(o)), o.IssueDate)
					return nil
				},
			},
			{
				Name:      "new",
				Usage:     "issue an order",
				ArgsUsage: "BARCODE QUANTITY PRICE",
				Action: func(c *cli.Context) error {
					qty, err := argInt(c, 1, "quantity")
					if err != nil {
						return err
					}
					order, err := form.Order{ProductBarcode: c.Args().Get(0), Quantity: qty, Price: c.Args().Get(2)}.ToOrder()
					if err != nil {
						return err
					}
					created, err := a.client.Orders.Create(c.Context, order)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Issued order #%d\n", created.ID)
					return nil
				},
			},
			{
				Name:      "pay",
				Usage:     "pay an issued order from the balance",
				ArgsUsage: "ORDER_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "order id")
					if err != nil {
						return err
					}
					if _, err := a.client.Orders.Pay(c.Context, id); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Order #%d paid\n", id)
					return nil
				},
			},
			{
				Name:      "arrive",
				Usage:     "record the arrival of a paid order",
				ArgsUsage: "ORDER_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "order id")
					if err != nil {
						return err
					}
					if _, err := a.client.Orders.RecordArrival(c.Context, id); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Order #%d completed\n", id)
					return nil
				},
			},
		},
	}
}

func (a *app) usersCommand() *cli.Command {
	roleUsage := "Administrator, ShopManager or Cashier"
	return &cli.Command{
		Name:  "users",
		Usage: "manage operator accounts",
		Before: func(c *cli.Context) error {
			return a.requireRole(domain.UserTypeAdministrator)
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every user",
				Action: func(c *cli.Context) error {
					users, err := a.client.Users.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					tw := newTable(a.out)
					fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
					for _, u := range users {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.Type)
					}
					return tw.Flush()
				},
			},
			{
				Name:      "add",
				Usage:     "create a user",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Value: string(domain.UserTypeCashier), Usage: roleUsage},
				},
				Action: func(c *cli.Context) error {
					req, err := form.UserCreate{Username: c.Args().Get(0), Password: c.String("password"), Type: c.String("role")}.ToRequest()
					if err != nil {
						return err
					}
					user, err := a.client.Users.Create(c.Context, req)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Created user #%d %s (%s)\n", user.ID, user.Username, user.Type)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "change a user's name, password or role",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: roleUsage},
				},
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "user id")
					if err != nil {
						return err
					}
					req, err := form.UserUpdate{Username: c.String("username"), Password: c.String("password"), Type: c.String("role")}.ToRequest()
					if err != nil {
						return err
					}
					user, err := a.client.Users.Update(c.Context, id, req)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Updated user #%d %s (%s)\n", user.ID, user.Username, user.Type)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a user",
				ArgsUsage: "USER_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "user id")
					if err != nil {
						return err
					}
					if err := a.client.Users.Delete(c.Context, id); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Deleted user #%d\n", id)
					return nil
				},
			},
		},
	}
}

func (a *app) accountingCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounting",
		Usage: "shop balance",
		Before: func(c *cli.Context) error {
			return a.requireRole(backOffice...)
		},
		Subcommands: []*cli.Command{
			{
				Name:  "balance",
				Usage: "show the current balance",
				Action: func(c *cli.Context) error {
					balance, err := a.client.Accounting.Balance(c.Context)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Balance: %s\n", cart.Format(balance))
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "overwrite the balance",
				ArgsUsage: "AMOUNT",
				Action: func(c *cli.Context) error {
					amount, err := form.Balance{Amount: c.Args().Get(0)}.Value()
					if err != nil {
						return err
					}
					if err := a.client.Accounting.SetBalance(c.Context, amount); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Balance: %s\n", cart.Format(amount))
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "reset the balance to zero",
				Action: func(c *cli.Context) error {
					if err := a.client.Accounting.ResetBalance(c.Context); err != nil {
						return apiError(err)
					}
					fmt.Fprintln(a.out, "Balance: 0.00")
					return nil
				},
			},
		},
	}
}

func (a *app) dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "key figures and top products",
		Before: func(c *cli.Context) error {
			return a.requireRole(backOffice...)
		},
		Action: func(c *cli.Context) error {
			stats, err := a.client.Dashboard.Stats(c.Context)
			if err != nil {
				return apiError(err)
			}
			tw := newTable(a.out)
			fmt.Fprintf(tw, "Revenue\t%.2f\t%+.1f%%\n", stats.TotalRevenue.Value, stats.TotalRevenue.Change)
			fmt.Fprintf(tw, "Sales\t%.0f\t%+.1f%%\n", stats.TotalSales.Value, stats.TotalSales.Change)
			fmt.Fprintf(tw, "Active orders\t%.0f\t%+.1f%%\n", stats.ActiveOrders.Value, stats.ActiveOrders.Change)
			fmt.Fprintf(tw, "Products\t%.0f\t%+.1f%%\n", stats.TotalProducts.Value, stats.TotalProducts.Change)
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(stats.TopProducts) == 0 {
				return nil
			}
			fmt.Fprintln(a.out, "Top products:")
			tw = newTable(a.out)
			for _, p := range stats.TopProducts {
				fmt.Fprintf(tw, "  %s\t%s\t%d sold\t%.2f\n", p.Barcode, p.Description, p.QuantitySold, p.Revenue)
			}
			return tw.Flush()
		},
	}
}

func (a *app) reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "export sales, returns or orders",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: string(report.KindSales), Usage: "sales, returns or orders"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(report.FormatCSV), Usage: "csv or xlsx"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "directory to write into"},
		},
		Before: func(c *cli.Context) error {
			return a.requireRole(backOffice...)
		},
		Action: func(c *cli.Context) error {
			kind, err := report.ParseKind(c.String("kind"))
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(c.String("format"))
			if err != nil {
				return err
			}

			var table report.Table
			switch kind {
			case report.KindSales:
				sales, err := a.client.Sales.List(c.Context)
				if err != nil {
					return apiError(err)
				}
				table = report.Sales(sales)
			case report.KindReturns:
				returns, err := a.client.Returns.List(c.Context)
				if err != nil {
					return apiError(err)
				}
				table = report.Returns(returns)
			case report.KindOrders:
				orders, err := a.client.Orders.List(c.Context)
				if err != nil {
					return apiError(err)
				}
				table = report.Orders(orders)
			}
			if len(table.Rows) == 0 {
				return fmt.Errorf("nothing to export")
			}

			path := filepath.Join(c.String("out"), report.Filename(kind, format, a.clock.Now().UTC()))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.Write(f, table, format); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %d rows to %s\n", len(table.Rows), path)
			return nil
		},
	}
}
